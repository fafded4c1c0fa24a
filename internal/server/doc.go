// Package server hosts the balance daemon: an in-memory run store, an
// executor that runs scenarios in the background, and the HTTP and gRPC
// front ends over them.
package server
