// Package systems holds the built-in economy systems the balancer tunes:
// production vs spend, upgrade cost pacing, prestige cycles, offline
// accumulation and win-rate matchups. Every system is deterministic for a
// given seed.
package systems
