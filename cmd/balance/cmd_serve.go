package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/internal/server"
	"github.com/avila-gabriel/game-balance/pkg/config"
	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve balance runs over HTTP and gRPC",
		Long: `Serve balance runs over HTTP and gRPC.

Settings come from the environment:
  BALANCE_GRPC_ADDR            gRPC listen address (default :50051)
  BALANCE_HTTP_ADDR            HTTP listen address (default :8080)
  BALANCE_GRPC_DISABLED        true turns the gRPC listener off
  BALANCE_HTTP_DISABLED        true turns the HTTP listener off
  BALANCE_LOG_LEVEL            log level (default info)
  BALANCE_LOG_FORMAT           text, json, or console (default text)
  BALANCE_MAX_CONCURRENT_RUNS  runs executing at once (default 4)
  BALANCE_SHUTDOWN_TIMEOUT     graceful shutdown limit (default 10s)

--log-level and --log-format override the environment when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
			}
			log, err := logger.NewFormat(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logger.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, nil)
		},
	}
}

// serve runs the daemon until ctx is done or a listener fails. ready, when
// set, receives the bound addresses once both listeners are up.
func serve(ctx context.Context, cfg config.ServerConfig, log *slog.Logger, ready func(grpcAddr, httpAddr net.Addr)) error {
	store := server.NewRunStore()
	reg := registry.Default()
	exec := server.NewExecutor(store, reg, cfg.MaxConcurrentRuns, log)

	errCh := make(chan error, 2)
	var grpcServer *grpc.Server
	var grpcAddr, httpAddr net.Addr

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		grpcAddr = lis.Addr()
		// TODO: configure TLS and authentication before exposing the gRPC port beyond localhost.
		grpcServer = grpc.NewServer()
		server.RegisterBalanceServiceServer(grpcServer, server.NewBalanceGRPCServer(store, exec, reg))
		go func() {
			log.Info("gRPC server listening", "addr", grpcAddr.String())
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			if grpcServer != nil {
				grpcServer.Stop()
			}
			return fmt.Errorf("listen HTTP on %s: %w", cfg.HTTPAddr, err)
		}
		httpAddr = lis.Addr()
		httpSrv = &http.Server{
			Handler:           server.NewHTTPServer(store, exec, reg).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			log.Info("HTTP server listening", "addr", httpAddr.String())
			if err := httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server: %w", err)
			}
		}()
	}

	if ready != nil {
		ready(grpcAddr, httpAddr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown error", "error", err)
		}
	}
	if err := exec.Shutdown(shutdownCtx); err != nil {
		log.Warn("runs still active at shutdown", "error", err)
	}
	return serveErr
}
