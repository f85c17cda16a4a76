package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize composition root with all dependencies
	root, err := NewCompositionRoot(ctx)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure cleanup on exit
	defer func() {
		if err := root.Cleanup(); err != nil {
			fmt.Printf("Failed to cleanup resources: %v\n", err)
		}
	}()

	if err := root.Start(ctx); err != nil {
		root.Logger.Error("Failed to register interception agent", zap.Error(err))
	}

	listenAddr := root.Config.Server.ListenAddr
	root.Logger.Info("Starting offline proxy", zap.String("addr", listenAddr))
	go func() {
		if err := root.HTTPServer.Start(listenAddr); err != nil {
			root.Logger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	// SIGHUP reloads configuration, SIGINT/SIGTERM shut down
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

wait:
	for {
		select {
		case sig := <-signals:
			if sig != syscall.SIGHUP {
				break wait
			}
			root.Logger.Info("Reloading configuration")
			if err := root.Reload(ctx); err != nil {
				root.Logger.Error("Reload failed", zap.Error(err))
			}
		case <-ctx.Done():
			break wait
		}
	}

	root.Logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := root.HTTPServer.Stop(shutdownCtx); err != nil {
		root.Logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	cancel()
	root.Stop()

	root.Logger.Info("Server exited")
}
