package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/chazu/mayhem/pkg/kernel/sdfx"
	"github.com/chazu/mayhem/pkg/kernel/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenAddr string

var kernelCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Geometry kernel commands",
}

var kernelServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sdfx geometry kernel over websocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Kernel.Listen = listenAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		ln, err := net.Listen("tcp", cfg.Kernel.Listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kernel listening on ws://%s/\n", ln.Addr())
		return serveKernel(ctx, ln)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	kernelServeCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (default from config)")
	kernelCmd.AddCommand(kernelServeCmd)
}

// serveKernel serves the kernel protocol on ln until ctx ends.
func serveKernel(ctx context.Context, ln net.Listener) error {
	srv := server.New(sdfx.New(cfg.Kernel.MeshCells),
		server.WithLogger(logger),
		server.WithMeshCells(cfg.Kernel.MeshCells))

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	logger.Info("kernel server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("kernel server stopped")
	return nil
}
