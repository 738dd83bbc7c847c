// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/miranda/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background indexer",
	Long: `Serve starts the JSON API on server.addr and a background indexer that
consumes uploaded documents. Documents left pending by a previous run or a
full queue are rescanned at startup and every index.reconcile_interval.
SIGINT or SIGTERM shuts both down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Log.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpapi.NewServer(addr, httpapi.Config{
		Store:          a.store,
		Ingestor:       a.ingestor,
		Index:          a.index,
		Generator:      a.gen,
		Logger:         log,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.index.Run(gctx, a.queue) })
	g.Go(func() error {
		defer a.queue.Close()
		return srv.Run(gctx)
	})
	return g.Wait()
}
