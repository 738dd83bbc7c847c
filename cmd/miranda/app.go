// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/pdiddy/miranda/internal/convert"
	"github.com/pdiddy/miranda/internal/generate"
	"github.com/pdiddy/miranda/internal/index"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/internal/project"
)

// app holds the wired pipeline shared by the subcommands.
type app struct {
	sqlite   *project.SQLite
	store    *project.Store
	queue    *ingest.Queue
	ingestor *ingest.Ingestor
	index    *index.Service
	gen      *generate.Orchestrator
}

// openApp wires the store, index, ingestor, and orchestrator from cfg. With
// withQueue set, uploads are pushed to a queue for a background worker;
// otherwise they stay pending until "miranda index" runs.
func openApp(ctx context.Context, withQueue bool) (*app, error) {
	a := &app{}

	var opts = []project.Option{project.WithLogger(log)}
	if cfg.Storage.Durable {
		db, err := project.OpenSQLite(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		a.sqlite = db
		store, err := project.Open(ctx, db, opts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.store = store
	} else {
		a.store = project.New(opts...)
	}

	completer, embedder := llm.New(cfg.AI)
	if !completer.Configured() {
		log.Warn("completion provider not configured; generation and queries will fail", "provider", cfg.AI.Provider)
	}
	if !embedder.Configured() {
		log.Warn("embedding provider not configured; documents will stay pending")
	}

	var converter convert.Converter
	if cfg.Ingest.ConvertBinary {
		c, err := convert.Detect(cfg.Ingest.ContainerRuntime)
		if err != nil {
			log.Warn("binary conversion unavailable", "error", err)
		} else {
			converter = c
		}
	}

	workDir := cfg.Index.WorkDir
	if workDir == "" {
		workDir = filepath.Join(cfg.Storage.DataDir, "index")
	}
	scopes, err := index.NewScopeManager(workDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("preparing index work dir: %w", err)
	}
	a.index = index.New(a.store, scopes, cfg.Index, index.Options{
		Completer: completer,
		Embedder:  embedder,
		Converter: converter,
		Logger:    log,
	})
	a.store.SetReleaser(a.index)
	a.index.Prune(ctx)

	if withQueue {
		a.queue = ingest.NewQueue(cfg.Ingest.QueueSize)
	}
	a.ingestor = ingest.New(a.store, a.queue, cfg.Ingest, log)
	a.gen = generate.New(a.store, a.index, completer, log)
	return a, nil
}

// Close releases index handles and the database.
func (a *app) Close() error {
	var errs []error
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
	}
	return errors.Join(errs...)
}
