// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medpaper/internal/agents"
	"github.com/pdiddy/medpaper/internal/llm"
	"github.com/pdiddy/medpaper/internal/paper"
	"github.com/pdiddy/medpaper/internal/search"
	"github.com/pdiddy/medpaper/internal/store"
	"github.com/pdiddy/medpaper/internal/supervisor"
)

// openService opens the store and, when withAgents is set, builds the LLM
// provider, search backends and supervisor. The returned close func
// releases the store.
func openService(ctx context.Context, withAgents bool) (*paper.Service, func(), error) {
	st, err := store.OpenSQLite(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}

	svc := &paper.Service{
		Store:      st,
		Logger:     logger,
		Supervisor: &supervisor.Supervisor{Store: st, MaxRevisions: cfg.Supervisor.MaxRevisions, Logger: logger},
	}
	if !withAgents {
		return svc, closeFn, nil
	}

	provider, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("configuring LLM provider: %w", err)
	}
	reg := agents.New(cfg, provider, search.NewBackends(cfg.Literature), logger)
	svc.Supervisor = supervisor.New(cfg.Supervisor, reg, st, logger)
	return svc, closeFn, nil
}

// readYAML decodes a YAML (or JSON) file into v. An empty path is a no-op.
func readYAML(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
