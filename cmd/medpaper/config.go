// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/medpaper/pkg/types"
)

// envKeys are bound explicitly so MEDPAPER_* variables reach Unmarshal
// even when the config file does not mention the key.
var envKeys = []string{
	"supervisor.max_revisions",
	"supervisor.agent_timeout",
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.host",
	"llm.max_retries",
	"llm.max_tokens",
	"literature.max_results",
	"literature.email",
	"literature.ncbi_api_key",
	"literature.timeout",
	"literature.user_agent",
	"store.path",
	"log.level",
	"log.format",
	"tracing.exporter",
	"tracing.service_name",
}

// loadConfig overlays viper's settings on the defaults.
func loadConfig() (types.Config, error) {
	for _, k := range envKeys {
		if err := viper.BindEnv(k); err != nil {
			return types.Config{}, fmt.Errorf("binding %s: %w", k, err)
		}
	}
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	if c.Supervisor.MaxRevisions < 0 {
		return types.Config{}, fmt.Errorf("supervisor.max_revisions must not be negative")
	}
	return c, nil
}
