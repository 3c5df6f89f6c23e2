// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the medpaper CLI: task intake, runs,
// operator revisions, audit-trail inspection, manuscript export and
// literature search.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/medpaper/internal/observability"
	"github.com/pdiddy/medpaper/internal/secrets"
	"github.com/pdiddy/medpaper/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Populated by the root command's PersistentPreRunE.
var (
	cfg           types.Config
	logger        *slog.Logger
	shutdownTrace observability.ShutdownFunc
)

// rootCmd is the base command for the medpaper CLI.
var rootCmd = &cobra.Command{
	Use:   "medpaper",
	Short: "Multi-agent drafting of medical research manuscripts",
	Long: `medpaper drafts RCT, cohort and meta-analysis manuscripts. A supervisor
routes each task through literature search, statistical analysis, writing
and reporting-checklist compliance (CONSORT, STROBE, PRISMA), revising until
the manuscript passes or the revision cap is reached.

Tasks and the full agent message audit trail are kept in a SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		envFile, _ := cmd.Flags().GetString("env-file")
		s, err := secrets.LoadAll(secretsDir, envFile)
		if err != nil {
			return err
		}
		secrets.Apply(&c, s)
		cfg = c

		logger = observability.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}

		shutdownTrace, err = observability.InitTracing(cmd.Context(), cfg.Tracing, os.Stderr)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTrace == nil {
			return nil
		}
		return shutdownTrace(context.WithoutCancel(cmd.Context()))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./medpaper.yaml or ~/.config/medpaper/medpaper.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides store.path)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of secret key files")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with API keys")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("medpaper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "medpaper"))
		}
	}

	viper.SetEnvPrefix("MEDPAPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
