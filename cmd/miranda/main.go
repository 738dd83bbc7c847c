// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the miranda CLI. It serves the HTTP
// API and exposes the pipeline operations (projects, ingestion, indexing,
// queries, generation, export) as subcommands.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/internal/secrets"
	"github.com/pdiddy/miranda/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg and log are populated before any subcommand runs.
var (
	cfg types.Config
	log *logging.Logger
)

// rootCmd is the base command for the miranda CLI.
var rootCmd = &cobra.Command{
	Use:   "miranda",
	Short: "Project-scoped retrieval and generation for writers",
	Long: `miranda keeps writing projects (screenplay, academic, business) with their
document buckets and tables, indexes uploaded documents into a per-project
semantic store, answers questions against it, and drafts content through a
brainstorm then write flow.

Run "miranda serve" for the HTTP API, or use the subcommands directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Log.Mode)
		if err != nil {
			return err
		}
		log = l

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, log)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug("loaded secrets", "keys", keys)
		}
		secrets.Apply(&cfg.AI, s)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

// configName is the config file base name searched in . and ~/.config/miranda.
const configName = "miranda"

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./"+configName+".yaml or ~/.config/miranda/"+configName+".yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of API key files")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (overrides storage.data_dir)")
	rootCmd.PersistentFlags().String("log-mode", "", "logger mode: dev or prod")

	_ = viper.BindPFlag("storage.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log.mode", rootCmd.PersistentFlags().Lookup("log-mode"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "miranda"))
		}
	}

	viper.SetEnvPrefix("MIRANDA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(types.Defaults())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment overrides are seen by
// Unmarshal.
func setDefaults(d types.Config) {
	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	viper.SetDefault("storage.data_dir", d.Storage.DataDir)
	viper.SetDefault("storage.durable", d.Storage.Durable)
	viper.SetDefault("ingest.max_upload_bytes", d.Ingest.MaxUploadBytes)
	viper.SetDefault("ingest.queue_size", d.Ingest.QueueSize)
	viper.SetDefault("ingest.convert_binary", d.Ingest.ConvertBinary)
	viper.SetDefault("ingest.container_runtime", d.Ingest.ContainerRuntime)
	viper.SetDefault("index.work_dir", d.Index.WorkDir)
	viper.SetDefault("index.default_mode", d.Index.DefaultMode)
	viper.SetDefault("index.top_k", d.Index.TopK)
	viper.SetDefault("index.chunk_size", d.Index.ChunkSize)
	viper.SetDefault("index.chunk_overlap", d.Index.ChunkOverlap)
	viper.SetDefault("index.reconcile_interval", d.Index.ReconcileInterval)
	viper.SetDefault("ai.provider", d.AI.Provider)
	viper.SetDefault("ai.model", d.AI.Model)
	viper.SetDefault("ai.embed_model", d.AI.EmbedModel)
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.embed_api_key", "")
	viper.SetDefault("ai.base_url", "")
	viper.SetDefault("ai.timeout", d.AI.Timeout)
	viper.SetDefault("ai.requests_per_second", d.AI.RequestsPerSecond)
	viper.SetDefault("ai.max_retries", d.AI.MaxRetries)
	viper.SetDefault("log.mode", d.Log.Mode)
}

func loadConfig() (types.Config, error) {
	c := types.Defaults()
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	if !c.AI.Provider.Valid() {
		return types.Config{}, fmt.Errorf("unknown ai.provider %q: expected openai or anthropic", c.AI.Provider)
	}
	if !c.Index.DefaultMode.Valid() {
		return types.Config{}, fmt.Errorf("unknown index.default_mode %q", c.Index.DefaultMode)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
