package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	memento "github.com/chrisperfer/memento-mcp"
	"github.com/chrisperfer/memento-mcp/pkg/config"
	"github.com/chrisperfer/memento-mcp/pkg/decay"
	"github.com/chrisperfer/memento-mcp/pkg/embedding"
	"github.com/chrisperfer/memento-mcp/pkg/store"
	"github.com/chrisperfer/memento-mcp/pkg/telemetry"
	"github.com/chrisperfer/memento-mcp/pkg/vector"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "memento",
		Short: "Memento: bitemporal knowledge-graph memory",
		Long: `Memento is a knowledge-graph memory for AI agents. Entities and
relations are versioned rather than overwritten, relation confidence
decays over time, and retrieval combines graph filters with semantic
vector search.`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.memento.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".memento")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogger builds the slog logger, routing error records into the
// Parquet telemetry sink when a path is configured.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	if cfg.Telemetry.ParquetPath != "" {
		if ph, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath); err == nil {
			handler = ph
		} else {
			fmt.Fprintln(os.Stderr, "Telemetry sink disabled:", err)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// newClient wires a memento.Client from loaded configuration.
func newClient(cfg *config.Config, logger *slog.Logger) (*memento.Client, error) {
	var graphStore store.GraphStore
	switch cfg.Database.Driver {
	case "memory":
		graphStore = store.NewMemoryStore()
	case "neo4j", "":
		var err error
		graphStore, err = store.NewNeo4jStore(store.Neo4jConfig{
			URI:      cfg.Database.URI,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to neo4j: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	service, err := embedding.NewOpenAIService(embedding.OpenAIConfig{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding service: %w", err)
	}
	wrapped := embedding.NewBreakerService(service, embedding.BreakerConfig{
		Enabled:          cfg.CircuitBreaker.Enabled,
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
	})

	decayConfig, err := loadDecayConfig(cfg)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := time.ParseDuration(cfg.Ontology.CacheTTL)
	if err != nil {
		cacheTTL = 0
	}

	return memento.NewClient(graphStore, wrapped, vector.NewMemoryIndex(),
		memento.WithDecayConfig(decayConfig),
		memento.WithOntologyTTL(cacheTTL),
		memento.WithBackfillConfig(embedding.BackfillConfig{
			Concurrency:   cfg.Backfill.Concurrency,
			RatePerSecond: cfg.Backfill.RatePerSecond,
		}),
		memento.WithLogger(logger),
	), nil
}

// loadDecayConfig builds the decay configuration, preferring the
// per-type overrides file when one is configured.
func loadDecayConfig(cfg *config.Config) (decay.Config, error) {
	if cfg.Decay.OverridesFile != "" {
		loaded, err := decay.LoadConfigFile(cfg.Decay.OverridesFile)
		if err != nil {
			return decay.Config{}, fmt.Errorf("loading decay overrides: %w", err)
		}
		return loaded, nil
	}

	result := decay.DefaultConfig()
	if cfg.Decay.HalfLife != "" {
		halfLife, err := time.ParseDuration(cfg.Decay.HalfLife)
		if err != nil {
			return decay.Config{}, fmt.Errorf("parsing decay half-life: %w", err)
		}
		result.Default.HalfLife = halfLife
	}
	result.Default.Floor = cfg.Decay.Floor
	return result, nil
}
