package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tunequiz/internal/audio"
	"github.com/verte-zerg/tunequiz/internal/config"
	"github.com/verte-zerg/tunequiz/internal/game"
	"github.com/verte-zerg/tunequiz/internal/store"
)

// loadFileConfig reads the config file and applies the settings shared by all commands.
func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "storage", &storageBackend, fileCfg.Storage.Backend)
	applyStringConfig(cmd, "storage-path", &storagePath, fileCfg.Storage.Path)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	if fileCfg.Log.File != nil {
		logFile = *fileCfg.Log.File
	}
	return fileCfg, nil
}

// openPerformanceStore opens the configured backend. The returned func closes it.
func openPerformanceStore(ctx context.Context, logger zerolog.Logger, trackIncorrect bool) (*store.PerformanceStore, func() error, error) {
	backend, closeFn, err := openBackend(storageBackend, storagePath)
	if err != nil {
		return nil, nil, err
	}
	perf := store.New(ctx, backend,
		store.WithLogger(logger),
		store.WithIncorrectTracking(trackIncorrect),
	)
	return perf, closeFn, nil
}

func openBackend(kind, path string) (store.Backend, func() error, error) {
	noop := func() error { return nil }
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to expand storage path: %w", err)
		}
		path = expanded
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sqlite":
		if path == "" {
			path = config.DefaultDBPath()
		}
		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db: %w", err)
		}
		return db, db.Close, nil
	case "file":
		if path == "" {
			path = config.DefaultStatsFileDir()
		}
		fb, err := store.NewFileBackend(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open stats directory: %w", err)
		}
		return fb, noop, nil
	case "memory":
		return store.NewMemoryBackend(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown --storage %q (expected sqlite, file, memory)", kind)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target, value *[]string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), (*value)...)
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("invalid %s in config: %w", name, err)
	}
	*target = d
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tunequiz configuration
# Uncomment a value to enable it. CLI flags override config values.

[game]
# catalog = %q       # Song catalog file or http(s) URL
# rounds = %d                    # Rounds per game
# mode = %q              # standard, album-train, adaptive-train
# albums = ["21", "25"]           # Albums for album-train mode
# adaptive = %q           # weakest, easiest, recently-incorrect
# snippet = %q                  # Clip length per round, 0s plays whole songs
# retry-delay = %q               # Wait before moving on after a clip fails to load
# player = %q
# track-incorrect = false         # Record wrong guesses as missed attempts

[storage]
# backend = %q            # sqlite, file, memory
# path = ""                       # Database file or stats directory

[log]
# level = %q                # debug, info, warn, error
# file = %q
`,
		config.DefaultCatalogPath(),
		defaultRounds,
		defaultMode,
		defaultAdaptive,
		defaultSnippet.String(),
		game.DefaultRetryDelay.String(),
		audio.DefaultCommand,
		defaultStorage,
		defaultLogLevel,
		config.DefaultLogPath(),
	)
}
