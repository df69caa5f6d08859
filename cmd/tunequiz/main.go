// Package main provides the CLI entrypoint for tunequiz.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tunequiz/internal/audio"
	"github.com/verte-zerg/tunequiz/internal/catalog"
	"github.com/verte-zerg/tunequiz/internal/config"
	"github.com/verte-zerg/tunequiz/internal/game"
	"github.com/verte-zerg/tunequiz/internal/logging"
	"github.com/verte-zerg/tunequiz/internal/model"
	"github.com/verte-zerg/tunequiz/internal/selector"
	"github.com/verte-zerg/tunequiz/internal/tui"
)

const (
	defaultRounds   = 10
	defaultSnippet  = 30 * time.Second
	defaultMode     = "standard"
	defaultAdaptive = "weakest"
	defaultStorage  = "sqlite"
	defaultLogLevel = "info"
	silentPlayer    = "silent"
)

var (
	playCatalog        string
	playMode           string
	playAlbums         []string
	playAdaptive       string
	playRounds         int
	playSnippet        time.Duration
	playRetryDelay     time.Duration
	playPlayer         string
	playTrackIncorrect bool

	storageBackend string
	storagePath    string
	logLevel       string
	logFile        string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tunequiz",
		Short:         "Guess the song from a short clip",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playCatalog, "catalog", config.DefaultCatalogPath(), "song catalog file or http(s) URL")
	rootCmd.Flags().StringVar(&playMode, "mode", defaultMode, "game mode: standard, album-train, adaptive-train")
	rootCmd.Flags().StringArrayVar(&playAlbums, "album", nil, "album to train on (repeatable, album-train mode)")
	rootCmd.Flags().StringVar(&playAdaptive, "adaptive", defaultAdaptive, "adaptive policy: weakest, easiest, recently-incorrect")
	rootCmd.Flags().IntVar(&playRounds, "rounds", defaultRounds, "rounds per game")
	rootCmd.Flags().DurationVar(&playSnippet, "snippet", defaultSnippet, "clip length per round (0 plays the whole song)")
	rootCmd.Flags().DurationVar(&playRetryDelay, "retry-delay", game.DefaultRetryDelay, "wait before moving on when a clip fails to load")
	rootCmd.Flags().StringVar(&playPlayer, "player", audio.DefaultCommand, "player command template, or \"silent\"")
	rootCmd.Flags().BoolVar(&playTrackIncorrect, "track-incorrect", false, "record wrong guesses as missed attempts for adaptive mode")

	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", defaultStorage, "performance storage: sqlite, file, memory")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage-path", "", "database file (sqlite) or directory (file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level: debug, info, warn, error")

	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newAlbumsCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "catalog", &playCatalog, fileCfg.Game.Catalog)
	applyStringConfig(cmd, "mode", &playMode, fileCfg.Game.Mode)
	applyStringSliceConfig(cmd, "album", &playAlbums, fileCfg.Game.Albums)
	applyStringConfig(cmd, "adaptive", &playAdaptive, fileCfg.Game.Adaptive)
	applyIntConfig(cmd, "rounds", &playRounds, fileCfg.Game.Rounds)
	if err := applyDurationConfig(cmd, "snippet", &playSnippet, fileCfg.Game.Snippet); err != nil {
		return err
	}
	if err := applyDurationConfig(cmd, "retry-delay", &playRetryDelay, fileCfg.Game.RetryDelay); err != nil {
		return err
	}
	applyStringConfig(cmd, "player", &playPlayer, fileCfg.Game.Player)
	applyBoolConfig(cmd, "track-incorrect", &playTrackIncorrect, fileCfg.Game.TrackIncorrect)

	cfg, err := buildGameConfig()
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("tunequiz needs an interactive terminal to play")
	}

	// The alternate screen owns the terminal, so the session logs to a file.
	logger, closer, err := logging.New(logging.Options{Level: logLevel, File: firstNonEmpty(logFile, config.DefaultLogPath())})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			_ = cerr
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	songs, err := catalog.Load(ctx, cfg.CatalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog", cfg.CatalogPath).Msg("catalog unavailable")
		return fmt.Errorf("%w\nCreate one with: tunequiz scan <music dir>", err)
	}

	perf, backendCloser, err := openPerformanceStore(ctx, logger, cfg.TrackIncorrect)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backendCloser(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close storage")
		}
	}()

	player := newPlayer(cfg, logger)
	notes := tui.NewNotifications()
	engine := game.New(selector.New(songs), perf, player, game.Config{
		Rounds:     cfg.Rounds,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		Notifier:   notes,
	})
	opts := game.Options{Mode: cfg.Mode, SelectedAlbums: cfg.Albums, AdaptiveType: cfg.AdaptiveType}

	quiz := tui.NewModel(ctx, engine, notes, opts, logger)
	program := tea.NewProgram(quiz, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()
	summary := engine.EndGame()
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	if summary.RoundsPlayed > 0 {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Final score %d (%d/%d correct, %s)\n", summary.Score, summary.Correct(), summary.RoundsPlayed, summary.Mode); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func buildGameConfig() (model.GameConfig, error) {
	mode, err := model.ParseMode(playMode)
	if err != nil {
		return model.GameConfig{}, fmt.Errorf("invalid --mode: %w", err)
	}
	adaptive, err := model.ParseAdaptiveType(playAdaptive)
	if err != nil {
		return model.GameConfig{}, fmt.Errorf("invalid --adaptive: %w", err)
	}
	cfg := model.GameConfig{
		CatalogPath:    strings.TrimSpace(playCatalog),
		Rounds:         playRounds,
		Mode:           mode,
		Albums:         cleanAlbums(playAlbums),
		AdaptiveType:   adaptive,
		Snippet:        playSnippet,
		RetryDelay:     playRetryDelay,
		Player:         strings.TrimSpace(playPlayer),
		TrackIncorrect: playTrackIncorrect,
	}
	if err := validateConfig(cfg); err != nil {
		return model.GameConfig{}, err
	}
	return cfg, nil
}

func validateConfig(cfg model.GameConfig) error {
	if cfg.CatalogPath == "" {
		return fmt.Errorf("--catalog must not be empty")
	}
	if cfg.Rounds <= 0 {
		return fmt.Errorf("--rounds must be > 0")
	}
	if cfg.Snippet < 0 {
		return fmt.Errorf("--snippet must be >= 0")
	}
	if cfg.RetryDelay <= 0 {
		return fmt.Errorf("--retry-delay must be > 0")
	}
	return nil
}

func cleanAlbums(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func newPlayer(cfg model.GameConfig, logger zerolog.Logger) audio.Player {
	if strings.EqualFold(cfg.Player, silentPlayer) {
		return audio.NewSilentPlayer(nil, cfg.Snippet)
	}
	return audio.NewExecPlayer(cfg.Player, nil, cfg.Snippet, logger)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
