package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tunequiz/internal/catalog"
	"github.com/verte-zerg/tunequiz/internal/config"
	"github.com/verte-zerg/tunequiz/internal/logging"
	"github.com/verte-zerg/tunequiz/internal/model"
	"github.com/verte-zerg/tunequiz/internal/selector"
	"github.com/verte-zerg/tunequiz/internal/stats"
	"github.com/verte-zerg/tunequiz/internal/statsui"
)

var (
	sourceCatalog   string
	scanOut         string
	scanConcurrency int
	pruneDryRun     bool
	statsPlain      bool
)

// withCatalogFlag registers --catalog on commands that read the song list.
func withCatalogFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringVar(&sourceCatalog, "catalog", config.DefaultCatalogPath(), "song catalog file or http(s) URL")
	return cmd
}

// setupCommand loads the config file and returns a console logger.
func setupCommand(cmd *cobra.Command) (zerolog.Logger, func(), error) {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if cmd.Flags().Lookup("catalog") != nil {
		applyStringConfig(cmd, "catalog", &sourceCatalog, fileCfg.Game.Catalog)
	}
	logger, closer, err := logging.New(logging.Options{Level: logLevel, File: logFile})
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logger, func() {
		if cerr := closer.Close(); cerr != nil {
			_ = cerr
		}
	}, nil
}

func newStatsCmd() *cobra.Command {
	cmd := withCatalogFlag(&cobra.Command{
		Use:   "stats",
		Short: "Show best and worst songs",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	})
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print tables instead of opening the stats browser")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	logger, done, err := setupCommand(cmd)
	if err != nil {
		return err
	}
	defer done()
	ctx := cmd.Context()

	songs, err := catalog.Load(ctx, sourceCatalog)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog unavailable, song titles will be missing")
	}
	perf, closeFn, err := openPerformanceStore(ctx, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close storage")
		}
	}()

	if !statsPlain && interactiveOutput(cmd) {
		program := tea.NewProgram(statsui.NewModel(ctx, perf, songs), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}
	metrics := stats.ComputeMetrics(songs, perf.Snapshot(ctx))
	if err := stats.RenderReport(cmd.OutOrStdout(), metrics); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// interactiveOutput reports whether the command writes straight to a terminal.
func interactiveOutput(cmd *cobra.Command) bool {
	out, ok := cmd.OutOrStdout().(*os.File)
	if !ok || out != os.Stdout {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(out.Fd()))
}

func newAlbumsCmd() *cobra.Command {
	return withCatalogFlag(&cobra.Command{
		Use:   "albums",
		Short: "List albums available for album training",
		Args:  cobra.NoArgs,
		RunE:  runAlbumsCmd,
	})
}

func runAlbumsCmd(cmd *cobra.Command, _ []string) error {
	_, done, err := setupCommand(cmd)
	if err != nil {
		return err
	}
	defer done()

	songs, err := catalog.Load(cmd.Context(), sourceCatalog)
	if err != nil {
		return err
	}
	albums := selector.New(songs).Albums()
	if len(albums) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No albums in catalog.")
		return err
	}
	return renderAlbums(cmd, songs, albums)
}

func renderAlbums(cmd *cobra.Command, songs []model.Song, albums []string) error {
	counts := map[string]int{}
	for _, s := range songs {
		counts[s.Album]++
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header([]string{"Album", "Songs"})
	for _, a := range albums {
		if err := table.Append([]string{a, strconv.Itoa(counts[a])}); err != nil {
			return fmt.Errorf("failed to render albums: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render albums: %w", err)
	}
	return nil
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Build a song catalog from a directory of MP3 files",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanCmd,
	}
	cmd.Flags().StringVar(&scanOut, "out", config.DefaultCatalogPath(), "catalog file to write")
	cmd.Flags().IntVar(&scanConcurrency, "concurrency", 8, "files read in parallel")
	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	logger, done, err := setupCommand(cmd)
	if err != nil {
		return err
	}
	defer done()
	if scanConcurrency <= 0 {
		return fmt.Errorf("--concurrency must be > 0")
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}
	songs, err := catalog.Scan(cmd.Context(), dir, catalog.ScanOptions{Concurrency: scanConcurrency})
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("no mp3 files found in %s", dir)
	}
	catalog.ResolvePaths(songs, dir)
	if err := catalog.Write(scanOut, songs); err != nil {
		return err
	}
	logger.Info().Int("songs", len(songs)).Str("catalog", scanOut).Msg("catalog written")
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d songs to %s\n", len(songs), scanOut)
	return err
}

func newPruneCmd() *cobra.Command {
	cmd := withCatalogFlag(&cobra.Command{
		Use:   "prune",
		Short: "Drop stats for songs no longer in the catalog",
		Args:  cobra.NoArgs,
		RunE:  runPruneCmd,
	})
	cmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "only report what would be removed")
	return cmd
}

func runPruneCmd(cmd *cobra.Command, _ []string) error {
	logger, done, err := setupCommand(cmd)
	if err != nil {
		return err
	}
	defer done()
	ctx := cmd.Context()

	// An unreadable catalog must not wipe every stat.
	songs, err := catalog.Load(ctx, sourceCatalog)
	if err != nil {
		return err
	}
	perf, closeFn, err := openPerformanceStore(ctx, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close storage")
		}
	}()

	ids := selector.New(songs).SongIDs()
	if pruneDryRun {
		keep := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			keep[id] = struct{}{}
		}
		stale := 0
		for id := range perf.Snapshot(ctx) {
			if _, ok := keep[id]; !ok {
				stale++
			}
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Would remove stats for %d songs\n", stale)
		return err
	}
	removed := perf.CleanupMissingItems(ctx, ids)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed stats for %d songs\n", removed)
	return err
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}
