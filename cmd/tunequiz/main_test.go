package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/tunequiz/internal/catalog"
	"github.com/verte-zerg/tunequiz/internal/config"
	"github.com/verte-zerg/tunequiz/internal/model"
	"github.com/verte-zerg/tunequiz/internal/store"
)

func isolateXDG(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	return dir
}

func writeCatalog(t *testing.T, dir string, songs []model.Song) string {
	t.Helper()
	path := filepath.Join(dir, "songs.json")
	if err := catalog.Write(path, songs); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigTemplateDecodes(t *testing.T) {
	dir := isolateXDG(t)
	path := filepath.Join(dir, "config", "tunequiz", "config.toml")
	if err := ensureConfigFile(path); err != nil {
		t.Fatalf("ensureConfigFile failed: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template should decode: %v", err)
	}
	if cfg.Game.Rounds != nil || cfg.Storage.Backend != nil {
		t.Fatalf("expected all template values to be commented out")
	}
}

func TestOpenBackendKinds(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{"memory", "file", "sqlite", ""} {
		path := ""
		if kind == "file" {
			path = filepath.Join(dir, "perf")
		}
		if kind == "sqlite" || kind == "" {
			path = filepath.Join(dir, kind+"db", "tunequiz.db")
		}
		backend, closeFn, err := openBackend(kind, path)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", kind, err)
		}
		if backend == nil {
			t.Fatalf("%q: expected backend", kind)
		}
		if err := closeFn(); err != nil {
			t.Fatalf("%q: close failed: %v", kind, err)
		}
	}
	if _, _, err := openBackend("redis", ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestApplyConfigRespectsFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Set("rounds", "5"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	fileRounds := 20
	applyIntConfig(cmd, "rounds", &playRounds, &fileRounds)
	if playRounds != 5 {
		t.Fatalf("expected flag to win, got %d", playRounds)
	}

	snippet := "45s"
	if err := applyDurationConfig(cmd, "snippet", &playSnippet, &snippet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if playSnippet != 45*time.Second {
		t.Fatalf("expected config snippet, got %s", playSnippet)
	}
	bad := "soon"
	if err := applyDurationConfig(cmd, "retry-delay", &playRetryDelay, &bad); err == nil {
		t.Fatalf("expected invalid duration error")
	}

	albums := []string{"21"}
	applyStringSliceConfig(cmd, "album", &playAlbums, &albums)
	if len(playAlbums) != 1 || playAlbums[0] != "21" {
		t.Fatalf("unexpected albums: %v", playAlbums)
	}
}

func TestBuildGameConfig(t *testing.T) {
	newRootCmd()
	playMode = "adaptive-train"
	playAdaptive = "recently-incorrect"
	playAlbums = []string{" 21 ", "21", ""}
	cfg, err := buildGameConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != model.ModeAdaptiveTrain || cfg.AdaptiveType != model.AdaptiveRecentlyIncorrect {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Albums) != 1 || cfg.Albums[0] != "21" {
		t.Fatalf("expected cleaned albums, got %v", cfg.Albums)
	}

	playMode = "battle"
	if _, err := buildGameConfig(); err == nil {
		t.Fatalf("expected invalid mode error")
	}
	playMode = "standard"
	playRounds = 0
	if _, err := buildGameConfig(); err == nil {
		t.Fatalf("expected invalid rounds error")
	}
}

func TestAlbumsCommand(t *testing.T) {
	dir := isolateXDG(t)
	path := writeCatalog(t, dir, []model.Song{
		{ID: "a", Title: "Hello", Album: "25"},
		{ID: "b", Title: "Skyfall", Album: "Singles"},
		{ID: "c", Title: "Water Under the Bridge", Album: "25"},
	})

	out, err := execute(t, "albums", "--catalog", path)
	if err != nil {
		t.Fatalf("albums failed: %v", err)
	}
	for _, want := range []string{"25", "Singles", "2", "1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPruneCommandRemovesStaleStats(t *testing.T) {
	dir := isolateXDG(t)
	path := writeCatalog(t, dir, []model.Song{{ID: "a", Title: "Hello", Album: "25"}})
	dbPath := filepath.Join(dir, "perf.db")

	ctx := context.Background()
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	perf := store.New(ctx, db, store.WithLogger(zerolog.Nop()))
	for _, id := range []string{"a", "gone"} {
		if err := perf.UpdateSongStats(ctx, id, model.OutcomeSkipped, nil); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	out, err := execute(t, "prune", "--catalog", path, "--storage-path", dbPath, "--dry-run")
	if err != nil {
		t.Fatalf("prune --dry-run failed: %v", err)
	}
	if !strings.Contains(out, "Would remove stats for 1 songs") {
		t.Fatalf("unexpected dry-run output: %s", out)
	}

	out, err = execute(t, "prune", "--catalog", path, "--storage-path", dbPath)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(out, "Removed stats for 1 songs") {
		t.Fatalf("unexpected output: %s", out)
	}

	db, err = store.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			_ = cerr
		}
	}()
	snap := store.New(ctx, db).Snapshot(ctx)
	if len(snap) != 1 {
		t.Fatalf("expected one remaining entry, got %v", snap)
	}
	if _, ok := snap["a"]; !ok {
		t.Fatalf("expected stats for a to survive")
	}
}

func TestPruneRefusesUnreadableCatalog(t *testing.T) {
	dir := isolateXDG(t)
	_, err := execute(t, "prune", "--catalog", filepath.Join(dir, "missing.json"), "--storage", "memory")
	if err == nil {
		t.Fatalf("expected prune to fail without a catalog")
	}
}

func TestStatsCommandEmpty(t *testing.T) {
	dir := isolateXDG(t)
	path := writeCatalog(t, dir, []model.Song{{ID: "a", Title: "Hello"}})
	out, err := execute(t, "stats", "--catalog", path, "--storage", "memory")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "No performance data yet") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestScanRequiresMP3Files(t *testing.T) {
	dir := isolateXDG(t)
	music := filepath.Join(dir, "music")
	if err := os.MkdirAll(music, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if _, err := execute(t, "scan", music, "--out", filepath.Join(dir, "songs.json")); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}
