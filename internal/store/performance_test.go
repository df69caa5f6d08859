package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/tunequiz/internal/model"
)

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("denied")
}

func (failingBackend) Put(context.Context, string, []byte) error {
	return errors.New("denied")
}

func (failingBackend) Delete(context.Context, string) error {
	return errors.New("denied")
}

func int64Ptr(v int64) *int64 {
	return &v
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "tunequiz.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlite.Close()
	})
	file, err := NewFileBackend(filepath.Join(t.TempDir(), "performance"))
	if err != nil {
		t.Fatalf("open file backend: %v", err)
	}
	return map[string]Backend{
		"memory":  NewMemoryBackend(),
		"sqlite":  sqlite,
		"file":    file,
		"offline": failingBackend{},
	}
}

func TestUpdateSongStatsCorrect(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
			st := New(ctx, backend, WithClock(clock))
			if err := st.UpdateSongStats(ctx, "s1", model.OutcomeCorrect, int64Ptr(4000)); err != nil {
				t.Fatalf("update: %v", err)
			}
			stat, ok := st.SongStats(ctx, "s1")
			if !ok {
				t.Fatalf("expected stats for s1")
			}
			if stat.PlayCount != 1 || stat.CorrectCount != 1 || stat.TotalCorrectTimeMs != 4000 {
				t.Fatalf("unexpected stats: %+v", stat)
			}
			if stat.LastAttemptCorrect == nil || !*stat.LastAttemptCorrect {
				t.Fatalf("expected lastAttemptCorrect=true")
			}
			if stat.LastPlayedTimestamp != 1_700_000_000_000 {
				t.Fatalf("unexpected timestamp %d", stat.LastPlayedTimestamp)
			}
		})
	}
}

func TestUpdateSongStatsOutcomes(t *testing.T) {
	ctx := context.Background()
	st := New(ctx, NewMemoryBackend())
	for _, outcome := range []model.Outcome{model.OutcomeSkipped, model.OutcomeEnded, model.OutcomeSkipped} {
		if err := st.UpdateSongStats(ctx, "s1", outcome, nil); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	stat, _ := st.SongStats(ctx, "s1")
	if stat.PlayCount != 3 || stat.SkipCount != 2 || stat.EndedCount != 1 || stat.CorrectCount != 0 {
		t.Fatalf("unexpected stats: %+v", stat)
	}
	if !stat.LastAttemptFailed() {
		t.Fatalf("expected last attempt to be a miss")
	}
}

func TestIncorrectOutcomeOnlyCountsPlay(t *testing.T) {
	ctx := context.Background()
	st := New(ctx, NewMemoryBackend())
	if err := st.UpdateSongStats(ctx, "s1", model.OutcomeCorrect, int64Ptr(1000)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := st.UpdateSongStats(ctx, "s1", model.OutcomeIncorrect, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	stat, _ := st.SongStats(ctx, "s1")
	if stat.PlayCount != 2 || stat.CorrectCount != 1 {
		t.Fatalf("unexpected stats: %+v", stat)
	}
	if stat.LastAttemptCorrect == nil || !*stat.LastAttemptCorrect {
		t.Fatalf("incorrect outcome must not touch lastAttemptCorrect by default")
	}
}

func TestIncorrectTrackingMarksMiss(t *testing.T) {
	ctx := context.Background()
	st := New(ctx, NewMemoryBackend(), WithIncorrectTracking(true))
	if err := st.UpdateSongStats(ctx, "s1", model.OutcomeIncorrect, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	stat, _ := st.SongStats(ctx, "s1")
	if stat.PlayCount != 1 || !stat.LastAttemptFailed() {
		t.Fatalf("unexpected stats: %+v", stat)
	}
	if stat.SkipCount != 0 || stat.EndedCount != 0 || stat.CorrectCount != 0 {
		t.Fatalf("no outcome counter should move: %+v", stat)
	}
}

func TestUpdateSongStatsRejectsEmptyID(t *testing.T) {
	st := New(context.Background(), NewMemoryBackend())
	if err := st.UpdateSongStats(context.Background(), "", model.OutcomeCorrect, nil); !errors.Is(err, ErrEmptySongID) {
		t.Fatalf("expected ErrEmptySongID, got %v", err)
	}
}

func TestCleanupMissingItems(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := New(ctx, backend)
			for _, id := range []string{"a", "b", "c"} {
				if err := st.UpdateSongStats(ctx, id, model.OutcomeSkipped, nil); err != nil {
					t.Fatalf("update: %v", err)
				}
			}
			if removed := st.CleanupMissingItems(ctx, []string{"b", "zzz"}); removed != 2 {
				t.Fatalf("expected 2 removed, got %d", removed)
			}
			snap := st.Snapshot(ctx)
			if len(snap) != 1 {
				t.Fatalf("expected only b to remain, got %v", snap)
			}
			if _, ok := snap["b"]; !ok {
				t.Fatalf("expected b to remain")
			}
			st.CleanupMissingItems(ctx, nil)
			if len(st.Snapshot(ctx)) != 0 {
				t.Fatalf("expected empty snapshot after cleanup with no ids")
			}
		})
	}
}

func TestUnavailableBackendDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	st := New(ctx, failingBackend{})
	if st.Available() {
		t.Fatalf("expected store to be unavailable")
	}
	if err := st.UpdateSongStats(ctx, "s1", model.OutcomeEnded, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	stat, ok := st.SongStats(ctx, "s1")
	if !ok || stat.EndedCount != 1 {
		t.Fatalf("expected in-memory stats, got %+v", stat)
	}

	nilBacked := New(ctx, nil)
	if nilBacked.Available() {
		t.Fatalf("expected nil backend to be unavailable")
	}
}

func TestStatsPersistAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tunequiz.db")
	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := New(ctx, first)
	if err := st.UpdateSongStats(ctx, "s1", model.OutcomeCorrect, int64Ptr(2500)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	stat, ok := New(ctx, second).SongStats(ctx, "s1")
	if !ok || stat.TotalCorrectTimeMs != 2500 {
		t.Fatalf("expected persisted stats, got %+v", stat)
	}
}

func TestDecodeLegacyDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	legacy := `{"s1": {"playCount": 4, "correctCount": 1, "skipCount": 2, "endedCount": 0,
		"totalCorrectTimeMs": 900, "lastAttemptCorrect": null, "lastPlayedTimestamp": 42}}`
	if err := backend.Put(ctx, StorageKey, []byte(legacy)); err != nil {
		t.Fatalf("put: %v", err)
	}
	st := New(ctx, backend)
	stat, ok := st.SongStats(ctx, "s1")
	if !ok || stat.PlayCount != 4 || stat.LastAttemptCorrect != nil {
		t.Fatalf("unexpected legacy stats: %+v", stat)
	}

	if err := st.UpdateSongStats(ctx, "s1", model.OutcomeSkipped, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	raw, err := backend.Get(ctx, StorageKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	snap, err := decodeDocument(raw)
	if err != nil {
		t.Fatalf("decode rewritten document: %v", err)
	}
	if snap["s1"].PlayCount != 5 {
		t.Fatalf("unexpected rewritten stats: %+v", snap["s1"])
	}
}

func TestCorruptDocumentReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	if err := backend.Put(ctx, StorageKey, []byte("{not json")); err != nil {
		t.Fatalf("put: %v", err)
	}
	st := New(ctx, backend)
	if snap := st.Snapshot(ctx); len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap)
	}
}

func TestUnreadableDocumentIsNeverOverwritten(t *testing.T) {
	ctx := context.Background()
	docs := map[string]string{
		"newer version": `{"version":2,"songs":{"a":{"playCount":50,"correctCount":40},"b":{"playCount":3}}}`,
		"corrupt":       `{not json`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			backend := NewMemoryBackend()
			if err := backend.Put(ctx, StorageKey, []byte(doc)); err != nil {
				t.Fatalf("put: %v", err)
			}
			st := New(ctx, backend)
			if st.Available() {
				t.Fatalf("expected store to stop persisting")
			}
			if err := st.UpdateSongStats(ctx, "c", model.OutcomeSkipped, nil); err != nil {
				t.Fatalf("update: %v", err)
			}
			if removed := st.CleanupMissingItems(ctx, nil); removed != 1 {
				t.Fatalf("expected in-memory stat to be pruned, got %d", removed)
			}

			raw, err := backend.Get(ctx, StorageKey)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(raw) != doc {
				t.Fatalf("stored document was rewritten: %s", raw)
			}
		})
	}
}
