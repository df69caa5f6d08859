package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tunequiz/internal/model"
)

// StorageKey is the fixed key holding the performance document.
const StorageKey = "tunequizUserPerformance"

const (
	schemaVersion = 1
	probeKey      = "__test__"
)

var (
	// ErrUnavailable marks a backend that failed the availability probe.
	ErrUnavailable = errors.New("performance storage unavailable")
	// ErrUnknownOutcome marks an outcome that only bumps play count and timestamp.
	ErrUnknownOutcome = errors.New("unknown outcome")
	// ErrEmptySongID is returned when a stat update has no song id.
	ErrEmptySongID = errors.New("song id is empty")
)

type document struct {
	Version int            `json:"version"`
	Songs   model.Snapshot `json:"songs"`
}

// Option configures a PerformanceStore.
type Option func(*PerformanceStore)

// WithClock sets the clock used for lastPlayedTimestamp.
func WithClock(c clockwork.Clock) Option {
	return func(s *PerformanceStore) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *PerformanceStore) { s.logger = l }
}

// WithIncorrectTracking makes the incorrect outcome mark lastAttemptCorrect=false.
// Off by default: incorrect guesses then only count as plays.
func WithIncorrectTracking(enabled bool) Option {
	return func(s *PerformanceStore) { s.trackIncorrect = enabled }
}

// PerformanceStore persists per-song outcome counters. When the backend is
// unavailable, or holds a document it cannot read, it keeps the stats in memory
// for the lifetime of the process and never writes to the backend.
type PerformanceStore struct {
	mu             sync.Mutex
	backend        Backend
	available      bool
	memory         model.Snapshot
	clock          clockwork.Clock
	logger         zerolog.Logger
	trackIncorrect bool
}

// New probes the backend and returns a store. A nil or failing backend degrades
// to in-memory operation without surfacing an error.
func New(ctx context.Context, backend Backend, opts ...Option) *PerformanceStore {
	s := &PerformanceStore{
		backend: backend,
		memory:  model.Snapshot{},
		clock:   clockwork.NewRealClock(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "store").Logger()
	if err := s.probe(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("performance data will not be saved")
		return s
	}
	s.available = true
	if _, err := s.read(ctx); err != nil {
		s.degrade(err)
	}
	return s
}

// Available reports whether stats are persisted beyond this process.
func (s *PerformanceStore) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *PerformanceStore) probe(ctx context.Context) error {
	if s.backend == nil {
		return ErrUnavailable
	}
	if err := s.backend.Put(ctx, probeKey, []byte(probeKey)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.backend.Delete(ctx, probeKey); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Snapshot returns a copy of all stats. Read or decode failures yield an empty snapshot.
func (s *PerformanceStore) Snapshot(ctx context.Context) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// SongStats returns the stats for one song.
func (s *PerformanceStore) SongStats(ctx context.Context, songID string) (model.PerformanceStat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat, ok := s.load(ctx)[songID]
	return stat, ok
}

// UpdateSongStats records one attempt for songID and persists the whole map.
func (s *PerformanceStore) UpdateSongStats(ctx context.Context, songID string, outcome model.Outcome, timeToGuessMs *int64) error {
	if songID == "" {
		return ErrEmptySongID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load(ctx)
	now := s.clock.Now().UnixMilli()
	stat, ok := all[songID]
	if !ok {
		stat = model.PerformanceStat{LastPlayedTimestamp: now}
	}
	stat.PlayCount++
	stat.LastPlayedTimestamp = now

	switch outcome {
	case model.OutcomeCorrect:
		stat.CorrectCount++
		if timeToGuessMs != nil {
			stat.TotalCorrectTimeMs += *timeToGuessMs
		}
		stat.LastAttemptCorrect = boolPtr(true)
	case model.OutcomeSkipped:
		stat.SkipCount++
		stat.LastAttemptCorrect = boolPtr(false)
	case model.OutcomeEnded:
		stat.EndedCount++
		stat.LastAttemptCorrect = boolPtr(false)
	case model.OutcomeIncorrect:
		if s.trackIncorrect {
			stat.LastAttemptCorrect = boolPtr(false)
			break
		}
		s.logger.Warn().Err(ErrUnknownOutcome).Str("outcome", string(outcome)).Str("song", songID).Msg("outcome only counted as a play")
	default:
		s.logger.Warn().Err(ErrUnknownOutcome).Str("outcome", string(outcome)).Str("song", songID).Msg("outcome only counted as a play")
	}

	all[songID] = stat
	s.save(ctx, all)
	return nil
}

// CleanupMissingItems drops stats for songs not listed in existingIDs.
func (s *PerformanceStore) CleanupMissingItems(ctx context.Context, existingIDs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load(ctx)
	pruned := make(model.Snapshot, len(existingIDs))
	for _, id := range existingIDs {
		if stat, ok := all[id]; ok {
			pruned[id] = stat
		}
	}
	s.save(ctx, pruned)
	return len(all) - len(pruned)
}

func (s *PerformanceStore) load(ctx context.Context) model.Snapshot {
	if !s.available {
		return cloneSnapshot(s.memory)
	}
	snap, err := s.read(ctx)
	if err != nil {
		s.degrade(err)
		return cloneSnapshot(s.memory)
	}
	return snap
}

// read fetches and decodes the stored document. A missing document is empty.
func (s *PerformanceStore) read(ctx context.Context) (model.Snapshot, error) {
	data, err := s.backend.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read performance data: %w", err)
	}
	snap, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode performance data: %w", err)
	}
	return snap, nil
}

// degrade switches to in-memory stats so the stored document is left untouched.
func (s *PerformanceStore) degrade(err error) {
	s.logger.Error().Err(err).Msg("stored performance data left untouched; stats are kept in memory")
	s.available = false
	s.memory = model.Snapshot{}
}

func (s *PerformanceStore) save(ctx context.Context, snap model.Snapshot) {
	if !s.available {
		s.memory = snap
		return
	}
	data, err := json.Marshal(document{Version: schemaVersion, Songs: snap})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode performance data")
		return
	}
	if err := s.backend.Put(ctx, StorageKey, data); err != nil {
		s.logger.Error().Err(err).Msg("failed to save performance data")
	}
}

// decodeDocument accepts the versioned document and the legacy bare id→stat object.
func decodeDocument(data []byte) (model.Snapshot, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	_, hasVersion := probe["version"]
	_, hasSongs := probe["songs"]
	if hasVersion && hasSongs {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Version > schemaVersion {
			return nil, fmt.Errorf("unsupported performance schema version %d", doc.Version)
		}
		if doc.Songs == nil {
			doc.Songs = model.Snapshot{}
		}
		return doc.Songs, nil
	}
	snap := model.Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func cloneSnapshot(in model.Snapshot) model.Snapshot {
	out := make(model.Snapshot, len(in))
	for k, v := range in {
		if v.LastAttemptCorrect != nil {
			v.LastAttemptCorrect = boolPtr(*v.LastAttemptCorrect)
		}
		out[k] = v
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
