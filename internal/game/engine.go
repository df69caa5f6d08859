// Package game runs the round lifecycle of a quiz session.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tunequiz/internal/audio"
	"github.com/verte-zerg/tunequiz/internal/model"
	"github.com/verte-zerg/tunequiz/internal/selector"
)

// DefaultRetryDelay is the wait before a new round after a clip failed to load.
const DefaultRetryDelay = 2 * time.Second

// ErrInvalidCommand is returned by Dispatch for unknown command kinds.
var ErrInvalidCommand = errors.New("invalid command")

// State is the engine lifecycle state.
type State int

// Engine states.
const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StateRoundOver
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateRoundOver:
		return "round-over"
	case StateGameOver:
		return "game-over"
	default:
		return "unknown"
	}
}

// SongSource supplies the songs of a session.
type SongSource interface {
	ApplyFilter(mode model.Mode, params selector.Params)
	RandomSong() (model.Song, error)
	Count() int
}

// StatsRecorder records attempt outcomes and exposes the current stats.
type StatsRecorder interface {
	Snapshot(ctx context.Context) model.Snapshot
	UpdateSongStats(ctx context.Context, songID string, outcome model.Outcome, timeToGuessMs *int64) error
}

// Options selects the mode of a new session.
type Options struct {
	Mode           model.Mode
	SelectedAlbums []string
	AdaptiveType   model.AdaptiveType
}

// Config holds engine settings.
type Config struct {
	Rounds     int
	RetryDelay time.Duration
	Clock      clockwork.Clock
	Logger     zerolog.Logger
	Notifier   Notifier
}

// Status is a point-in-time view of the session.
type Status struct {
	State        State
	Active       bool
	Paused       bool
	Score        int
	RoundsPlayed int
	MaxRounds    int
	Song         model.Song
	HasSong      bool
	Mode         string
}

// Engine drives a quiz session. All methods are safe for concurrent use; each
// call runs to a stable state before the next one starts.
type Engine struct {
	mu       sync.Mutex
	songs    SongSource
	stats    StatsRecorder
	player   audio.Player
	notifier Notifier
	clock    clockwork.Clock
	logger   zerolog.Logger
	rounds   int
	delay    time.Duration

	state        State
	active       bool
	paused       bool
	opts         Options
	score        int
	roundsPlayed int
	maxRounds    int
	current      *model.Song
	history      []model.RoundRecord
	summary      Summary
	retry        clockwork.Timer
	retryGen     uint64
	session      uint64
	clipGen      uint64
	pending      []Notification
}

// New wires an engine to its collaborators. Player callbacks are registered per
// round when a clip is loaded.
func New(songs SongSource, stats StatsRecorder, player audio.Player, cfg Config) *Engine {
	e := &Engine{
		songs:    songs,
		stats:    stats,
		player:   player,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With().Str("component", "engine").Logger(),
		rounds:   cfg.Rounds,
		delay:    cfg.RetryDelay,
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.rounds <= 0 {
		e.rounds = defaultRounds
	}
	if e.delay <= 0 {
		e.delay = DefaultRetryDelay
	}
	return e
}

// StartGame resets the session, applies the mode filter and plays the first round.
func (e *Engine) StartGame(ctx context.Context, opts Options) error {
	var err error
	e.run(func() { err = e.startLocked(ctx, opts) })
	return err
}

// NextRound advances to the next round or ends the game once all rounds are played.
func (e *Engine) NextRound(ctx context.Context) {
	e.run(func() { e.nextRoundLocked(ctx) })
}

// SubmitGuess evaluates guess against the current song.
func (e *Engine) SubmitGuess(ctx context.Context, guess string) {
	e.run(func() {
		if !e.active || e.state != StatePlaying || e.current == nil {
			return
		}
		song := *e.current
		correct := Matches(song, guess)
		elapsed := e.player.ElapsedAttemptTime().Milliseconds()
		e.player.Stop()
		e.paused = false

		rec := model.RoundRecord{
			SongID:           song.ID,
			SongTitle:        song.Title,
			AlbumCoverPath:   song.AlbumCoverPath,
			GuessedCorrectly: correct,
			Status:           model.StatusIncorrect,
		}
		if !correct {
			e.resolveLocked(ctx, rec, model.OutcomeIncorrect, nil)
			return
		}
		rec.Status = model.StatusCorrect
		rec.Points = CalculatePoints(elapsed)
		rec.TimeToGuessMs = &elapsed
		e.score += rec.Points
		e.resolveLocked(ctx, rec, model.OutcomeCorrect, &elapsed)
	})
}

// Skip gives up on the current song.
func (e *Engine) Skip(ctx context.Context) {
	e.run(func() {
		if !e.active || e.state != StatePlaying || e.current == nil {
			return
		}
		e.player.Stop()
		e.paused = false
		e.resolveLocked(ctx, e.recordLocked(model.StatusSkipped), model.OutcomeSkipped, nil)
	})
}

// OnPlaybackEnded resolves the round as a miss when the clip finished unattended.
func (e *Engine) OnPlaybackEnded(ctx context.Context) {
	e.run(func() { e.playbackEndedLocked(ctx) })
}

func (e *Engine) playbackEndedLocked(ctx context.Context) {
	if !e.active || e.state != StatePlaying || e.current == nil {
		return
	}
	e.paused = false
	e.resolveLocked(ctx, e.recordLocked(model.StatusEnded), model.OutcomeEnded, nil)
}

// clipEnded handles the ended callback of the clip armed as gen.
func (e *Engine) clipEnded(gen uint64) {
	e.run(func() {
		if gen != e.clipGen {
			return
		}
		e.playbackEndedLocked(context.Background())
	})
}

// clipFailed treats a clip that broke down while playing like one that failed to load.
func (e *Engine) clipFailed(gen uint64, err error) {
	e.run(func() {
		if gen != e.clipGen || !e.active || e.state != StatePlaying || e.current == nil {
			return
		}
		e.player.Stop()
		e.failRoundLocked(*e.current, err)
	})
}

// TogglePause pauses or resumes playback of the current clip.
func (e *Engine) TogglePause() {
	e.run(func() {
		if !e.active || e.state != StatePlaying {
			return
		}
		if e.player.IsPlaying() {
			if err := e.player.Pause(); err != nil {
				e.logger.Warn().Err(err).Msg("failed to pause playback")
				return
			}
			e.paused = true
			e.emitLocked(Notification{Kind: NotifyPaused})
			return
		}
		if err := e.player.Play(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to resume playback")
			e.emitLocked(Notification{Kind: NotifyError, Message: "Could not resume playback."})
			return
		}
		e.paused = false
		e.emitLocked(Notification{Kind: NotifyResumed})
	})
}

// EndGame stops the session and returns its summary. On an inactive engine it
// returns the summary of the last finished session.
func (e *Engine) EndGame() Summary {
	var s Summary
	e.run(func() {
		if e.active {
			e.endLocked()
		}
		s = e.summary
	})
	return s
}

// Status returns a view of the current session.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		State:        e.state,
		Active:       e.active,
		Paused:       e.paused,
		Score:        e.score,
		RoundsPlayed: e.roundsPlayed,
		MaxRounds:    e.maxRounds,
		Mode:         DescribeMode(e.opts),
	}
	if e.current != nil {
		st.Song = *e.current
		st.HasSong = true
	}
	return st
}

// History returns a copy of the rounds recorded in the current session.
func (e *Engine) History() []model.RoundRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.RoundRecord(nil), e.history...)
}

// run executes fn under the engine lock and delivers the notifications it queued.
func (e *Engine) run(fn func()) {
	e.mu.Lock()
	fn()
	out := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, n := range out {
		e.notifier.Notify(n)
	}
}

func (e *Engine) emitLocked(n Notification) {
	e.pending = append(e.pending, n)
}

func (e *Engine) startLocked(ctx context.Context, opts Options) error {
	if e.active {
		e.player.Stop()
	}
	e.cancelRetryLocked()

	params := selector.Params{Albums: opts.SelectedAlbums, AdaptiveType: opts.AdaptiveType}
	if opts.Mode == model.ModeAdaptiveTrain {
		params.Snapshot = e.stats.Snapshot(ctx)
	}
	e.songs.ApplyFilter(opts.Mode, params)
	count := e.songs.Count()
	if count == 0 {
		e.active = false
		e.state = StateIdle
		e.emitLocked(Notification{Kind: NotifyError, Message: "Cannot start game: no songs available."})
		return fmt.Errorf("failed to start game: %w", selector.ErrNoSongsAvailable)
	}

	e.session++
	e.opts = opts
	e.score = 0
	e.roundsPlayed = 0
	e.maxRounds = min(e.rounds, count)
	e.history = nil
	e.current = nil
	e.paused = false
	e.active = true
	e.state = StateIdle
	e.logger.Info().
		Str("mode", string(opts.Mode)).
		Int("songs", count).
		Int("rounds", e.maxRounds).
		Msg("game started")
	e.emitLocked(Notification{Kind: NotifyScoreChanged, Score: 0})
	e.nextRoundLocked(ctx)
	return nil
}

func (e *Engine) nextRoundLocked(ctx context.Context) {
	if !e.active || e.state == StateLoading || e.state == StatePlaying {
		return
	}
	e.cancelRetryLocked()
	if e.roundsPlayed >= e.maxRounds {
		e.endLocked()
		return
	}
	song, err := e.songs.RandomSong()
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to draw a song")
		e.emitLocked(Notification{Kind: NotifyError, Message: "Could not load a new song."})
		e.endLocked()
		return
	}

	e.roundsPlayed++
	e.current = &song
	e.paused = false
	e.state = StateLoading
	e.emitLocked(Notification{Kind: NotifyRoundChanged, Round: e.roundsPlayed, MaxRounds: e.maxRounds})

	if err := e.loadLocked(ctx, song); err != nil {
		e.failRoundLocked(song, err)
		return
	}
	e.state = StatePlaying
	e.emitLocked(Notification{Kind: NotifySongLoaded, Song: song, Round: e.roundsPlayed, MaxRounds: e.maxRounds})
}

// failRoundLocked closes a round whose clip could not be played. The round
// counts toward the total but leaves no history record.
func (e *Engine) failRoundLocked(song model.Song, err error) {
	e.logger.Warn().Err(err).Str("song", song.ID).Str("path", song.FilePath).Msg("failed to play clip")
	e.paused = false
	e.state = StateRoundOver
	e.emitLocked(Notification{Kind: NotifyError, Song: song, Message: "Could not play this song, moving on."})
	e.scheduleRetryLocked()
}

// loadLocked arms the player callbacks for a new clip, then loads and plays it.
// Callbacks of earlier clips are ignored once clipGen moves on.
func (e *Engine) loadLocked(ctx context.Context, song model.Song) error {
	e.clipGen++
	gen := e.clipGen
	e.player.OnEnded(func() { e.clipEnded(gen) })
	e.player.OnFailed(func(err error) { e.clipFailed(gen, err) })
	if err := e.player.Load(ctx, song.FilePath); err != nil {
		return err
	}
	if err := e.player.Play(); err != nil {
		e.player.Stop()
		return fmt.Errorf("%w: %v", audio.ErrLoad, err)
	}
	return nil
}

func (e *Engine) scheduleRetryLocked() {
	e.retryGen++
	session, gen := e.session, e.retryGen
	e.retry = e.clock.AfterFunc(e.delay, func() {
		e.run(func() {
			if e.session != session || e.retryGen != gen || e.retry == nil {
				return
			}
			e.retry = nil
			e.nextRoundLocked(context.Background())
		})
	})
}

func (e *Engine) cancelRetryLocked() {
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
}

func (e *Engine) recordLocked(status model.RoundStatus) model.RoundRecord {
	return model.RoundRecord{
		SongID:         e.current.ID,
		SongTitle:      e.current.Title,
		AlbumCoverPath: e.current.AlbumCoverPath,
		Status:         status,
	}
}

// resolveLocked appends rec to the history, records the outcome and ends the round.
func (e *Engine) resolveLocked(ctx context.Context, rec model.RoundRecord, outcome model.Outcome, elapsedMs *int64) {
	e.history = append(e.history, rec)
	if err := e.stats.UpdateSongStats(ctx, rec.SongID, outcome, elapsedMs); err != nil {
		e.logger.Warn().Err(err).Str("song", rec.SongID).Msg("failed to record outcome")
	}
	e.state = StateRoundOver
	e.logger.Debug().
		Str("song", rec.SongID).
		Stringer("status", rec.Status).
		Int("points", rec.Points).
		Int("score", e.score).
		Msg("round resolved")
	e.emitLocked(Notification{Kind: NotifyRoundResolved, Song: *e.current, Record: rec, Round: e.roundsPlayed, MaxRounds: e.maxRounds})
	e.emitLocked(Notification{Kind: NotifyScoreChanged, Score: e.score})
}

func (e *Engine) endLocked() {
	e.cancelRetryLocked()
	e.player.Stop()
	e.active = false
	e.paused = false
	e.state = StateGameOver
	e.summary = Summary{
		Score:        e.score,
		RoundsPlayed: e.roundsPlayed,
		MaxRounds:    e.maxRounds,
		History:      append([]model.RoundRecord(nil), e.history...),
		Mode:         DescribeMode(e.opts),
	}
	e.logger.Info().Int("score", e.score).Int("rounds", e.roundsPlayed).Msg("game over")
	e.emitLocked(Notification{Kind: NotifyGameOver, Summary: e.summary, Score: e.score})
}
