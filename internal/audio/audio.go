// Package audio provides the clip players driven by the round engine.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrLoad is returned when a clip cannot be prepared for playback.
var ErrLoad = errors.New("audio load failed")

// Player plays one clip at a time and measures the attempt time.
type Player interface {
	// Load prepares a clip. Any previous clip is stopped.
	Load(ctx context.Context, path string) error
	Play() error
	Pause() error
	Stop()
	IsPlaying() bool
	// ElapsedAttemptTime is the playing time since the attempt began, excluding pauses.
	ElapsedAttemptTime() time.Duration
	// OnEnded registers the callback fired when a clip finishes unattended.
	OnEnded(fn func())
	// OnFailed registers the callback fired when playback breaks down after Play
	// returned, e.g. the clip cannot be decoded.
	OnFailed(fn func(err error))
}

// AttemptTimer measures elapsed playing time, excluding paused intervals.
type AttemptTimer struct {
	clock     clockwork.Clock
	startedAt time.Time
	pausedAt  time.Time
	paused    time.Duration
}

// NewAttemptTimer returns a timer reading the given clock.
func NewAttemptTimer(clock clockwork.Clock) *AttemptTimer {
	return &AttemptTimer{clock: clock}
}

// Start begins the attempt or resumes it after a pause.
func (t *AttemptTimer) Start() {
	now := t.clock.Now()
	if t.startedAt.IsZero() {
		t.startedAt = now
		t.paused = 0
		t.pausedAt = time.Time{}
		return
	}
	if !t.pausedAt.IsZero() {
		t.paused += now.Sub(t.pausedAt)
		t.pausedAt = time.Time{}
	}
}

// Pause freezes the elapsed time until the next Start.
func (t *AttemptTimer) Pause() {
	if t.startedAt.IsZero() || !t.pausedAt.IsZero() {
		return
	}
	t.pausedAt = t.clock.Now()
}

// Reset clears the attempt.
func (t *AttemptTimer) Reset() {
	t.startedAt = time.Time{}
	t.pausedAt = time.Time{}
	t.paused = 0
}

// Elapsed returns the playing time of the attempt.
func (t *AttemptTimer) Elapsed() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	end := t.clock.Now()
	if !t.pausedAt.IsZero() {
		end = t.pausedAt
	}
	elapsed := end.Sub(t.startedAt) - t.paused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// clip holds the state shared by players: the loaded path, the attempt timer,
// the snippet cutoff and the ended and failed callbacks. Every Load, Pause and
// Stop bumps gen so that stale cutoffs never report an ended clip.
type clip struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	snippet  time.Duration
	timer    *AttemptTimer
	cutoff   clockwork.Timer
	gen      uint64
	path     string
	playing  bool
	onEnded  func()
	onFailed func(err error)
}

func newClip(clock clockwork.Clock, snippet time.Duration) *clip {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &clip{clock: clock, snippet: snippet, timer: NewAttemptTimer(clock)}
}

func (c *clip) load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrLoad, path)
	}
	c.resetLocked()
	c.path = path
	return nil
}

// startLocked starts or resumes the attempt and arms the snippet cutoff.
// It returns the offset into the clip and the generation of this run.
func (c *clip) startLocked() (time.Duration, uint64) {
	c.gen++
	c.timer.Start()
	c.playing = true
	offset := c.timer.Elapsed()
	gen := c.gen
	if c.snippet > 0 {
		remaining := c.snippet - offset
		if remaining <= 0 {
			go c.finish(gen)
		} else {
			c.cutoff = c.clock.AfterFunc(remaining, func() { c.finish(gen) })
		}
	}
	return offset, gen
}

func (c *clip) pauseLocked() {
	c.gen++
	c.stopCutoffLocked()
	c.timer.Pause()
	c.playing = false
}

func (c *clip) resetLocked() {
	c.gen++
	c.stopCutoffLocked()
	c.timer.Reset()
	c.playing = false
	c.path = ""
}

func (c *clip) stopCutoffLocked() {
	if c.cutoff != nil {
		c.cutoff.Stop()
		c.cutoff = nil
	}
}

// finish reports an unattended end if gen is still current. The callback runs
// without the clip lock held.
func (c *clip) finish(gen uint64) bool {
	if !c.settle(gen) {
		return false
	}
	c.mu.Lock()
	cb := c.onEnded
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
	return true
}

// fail reports a playback failure if gen is still current.
func (c *clip) fail(gen uint64, err error) bool {
	if !c.settle(gen) {
		return false
	}
	c.mu.Lock()
	cb := c.onFailed
	c.mu.Unlock()
	if cb != nil {
		cb(fmt.Errorf("%w: %v", ErrLoad, err))
	}
	return true
}

// settle closes the run gen if it is still the playing one.
func (c *clip) settle(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.playing {
		return false
	}
	c.gen++
	c.stopCutoffLocked()
	c.playing = false
	return true
}

func (c *clip) setOnFailed(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailed = fn
}

func (c *clip) remainingLocked(offset time.Duration) time.Duration {
	if c.snippet <= 0 {
		return 0
	}
	if rem := c.snippet - offset; rem > 0 {
		return rem
	}
	return 0
}
