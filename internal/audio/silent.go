package audio

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// SilentPlayer plays nothing; a clip ends once the snippet duration has been "played".
type SilentPlayer struct {
	*clip
}

// NewSilentPlayer returns a player driven by clock. A zero snippet never ends on its own.
func NewSilentPlayer(clock clockwork.Clock, snippet time.Duration) *SilentPlayer {
	return &SilentPlayer{clip: newClip(clock, snippet)}
}

// Load implements Player.
func (p *SilentPlayer) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(path)
}

// Play implements Player.
func (p *SilentPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return errors.New("no clip loaded")
	}
	if p.playing {
		return nil
	}
	p.startLocked()
	return nil
}

// Pause implements Player.
func (p *SilentPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil
	}
	p.pauseLocked()
	return nil
}

// Stop implements Player.
func (p *SilentPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	path := p.path
	p.resetLocked()
	p.path = path
}

// IsPlaying implements Player.
func (p *SilentPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// ElapsedAttemptTime implements Player.
func (p *SilentPlayer) ElapsedAttemptTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer.Elapsed()
}

// OnEnded implements Player.
func (p *SilentPlayer) OnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = fn
}

// OnFailed implements Player. A silent clip never fails once playing.
func (p *SilentPlayer) OnFailed(fn func(err error)) {
	p.setOnFailed(fn)
}
