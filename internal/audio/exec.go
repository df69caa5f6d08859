package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultCommand plays a clip with ffplay without opening a window.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel quiet -ss {start} -t {duration} {file}"

// untilEnd is passed as {duration} when no snippet length is set.
const untilEnd = 24 * time.Hour

// ExecPlayer spawns an external command per playback run. Pausing kills the
// process; resuming starts a new one at the elapsed offset.
type ExecPlayer struct {
	*clip
	args   []string
	logger zerolog.Logger
	cmd    *exec.Cmd
}

// NewExecPlayer parses a command template. Supported placeholders are {file},
// {start} and {duration}, the latter two in seconds. When {file} is absent the
// path is appended.
func NewExecPlayer(command string, clock clockwork.Clock, snippet time.Duration, logger zerolog.Logger) *ExecPlayer {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	args := strings.Fields(command)
	hasFile := false
	for _, a := range args {
		if strings.Contains(a, "{file}") {
			hasFile = true
			break
		}
	}
	if !hasFile {
		args = append(args, "{file}")
	}
	return &ExecPlayer{
		clip:   newClip(clock, snippet),
		args:   args,
		logger: logger.With().Str("component", "audio").Logger(),
	}
}

// Load implements Player.
func (p *ExecPlayer) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(p.args[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	return p.load(path)
}

// Play implements Player.
func (p *ExecPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return errors.New("no clip loaded")
	}
	if p.playing {
		return nil
	}
	offset, gen := p.startLocked()
	duration := p.remainingLocked(offset)
	if p.snippet <= 0 {
		duration = untilEnd
	}
	cmd := exec.Command(p.args[0], expandArgs(p.args[1:], p.path, offset, duration)...)
	if err := cmd.Start(); err != nil {
		p.pauseLocked()
		return fmt.Errorf("failed to start player: %w", err)
	}
	p.cmd = cmd
	p.logger.Debug().Str("path", p.path).Dur("offset", offset).Msg("playback started")
	go func() {
		err := cmd.Wait()
		if err != nil {
			if p.fail(gen, err) {
				p.logger.Warn().Err(err).Str("command", p.args[0]).Msg("player exited with an error")
			}
			return
		}
		if p.finish(gen) {
			p.logger.Debug().Msg("playback finished")
		}
	}()
	return nil
}

// Pause implements Player.
func (p *ExecPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil
	}
	p.pauseLocked()
	p.killLocked()
	return nil
}

// Stop implements Player.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	path := p.path
	p.resetLocked()
	p.killLocked()
	p.path = path
}

// IsPlaying implements Player.
func (p *ExecPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// ElapsedAttemptTime implements Player.
func (p *ExecPlayer) ElapsedAttemptTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer.Elapsed()
}

// OnFailed implements Player. It fires when the player command exits with an
// error on its own.
func (p *ExecPlayer) OnFailed(fn func(err error)) {
	p.setOnFailed(fn)
}

// OnEnded implements Player. The snippet cutoff also kills the process.
func (p *ExecPlayer) OnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = func() {
		p.mu.Lock()
		p.killLocked()
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

func (p *ExecPlayer) killLocked() {
	if p.cmd == nil || p.cmd.Process == nil {
		p.cmd = nil
		return
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debug().Err(err).Msg("failed to stop player process")
	}
	p.cmd = nil
}

func expandArgs(args []string, path string, start, duration time.Duration) []string {
	r := strings.NewReplacer(
		"{file}", path,
		"{start}", seconds(start),
		"{duration}", seconds(duration),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
