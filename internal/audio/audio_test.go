package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))
	return path
}

func TestAttemptTimerExcludesPauses(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	timer := NewAttemptTimer(clock)
	assert.Zero(t, timer.Elapsed())

	timer.Start()
	clock.Advance(2 * time.Second)
	timer.Pause()
	clock.Advance(10 * time.Second)
	assert.Equal(t, 2*time.Second, timer.Elapsed())

	timer.Start()
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 3500*time.Millisecond, timer.Elapsed())

	timer.Reset()
	assert.Zero(t, timer.Elapsed())
}

func TestAttemptTimerPauseBeforeStartIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	timer := NewAttemptTimer(clock)
	timer.Pause()
	timer.Start()
	clock.Advance(time.Second)
	assert.Equal(t, time.Second, timer.Elapsed())
}

func TestSilentPlayerLoadMissingFile(t *testing.T) {
	p := NewSilentPlayer(clockwork.NewFakeClockAt(epoch), time.Second)
	err := p.Load(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
	assert.Error(t, p.Play())
}

func TestSilentPlayerEndsAfterSnippet(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := NewSilentPlayer(clock, 5*time.Second)
	var ended atomic.Int32
	p.OnEnded(func() { ended.Add(1) })

	require.NoError(t, p.Load(context.Background(), writeClip(t)))
	require.NoError(t, p.Play())
	assert.True(t, p.IsPlaying())

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, p.ElapsedAttemptTime())
	assert.Zero(t, ended.Load())

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, p.IsPlaying())
}

func TestSilentPlayerPauseDelaysEnd(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := NewSilentPlayer(clock, 4*time.Second)
	var ended atomic.Int32
	p.OnEnded(func() { ended.Add(1) })

	require.NoError(t, p.Load(context.Background(), writeClip(t)))
	require.NoError(t, p.Play())
	clock.Advance(3 * time.Second)
	require.NoError(t, p.Pause())
	assert.False(t, p.IsPlaying())

	clock.Advance(time.Minute)
	assert.Equal(t, 3*time.Second, p.ElapsedAttemptTime())
	assert.Zero(t, ended.Load())

	require.NoError(t, p.Play())
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSilentPlayerStopCancelsEnded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := NewSilentPlayer(clock, 2*time.Second)
	var ended atomic.Int32
	p.OnEnded(func() { ended.Add(1) })

	require.NoError(t, p.Load(context.Background(), writeClip(t)))
	require.NoError(t, p.Play())
	clock.Advance(time.Second)
	p.Stop()
	assert.Zero(t, p.ElapsedAttemptTime())

	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, ended.Load())
}

func TestExecPlayerArgs(t *testing.T) {
	p := NewExecPlayer("", clockwork.NewFakeClockAt(epoch), time.Second, zerolog.Nop())
	assert.Equal(t, "ffplay", p.args[0])

	p = NewExecPlayer("afplay", nil, 0, zerolog.Nop())
	assert.Equal(t, []string{"afplay", "{file}"}, p.args)

	got := expandArgs([]string{"-ss", "{start}", "-t", "{duration}", "{file}"}, "a.mp3", 1500*time.Millisecond, 8*time.Second)
	assert.Equal(t, []string{"-ss", "1.500", "-t", "8.000", "a.mp3"}, got)
}

func TestExecPlayerLoadUnknownCommand(t *testing.T) {
	p := NewExecPlayer("tunequiz-no-such-player {file}", nil, time.Second, zerolog.Nop())
	err := p.Load(context.Background(), writeClip(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
}

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestExecPlayerCrashReportsFailure(t *testing.T) {
	requireCommand(t, "false")
	p := NewExecPlayer("false", nil, 30*time.Second, zerolog.Nop())
	var ended atomic.Int32
	failed := make(chan error, 1)
	p.OnEnded(func() { ended.Add(1) })
	p.OnFailed(func(err error) { failed <- err })

	require.NoError(t, p.Load(context.Background(), writeClip(t)))
	require.NoError(t, p.Play())

	select {
	case err := <-failed:
		assert.True(t, errors.Is(err, ErrLoad))
	case <-time.After(5 * time.Second):
		t.Fatal("failure was not reported")
	}
	assert.Zero(t, ended.Load())
	assert.False(t, p.IsPlaying())
}

func TestExecPlayerCleanExitReportsEnded(t *testing.T) {
	requireCommand(t, "true")
	p := NewExecPlayer("true", nil, 30*time.Second, zerolog.Nop())
	var ended, failed atomic.Int32
	p.OnEnded(func() { ended.Add(1) })
	p.OnFailed(func(error) { failed.Add(1) })

	require.NoError(t, p.Load(context.Background(), writeClip(t)))
	require.NoError(t, p.Play())

	require.Eventually(t, func() bool { return ended.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, failed.Load())
}

func TestExecPlayerStopIsNotAFailure(t *testing.T) {
	requireCommand(t, "tail")
	p := NewExecPlayer("tail -f {file}", nil, 30*time.Second, zerolog.Nop())
	var ended, failed atomic.Int32
	p.OnEnded(func() { ended.Add(1) })
	p.OnFailed(func(error) { failed.Add(1) })

	require.NoError(t, p.Load(context.Background(), writeClip(t)))
	require.NoError(t, p.Play())
	p.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, failed.Load())
	assert.Zero(t, ended.Load())
}
