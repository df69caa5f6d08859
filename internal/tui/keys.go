package tui

import (
	"strings"

	"github.com/verte-zerg/tunequiz/internal/game"
)

const (
	keySubmit = "enter"
	keySkip   = "tab"
	keyPause  = "ctrl+p"
	keyEnd    = "esc"
	keyQuit   = "ctrl+c"
)

// commandForKey maps a key press in state to an engine command.
func commandForKey(state game.State, key, guess string, opts game.Options) (game.Command, bool) {
	switch key {
	case keySubmit:
		switch state {
		case game.StatePlaying:
			if strings.TrimSpace(guess) == "" {
				return game.Command{}, false
			}
			return game.GuessCommand(guess), true
		case game.StateRoundOver:
			return game.Command{Kind: game.CmdNextRound}, true
		case game.StateIdle, game.StateGameOver:
			return game.StartGameCommand(opts), true
		}
	case keySkip:
		if state == game.StatePlaying {
			return game.Command{Kind: game.CmdSkip}, true
		}
	case keyPause:
		if state == game.StatePlaying {
			return game.Command{Kind: game.CmdTogglePause}, true
		}
	case keyEnd:
		switch state {
		case game.StateLoading, game.StatePlaying, game.StateRoundOver:
			return game.Command{Kind: game.CmdEndGame}, true
		}
	}
	return game.Command{}, false
}

// quitsOnKey reports whether key leaves the program in state.
func quitsOnKey(state game.State, key string) bool {
	if key == keyQuit {
		return true
	}
	return key == keyEnd && (state == game.StateIdle || state == game.StateGameOver)
}

func helpFor(state game.State, paused bool) string {
	switch state {
	case game.StatePlaying:
		pause := "ctrl+p pause"
		if paused {
			pause = "ctrl+p resume"
		}
		return strings.Join([]string{"enter guess", "tab skip", pause, "esc end game"}, " · ")
	case game.StateRoundOver:
		return "enter next song · esc end game"
	case game.StateLoading:
		return "loading… · esc end game"
	default:
		return "enter play · esc quit"
	}
}
