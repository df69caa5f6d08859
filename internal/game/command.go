package game

import (
	"context"
	"fmt"
)

// CommandKind identifies a request from the presentation layer.
type CommandKind int

// Command kinds.
const (
	CmdStartGame CommandKind = iota
	CmdSubmitGuess
	CmdSkip
	CmdNextRound
	CmdTogglePause
	CmdEndGame
)

func (k CommandKind) String() string {
	switch k {
	case CmdStartGame:
		return "start-game"
	case CmdSubmitGuess:
		return "submit-guess"
	case CmdSkip:
		return "skip"
	case CmdNextRound:
		return "next-round"
	case CmdTogglePause:
		return "toggle-pause"
	case CmdEndGame:
		return "end-game"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is a typed request to the engine. Options is used by CmdStartGame,
// Guess by CmdSubmitGuess.
type Command struct {
	Kind    CommandKind
	Options Options
	Guess   string
}

// StartGameCommand builds a CmdStartGame command.
func StartGameCommand(opts Options) Command {
	return Command{Kind: CmdStartGame, Options: opts}
}

// GuessCommand builds a CmdSubmitGuess command.
func GuessCommand(guess string) Command {
	return Command{Kind: CmdSubmitGuess, Guess: guess}
}

// Dispatch routes cmd to the matching engine method. The summary of
// CmdEndGame is delivered through the GameOver notification.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdStartGame:
		return e.StartGame(ctx, cmd.Options)
	case CmdSubmitGuess:
		e.SubmitGuess(ctx, cmd.Guess)
	case CmdSkip:
		e.Skip(ctx)
	case CmdNextRound:
		e.NextRound(ctx)
	case CmdTogglePause:
		e.TogglePause()
	case CmdEndGame:
		e.EndGame()
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd.Kind)
	}
	return nil
}
