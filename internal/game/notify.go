package game

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/tunequiz/internal/model"
)

// NotificationKind identifies an outbound engine event.
type NotificationKind int

// Notification kinds.
const (
	NotifySongLoaded NotificationKind = iota
	NotifyRoundResolved
	NotifyScoreChanged
	NotifyRoundChanged
	NotifyGameOver
	NotifyError
	NotifyPaused
	NotifyResumed
)

func (k NotificationKind) String() string {
	switch k {
	case NotifySongLoaded:
		return "song-loaded"
	case NotifyRoundResolved:
		return "round-resolved"
	case NotifyScoreChanged:
		return "score-changed"
	case NotifyRoundChanged:
		return "round-changed"
	case NotifyGameOver:
		return "game-over"
	case NotifyError:
		return "error"
	case NotifyPaused:
		return "paused"
	case NotifyResumed:
		return "resumed"
	default:
		return fmt.Sprintf("notification(%d)", int(k))
	}
}

// Notification is emitted to the presentation layer. Only the fields relevant
// to Kind are set. Song is always set for SongLoaded and RoundResolved; the
// title is meant to stay hidden until the round resolves.
type Notification struct {
	Kind      NotificationKind
	Song      model.Song
	Record    model.RoundRecord
	Score     int
	Round     int
	MaxRounds int
	Summary   Summary
	Message   string
}

// Notifier receives engine notifications. Notify is never called with the engine lock held.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// Summary is the final state of a session.
type Summary struct {
	Score        int
	RoundsPlayed int
	MaxRounds    int
	History      []model.RoundRecord
	Mode         string
}

// Correct returns the number of correctly guessed rounds.
func (s Summary) Correct() int {
	n := 0
	for _, r := range s.History {
		if r.GuessedCorrectly {
			n++
		}
	}
	return n
}

// DescribeMode renders the session mode for the game-over summary.
func DescribeMode(opts Options) string {
	switch opts.Mode {
	case model.ModeAlbumTrain:
		if len(opts.SelectedAlbums) == 0 {
			return "Album training: all albums"
		}
		return "Album training: " + strings.Join(opts.SelectedAlbums, ", ")
	case model.ModeAdaptiveTrain:
		switch opts.AdaptiveType {
		case model.AdaptiveEasiest:
			return "Adaptive training: easiest songs"
		case model.AdaptiveRecentlyIncorrect:
			return "Adaptive training: recently missed songs"
		default:
			return "Adaptive training: weakest songs"
		}
	default:
		return "Standard"
	}
}
