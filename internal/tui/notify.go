package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tunequiz/internal/game"
)

const notificationBuffer = 64

// Notifications is a game.Notifier feeding the Bubble Tea program.
type Notifications chan game.Notification

// NewNotifications returns a buffered notification channel.
func NewNotifications() Notifications {
	return make(Notifications, notificationBuffer)
}

// Notify implements game.Notifier. Notifications are dropped when nobody reads
// them and the buffer is full, e.g. after the program exited.
func (c Notifications) Notify(n game.Notification) {
	select {
	case c <- n:
	default:
	}
}

type notificationMsg game.Notification

func waitForNotification(c Notifications) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-c
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}
