package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier raises a desktop notification for private messages so directed
// traffic is visible while the terminal is in the background.
type Notifier struct {
	logger  *slog.Logger
	enabled bool
	title   string
}

func New(logger *slog.Logger, enabled bool, appName string) *Notifier {
	return &Notifier{
		logger:  logger,
		enabled: enabled,
		title:   appName,
	}
}

func (n *Notifier) PrivateMessage(name, text string) {
	if !n.enabled {
		return
	}
	// Fire and forget off the event path; notification daemons can stall.
	go func() {
		if err := beeep.Notify(n.title+": PM from "+name, text, ""); err != nil {
			n.logger.Debug("desktop notification failed", "error", err)
		}
	}()
}
