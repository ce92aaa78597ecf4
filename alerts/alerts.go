package alerts

import (
	"fmt"
	"log/slog"

	"github.com/gregdel/pushover"

	"github.com/saavnstats/playwatch/config"
)

// Notifier pushes a note to Pushover when a cycle fails outright. The
// scheduler already sees the non-zero exit; this is for phones. With no
// token configured every call is a no-op.
type Notifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

func NewNotifier(cfg config.PushoverConfig) *Notifier {
	if cfg.Token == "" || cfg.Recipient == "" {
		return &Notifier{}
	}
	return &Notifier{
		app:       pushover.New(cfg.Token),
		recipient: pushover.NewRecipient(cfg.Recipient),
	}
}

func (n *Notifier) CycleFailed(runID string, cause error) {
	if n.app == nil {
		return
	}
	message := &pushover.Message{
		Title:    "playwatch cycle failed",
		Message:  fmt.Sprintf("run %s: %v", runID, cause),
		Priority: pushover.PriorityHigh,
	}
	if _, err := n.app.SendMessage(message, n.recipient); err != nil {
		slog.Error("Failed to send Pushover alert",
			slog.String("stack", err.Error()),
			slog.String("run_id", runID),
		)
	}
}
