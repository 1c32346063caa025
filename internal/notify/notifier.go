package notify

import (
	"context"
	"log/slog"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

// Notifier delivers one transition to whoever wants to hear about it.
// The core guarantees at most one Notify call per genuine status change and
// never retries delivery failures.
type Notifier interface {
	Notify(ctx context.Context, t models.Transition) error
}

// LogNotifier writes transitions to the structured log. It is the default
// when no mail settings are configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, t models.Transition) error {
	slog.Info("warning transition",
		"transition", t.Kind,
		"city", t.City,
		"warning", t.Warning,
		"old_status", t.OldStatus,
		"new_status", t.NewStatus,
		"lmo", t.LMO,
		"report", t.XMLFile,
	)
	return nil
}
