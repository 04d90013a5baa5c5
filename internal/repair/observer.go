package repair

import (
	"context"
	"log/slog"
)

// Event describes one state transition of a run.
type Event struct {
	RunID    string
	From     State
	To       State
	Attempt  int
	Query    Query
	Error    string
	Rows     int
	Repeated bool
}

// Observer is notified of state transitions. Observers must not block;
// they cannot influence the run.
type Observer interface {
	OnTransition(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnTransition(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// NewLogObserver logs transitions with slog. Queries are logged at debug
// level only.
func NewLogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return ObserverFunc(func(ctx context.Context, ev Event) {
		attrs := []any{
			"run_id", ev.RunID,
			"from", ev.From.String(),
			"to", ev.To.String(),
			"attempt", ev.Attempt,
		}
		if ev.Query != "" {
			logger.DebugContext(ctx, "candidate query", "run_id", ev.RunID, "attempt", ev.Attempt, "query", string(ev.Query))
		}

		switch ev.To {
		case StateSucceeded:
			logger.InfoContext(ctx, "query succeeded", append(attrs, "rows", ev.Rows)...)
		case StateExhausted:
			logger.WarnContext(ctx, "attempt budget exhausted", append(attrs, "error", ev.Error, "repeated", ev.Repeated)...)
		case StateFailed:
			logger.ErrorContext(ctx, "text generation failed", append(attrs, "error", ev.Error)...)
		case StateAttempting:
			if ev.From == StateAttempting {
				logger.InfoContext(ctx, "query invalid, repaired", append(attrs, "error", ev.Error)...)
			} else {
				logger.DebugContext(ctx, "query generated", attrs...)
			}
		}
	})
}
