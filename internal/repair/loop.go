package repair

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// LoopConfig bounds a run.
type LoopConfig struct {
	// MaxAttempts caps the number of executed candidates: one generated
	// query plus at most MaxAttempts-1 repairs.
	MaxAttempts int
	// DetectRepeats stops the run when a repair returns a query that has
	// already been executed in the same run.
	DetectRepeats bool
}

// DefaultLoopConfig returns the configuration used when none is given.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxAttempts: 2}
}

// Validate checks the configuration.
func (c LoopConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("repair: MaxAttempts must be at least 1")
	}
	return nil
}

// Loop runs the generate/execute/repair cycle.
type Loop struct {
	gen       Generator
	rep       Repairer
	exec      Executor
	cfg       LoopConfig
	observers []Observer
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithObserver adds an observer notified of every state transition.
func WithObserver(o Observer) LoopOption {
	return func(l *Loop) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// NewLoop wires a loop from its collaborators.
func NewLoop(gen Generator, rep Repairer, exec Executor, cfg LoopConfig, opts ...LoopOption) (*Loop, error) {
	if gen == nil || rep == nil || exec == nil {
		return nil, errors.New("repair: generator, repairer, and executor are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Loop{gen: gen, rep: rep, exec: exec, cfg: cfg}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run drives one request to a terminal state.
//
// On success the returned Result holds the rows and the query that produced
// them. On exhaustion the error is an *ExhaustionError carrying the attempt
// count and the last store diagnostic. Generator and repairer errors are
// returned unmodified. The Result is never nil and always lists the
// attempts made.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), State: StateInit}

	query, err := l.gen.Generate(ctx, req)
	if err != nil {
		l.transition(ctx, res, StateFailed, Event{Error: err.Error()})
		return res, err
	}
	l.transition(ctx, res, StateAttempting, Event{Attempt: 1, Query: query})

	seen := map[Query]struct{}{}
	for {
		if err := ctx.Err(); err != nil {
			l.transition(ctx, res, StateFailed, Event{Attempt: len(res.Attempts), Query: query, Error: err.Error()})
			return res, err
		}

		number := len(res.Attempts) + 1
		seen[query] = struct{}{}

		rows, execErr := l.exec.Execute(ctx, string(query))
		if execErr == nil {
			res.Attempts = append(res.Attempts, Attempt{Number: number, Query: query})
			res.Rows = rows
			res.Query = query
			l.transition(ctx, res, StateSucceeded, Event{Attempt: number, Query: query, Rows: len(rows)})
			return res, nil
		}

		msg := errorMessage(execErr)
		res.Attempts = append(res.Attempts, Attempt{Number: number, Query: query, Error: msg})

		// A cancelled run is not the query's fault; don't spend a repair on it.
		if err := ctx.Err(); err != nil {
			l.transition(ctx, res, StateFailed, Event{Attempt: number, Query: query, Error: err.Error()})
			return res, err
		}

		if number >= l.cfg.MaxAttempts {
			l.transition(ctx, res, StateExhausted, Event{Attempt: number, Query: query, Error: msg})
			return res, &ExhaustionError{
				Attempts:  number,
				LastError: msg,
				LastQuery: query,
				Err:       execErr,
			}
		}

		next, err := l.rep.Repair(ctx, query, msg, req)
		if err != nil {
			l.transition(ctx, res, StateFailed, Event{Attempt: number, Query: query, Error: err.Error()})
			return res, err
		}
		res.Repairs++

		if l.cfg.DetectRepeats {
			if _, dup := seen[next]; dup {
				l.transition(ctx, res, StateExhausted, Event{Attempt: number, Query: next, Error: msg, Repeated: true})
				return res, &ExhaustionError{
					Attempts:  number,
					LastError: msg,
					LastQuery: query,
					Repeated:  true,
					Err:       execErr,
				}
			}
		}

		l.transition(ctx, res, StateAttempting, Event{Attempt: number + 1, Query: next, Error: msg})
		query = next
	}
}

func (l *Loop) transition(ctx context.Context, res *Result, to State, ev Event) {
	ev.RunID = res.RunID
	ev.From = res.State
	ev.To = to
	res.State = to
	for _, o := range l.observers {
		o.OnTransition(ctx, ev)
	}
}
