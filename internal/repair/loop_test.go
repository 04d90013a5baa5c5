package repair

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparqlgen/internal/database/graph"
)

// MockGenerator returns a fixed query or error.
type MockGenerator struct {
	Query Query
	Err   error
	Calls int
}

func (m *MockGenerator) Generate(ctx context.Context, req Request) (Query, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.Query, nil
}

type repairCall struct {
	Failing Query
	Message string
	Req     Request
}

// MockRepairer hands out Queries in order and records every call.
type MockRepairer struct {
	Queries []Query
	Err     error
	Calls   []repairCall
}

func (m *MockRepairer) Repair(ctx context.Context, failing Query, errorMessage string, req Request) (Query, error) {
	m.Calls = append(m.Calls, repairCall{Failing: failing, Message: errorMessage, Req: req})
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Queries) == 0 {
		return "", errors.New("mock repairer: out of queries")
	}
	q := m.Queries[0]
	m.Queries = m.Queries[1:]
	return q, nil
}

// MockExecutor fails every query listed in Failures with the given message
// and returns Rows for everything else.
type MockExecutor struct {
	Failures map[string]string
	Rows     graph.ResultSet
	Executed []string
}

func (m *MockExecutor) Execute(ctx context.Context, query string) (graph.ResultSet, error) {
	m.Executed = append(m.Executed, query)
	if msg, ok := m.Failures[query]; ok {
		return nil, &graph.ExecutionError{Query: query, Message: msg, StatusCode: 400}
	}
	return m.Rows, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnTransition(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) path() []State {
	var out []State
	for i, ev := range r.events {
		if i == 0 {
			out = append(out, ev.From)
		}
		out = append(out, ev.To)
	}
	return out
}

var testRequest = Request{
	Question: "Which compounds contain benzene?",
	Schema:   "ex:Compound ex:contains ex:Substance",
	Prefix:   "ex",
}

func newTestLoop(t *testing.T, gen Generator, rep Repairer, exec Executor, cfg LoopConfig, opts ...LoopOption) *Loop {
	t.Helper()
	l, err := NewLoop(gen, rep, exec, cfg, opts...)
	require.NoError(t, err)
	return l
}

func TestLoop_RepairThenSuccess(t *testing.T) {
	rows := graph.ResultSet{{"name": "toluene"}}
	gen := &MockGenerator{Query: "SELECT ?x WHERE { ?x ex:contains ?y }"}
	rep := &MockRepairer{Queries: []Query{"PREFIX ex: <http://example.org/>\nSELECT ?x WHERE { ?x ex:contains ?y }"}}
	exec := &MockExecutor{
		Failures: map[string]string{string(gen.Query): "unknown prefix ex"},
		Rows:     rows,
	}
	rec := &recorder{}

	res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 2}, WithObserver(rec)).Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, res.State)
	assert.True(t, res.Succeeded())
	assert.Equal(t, rows, res.Rows)
	assert.Equal(t, rep.Calls[0].Failing, gen.Query)
	assert.Len(t, exec.Executed, 2)
	assert.Len(t, rep.Calls, 1)
	assert.Equal(t, 1, res.Repairs)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "unknown prefix ex", res.Attempts[0].Error)
	assert.Empty(t, res.Attempts[1].Error)
	assert.Equal(t, Query(exec.Executed[1]), res.Query)

	assert.Equal(t, []State{StateInit, StateAttempting, StateAttempting, StateSucceeded}, rec.path())
	for _, ev := range rec.events {
		assert.Equal(t, res.RunID, ev.RunID)
	}
}

func TestLoop_ExhaustedKeepsLastErrorVerbatim(t *testing.T) {
	first := Query("SELECT ?x WHERE { ?x a ex:Compound }")
	second := Query("SELECT ?x WHERE { ?x a ex:Compound . }")
	lastMsg := "MALFORMED QUERY: Encountered \" \"}\" \"} \"\" at line 1, column 40.\nWas expecting one of: ..."
	gen := &MockGenerator{Query: first}
	rep := &MockRepairer{Queries: []Query{second}}
	exec := &MockExecutor{Failures: map[string]string{
		string(first):  "unknown prefix ex",
		string(second): lastMsg,
	}}

	res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 2}).Run(context.Background(), testRequest)
	require.Error(t, err)

	var exhausted *ExhaustionError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, lastMsg, exhausted.LastError)
	assert.Equal(t, second, exhausted.LastQuery)
	assert.False(t, exhausted.Repeated)
	assert.True(t, IsExhausted(err))
	assert.False(t, IsGenerationError(err))

	var execErr *graph.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, lastMsg, execErr.Message)

	assert.Equal(t, StateExhausted, res.State)
	assert.Nil(t, res.Rows)
	assert.Len(t, exec.Executed, 2)
	assert.Len(t, rep.Calls, 1)
}

func TestLoop_FirstAttemptSucceedsWithoutRepair(t *testing.T) {
	gen := &MockGenerator{Query: "ASK { ?s ?p ?o }"}
	rep := &MockRepairer{}
	exec := &MockExecutor{Rows: graph.ResultSet{{"boolean": true}}}

	res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 1}).Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, res.State)
	assert.Len(t, exec.Executed, 1)
	assert.Empty(t, rep.Calls)
	assert.Equal(t, 0, res.Repairs)
	assert.Len(t, res.Attempts, 1)
}

func TestLoop_GenerationErrorSkipsExecution(t *testing.T) {
	cause := &GenerationError{Stage: StageGenerate, Err: errors.New("quota exceeded")}
	gen := &MockGenerator{Err: cause}
	rep := &MockRepairer{}
	exec := &MockExecutor{}
	rec := &recorder{}

	res, err := newTestLoop(t, gen, rep, exec, DefaultLoopConfig(), WithObserver(rec)).Run(context.Background(), testRequest)
	require.Error(t, err)

	assert.Same(t, cause, err)
	assert.True(t, IsGenerationError(err))
	assert.False(t, IsExhausted(err))
	assert.Empty(t, exec.Executed)
	assert.Empty(t, rep.Calls)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, []State{StateInit, StateFailed}, rec.path())
}

func TestLoop_RepairErrorAbortsRun(t *testing.T) {
	gen := &MockGenerator{Query: "SELECT"}
	cause := &GenerationError{Stage: StageRepair, Err: errors.New("connection reset")}
	rep := &MockRepairer{Err: cause}
	exec := &MockExecutor{Failures: map[string]string{"SELECT": "syntax error"}}

	res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 3}).Run(context.Background(), testRequest)
	assert.Same(t, cause, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Len(t, exec.Executed, 1)
	assert.Equal(t, 0, res.Repairs)
}

func TestLoop_BudgetBoundsExecutions(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		gen := &MockGenerator{Query: "q0"}
		rep := &MockRepairer{}
		failures := map[string]string{"q0": "error 0"}
		for i := 1; i < 10; i++ {
			q := Query("q" + string(rune('0'+i)))
			rep.Queries = append(rep.Queries, q)
			failures[string(q)] = "error " + string(rune('0'+i))
		}
		exec := &MockExecutor{Failures: failures}

		_, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: n}).Run(context.Background(), testRequest)

		var exhausted *ExhaustionError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, n, exhausted.Attempts)
		assert.Len(t, exec.Executed, n, "max=%d", n)
		assert.Len(t, rep.Calls, n-1, "max=%d", n)
		assert.Equal(t, "error "+string(rune('0'+n-1)), exhausted.LastError)
	}
}

func TestLoop_RepairReceivesExactQueryAndMessage(t *testing.T) {
	gen := &MockGenerator{Query: "q0"}
	rep := &MockRepairer{Queries: []Query{"q1", "q2"}}
	exec := &MockExecutor{
		Failures: map[string]string{
			"q0": "  first diagnostic  ",
			"q1": "second diagnostic",
		},
		Rows: graph.ResultSet{},
	}

	res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 3}).Run(context.Background(), testRequest)
	require.NoError(t, err)

	require.Len(t, rep.Calls, 2)
	assert.Equal(t, repairCall{Failing: "q0", Message: "  first diagnostic  ", Req: testRequest}, rep.Calls[0])
	assert.Equal(t, repairCall{Failing: "q1", Message: "second diagnostic", Req: testRequest}, rep.Calls[1])
	// An empty result set is a success.
	assert.True(t, res.Succeeded())
	assert.Equal(t, Query("q2"), res.Query)
}

func TestLoop_PlainExecutorErrorIsRepaired(t *testing.T) {
	gen := &MockGenerator{Query: "q0"}
	rep := &MockRepairer{Queries: []Query{"q1"}}
	exec := executorFunc(func(ctx context.Context, query string) (graph.ResultSet, error) {
		if query == "q0" {
			return nil, errors.New("dial tcp: connection refused")
		}
		return graph.ResultSet{{"n": 1}}, nil
	})

	_, err := newTestLoop(t, gen, rep, exec, DefaultLoopConfig()).Run(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "dial tcp: connection refused", rep.Calls[0].Message)
}

func TestLoop_RepeatGuard(t *testing.T) {
	newParts := func() (*MockGenerator, *MockRepairer, *MockExecutor) {
		return &MockGenerator{Query: "a"},
			&MockRepairer{Queries: []Query{"b", "a", "b"}},
			&MockExecutor{Failures: map[string]string{"a": "error a", "b": "error b"}}
	}

	t.Run("enabled", func(t *testing.T) {
		gen, rep, exec := newParts()
		res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 4, DetectRepeats: true}).Run(context.Background(), testRequest)

		var exhausted *ExhaustionError
		require.ErrorAs(t, err, &exhausted)
		assert.True(t, exhausted.Repeated)
		assert.Equal(t, 2, exhausted.Attempts)
		assert.Equal(t, "error b", exhausted.LastError)
		assert.Equal(t, []string{"a", "b"}, exec.Executed)
		assert.Equal(t, StateExhausted, res.State)
		assert.Contains(t, err.Error(), "repeated")
	})

	t.Run("disabled", func(t *testing.T) {
		gen, rep, exec := newParts()
		_, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 4}).Run(context.Background(), testRequest)

		var exhausted *ExhaustionError
		require.ErrorAs(t, err, &exhausted)
		assert.False(t, exhausted.Repeated)
		assert.Equal(t, []string{"a", "b", "a", "b"}, exec.Executed)
	})
}

func TestLoop_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &MockGenerator{Query: "q0"}
	rep := &MockRepairer{Queries: []Query{"q1"}}
	exec := executorFunc(func(ctx context.Context, query string) (graph.ResultSet, error) {
		cancel()
		return nil, &graph.ExecutionError{Query: query, Message: "context canceled", Err: ctx.Err()}
	})

	rec := &recorder{}
	res, err := newTestLoop(t, gen, rep, exec, LoopConfig{MaxAttempts: 3}, WithObserver(rec)).Run(ctx, testRequest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rep.Calls)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []State{StateInit, StateAttempting, StateFailed}, rec.path())
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, 1, last.Attempt)
	assert.Equal(t, context.Canceled.Error(), last.Error)
}

func TestLoop_CancelledBeforeFirstExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &MockExecutor{}

	rec := &recorder{}
	res, err := newTestLoop(t, &MockGenerator{Query: "q0"}, &MockRepairer{}, exec, DefaultLoopConfig(), WithObserver(rec)).Run(ctx, testRequest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Attempts)
	assert.Empty(t, exec.Executed)
	assert.Equal(t, []State{StateInit, StateAttempting, StateFailed}, rec.path())
}

func TestNewLoop_Validation(t *testing.T) {
	gen, rep, exec := &MockGenerator{}, &MockRepairer{}, &MockExecutor{}

	_, err := NewLoop(gen, rep, exec, LoopConfig{MaxAttempts: 0})
	assert.Error(t, err)

	_, err = NewLoop(nil, rep, exec, DefaultLoopConfig())
	assert.Error(t, err)

	l, err := NewLoop(gen, rep, exec, DefaultLoopConfig(), WithObserver(nil))
	require.NoError(t, err)
	assert.Empty(t, l.observers)
	assert.Equal(t, 2, DefaultLoopConfig().MaxAttempts)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "attempting", StateAttempting.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

type executorFunc func(ctx context.Context, query string) (graph.ResultSet, error)

func (f executorFunc) Execute(ctx context.Context, query string) (graph.ResultSet, error) {
	return f(ctx, query)
}
