// Package engine runs a question through the full pipeline: optional
// rephrasing, the generate/execute/repair loop, and an optional CONSTRUCT
// follow-up built from the successful SELECT query.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sparqlgen/internal/database/graph"
	"sparqlgen/internal/llm"
	"sparqlgen/internal/prompt"
	"sparqlgen/internal/repair"
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Options selects the pipeline stages.
type Options struct {
	Rephrase  bool
	Construct bool
	Loop      repair.LoopConfig
}

// DefaultOptions rephrases the question and skips the CONSTRUCT stage.
func DefaultOptions() Options {
	return Options{
		Rephrase: true,
		Loop:     repair.DefaultLoopConfig(),
	}
}

// Answer is the outcome of a successful Ask. When the CONSTRUCT stage
// fails after the SELECT query succeeded, Construct is nil and
// ConstructErr holds the failure.
type Answer struct {
	OriginalQuestion string         `json:"original_question"`
	Question         string         `json:"question"`
	Select           *repair.Result `json:"select"`
	Construct        *repair.Result `json:"construct,omitempty"`
	ConstructError   string         `json:"construct_error,omitempty"`
	ConstructErr     error          `json:"-"`
}

// Engine is safe for concurrent use when its collaborators are.
type Engine struct {
	exec      repair.Executor
	opts      Options
	loopOpts  []repair.LoopOption
	rephraser *repair.Prompter
	selects   *repair.Loop
	construct *repair.Prompter
	repairer  repair.Repairer
}

// New builds an engine over tg and exec using the templates of set.
func New(tg llm.TextGenerator, set *prompt.Set, exec repair.Executor, opts Options, loopOpts ...repair.LoopOption) (*Engine, error) {
	gen, err := repair.NewGenerator(tg, set)
	if err != nil {
		return nil, err
	}
	rep, err := repair.NewRepairer(tg, set)
	if err != nil {
		return nil, err
	}
	selects, err := repair.NewLoop(gen, rep, exec, opts.Loop, loopOpts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		exec:     exec,
		opts:     opts,
		loopOpts: loopOpts,
		selects:  selects,
		repairer: rep,
	}

	if opts.Rephrase {
		if e.rephraser, err = repair.NewPrompter(tg, set, prompt.KindRephrase, repair.StageRephrase); err != nil {
			return nil, err
		}
	}
	if opts.Construct {
		if set.Dialect() != graph.DialectSPARQL {
			return nil, fmt.Errorf("construct stage needs the %s dialect, got %s", graph.DialectSPARQL, set.Dialect())
		}
		if e.construct, err = repair.NewPrompter(tg, set, prompt.KindConstruct, repair.StageConstruct); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Ask answers req.Question. If rephrasing or the SELECT stage fails the
// Answer is nil and the error is a *repair.GenerationError when the text
// generator failed, or a *repair.ExhaustionError when no candidate query ran.
// A failed CONSTRUCT stage keeps the SELECT answer and is reported in
// Answer.ConstructErr.
func (e *Engine) Ask(ctx context.Context, req repair.Request) (*Answer, error) {
	original := strings.TrimSpace(req.Question)
	if original == "" {
		return nil, ErrEmptyQuestion
	}
	req.Question = original

	if e.rephraser != nil {
		rephrased, err := e.rephraser.Complete(ctx, prompt.Variables{
			Question: original,
			Schema:   string(req.Schema),
			Prefix:   req.Prefix,
		})
		if err != nil {
			return nil, err
		}
		req.Question = rephrased
	}

	sel, err := e.selects.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		OriginalQuestion: original,
		Question:         req.Question,
		Select:           sel,
	}
	if e.construct == nil {
		return ans, nil
	}

	loop, err := repair.NewLoop(&constructGenerator{p: e.construct, selectQuery: sel.Query}, e.repairer, e.exec, e.opts.Loop, e.loopOpts...)
	if err != nil {
		return nil, err
	}
	res, err := loop.Run(ctx, req)
	if err != nil {
		ans.ConstructErr = fmt.Errorf("construct stage: %w", err)
		ans.ConstructError = ans.ConstructErr.Error()
		return ans, nil
	}
	ans.Construct = res
	return ans, nil
}

// constructGenerator turns a working SELECT query into a CONSTRUCT query.
type constructGenerator struct {
	p           *repair.Prompter
	selectQuery repair.Query
}

func (g *constructGenerator) Generate(ctx context.Context, req repair.Request) (repair.Query, error) {
	out, err := g.p.Complete(ctx, prompt.Variables{
		Question: req.Question,
		Schema:   string(req.Schema),
		Prefix:   req.Prefix,
		Query:    string(g.selectQuery),
	})
	return repair.Query(out), err
}
