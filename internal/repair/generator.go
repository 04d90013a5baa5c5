package repair

import (
	"context"
	"fmt"

	"sparqlgen/internal/llm"
	"sparqlgen/internal/prompt"
)

// Prompter renders one kind of prompt and asks the text generator for a
// completion. Every failure is reported as a *GenerationError for its stage.
type Prompter struct {
	tg    llm.TextGenerator
	set   *prompt.Set
	kind  prompt.Kind
	stage Stage
}

// NewPrompter returns a Prompter for kind. It fails if the set has no
// template for kind.
func NewPrompter(tg llm.TextGenerator, set *prompt.Set, kind prompt.Kind, stage Stage) (*Prompter, error) {
	if tg == nil || set == nil {
		return nil, fmt.Errorf("%s: text generator and prompt set are required", stage)
	}
	if !set.Has(kind) {
		return nil, fmt.Errorf("%s: %w: %s/%s", stage, prompt.ErrNoTemplate, set.Dialect(), kind)
	}
	return &Prompter{tg: tg, set: set, kind: kind, stage: stage}, nil
}

// Complete renders the prompt with vars and returns the cleaned completion.
func (p *Prompter) Complete(ctx context.Context, vars prompt.Variables) (string, error) {
	text, err := p.set.Render(p.kind, vars)
	if err != nil {
		return "", &GenerationError{Stage: p.stage, Err: err}
	}

	out, err := p.tg.Complete(ctx, text)
	if err != nil {
		return "", &GenerationError{Stage: p.stage, Err: err}
	}
	out = llm.CleanCompletion(out)
	if out == "" {
		return "", &GenerationError{Stage: p.stage, Err: llm.ErrEmptyCompletion}
	}
	return out, nil
}

// LLMGenerator writes the first candidate query from the question.
type LLMGenerator struct {
	p *Prompter
}

// NewGenerator returns a Generator backed by tg and the set's generate
// template.
func NewGenerator(tg llm.TextGenerator, set *prompt.Set) (*LLMGenerator, error) {
	p, err := NewPrompter(tg, set, prompt.KindGenerate, StageGenerate)
	if err != nil {
		return nil, err
	}
	return &LLMGenerator{p: p}, nil
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (Query, error) {
	out, err := g.p.Complete(ctx, prompt.Variables{
		Question: req.Question,
		Schema:   string(req.Schema),
		Prefix:   req.Prefix,
	})
	return Query(out), err
}

// LLMRepairer rewrites a rejected query using the store's diagnostic.
type LLMRepairer struct {
	p *Prompter
}

// NewRepairer returns a Repairer backed by tg and the set's repair template.
func NewRepairer(tg llm.TextGenerator, set *prompt.Set) (*LLMRepairer, error) {
	p, err := NewPrompter(tg, set, prompt.KindRepair, StageRepair)
	if err != nil {
		return nil, err
	}
	return &LLMRepairer{p: p}, nil
}

func (r *LLMRepairer) Repair(ctx context.Context, failing Query, errorMessage string, req Request) (Query, error) {
	out, err := r.p.Complete(ctx, prompt.Variables{
		Question:     req.Question,
		Schema:       string(req.Schema),
		Prefix:       req.Prefix,
		Query:        string(failing),
		ErrorMessage: errorMessage,
	})
	return Query(out), err
}
