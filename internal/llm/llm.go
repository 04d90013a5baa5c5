// Package llm wraps the text-generation backends used to write and repair
// graph queries. Every backend reduces to one call: prompt in, completion out.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrEmptyCompletion is returned when a backend answers with no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

var (
	fenceInfo = regexp.MustCompile(`(?i)^[a-z0-9_+-]*$`)
	// Query keywords that may stand alone on the opening fence line.
	queryKeyword = regexp.MustCompile(`(?i)^(select|ask|construct|describe|prefix|base|match|optional|with|call|unwind)$`)
)

// TextGenerator produces a single completion for a fully rendered prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// WithTimeout bounds every Complete call of g by d. A non-positive d
// returns g unchanged.
func WithTimeout(g TextGenerator, d time.Duration) TextGenerator {
	if d <= 0 {
		return g
	}
	return &timeoutGenerator{inner: g, timeout: d}
}

type timeoutGenerator struct {
	inner   TextGenerator
	timeout time.Duration
}

func (t *timeoutGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Complete(ctx, prompt)
}

func (t *timeoutGenerator) Name() string {
	return t.inner.Name()
}

// WithRateLimit spaces Complete calls of g to at most rps per second with
// the given burst. Calls wait for a token or fail when ctx is done. A
// non-positive rps returns g unchanged.
func WithRateLimit(g TextGenerator, rps float64, burst int) TextGenerator {
	if rps <= 0 {
		return g
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedGenerator{inner: g, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type limitedGenerator struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

func (l *limitedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Complete(ctx, prompt)
}

func (l *limitedGenerator) Name() string {
	return l.inner.Name()
}

// CleanCompletion extracts the query from a completion. When the text holds
// a markdown code block, the first block's body is returned, so
// "Here is the query:\n```sparql\nSELECT ...\n```" becomes "SELECT ...".
// Otherwise the text is returned trimmed.
func CleanCompletion(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}

	body := text[start+3:]
	// Drop the info string ("sparql", "SPARQL", "cypher", ...) on the opening fence.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		info := strings.TrimSpace(body[:nl])
		if fenceInfo.MatchString(info) && !queryKeyword.MatchString(info) {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
