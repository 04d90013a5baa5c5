// Package prompt renders the instructions sent to the text generator.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"sparqlgen/internal/database/graph"
)

// Kind identifies a prompt in a template set.
type Kind string

const (
	KindRephrase  Kind = "rephrase"
	KindGenerate  Kind = "generate"
	KindRepair    Kind = "repair"
	KindConstruct Kind = "construct"
)

// ErrNoTemplate is returned when a dialect has no template for a kind.
var ErrNoTemplate = errors.New("no template for prompt kind")

// Variables are the values interpolated into templates. Each template uses
// the subset it needs.
type Variables struct {
	Question     string
	Schema       string
	Prefix       string
	Query        string // failing query (repair) or SELECT query (construct)
	ErrorMessage string
}

// Set holds the parsed templates for one dialect.
type Set struct {
	dialect   graph.Dialect
	templates map[Kind]*template.Template
}

// NewSet parses the built-in templates for the dialect.
func NewSet(d graph.Dialect) (*Set, error) {
	sources, ok := builtin[d]
	if !ok {
		return nil, fmt.Errorf("no prompt templates for dialect %q", d)
	}
	return NewSetFromSources(d, sources)
}

// NewSetFromSources parses caller-supplied template text.
func NewSetFromSources(d graph.Dialect, sources map[Kind]string) (*Set, error) {
	s := &Set{dialect: d, templates: make(map[Kind]*template.Template, len(sources))}
	for kind, src := range sources {
		tmpl, err := template.New(string(d) + "/" + string(kind)).
			Option("missingkey=error").
			Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		s.templates[kind] = tmpl
	}
	return s, nil
}

// Dialect returns the dialect the set was built for.
func (s *Set) Dialect() graph.Dialect {
	return s.dialect
}

// Has reports whether the set can render kind.
func (s *Set) Has(kind Kind) bool {
	_, ok := s.templates[kind]
	return ok
}

// Render executes the template for kind with vars.
func (s *Set) Render(kind Kind, vars Variables) (string, error) {
	tmpl, ok := s.templates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNoTemplate, s.dialect, kind)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return b.String(), nil
}
