package repair

import (
	"errors"
	"fmt"

	"sparqlgen/internal/database/graph"
)

// Stage names the step of a run that asked the text generator for output.
type Stage string

const (
	StageRephrase  Stage = "rephrase"
	StageGenerate  Stage = "generate"
	StageRepair    Stage = "repair"
	StageConstruct Stage = "construct"
)

// GenerationError reports that the text generator failed or returned
// unusable output. It is never retried by the loop.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: text generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ExhaustionError reports that every attempt of the budget failed.
type ExhaustionError struct {
	Attempts  int
	LastError string
	LastQuery Query
	// Repeated is set when the run stopped because a repair returned a
	// query that had already failed.
	Repeated bool
	Err      error
}

func (e *ExhaustionError) Error() string {
	if e.Repeated {
		return fmt.Sprintf("no result after %d tries (repair repeated an earlier query): %s", e.Attempts, e.LastError)
	}
	return fmt.Sprintf("no result after %d tries: %s", e.Attempts, e.LastError)
}

func (e *ExhaustionError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is or wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// IsExhausted reports whether err is or wraps an *ExhaustionError.
func IsExhausted(err error) bool {
	var ee *ExhaustionError
	return errors.As(err, &ee)
}

// errorMessage extracts the store diagnostic that is handed to the repairer.
func errorMessage(err error) string {
	var execErr *graph.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Message
	}
	return err.Error()
}
