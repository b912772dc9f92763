// Package translate defines the boundary to the free-text translation
// collaborators: structured shapes they return, the failure type surfaced
// when a shape is malformed, and helpers to call them asynchronously.
package translate

import (
	"context"
	"fmt"
	"strings"

	"alloc-validator/internal/entity"
)

// Operation names carried by Failure.
const (
	OpRule       = "translate rule"
	OpEdit       = "translate edit"
	OpSuggestion = "validate suggestion"
	OpAccept     = "accept rule"
)

// Params are the structured rule parameters returned by a translator.
type Params struct {
	TaskIDs []string `json:"taskIds"`
}

// RuleCandidate is a translator's proposal for a new rule. Either field may
// be absent when the translator could not produce it.
type RuleCandidate struct {
	Type   string  `json:"type"`
	Params *Params `json:"params"`
}

// Edit is a translated single-field change to one entity.
type Edit struct {
	EntityType entity.Kind `json:"entityType"`
	ID         string      `json:"id"`
	Field      string      `json:"field"`
	Value      any         `json:"value"`
}

// Check returns a Failure when the edit does not name a valid target.
func (e Edit) Check() error {
	var missing []string

	if !e.EntityType.IsValid() {
		missing = append(missing, "entityType")
	}

	if strings.TrimSpace(e.ID) == "" {
		missing = append(missing, "id")
	}

	if strings.TrimSpace(e.Field) == "" {
		missing = append(missing, "field")
	}

	if e.Value == nil {
		missing = append(missing, "value")
	}

	if len(missing) > 0 {
		return &Failure{Op: OpEdit, Reason: "missing " + strings.Join(missing, ", ")}
	}

	return nil
}

// RuleTranslator turns free text into a rule candidate.
type RuleTranslator interface {
	TranslateRule(ctx context.Context, prompt string) (RuleCandidate, error)
}

// EditTranslator turns a free-text command into an edit against snapshot.
type EditTranslator interface {
	TranslateEdit(ctx context.Context, command string, snapshot entity.Collections) (Edit, error)
}

// SuggestionValidator sanity-checks a raw suggestion and returns the
// normalized replacement text.
type SuggestionValidator interface {
	ValidateSuggestion(ctx context.Context, kind entity.Kind, id, field, raw string) (string, error)
}

// Failure is returned when a collaborator fails or its result is malformed.
// Nothing is applied when a Failure is returned.
type Failure struct {
	Op     string
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Op, f.Reason, f.Err)
	}

	return fmt.Sprintf("%s: %s", f.Op, f.Reason)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Err }

// Result is the single value delivered by an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Async runs fn in a new goroutine and delivers its outcome on a buffered
// channel, which is closed afterwards. An abandoned channel never blocks
// the goroutine.
func Async[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)

		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()

	return ch
}
