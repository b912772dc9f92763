package diagnostic

import (
	"fmt"
	"strings"

	"alloc-validator/internal/entity"
)

// GlobalID is the id used for findings that concern a whole collection.
const GlobalID = "Global"

// ValidationError is one data-integrity finding. It never blocks a mutation.
type ValidationError struct {
	EntityType entity.Kind `json:"entityType"`
	// ID is the domain id, GlobalID, or empty when the domain id is missing.
	ID         string `json:"id"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// HasSuggestion reports whether the error carries a remediation value.
func (e ValidationError) HasSuggestion() bool {
	return e.Suggestion != ""
}

// String returns a formatted finding, e.g. "clients/C1 PriorityLevel: ...".
func (e ValidationError) String() string {
	id := e.ID
	if id == "" {
		id = "?"
	}

	s := fmt.Sprintf("%s/%s %s: %s", e.EntityType, id, e.Field, e.Message)
	if e.Suggestion != "" {
		s += fmt.Sprintf(" (suggestion: %q)", e.Suggestion)
	}

	return s
}

// Report is the output of one validation pass. Errors and Suggestions keep
// the order in which the checks emitted them.
type Report struct {
	Errors []ValidationError `json:"errors"`
	// Suggestions are advisory notes that never block acceptance.
	Suggestions []string `json:"suggestions"`
}

// IsValid returns true if there are no errors.
func (r Report) IsValid() bool {
	return len(r.Errors) == 0
}

// For returns the errors reported against one entity, in report order.
func (r Report) For(kind entity.Kind, id string) []ValidationError {
	var out []ValidationError

	for _, e := range r.Errors {
		if e.EntityType == kind && e.ID == id {
			out = append(out, e)
		}
	}

	return out
}

// Count returns the number of errors per collection.
func (r Report) Count() map[entity.Kind]int {
	counts := make(map[entity.Kind]int, len(entity.Kinds))
	for _, e := range r.Errors {
		counts[e.EntityType]++
	}

	return counts
}

// String renders the report one finding per line.
func (r Report) String() string {
	if r.IsValid() && len(r.Suggestions) == 0 {
		return "no issues found"
	}

	var b strings.Builder

	for _, e := range r.Errors {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	for _, s := range r.Suggestions {
		b.WriteString("note: ")
		b.WriteString(s)
		b.WriteByte('\n')
	}

	return strings.TrimSuffix(b.String(), "\n")
}
