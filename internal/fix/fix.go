// Package fix turns accepted suggestions and translated edits into store
// mutations, using the same coercion as a manual cell edit.
package fix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
	"alloc-validator/internal/match"
	"alloc-validator/internal/schema"
	"alloc-validator/internal/translate"
)

// ErrNoSuggestion is returned when accepting a finding that carries no suggestion.
var ErrNoSuggestion = errors.New("finding has no suggestion")

// LookupError is returned when the fix target does not exist. No mutation
// is performed.
type LookupError struct {
	Kind  entity.Kind
	ID    string
	Field string
	Err   error
}

func (e *LookupError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("lookup %s/%s %s: %v", e.Kind, e.ID, e.Field, e.Err)
	}

	return fmt.Sprintf("lookup %s/%s: %v", e.Kind, e.ID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LookupError) Unwrap() error { return e.Err }

var errUnknownField = errors.New("unknown field")

// unknownField names the closest canonical field when one is close enough.
func unknownField(kind entity.Kind, field string) error {
	names := make([]string, 0, len(entity.Fields(kind)))
	for _, f := range entity.Fields(kind) {
		names = append(names, f.Name)
	}

	if best := match.Rank(field, names).Best(); best != nil && best.Score >= match.DefaultMinScore {
		return fmt.Errorf("%w (did you mean %s?)", errUnknownField, best.Name)
	}

	return errUnknownField
}

// Store is the part of the entity store the applier needs.
type Store interface {
	Find(kind entity.Kind, domainID string) (entity.Entity, error)
	Upsert(ctx context.Context, e entity.Entity) (entity.Entity, error)
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger used to trace applied fixes.
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = l
	}
}

// WithNormalizer sets the coercion rules. Defaults to lenient coercion.
func WithNormalizer(n *schema.Normalizer) Option {
	return func(a *Applier) {
		a.normalizer = n
	}
}

// Applier rewrites single fields of stored entities.
type Applier struct {
	store      Store
	normalizer *schema.Normalizer
	logger     *slog.Logger
}

// New creates an Applier writing to store.
func New(store Store, opts ...Option) *Applier {
	a := &Applier{
		store:      store,
		normalizer: schema.NewNormalizer(false),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Apply coerces newValue into field of the first kind entity whose domain
// id is domainID and upserts the result. The stored entity is returned.
func (a *Applier) Apply(ctx context.Context, kind entity.Kind, domainID, field string, newValue any) (entity.Entity, error) {
	if _, ok := entity.LookupField(kind, field); !ok {
		return nil, &LookupError{Kind: kind, ID: domainID, Field: field, Err: unknownField(kind, field)}
	}

	e, err := a.store.Find(kind, domainID)
	if err != nil {
		return nil, &LookupError{Kind: kind, ID: domainID, Err: err}
	}

	if err := a.normalizer.SetField(e, field, newValue); err != nil {
		return nil, fmt.Errorf("fix %s/%s: %w", kind, domainID, err)
	}

	stored, err := a.store.Upsert(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("fix %s/%s: %w", kind, domainID, err)
	}

	a.logger.Info("fix applied", "kind", kind.String(), "id", domainID, "field", field)

	return stored, nil
}

// AcceptSuggestion applies the suggestion carried by a validation finding.
func (a *Applier) AcceptSuggestion(ctx context.Context, ve diagnostic.ValidationError) (entity.Entity, error) {
	if !ve.HasSuggestion() {
		return nil, fmt.Errorf("%s: %w", ve, ErrNoSuggestion)
	}

	return a.Apply(ctx, ve.EntityType, ve.ID, ve.Field, ve.Suggestion)
}

// ApplyEdit applies a translated edit after checking its shape.
func (a *Applier) ApplyEdit(ctx context.Context, edit translate.Edit) (entity.Entity, error) {
	if err := edit.Check(); err != nil {
		return nil, err
	}

	return a.Apply(ctx, edit.EntityType, edit.ID, edit.Field, edit.Value)
}
