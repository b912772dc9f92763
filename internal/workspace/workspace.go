// Package workspace wires the entity store, validation, fixes, the rule
// registry and the prioritization weights into one session. Every store
// mutation re-runs validation before the mutating call returns.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
	"alloc-validator/internal/fix"
	"alloc-validator/internal/persist"
	"alloc-validator/internal/priority"
	"alloc-validator/internal/rules"
	"alloc-validator/internal/schema"
	"alloc-validator/internal/store"
	"alloc-validator/internal/translate"
	"alloc-validator/internal/validate"
)

// ErrNoTranslator is returned when a request needs a collaborator that was not configured.
var ErrNoTranslator = errors.New("translator not configured")

// ReportListener receives every new validation report.
type ReportListener func(diagnostic.Report)

// Option configures a Workspace.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	strict    bool
	ruleT     translate.RuleTranslator
	editT     translate.EditTranslator
	sanitizer translate.SuggestionValidator
	storeOpts []store.Option
	rulesOpts []rules.Option
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStrictNumbers makes unparseable numbers a coercion error instead of 0.
func WithStrictNumbers(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithRuleTranslator sets the collaborator used by RequestRule.
func WithRuleTranslator(t translate.RuleTranslator) Option {
	return func(o *options) {
		o.ruleT = t
	}
}

// WithEditTranslator sets the collaborator used by RequestEdit.
func WithEditTranslator(t translate.EditTranslator) Option {
	return func(o *options) {
		o.editT = t
	}
}

// WithSuggestionValidator sets the collaborator used by ApplySanitizedSuggestion.
func WithSuggestionValidator(v translate.SuggestionValidator) Option {
	return func(o *options) {
		o.sanitizer = v
	}
}

// WithStoreOptions passes extra options to the entity store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithRuleOptions passes extra options to the rule registry.
func WithRuleOptions(opts ...rules.Option) Option {
	return func(o *options) {
		o.rulesOpts = append(o.rulesOpts, opts...)
	}
}

// Workspace is one validation session over a persistence backend.
type Workspace struct {
	store      *store.Store
	rules      *rules.Registry
	weights    *priority.Config
	fixer      *fix.Applier
	normalizer *schema.Normalizer
	logger     *slog.Logger

	ruleT     translate.RuleTranslator
	editT     translate.EditTranslator
	sanitizer translate.SuggestionValidator

	// mu serializes revalidation so the stored report always matches the
	// latest snapshot.
	mu     sync.Mutex
	report diagnostic.Report

	lmu       sync.Mutex
	listeners map[int]ReportListener
	nextSub   int

	unsubscribe func()
}

// New builds a workspace over backend. Nothing is loaded until Load.
func New(backend persist.Backend, opts ...Option) *Workspace {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	n := schema.NewNormalizer(o.strict)

	storeOpts := append([]store.Option{store.WithLogger(o.logger), store.WithNormalizer(n)}, o.storeOpts...)
	rulesOpts := append([]rules.Option{rules.WithLogger(o.logger)}, o.rulesOpts...)

	w := &Workspace{
		store:      store.New(backend, storeOpts...),
		rules:      rules.New(backend, rulesOpts...),
		weights:    priority.New(backend, priority.WithLogger(o.logger)),
		normalizer: n,
		logger:     o.logger,
		ruleT:      o.ruleT,
		editT:      o.editT,
		sanitizer:  o.sanitizer,
		listeners:  make(map[int]ReportListener),
	}

	w.fixer = fix.New(w.store, fix.WithNormalizer(n), fix.WithLogger(o.logger))
	w.unsubscribe = w.store.Subscribe(func(store.Change) { w.revalidate() })

	return w
}

// Close detaches revalidation from the store.
func (w *Workspace) Close() {
	w.unsubscribe()
}

// Store returns the entity store.
func (w *Workspace) Store() *store.Store { return w.store }

// Rules returns the rule registry.
func (w *Workspace) Rules() *rules.Registry { return w.rules }

// Weights returns the prioritization config.
func (w *Workspace) Weights() *priority.Config { return w.weights }

// Load reads entities, rules and weights from the backend.
func (w *Workspace) Load(ctx context.Context) error {
	if err := w.store.Load(ctx); err != nil {
		return err
	}

	if err := w.rules.Load(ctx); err != nil {
		return err
	}

	return w.weights.Load(ctx)
}

// Import decodes header-keyed rows and replaces the kind collection with
// them. Header mapping and coercion problems are returned as diagnostics;
// they do not stop the import.
func (w *Workspace) Import(ctx context.Context, kind entity.Kind, rows []schema.Row) (*diagnostic.Diagnostics, error) {
	entities, diags := w.normalizer.Decode(kind, rows)
	if entities == nil && diags.HasErrors() {
		return diags, diags.Error()
	}

	if err := w.store.ReplaceAll(ctx, kind, entities); err != nil {
		return diags, err
	}

	w.logger.Info("collection imported", "kind", kind.String(), "rows", len(rows),
		"warnings", len(diags.Warnings), "errors", len(diags.Errors))

	return diags, nil
}

// Report returns the latest validation report.
func (w *Workspace) Report() diagnostic.Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.report
}

// Revalidate recomputes the report without a mutation.
func (w *Workspace) Revalidate() diagnostic.Report {
	return w.revalidate()
}

// OnReport registers fn for every new report and returns a function that removes it.
func (w *Workspace) OnReport(fn ReportListener) func() {
	w.lmu.Lock()
	defer w.lmu.Unlock()

	id := w.nextSub
	w.nextSub++
	w.listeners[id] = fn

	return func() {
		w.lmu.Lock()
		defer w.lmu.Unlock()

		delete(w.listeners, id)
	}
}

func (w *Workspace) revalidate() diagnostic.Report {
	w.mu.Lock()
	r := validate.Validate(w.store.Snapshot())
	w.report = r
	w.mu.Unlock()

	w.logger.Debug("validation finished", "errors", len(r.Errors), "suggestions", len(r.Suggestions))

	w.lmu.Lock()
	fns := make([]ReportListener, 0, len(w.listeners))

	for i := 0; i < w.nextSub; i++ {
		if fn, ok := w.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	w.lmu.Unlock()

	for _, fn := range fns {
		fn(r)
	}

	return r
}

// ApplyFix rewrites one field of the first entity of kind with domain id id.
func (w *Workspace) ApplyFix(ctx context.Context, kind entity.Kind, id, field string, value any) (entity.Entity, error) {
	return w.fixer.Apply(ctx, kind, id, field, value)
}

// AcceptSuggestion applies the suggestion carried by a finding.
func (w *Workspace) AcceptSuggestion(ctx context.Context, ve diagnostic.ValidationError) (entity.Entity, error) {
	return w.fixer.AcceptSuggestion(ctx, ve)
}

// ApplySanitizedSuggestion has the suggestion validator normalize raw and
// applies the result. Nothing changes if the validator fails.
func (w *Workspace) ApplySanitizedSuggestion(ctx context.Context, kind entity.Kind, id, field, raw string) (entity.Entity, error) {
	if w.sanitizer == nil {
		return nil, fmt.Errorf("%s: %w", translate.OpSuggestion, ErrNoTranslator)
	}

	normalized, err := w.sanitizer.ValidateSuggestion(ctx, kind, id, field, raw)
	if err != nil {
		return nil, asFailure(translate.OpSuggestion, err)
	}

	return w.fixer.Apply(ctx, kind, id, field, normalized)
}

// RequestRule translates prompt in the background and adds the resulting
// rule. The outcome is delivered once on the returned channel.
func (w *Workspace) RequestRule(ctx context.Context, prompt string) <-chan translate.Result[rules.Rule] {
	return translate.Async(ctx, func(ctx context.Context) (rules.Rule, error) {
		if w.ruleT == nil {
			return rules.Rule{}, fmt.Errorf("%s: %w", translate.OpRule, ErrNoTranslator)
		}

		c, err := w.ruleT.TranslateRule(ctx, prompt)
		if err != nil {
			return rules.Rule{}, asFailure(translate.OpRule, err)
		}

		return w.rules.AcceptCandidate(ctx, c)
	})
}

// RequestEdit translates command against the current snapshot in the
// background and applies the resulting edit. Results are applied in
// arrival order; a late result overwrites newer edits to the same field.
func (w *Workspace) RequestEdit(ctx context.Context, command string) <-chan translate.Result[entity.Entity] {
	snapshot := w.store.Snapshot()

	return translate.Async(ctx, func(ctx context.Context) (entity.Entity, error) {
		if w.editT == nil {
			return nil, fmt.Errorf("%s: %w", translate.OpEdit, ErrNoTranslator)
		}

		edit, err := w.editT.TranslateEdit(ctx, command, snapshot)
		if err != nil {
			return nil, asFailure(translate.OpEdit, err)
		}

		return w.fixer.ApplyEdit(ctx, edit)
	})
}

// asFailure keeps an existing *translate.Failure and wraps anything else in one.
func asFailure(op string, err error) error {
	var f *translate.Failure
	if errors.As(err, &f) {
		return err
	}

	return &translate.Failure{Op: op, Reason: "collaborator error", Err: err}
}
