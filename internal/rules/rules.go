// Package rules maintains the ordered registry of allocation rules.
package rules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"alloc-validator/internal/persist"
	"alloc-validator/internal/schema"
	"alloc-validator/internal/translate"
)

var (
	// ErrRuleNotFound is returned when no rule has the requested id.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrUnknownType is returned for a rule type outside the canonical set.
	ErrUnknownType = errors.New("unknown rule type")
)

// Type is a canonical rule type.
type Type string

// Canonical rule types.
const (
	CoRun      Type = "CO_RUN"
	Exclusion  Type = "EXCLUSION"
	Sequential Type = "SEQUENTIAL"
)

// Types lists every canonical rule type.
var Types = []Type{CoRun, Exclusion, Sequential}

// ParseType resolves s to a canonical type ignoring case and
// separators, so "co-run", "Co Run" and "corun" all give CoRun.
func ParseType(s string) (Type, error) {
	key := squash(s)

	for _, t := range Types {
		if squash(string(t)) == key {
			return t, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '.':
			return -1
		}

		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}

// Params are the parameters of a rule. Task ids are stored as given.
type Params struct {
	TaskIDs []string `json:"taskIds" yaml:"taskIds"`
}

func (p Params) clone() Params {
	return Params{TaskIDs: slices.Clone(p.TaskIDs)}
}

// Rule is one registered allocation rule.
type Rule struct {
	ID     string `json:"id"`
	Type   Type   `json:"type"`
	Params Params `json:"params"`
}

func (r Rule) clone() Rule {
	r.Params = r.Params.clone()
	return r
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to trace registry mutations.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithIDGenerator replaces the rule id source.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		r.newID = gen
	}
}

// Registry keeps rules in insertion order. Every mutation is written to
// the backend before the in-memory list changes.
type Registry struct {
	mu      sync.RWMutex
	backend persist.Backend
	logger  *slog.Logger
	newID   func() string
	rules   []Rule
}

// New creates an empty registry persisted to backend.
func New(backend persist.Backend, opts ...Option) *Registry {
	r := &Registry{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Load replaces the registry with the backend's rules document.
func (r *Registry) Load(ctx context.Context) error {
	items, err := r.backend.GetAll(ctx, persist.CollectionRules)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	loaded := make([]Rule, 0, len(items))

	for _, it := range items {
		rule, err := decode(it)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}

		loaded = append(loaded, rule)
	}

	r.mu.Lock()
	r.rules = loaded
	r.mu.Unlock()

	r.logger.Debug("rules loaded", "count", len(loaded))

	return nil
}

// Add appends a rule of type t and returns it.
func (r *Registry) Add(ctx context.Context, t Type, params Params) (Rule, error) {
	if !slices.Contains(Types, t) {
		return Rule{}, fmt.Errorf("add rule: %w: %q", ErrUnknownType, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rule := Rule{ID: r.newID(), Type: t, Params: params.clone()}
	next := append(slices.Clone(r.rules), rule)

	if err := r.commit(ctx, next); err != nil {
		return Rule{}, fmt.Errorf("add rule: %w", err)
	}

	r.logger.Info("rule added", "id", rule.ID, "type", string(t), "tasks", len(params.TaskIDs))

	return rule.clone(), nil
}

// UpdateParams replaces the parameters of rule id.
func (r *Registry) UpdateParams(ctx context.Context, id string, params Params) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return Rule{}, fmt.Errorf("update rule %s: %w", id, ErrRuleNotFound)
	}

	next := slices.Clone(r.rules)
	next[i].Params = params.clone()

	if err := r.commit(ctx, next); err != nil {
		return Rule{}, fmt.Errorf("update rule %s: %w", id, err)
	}

	r.logger.Info("rule updated", "id", id)

	return next[i].clone(), nil
}

// Delete removes rule id.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete rule %s: %w", id, ErrRuleNotFound)
	}

	next := slices.Delete(slices.Clone(r.rules), i, i+1)

	if err := r.commit(ctx, next); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}

	r.logger.Info("rule deleted", "id", id)

	return nil
}

// List returns a copy of every rule in insertion order.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.clone()
	}

	return out
}

// Get returns rule id.
func (r *Registry) Get(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.rules[i].clone(), nil
	}

	return Rule{}, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
}

// AcceptCandidate adds a rule from a translator's candidate. A candidate
// without a type or params, or with a non-canonical type, is refused with
// a *translate.Failure and the registry is left unchanged.
func (r *Registry) AcceptCandidate(ctx context.Context, c translate.RuleCandidate) (Rule, error) {
	if strings.TrimSpace(c.Type) == "" {
		return Rule{}, &translate.Failure{Op: translate.OpAccept, Reason: "missing type"}
	}

	if c.Params == nil {
		return Rule{}, &translate.Failure{Op: translate.OpAccept, Reason: "missing params"}
	}

	t, err := ParseType(c.Type)
	if err != nil {
		return Rule{}, &translate.Failure{Op: translate.OpAccept, Reason: "unsupported type", Err: err}
	}

	return r.Add(ctx, t, Params{TaskIDs: c.Params.TaskIDs})
}

func (r *Registry) indexOf(id string) int {
	return slices.IndexFunc(r.rules, func(rule Rule) bool { return rule.ID == id })
}

// commit must be called with mu held.
func (r *Registry) commit(ctx context.Context, next []Rule) error {
	items := make([]persist.Item, 0, len(next))
	for _, rule := range next {
		items = append(items, encode(rule))
	}

	if err := r.backend.ReplaceAll(ctx, persist.CollectionRules, items); err != nil {
		return err
	}

	r.rules = next

	return nil
}

func encode(rule Rule) persist.Item {
	return persist.Item{
		ID: rule.ID,
		Fields: map[string]any{
			"type":   string(rule.Type),
			"params": map[string]any{"taskIds": slices.Clone(rule.Params.TaskIDs)},
		},
	}
}

func decode(it persist.Item) (Rule, error) {
	t, err := ParseType(schema.Text(it.Fields["type"]))
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", it.ID, err)
	}

	var params Params

	switch p := it.Fields["params"].(type) {
	case nil:
	case map[string]any:
		params.TaskIDs = taskIDs(p["taskIds"])
	default:
		return Rule{}, fmt.Errorf("rule %s: params is %T, not a mapping", it.ID, p)
	}

	return Rule{ID: it.ID, Type: t, Params: params}, nil
}

// taskIDs decodes stored task ids element by element, keeping empty and
// comma-bearing entries as they were written. Only a scalar is split.
func taskIDs(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return slices.Clone(v)
	case []any:
		ids := make([]string, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				ids[i] = s
			} else {
				ids[i] = schema.Text(item)
			}
		}

		return ids
	default:
		return schema.List(raw)
	}
}
