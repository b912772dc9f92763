// Package priority holds the prioritization weight vector handed to the
// allocation stage.
package priority

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"alloc-validator/internal/common"
	"alloc-validator/internal/persist"
	"alloc-validator/internal/schema"
)

// DocumentID is the id of the single weights document.
const DocumentID = "weights"

// Inclusive bounds of every weight.
const (
	MinWeight = 0
	MaxWeight = 100
)

var (
	// ErrOutOfRange is returned when a weight is outside [MinWeight, MaxWeight].
	ErrOutOfRange = errors.New("weight out of range")
	// ErrUnknownPreset is returned for a preset name that does not exist.
	ErrUnknownPreset = errors.New("unknown preset")
)

// Weights is the prioritization vector. The weights need not sum to anything.
type Weights struct {
	Fulfill  int `json:"fulfill" yaml:"fulfill"`
	Workload int `json:"workload" yaml:"workload"`
	Priority int `json:"priority" yaml:"priority"`
}

// Validate checks that every weight is within range.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"fulfill", w.Fulfill},
		{"workload", w.Workload},
		{"priority", w.Priority},
	} {
		if !common.IsInRange(MinWeight, f.value, MaxWeight) {
			return fmt.Errorf("%w: %s=%d", ErrOutOfRange, f.name, f.value)
		}
	}

	return nil
}

func (w Weights) String() string {
	return fmt.Sprintf("fulfill=%d workload=%d priority=%d", w.Fulfill, w.Workload, w.Priority)
}

// Preset is a named weight vector.
type Preset struct {
	Name    string
	Weights Weights
}

var presets = []Preset{
	{Name: "balanced", Weights: Weights{Fulfill: 50, Workload: 30, Priority: 20}},
	{Name: "fulfill-max", Weights: Weights{Fulfill: 80, Workload: 10, Priority: 10}},
	{Name: "workload-min", Weights: Weights{Fulfill: 20, Workload: 70, Priority: 10}},
}

// Default is the vector used before anything is set or loaded.
var Default = presets[0].Weights

// Presets returns the named presets in a stable order.
func Presets() []Preset {
	return slices.Clone(presets)
}

// LookupPreset returns the preset called name.
func LookupPreset(name string) (Preset, bool) {
	i := slices.IndexFunc(presets, func(p Preset) bool { return p.Name == name })
	if i < 0 {
		return Preset{}, false
	}

	return presets[i], true
}

// Option configures a Config.
type Option func(*Config)

// WithLogger sets the logger used to trace weight changes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}

// Config owns the current weights. Changes are persisted before they
// become visible.
type Config struct {
	mu      sync.RWMutex
	backend persist.Backend
	logger  *slog.Logger
	weights Weights
}

// New creates a Config holding Default.
func New(backend persist.Backend, opts ...Option) *Config {
	c := &Config{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		weights: Default,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the current weights.
func (c *Config) Get() Weights {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.weights
}

// Set replaces the whole vector.
func (c *Config) Set(ctx context.Context, w Weights) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("set weights: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item := persist.Item{ID: DocumentID, Fields: map[string]any{
		"fulfill":  w.Fulfill,
		"workload": w.Workload,
		"priority": w.Priority,
	}}

	if err := c.backend.ReplaceAll(ctx, persist.CollectionPriorities, []persist.Item{item}); err != nil {
		return fmt.Errorf("set weights: %w", err)
	}

	c.weights = w
	c.logger.Info("weights set", "fulfill", w.Fulfill, "workload", w.Workload, "priority", w.Priority)

	return nil
}

// ApplyPreset sets the weights of the preset called name.
func (c *Config) ApplyPreset(ctx context.Context, name string) (Weights, error) {
	p, ok := LookupPreset(name)
	if !ok {
		return Weights{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	if err := c.Set(ctx, p.Weights); err != nil {
		return Weights{}, err
	}

	return p.Weights, nil
}

// Load reads the weights document. An empty collection keeps the current weights.
func (c *Config) Load(ctx context.Context) error {
	items, err := c.backend.GetAll(ctx, persist.CollectionPriorities)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	i := slices.IndexFunc(items, func(it persist.Item) bool { return it.ID == DocumentID })
	if i < 0 {
		return nil
	}

	var w Weights

	strict := schema.Coercer{Strict: true}

	for name, dst := range map[string]*int{"fulfill": &w.Fulfill, "workload": &w.Workload, "priority": &w.Priority} {
		v, err := strict.Int(items[i].Fields[name])
		if err != nil {
			return fmt.Errorf("load weights: %s: %w", name, err)
		}

		if v != nil {
			*dst = *v
		}
	}

	if err := w.Validate(); err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	c.mu.Lock()
	c.weights = w
	c.mu.Unlock()

	return nil
}
