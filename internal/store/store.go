// Package store holds the in-memory entity collections that every other
// component reads. Each collection is an ordered mapping from internal id
// to entity; every committed mutation is first written through the
// persistence backend and then announced to subscribers synchronously.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"alloc-validator/internal/entity"
	"alloc-validator/internal/persist"
	"alloc-validator/internal/schema"
)

// ErrNotFound is returned when no entity matches a lookup.
var ErrNotFound = errors.New("entity not found")

// Op identifies the mutation that produced a Change.
type Op string

const (
	OpLoad    Op = "load"
	OpReplace Op = "replace"
	OpUpsert  Op = "upsert"
)

// Change describes one committed mutation.
type Change struct {
	Op   Op
	Kind entity.Kind
	// IDs are the internal ids touched; empty for OpLoad.
	IDs []string
}

// Listener is notified after each committed mutation.
type Listener func(Change)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mutation traces.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithNormalizer sets the normalizer used to decode persisted documents.
func WithNormalizer(n *schema.Normalizer) Option {
	return func(s *Store) {
		s.normalizer = n
	}
}

// WithIDGenerator replaces the internal id source. It must never repeat a value.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

type collection struct {
	order []string
	byID  map[string]entity.Entity
}

func newCollection() *collection {
	return &collection{byID: make(map[string]entity.Entity)}
}

// Store is the single source of truth for clients, workers and tasks.
// All methods are safe for concurrent use; listeners run on the mutating goroutine
// after the lock is released.
type Store struct {
	mu          sync.RWMutex
	backend     persist.Backend
	normalizer  *schema.Normalizer
	logger      *slog.Logger
	newID       func() string
	collections map[entity.Kind]*collection

	lmu       sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

// New creates an empty store backed by backend.
func New(backend persist.Backend, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		normalizer:  schema.NewNormalizer(false),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:       uuid.NewString,
		collections: make(map[entity.Kind]*collection, len(entity.Kinds)),
		listeners:   make(map[int]Listener),
	}

	for _, k := range entity.Kinds {
		s.collections[k] = newCollection()
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()

		delete(s.listeners, id)
	}
}

func (s *Store) notify(c Change) {
	s.lmu.Lock()

	fns := make([]Listener, 0, len(s.listeners))

	// Subscription order.
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}

	s.lmu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Load replaces every collection with the backend's contents.
// Nothing changes if any collection fails to load or decode.
func (s *Store) Load(ctx context.Context) error {
	loaded := make(map[entity.Kind]*collection, len(entity.Kinds))

	for _, k := range entity.Kinds {
		items, err := s.backend.GetAll(ctx, k.Collection())
		if err != nil {
			return fmt.Errorf("load %s: %w", k, err)
		}

		c := newCollection()

		for _, it := range items {
			e, err := s.normalizer.FromFields(k, it.ID, it.Fields)
			if err != nil {
				return fmt.Errorf("load %s: %w", k, err)
			}

			if it.ID == "" {
				entity.AssignID(e, s.newID())
			}

			c.put(e)
		}

		loaded[k] = c
	}

	s.mu.Lock()
	s.collections = loaded
	s.mu.Unlock()

	s.logger.Debug("store loaded",
		"clients", loaded[entity.KindClients].size(),
		"workers", loaded[entity.KindWorkers].size(),
		"tasks", loaded[entity.KindTasks].size())

	s.notify(Change{Op: OpLoad})

	return nil
}

// ReplaceAll swaps the whole collection of kind for entities, in the given
// order. Entities without an internal id are assigned one. The backend is
// written first; on failure the in-memory collection is left untouched.
func (s *Store) ReplaceAll(ctx context.Context, kind entity.Kind, entities []entity.Entity) error {
	if !kind.IsValid() {
		return fmt.Errorf("replace: invalid kind %d", int(kind))
	}

	c := newCollection()
	items := make([]persist.Item, 0, len(entities))

	for _, e := range entities {
		if e.Kind() != kind {
			return fmt.Errorf("replace %s: got a %s entity", kind, e.Kind())
		}

		e = e.Clone()
		entity.AssignID(e, s.newID())

		if _, dup := c.byID[e.InternalID()]; dup {
			return fmt.Errorf("replace %s: internal id %s used twice", kind, e.InternalID())
		}

		c.put(e)
		items = append(items, persist.Item{ID: e.InternalID(), Fields: schema.Encode(e)})
	}

	if err := s.backend.ReplaceAll(ctx, kind.Collection(), items); err != nil {
		return fmt.Errorf("replace %s: %w", kind, err)
	}

	s.mu.Lock()
	s.collections[kind] = c
	s.mu.Unlock()

	s.logger.Debug("collection replaced", "kind", kind.String(), "count", len(items))
	s.notify(Change{Op: OpReplace, Kind: kind, IDs: append([]string(nil), c.order...)})

	return nil
}

// Upsert inserts e or replaces the entity with the same internal id.
// A new entity is appended and assigned an internal id. The stored copy is
// returned.
func (s *Store) Upsert(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	kind := e.Kind()
	e = e.Clone()
	entity.AssignID(e, s.newID())

	if err := s.backend.Upsert(ctx, kind.Collection(), e.InternalID(), schema.Encode(e)); err != nil {
		return nil, fmt.Errorf("upsert %s %s: %w", kind, e.DomainID(), err)
	}

	s.mu.Lock()
	s.collections[kind].put(e)
	s.mu.Unlock()

	s.logger.Debug("entity upserted", "kind", kind.String(), "id", e.InternalID(), "domain_id", e.DomainID())
	s.notify(Change{Op: OpUpsert, Kind: kind, IDs: []string{e.InternalID()}})

	return e.Clone(), nil
}

// Get returns a copy of the entity with the given internal id.
func (s *Store) Get(kind entity.Kind, internalID string) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: invalid kind %d", ErrNotFound, int(kind))
	}

	e, ok := c.byID[internalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s id %s", ErrNotFound, kind, internalID)
	}

	return e.Clone(), nil
}

// Find returns a copy of the first entity, in store order, whose domain id is domainID.
func (s *Store) Find(kind entity.Kind, domainID string) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: invalid kind %d", ErrNotFound, int(kind))
	}

	for _, id := range c.order {
		if e := c.byID[id]; e.DomainID() == domainID {
			return e.Clone(), nil
		}
	}

	return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, domainID)
}

// Snapshot returns a deep copy of all collections in store order.
func (s *Store) Snapshot() entity.Collections {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out entity.Collections

	for _, k := range entity.Kinds {
		c := s.collections[k]
		for _, id := range c.order {
			out.Add(c.byID[id].Clone())
		}
	}

	return out
}

// Len returns the number of entities of kind.
func (s *Store) Len(kind entity.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[kind]; ok {
		return c.size()
	}

	return 0
}

func (c *collection) put(e entity.Entity) {
	id := e.InternalID()
	if _, exists := c.byID[id]; !exists {
		c.order = append(c.order, id)
	}

	c.byID[id] = e
}

func (c *collection) size() int {
	return len(c.order)
}
