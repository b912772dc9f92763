// Package persist defines the document-store contract shared by the entity
// store, the rule registry and the prioritization config, plus two
// implementations: an in-memory one and a YAML file per collection.
package persist

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Collection names.
const (
	CollectionClients    = "clients"
	CollectionWorkers    = "workers"
	CollectionTasks      = "tasks"
	CollectionRules      = "rules"
	CollectionPriorities = "priorities"
)

// ErrPersistence matches every backend failure via errors.Is.
var ErrPersistence = errors.New("persistence failure")

// Item is one stored document.
type Item struct {
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// Backend is the persistence collaborator.
type Backend interface {
	// GetAll returns every item of a collection in stored order.
	// An unknown collection is empty, not an error.
	GetAll(ctx context.Context, collection string) ([]Item, error)
	// ReplaceAll swaps the whole collection. It must not partially apply.
	ReplaceAll(ctx context.Context, collection string, items []Item) error
	// Upsert merges fields into the item with the given id, appending it if absent.
	Upsert(ctx context.Context, collection, id string, fields map[string]any) error
}

// Error describes a failed backend operation.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrPersistence.
func (e *Error) Is(target error) bool { return target == ErrPersistence }

func wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Collection: collection, Err: err}
}

// CloneItems deep-copies items so callers and backends never share maps.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}

	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{ID: it.ID, Fields: cloneFields(it.Fields)}
	}

	return out
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case []string:
		return slices.Clone(typed)
	case []any:
		out := make([]any, len(typed))
		for i, e := range typed {
			out[i] = cloneValue(e)
		}

		return out
	case map[string]any:
		return cloneFields(typed)
	default:
		return v
	}
}

// merge applies an upsert to items and returns the new slice.
func merge(items []Item, id string, fields map[string]any) []Item {
	for i := range items {
		if items[i].ID != id {
			continue
		}

		if items[i].Fields == nil {
			items[i].Fields = map[string]any{}
		}

		maps.Copy(items[i].Fields, cloneFields(fields))

		return items
	}

	return append(items, Item{ID: id, Fields: cloneFields(fields)})
}
