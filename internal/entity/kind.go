package entity

import (
	"fmt"
	"strings"
)

// Kind identifies one of the three entity collections. The zero Kind is
// invalid.
//
//go:generate go tool stringer -type=Kind -linecomment -output=kind_string.go
type Kind int

const (
	KindClients Kind = iota + 1 // clients
	KindWorkers                 // workers
	KindTasks                   // tasks
)

// Kinds lists every collection in validation order.
var Kinds = []Kind{KindClients, KindWorkers, KindTasks}

// IsValid returns true if k is one of the declared kinds.
func (k Kind) IsValid() bool {
	return k >= KindClients && k <= KindTasks
}

// Collection returns the persistence collection name for the kind.
func (k Kind) Collection() string {
	return k.String()
}

// IDField returns the canonical name of the domain id field.
func (k Kind) IDField() string {
	switch k {
	case KindClients:
		return FieldClientID
	case KindWorkers:
		return FieldWorkerID
	case KindTasks:
		return FieldTaskID
	default:
		return ""
	}
}

// ParseKind parses a collection name. Singular forms and any casing are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clients", "client":
		return KindClients, nil
	case "workers", "worker":
		return KindWorkers, nil
	case "tasks", "task":
		return KindTasks, nil
	default:
		return 0, fmt.Errorf("unknown entity type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("invalid entity kind %d", int(k))
	}

	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}
