package entity

import (
	"fmt"
	"slices"
)

// Entity is a Client, Worker or Task. The set of implementations is closed.
type Entity interface {
	// Kind returns the collection the entity belongs to.
	Kind() Kind
	// InternalID returns the store-assigned identity, empty before first insert.
	InternalID() string
	// DomainID returns the ClientID, WorkerID or TaskID.
	DomainID() string
	// Get returns the typed value of a canonical field.
	Get(field string) (any, bool)
	// Set assigns an already-coerced value to a canonical field.
	Set(field string, value any) error
	// Clone returns a deep copy.
	Clone() Entity

	isEntity()
}

// Client is a party requesting tasks.
type Client struct {
	ID               string   `json:"id"`
	ClientID         string   `json:"ClientID"`
	ClientName       string   `json:"ClientName,omitempty"`
	ClientGroup      string   `json:"ClientGroup,omitempty"`
	PriorityLevel    *int     `json:"PriorityLevel,omitempty"`
	RequestedTaskIDs []string `json:"RequestedTaskIDs,omitempty"`
	AttributesJSON   string   `json:"AttributesJSON,omitempty"`
}

// Worker is a resource that can be allocated to tasks.
type Worker struct {
	ID              string   `json:"id"`
	WorkerID        string   `json:"WorkerID"`
	WorkerName      string   `json:"WorkerName,omitempty"`
	WorkerGroup     string   `json:"WorkerGroup,omitempty"`
	Skills          []string `json:"Skills,omitempty"`
	AvailableSlots  []string `json:"AvailableSlots,omitempty"`
	MaxLoadPerPhase *int     `json:"MaxLoadPerPhase,omitempty"`
	MaxConcurrent   *int     `json:"MaxConcurrent,omitempty"`
}

// Task is a unit of work to be allocated.
type Task struct {
	ID              string   `json:"id"`
	TaskID          string   `json:"TaskID"`
	TaskName        string   `json:"TaskName,omitempty"`
	Category        string   `json:"Category,omitempty"`
	RequiredSkills  []string `json:"RequiredSkills,omitempty"`
	PreferredPhases []string `json:"PreferredPhases,omitempty"`
	Duration        *int     `json:"Duration,omitempty"`
	CoRunTaskIDs    []string `json:"CoRunTaskIDs,omitempty"`
}

func (*Client) isEntity() {}
func (*Worker) isEntity() {}
func (*Task) isEntity()   {}

// Kind implements Entity.
func (*Client) Kind() Kind { return KindClients }

// Kind implements Entity.
func (*Worker) Kind() Kind { return KindWorkers }

// Kind implements Entity.
func (*Task) Kind() Kind { return KindTasks }

// InternalID implements Entity.
func (c *Client) InternalID() string { return c.ID }

// InternalID implements Entity.
func (w *Worker) InternalID() string { return w.ID }

// InternalID implements Entity.
func (t *Task) InternalID() string { return t.ID }

// DomainID implements Entity.
func (c *Client) DomainID() string { return c.ClientID }

// DomainID implements Entity.
func (w *Worker) DomainID() string { return w.WorkerID }

// DomainID implements Entity.
func (t *Task) DomainID() string { return t.TaskID }

// Get implements Entity.
func (c *Client) Get(field string) (any, bool) {
	switch field {
	case FieldClientID:
		return c.ClientID, true
	case FieldClientName:
		return c.ClientName, true
	case FieldClientGroup:
		return c.ClientGroup, true
	case FieldPriorityLevel:
		return c.PriorityLevel, true
	case FieldRequestedTaskIDs:
		return c.RequestedTaskIDs, true
	case FieldAttributesJSON:
		return c.AttributesJSON, true
	default:
		return nil, false
	}
}

// Set implements Entity.
func (c *Client) Set(field string, value any) error {
	switch field {
	case FieldClientID:
		return assign(&c.ClientID, field, value)
	case FieldClientName:
		return assign(&c.ClientName, field, value)
	case FieldClientGroup:
		return assign(&c.ClientGroup, field, value)
	case FieldPriorityLevel:
		return assign(&c.PriorityLevel, field, value)
	case FieldRequestedTaskIDs:
		return assign(&c.RequestedTaskIDs, field, value)
	case FieldAttributesJSON:
		return assign(&c.AttributesJSON, field, value)
	default:
		return unknownField(KindClients, field)
	}
}

// Clone implements Entity.
func (c *Client) Clone() Entity {
	cp := *c
	cp.PriorityLevel = cloneInt(c.PriorityLevel)
	cp.RequestedTaskIDs = slices.Clone(c.RequestedTaskIDs)

	return &cp
}

// Get implements Entity.
func (w *Worker) Get(field string) (any, bool) {
	switch field {
	case FieldWorkerID:
		return w.WorkerID, true
	case FieldWorkerName:
		return w.WorkerName, true
	case FieldWorkerGroup:
		return w.WorkerGroup, true
	case FieldSkills:
		return w.Skills, true
	case FieldAvailableSlots:
		return w.AvailableSlots, true
	case FieldMaxLoadPerPhase:
		return w.MaxLoadPerPhase, true
	case FieldMaxConcurrent:
		return w.MaxConcurrent, true
	default:
		return nil, false
	}
}

// Set implements Entity.
func (w *Worker) Set(field string, value any) error {
	switch field {
	case FieldWorkerID:
		return assign(&w.WorkerID, field, value)
	case FieldWorkerName:
		return assign(&w.WorkerName, field, value)
	case FieldWorkerGroup:
		return assign(&w.WorkerGroup, field, value)
	case FieldSkills:
		return assign(&w.Skills, field, value)
	case FieldAvailableSlots:
		return assign(&w.AvailableSlots, field, value)
	case FieldMaxLoadPerPhase:
		return assign(&w.MaxLoadPerPhase, field, value)
	case FieldMaxConcurrent:
		return assign(&w.MaxConcurrent, field, value)
	default:
		return unknownField(KindWorkers, field)
	}
}

// Clone implements Entity.
func (w *Worker) Clone() Entity {
	cp := *w
	cp.Skills = slices.Clone(w.Skills)
	cp.AvailableSlots = slices.Clone(w.AvailableSlots)
	cp.MaxLoadPerPhase = cloneInt(w.MaxLoadPerPhase)
	cp.MaxConcurrent = cloneInt(w.MaxConcurrent)

	return &cp
}

// Get implements Entity.
func (t *Task) Get(field string) (any, bool) {
	switch field {
	case FieldTaskID:
		return t.TaskID, true
	case FieldTaskName:
		return t.TaskName, true
	case FieldCategory:
		return t.Category, true
	case FieldRequiredSkills:
		return t.RequiredSkills, true
	case FieldPreferredPhases:
		return t.PreferredPhases, true
	case FieldDuration:
		return t.Duration, true
	case FieldCoRunTaskIDs:
		return t.CoRunTaskIDs, true
	default:
		return nil, false
	}
}

// Set implements Entity.
func (t *Task) Set(field string, value any) error {
	switch field {
	case FieldTaskID:
		return assign(&t.TaskID, field, value)
	case FieldTaskName:
		return assign(&t.TaskName, field, value)
	case FieldCategory:
		return assign(&t.Category, field, value)
	case FieldRequiredSkills:
		return assign(&t.RequiredSkills, field, value)
	case FieldPreferredPhases:
		return assign(&t.PreferredPhases, field, value)
	case FieldDuration:
		return assign(&t.Duration, field, value)
	case FieldCoRunTaskIDs:
		return assign(&t.CoRunTaskIDs, field, value)
	default:
		return unknownField(KindTasks, field)
	}
}

// Clone implements Entity.
func (t *Task) Clone() Entity {
	cp := *t
	cp.RequiredSkills = slices.Clone(t.RequiredSkills)
	cp.PreferredPhases = slices.Clone(t.PreferredPhases)
	cp.Duration = cloneInt(t.Duration)
	cp.CoRunTaskIDs = slices.Clone(t.CoRunTaskIDs)

	return &cp
}

// New returns an empty entity of the given kind.
func New(k Kind) (Entity, error) {
	switch k {
	case KindClients:
		return &Client{}, nil
	case KindWorkers:
		return &Worker{}, nil
	case KindTasks:
		return &Task{}, nil
	default:
		return nil, fmt.Errorf("invalid entity kind %d", int(k))
	}
}

// AssignID sets the internal identity if it has not been assigned yet.
// It reports whether the id was written.
func AssignID(e Entity, id string) bool {
	if e.InternalID() != "" {
		return false
	}

	switch v := e.(type) {
	case *Client:
		v.ID = id
	case *Worker:
		v.ID = id
	case *Task:
		v.ID = id
	}

	return true
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

func assign[T any](dst *T, field string, value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("field %s: cannot assign %T", field, value)
	}

	*dst = v

	return nil
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}

func unknownField(k Kind, field string) error {
	return fmt.Errorf("%s has no field %q", k, field)
}
