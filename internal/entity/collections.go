package entity

// Collections is a point-in-time view of the three collections in store order.
type Collections struct {
	Clients []*Client `json:"clients"`
	Workers []*Worker `json:"workers"`
	Tasks   []*Task   `json:"tasks"`
}

// Len returns the number of entities of kind k.
func (c Collections) Len(k Kind) int {
	switch k {
	case KindClients:
		return len(c.Clients)
	case KindWorkers:
		return len(c.Workers)
	case KindTasks:
		return len(c.Tasks)
	default:
		return 0
	}
}

// Of returns the entities of kind k as the Entity interface, in store order.
func (c Collections) Of(k Kind) []Entity {
	var out []Entity

	switch k {
	case KindClients:
		for _, v := range c.Clients {
			out = append(out, v)
		}
	case KindWorkers:
		for _, v := range c.Workers {
			out = append(out, v)
		}
	case KindTasks:
		for _, v := range c.Tasks {
			out = append(out, v)
		}
	}

	return out
}

// Add appends e to its collection.
func (c *Collections) Add(e Entity) {
	switch v := e.(type) {
	case *Client:
		c.Clients = append(c.Clients, v)
	case *Worker:
		c.Workers = append(c.Workers, v)
	case *Task:
		c.Tasks = append(c.Tasks, v)
	}
}

// Clone deep-copies every entity.
func (c Collections) Clone() Collections {
	var out Collections

	for _, k := range Kinds {
		for _, e := range c.Of(k) {
			out.Add(e.Clone())
		}
	}

	return out
}
