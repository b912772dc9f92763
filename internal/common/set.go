package common

// UnknownStr is returned by String methods for out-of-range enum values.
const UnknownStr = "unknown"

// OrderedSet is a string set that remembers first-insertion order.
// The zero value is ready to use.
type OrderedSet struct {
	index map[string]struct{}
	items []string
}

// Add inserts s and reports whether it was not already present.
func (o *OrderedSet) Add(s string) bool {
	if o.index == nil {
		o.index = make(map[string]struct{})
	}

	if _, ok := o.index[s]; ok {
		return false
	}

	o.index[s] = struct{}{}
	o.items = append(o.items, s)

	return true
}

// Has reports whether s is in the set.
func (o *OrderedSet) Has(s string) bool {
	_, ok := o.index[s]
	return ok
}

// Len returns the number of distinct items.
func (o *OrderedSet) Len() int {
	return len(o.items)
}

// Items returns the items in insertion order. The slice must not be modified.
func (o *OrderedSet) Items() []string {
	return o.items
}
