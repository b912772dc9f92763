// Package entity defines the three record kinds the engine validates:
// clients, workers and tasks.
//
// Records form a closed union behind the Entity interface. Each kind has a
// canonical field table (see Fields) that drives header mapping, coercion,
// persistence encoding and field-level edits, so every component addresses
// fields by the same canonical names (e.g. "PriorityLevel", "AvailableSlots").
//
// Every record carries two identities:
//   - ID: the internal identity assigned by the store, immutable, never reused
//   - the domain id (ClientID, WorkerID, TaskID): human-meaningful and
//     expected, but not enforced, to be unique within its collection
package entity
