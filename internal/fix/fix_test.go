package fix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
	"alloc-validator/internal/persist"
	"alloc-validator/internal/schema"
	"alloc-validator/internal/store"
	"alloc-validator/internal/translate"
	"alloc-validator/internal/validate"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()

	s := store.New(persist.NewMemory())
	ctx := context.Background()

	require.NoError(t, s.ReplaceAll(ctx, entity.KindWorkers, []entity.Entity{
		&entity.Worker{WorkerID: "W1", AvailableSlots: []string{"1", "x2", "3"}},
		&entity.Worker{WorkerID: "W1", MaxConcurrent: entity.IntPtr(4)},
	}))
	require.NoError(t, s.ReplaceAll(ctx, entity.KindClients, []entity.Entity{
		&entity.Client{ClientID: "C1", PriorityLevel: entity.IntPtr(7)},
	}))

	return s
}

func TestApply_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		kind  entity.Kind
		id    string
		field string
		value any
		check func(t *testing.T, e entity.Entity)
	}{
		{
			name: "list from comma text", kind: entity.KindWorkers, id: "W1", field: "AvailableSlots", value: " 1, ,2 ,3",
			check: func(t *testing.T, e entity.Entity) {
				assert.Equal(t, []string{"1", "2", "3"}, e.(*entity.Worker).AvailableSlots)
			},
		},
		{
			name: "number from text", kind: entity.KindClients, id: "C1", field: "PriorityLevel", value: "3",
			check: func(t *testing.T, e entity.Entity) {
				assert.Equal(t, entity.IntPtr(3), e.(*entity.Client).PriorityLevel)
			},
		},
		{
			name: "unparseable number falls back to zero", kind: entity.KindClients, id: "C1", field: "PriorityLevel", value: "high",
			check: func(t *testing.T, e entity.Entity) {
				assert.Equal(t, entity.IntPtr(0), e.(*entity.Client).PriorityLevel)
			},
		},
		{
			name: "text is trimmed", kind: entity.KindClients, id: "C1", field: "AttributesJSON", value: `  {"a":1} `,
			check: func(t *testing.T, e entity.Entity) {
				assert.Equal(t, `{"a":1}`, e.(*entity.Client).AttributesJSON)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			a := New(s)

			got, err := a.Apply(context.Background(), tt.kind, tt.id, tt.field, tt.value)
			require.NoError(t, err)
			tt.check(t, got)

			stored, err := s.Get(tt.kind, got.InternalID())
			require.NoError(t, err)
			tt.check(t, stored)
		})
	}
}

func TestApply_FirstOccurrenceOnly(t *testing.T) {
	s := newStore(t)

	_, err := New(s).Apply(context.Background(), entity.KindWorkers, "W1", "MaxConcurrent", 2)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Workers, 2)
	assert.Equal(t, entity.IntPtr(2), snap.Workers[0].MaxConcurrent)
	assert.Equal(t, entity.IntPtr(4), snap.Workers[1].MaxConcurrent)
}

func TestApply_StrictNormalizer(t *testing.T) {
	s := newStore(t)

	_, err := New(s, WithNormalizer(schema.NewNormalizer(true))).
		Apply(context.Background(), entity.KindClients, "C1", "PriorityLevel", "high")
	assert.ErrorIs(t, err, schema.ErrNotNumeric)

	c, err := s.Find(entity.KindClients, "C1")
	require.NoError(t, err)
	assert.Equal(t, entity.IntPtr(7), c.(*entity.Client).PriorityLevel)
}

func TestApply_LookupFailures(t *testing.T) {
	tests := []struct {
		name  string
		kind  entity.Kind
		id    string
		field string
	}{
		{"unknown id", entity.KindWorkers, "W9", "Skills"},
		{"unknown field", entity.KindWorkers, "W1", "Color"},
		{"field of another kind", entity.KindWorkers, "W1", "PriorityLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			before := s.Snapshot()

			_, err := New(s).Apply(context.Background(), tt.kind, tt.id, tt.field, "x")

			var le *LookupError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.id, le.ID)
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestApply_UnknownFieldHint(t *testing.T) {
	_, err := New(newStore(t)).Apply(context.Background(), entity.KindWorkers, "W1", "AvailableSlot", "1")
	assert.ErrorContains(t, err, "did you mean AvailableSlots?")
}

func TestApply_UnknownIDIsNotFound(t *testing.T) {
	_, err := New(newStore(t)).Apply(context.Background(), entity.KindTasks, "T1", "Duration", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAcceptSuggestion_ClearsFinding(t *testing.T) {
	s := newStore(t)
	a := New(s)

	report := validate.Validate(s.Snapshot())

	var slotErr diagnostic.ValidationError

	for _, e := range report.Errors {
		if e.Field == "AvailableSlots" {
			slotErr = e
		}
	}

	require.Equal(t, "1, 2, 3", slotErr.Suggestion)

	_, err := a.AcceptSuggestion(context.Background(), slotErr)
	require.NoError(t, err)

	for _, e := range validate.Validate(s.Snapshot()).Errors {
		assert.NotEqual(t, "AvailableSlots", e.Field)
	}
}

func TestAcceptSuggestion_WithoutSuggestion(t *testing.T) {
	_, err := New(newStore(t)).AcceptSuggestion(context.Background(), diagnostic.ValidationError{
		EntityType: entity.KindClients, ID: "C1", Field: "PriorityLevel", Message: "out of range",
	})
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestApplyEdit(t *testing.T) {
	s := newStore(t)
	a := New(s)

	got, err := a.ApplyEdit(context.Background(), translate.Edit{
		EntityType: entity.KindWorkers, ID: "W1", Field: "Skills", Value: []any{"Go", "SQL"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQL"}, got.(*entity.Worker).Skills)

	_, err = a.ApplyEdit(context.Background(), translate.Edit{EntityType: entity.KindWorkers, ID: "W1"})

	var f *translate.Failure
	assert.ErrorAs(t, err, &f)
}
