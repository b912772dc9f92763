package priority

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alloc-validator/internal/persist"
)

type readOnly struct {
	*persist.Memory
}

func (readOnly) ReplaceAll(context.Context, string, []persist.Item) error {
	return &persist.Error{Op: "replace", Collection: persist.CollectionPriorities, Err: errors.New("read only")}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name string
		want Weights
	}{
		{"balanced", Weights{50, 30, 20}},
		{"fulfill-max", Weights{80, 10, 10}},
		{"workload-min", Weights{20, 70, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(persist.NewMemory())

			got, err := c.ApplyPreset(context.Background(), tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, c.Get())
		})
	}

	assert.Len(t, Presets(), 3)
}

func TestApplyPreset_Unknown(t *testing.T) {
	c := New(persist.NewMemory())

	_, err := c.ApplyPreset(context.Background(), "max-everything")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.Equal(t, Default, c.Get())
}

func TestSet_Range(t *testing.T) {
	tests := []struct {
		w  Weights
		ok bool
	}{
		{Weights{0, 0, 0}, true},
		{Weights{100, 100, 100}, true},
		{Weights{101, 0, 0}, false},
		{Weights{0, -1, 0}, false},
		{Weights{0, 0, 200}, false},
	}

	for _, tt := range tests {
		t.Run(tt.w.String(), func(t *testing.T) {
			c := New(persist.NewMemory())

			err := c.Set(context.Background(), tt.w)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.w, c.Get())
			} else {
				assert.ErrorIs(t, err, ErrOutOfRange)
				assert.Equal(t, Default, c.Get())
			}
		})
	}
}

func TestSet_BackendFailure(t *testing.T) {
	c := New(readOnly{Memory: persist.NewMemory()})

	err := c.Set(context.Background(), Weights{1, 2, 3})
	assert.ErrorIs(t, err, persist.ErrPersistence)
	assert.Equal(t, Default, c.Get())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	backend := persist.NewMemory()

	require.NoError(t, New(backend).Set(ctx, Weights{10, 20, 30}))

	c := New(backend)
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, Weights{10, 20, 30}, c.Get())
}

func TestLoad_Empty(t *testing.T) {
	c := New(persist.NewMemory())
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, Default, c.Get())
}

func TestLoad_Invalid(t *testing.T) {
	ctx := context.Background()
	backend := persist.NewMemory()

	require.NoError(t, backend.ReplaceAll(ctx, persist.CollectionPriorities, []persist.Item{
		{ID: DocumentID, Fields: map[string]any{"fulfill": "lots"}},
	}))

	c := New(backend)
	assert.Error(t, c.Load(ctx))
	assert.Equal(t, Default, c.Get())

	require.NoError(t, backend.ReplaceAll(ctx, persist.CollectionPriorities, []persist.Item{
		{ID: DocumentID, Fields: map[string]any{"fulfill": 500}},
	}))
	assert.ErrorIs(t, c.Load(ctx), ErrOutOfRange)
}

func TestLoad_FileBackend(t *testing.T) {
	ctx := context.Background()

	backend, err := persist.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	_, err = New(backend).ApplyPreset(ctx, "workload-min")
	require.NoError(t, err)

	c := New(backend)
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, Weights{20, 70, 10}, c.Get())
}
