package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alloc-validator/internal/persist"
	"alloc-validator/internal/translate"
)

type brokenBackend struct {
	*persist.Memory
}

func (brokenBackend) ReplaceAll(context.Context, string, []persist.Item) error {
	return &persist.Error{Op: "replace", Collection: persist.CollectionRules, Err: errors.New("disk full")}
}

func newRegistry(backend persist.Backend) *Registry {
	n := 0

	return New(backend, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("rule-%d", n)
	}))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"CO_RUN", CoRun, true},
		{"co-run", CoRun, true},
		{" Co Run ", CoRun, true},
		{"corun", CoRun, true},
		{"exclusion", Exclusion, true},
		{"Sequential", Sequential, true},
		{"PARALLEL", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnknownType)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	backend := persist.NewMemory()
	r := newRegistry(backend)

	rule, err := r.Add(ctx, CoRun, Params{TaskIDs: []string{"T1", "T2"}})
	require.NoError(t, err)
	assert.Equal(t, "rule-1", rule.ID)
	assert.Equal(t, []Rule{rule}, r.List())

	require.NoError(t, r.Delete(ctx, rule.ID))
	assert.Empty(t, r.List())

	items, err := backend.GetAll(ctx, persist.CollectionRules)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRegistry_InsertionOrderAndUpdate(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(persist.NewMemory())

	a, err := r.Add(ctx, Sequential, Params{TaskIDs: []string{"T1", "T2"}})
	require.NoError(t, err)
	b, err := r.Add(ctx, Exclusion, Params{TaskIDs: []string{"T3", "T3"}})
	require.NoError(t, err)

	updated, err := r.UpdateParams(ctx, a.ID, Params{TaskIDs: []string{"T2", "T1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"T2", "T1"}, updated.Params.TaskIDs)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.Equal(t, []string{"T3", "T3"}, list[1].Params.TaskIDs)

	got, err := r.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, Exclusion, got.Type)
}

func TestRegistry_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(persist.NewMemory())

	params := Params{TaskIDs: []string{"T1"}}
	_, err := r.Add(ctx, CoRun, params)
	require.NoError(t, err)

	params.TaskIDs[0] = "changed"
	list := r.List()
	list[0].Params.TaskIDs[0] = "changed too"

	assert.Equal(t, []string{"T1"}, r.List()[0].Params.TaskIDs)
}

func TestRegistry_NotFound(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(persist.NewMemory())

	_, err := r.UpdateParams(ctx, "nope", Params{})
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "nope"), ErrRuleNotFound)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRegistry_AddRejectsUnknownType(t *testing.T) {
	r := newRegistry(persist.NewMemory())

	_, err := r.Add(context.Background(), Type("co-run"), Params{})
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Empty(t, r.List())
}

func TestRegistry_BackendFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()

	ok := newRegistry(mem)
	_, err := ok.Add(ctx, CoRun, Params{TaskIDs: []string{"T1"}})
	require.NoError(t, err)

	r := newRegistry(brokenBackend{Memory: mem})
	require.NoError(t, r.Load(ctx))
	require.Len(t, r.List(), 1)

	_, err = r.Add(ctx, Exclusion, Params{})
	assert.ErrorIs(t, err, persist.ErrPersistence)

	assert.ErrorIs(t, r.Delete(ctx, r.List()[0].ID), persist.ErrPersistence)

	_, err = r.UpdateParams(ctx, r.List()[0].ID, Params{TaskIDs: []string{"T9"}})
	assert.ErrorIs(t, err, persist.ErrPersistence)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, []string{"T1"}, list[0].Params.TaskIDs)
}

func TestRegistry_AcceptCandidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate translate.RuleCandidate
		reason    string
		want      Type
	}{
		{"canonical", translate.RuleCandidate{Type: "CO_RUN", Params: &translate.Params{TaskIDs: []string{"T1"}}}, "", CoRun},
		{"loose spelling", translate.RuleCandidate{Type: "co-run", Params: &translate.Params{}}, "", CoRun},
		{"missing params", translate.RuleCandidate{Type: "CO_RUN"}, "missing params", ""},
		{"missing type", translate.RuleCandidate{Params: &translate.Params{}}, "missing type", ""},
		{"unsupported type", translate.RuleCandidate{Type: "PINNED", Params: &translate.Params{}}, "unsupported type", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRegistry(persist.NewMemory())

			rule, err := r.AcceptCandidate(context.Background(), tt.candidate)
			if tt.reason != "" {
				var f *translate.Failure
				require.ErrorAs(t, err, &f)
				assert.Equal(t, tt.reason, f.Reason)
				assert.Empty(t, r.List())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Type)
			assert.Len(t, r.List(), 1)
		})
	}
}

func TestRegistry_LoadRoundTripFileBackend(t *testing.T) {
	ctx := context.Background()

	backend, err := persist.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	r := newRegistry(backend)
	_, err = r.Add(ctx, CoRun, Params{TaskIDs: []string{"T1", "T2"}})
	require.NoError(t, err)
	_, err = r.Add(ctx, Sequential, Params{})
	require.NoError(t, err)

	reloaded := New(backend)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, r.List(), reloaded.List())
}

func TestRegistry_LoadKeepsTaskIDsVerbatim(t *testing.T) {
	ctx := context.Background()
	ids := []string{"T1,T2", "", "T3"}

	mem := persist.NewMemory()
	files, err := persist.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	for name, backend := range map[string]persist.Backend{"memory": mem, "file": files} {
		t.Run(name, func(t *testing.T) {
			_, err := newRegistry(backend).Add(ctx, CoRun, Params{TaskIDs: ids})
			require.NoError(t, err)

			reloaded := New(backend)
			require.NoError(t, reloaded.Load(ctx))
			require.Len(t, reloaded.List(), 1)
			assert.Equal(t, ids, reloaded.List()[0].Params.TaskIDs)
		})
	}
}

func TestRegistry_LoadSplitsScalarTaskIDs(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()

	require.NoError(t, mem.ReplaceAll(ctx, persist.CollectionRules, []persist.Item{
		{ID: "r1", Fields: map[string]any{"type": "CO_RUN", "params": map[string]any{"taskIds": "T1, T2"}}},
	}))

	r := New(mem)
	require.NoError(t, r.Load(ctx))
	assert.Equal(t, []string{"T1", "T2"}, r.List()[0].Params.TaskIDs)
}

func TestRegistry_LoadRejectsBadDocument(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()

	require.NoError(t, mem.ReplaceAll(ctx, persist.CollectionRules, []persist.Item{
		{ID: "r1", Fields: map[string]any{"type": "PINNED"}},
	}))

	r := New(mem)
	assert.ErrorIs(t, r.Load(ctx), ErrUnknownType)
	assert.Empty(t, r.List())
}
