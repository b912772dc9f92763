package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
	"alloc-validator/internal/persist"
	"alloc-validator/internal/rules"
	"alloc-validator/internal/schema"
	"alloc-validator/internal/translate"
)

type ruleTranslator struct {
	candidate translate.RuleCandidate
	err       error
}

func (f ruleTranslator) TranslateRule(context.Context, string) (translate.RuleCandidate, error) {
	return f.candidate, f.err
}

type editTranslator struct {
	edit translate.Edit
	err  error
	seen *entity.Collections
}

func (f editTranslator) TranslateEdit(_ context.Context, _ string, snap entity.Collections) (translate.Edit, error) {
	if f.seen != nil {
		*f.seen = snap
	}

	return f.edit, f.err
}

type sanitizer func(kind entity.Kind, id, field, raw string) (string, error)

func (f sanitizer) ValidateSuggestion(_ context.Context, kind entity.Kind, id, field, raw string) (string, error) {
	return f(kind, id, field, raw)
}

func seed(t *testing.T, w *Workspace) {
	t.Helper()

	ctx := context.Background()

	_, err := w.Import(ctx, entity.KindTasks, []schema.Row{
		{"Task ID": "T1", "Required Skills": "Go"},
		{"Task ID": "T2", "Required Skills": "Rust", "Duration": "2"},
	})
	require.NoError(t, err)

	_, err = w.Import(ctx, entity.KindWorkers, []schema.Row{
		{"WorkerID": "W1", "Skills": "Go, SQL", "AvailableSlots": "1, x2, 3"},
	})
	require.NoError(t, err)

	_, err = w.Import(ctx, entity.KindClients, []schema.Row{
		{"ClientID": "C1", "PriorityLevel": 3, "RequestedTaskIDs": "T1,T2"},
	})
	require.NoError(t, err)
}

func TestImport_RevalidatesOnEveryMutation(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	var reports []diagnostic.Report
	w.OnReport(func(r diagnostic.Report) { reports = append(reports, r) })

	seed(t, w)

	require.Len(t, reports, 3)

	r := w.Report()
	assert.Equal(t, reports[2], r)

	errs := r.Errors
	require.Len(t, errs, 3, spew.Sdump(r))
	assert.Equal(t, "AvailableSlots", errs[0].Field)
	assert.Equal(t, "RequiredSkills", errs[1].Field)
	assert.Equal(t, diagnostic.GlobalID, errs[2].ID)
}

func TestImport_Diagnostics(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	diags, err := w.Import(context.Background(), entity.KindClients, []schema.Row{
		{"ClientID": "C1", "Favourite Colour": "red"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, diags.Warnings)
	assert.Equal(t, schema.CodeUnmappedHeader, diags.Warnings[0].Code)
	assert.Equal(t, 1, w.Store().Len(entity.KindClients))
}

func TestAcceptSuggestion_ClearsError(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	seed(t, w)

	slotErr := w.Report().Errors[0]
	require.Equal(t, "1, 2, 3", slotErr.Suggestion)

	_, err := w.AcceptSuggestion(context.Background(), slotErr)
	require.NoError(t, err)

	assert.Empty(t, w.Report().For(entity.KindWorkers, "W1"))
}

func TestApplyFix_LookupFailureKeepsReport(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	seed(t, w)
	before := w.Report()

	_, err := w.ApplyFix(context.Background(), entity.KindWorkers, "W404", "Skills", "Rust")
	assert.Error(t, err)
	assert.Equal(t, before, w.Report())

	_, err = w.ApplyFix(context.Background(), entity.KindWorkers, "W1", "Skills", "Go, Rust")
	require.NoError(t, err)
	assert.Len(t, w.Report().Errors, 1)
}

func TestApplySanitizedSuggestion(t *testing.T) {
	var got []string

	w := New(persist.NewMemory(), WithSuggestionValidator(sanitizer(func(kind entity.Kind, id, field, raw string) (string, error) {
		got = append(got, kind.String(), id, field, raw)
		return "4, 5", nil
	})))
	defer w.Close()

	seed(t, w)

	e, err := w.ApplySanitizedSuggestion(context.Background(), entity.KindWorkers, "W1", "AvailableSlots", "4 and 5")
	require.NoError(t, err)
	assert.Equal(t, []string{"workers", "W1", "AvailableSlots", "4 and 5"}, got)
	assert.Equal(t, []string{"4", "5"}, e.(*entity.Worker).AvailableSlots)
}

func TestApplySanitizedSuggestion_Failure(t *testing.T) {
	w := New(persist.NewMemory(), WithSuggestionValidator(sanitizer(func(entity.Kind, string, string, string) (string, error) {
		return "", errors.New("nonsense")
	})))
	defer w.Close()

	seed(t, w)
	before := w.Store().Snapshot()

	_, err := w.ApplySanitizedSuggestion(context.Background(), entity.KindWorkers, "W1", "AvailableSlots", "??")

	var f *translate.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, translate.OpSuggestion, f.Op)
	assert.Equal(t, before, w.Store().Snapshot())
}

func TestApplySanitizedSuggestion_NotConfigured(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	_, err := w.ApplySanitizedSuggestion(context.Background(), entity.KindWorkers, "W1", "Skills", "Go")
	assert.ErrorIs(t, err, ErrNoTranslator)
}

func TestRequestRule(t *testing.T) {
	tests := []struct {
		name   string
		tr     translate.RuleTranslator
		wantOK bool
	}{
		{
			name:   "accepted",
			tr:     ruleTranslator{candidate: translate.RuleCandidate{Type: "co-run", Params: &translate.Params{TaskIDs: []string{"T1", "T2"}}}},
			wantOK: true,
		},
		{
			name: "missing params",
			tr:   ruleTranslator{candidate: translate.RuleCandidate{Type: "CO_RUN"}},
		},
		{
			name: "collaborator error",
			tr:   ruleTranslator{err: errors.New("timeout")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(persist.NewMemory(), WithRuleTranslator(tt.tr))
			defer w.Close()

			res := <-w.RequestRule(context.Background(), "run T1 with T2")

			if !tt.wantOK {
				var f *translate.Failure
				require.ErrorAs(t, res.Err, &f)
				assert.Empty(t, w.Rules().List())

				return
			}

			require.NoError(t, res.Err)
			assert.Equal(t, rules.CoRun, res.Value.Type)
			assert.Equal(t, []rules.Rule{res.Value}, w.Rules().List())
		})
	}
}

func TestRequestRule_NotConfigured(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	res := <-w.RequestRule(context.Background(), "x")
	assert.ErrorIs(t, res.Err, ErrNoTranslator)
}

func TestRequestEdit(t *testing.T) {
	var seen entity.Collections

	w := New(persist.NewMemory(), WithEditTranslator(editTranslator{
		edit: translate.Edit{EntityType: entity.KindWorkers, ID: "W1", Field: "Skills", Value: "Go, Rust"},
		seen: &seen,
	}))
	defer w.Close()

	seed(t, w)

	res := <-w.RequestEdit(context.Background(), "give W1 rust")
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Go", "Rust"}, res.Value.(*entity.Worker).Skills)

	assert.Len(t, seen.Workers, 1)
	assert.Empty(t, w.Report().For(entity.KindTasks, "T2"))
}

func TestRequestEdit_Malformed(t *testing.T) {
	w := New(persist.NewMemory(), WithEditTranslator(editTranslator{
		edit: translate.Edit{EntityType: entity.KindWorkers, Field: "Skills"},
	}))
	defer w.Close()

	seed(t, w)
	before := w.Store().Snapshot()

	res := <-w.RequestEdit(context.Background(), "do something")

	var f *translate.Failure
	require.ErrorAs(t, res.Err, &f)
	assert.Equal(t, before, w.Store().Snapshot())
}

func TestRequestEdit_MissingEntityTypeEditsNothing(t *testing.T) {
	w := New(persist.NewMemory(), WithEditTranslator(editTranslator{
		edit: translate.Edit{ID: "C1", Field: "PriorityLevel", Value: 5},
	}))
	defer w.Close()

	seed(t, w)
	before := w.Store().Snapshot()

	res := <-w.RequestEdit(context.Background(), "raise C1")

	var f *translate.Failure
	require.ErrorAs(t, res.Err, &f)
	assert.Equal(t, "missing entityType", f.Reason)
	assert.Equal(t, before, w.Store().Snapshot())
}

func TestLoad_FileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()

	backend, err := persist.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	w := New(backend)
	seed(t, w)

	_, err = w.Rules().Add(ctx, rules.Exclusion, rules.Params{TaskIDs: []string{"T1", "T2"}})
	require.NoError(t, err)
	_, err = w.Weights().ApplyPreset(ctx, "fulfill-max")
	require.NoError(t, err)

	want := w.Report()
	w.Close()

	reopened := New(backend)
	defer reopened.Close()

	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, w.Store().Snapshot(), reopened.Store().Snapshot())
	assert.Equal(t, want, reopened.Report())
	assert.Len(t, reopened.Rules().List(), 1)
	assert.Equal(t, 80, reopened.Weights().Get().Fulfill)
}

func TestOnReport_Unsubscribe(t *testing.T) {
	w := New(persist.NewMemory())
	defer w.Close()

	calls := 0
	stop := w.OnReport(func(diagnostic.Report) { calls++ })

	w.Revalidate()
	stop()
	w.Revalidate()

	assert.Equal(t, 1, calls)
}
