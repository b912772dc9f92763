package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alloc-validator/internal/entity"
)

func TestDiagnostics_AddAndMerge(t *testing.T) {
	var d Diagnostics

	assert.False(t, d.HasErrors())
	require.NoError(t, d.Error())

	d.AddWarning("unmapped_header", "header ignored", "clients", "Foo", "ClientID")
	d.AddInfo("mapped_header", "mapped", "clients", "Client")

	other := &Diagnostics{}
	other.AddError("bad_level", "unknown log level", "log", "level")
	d.Merge(other)
	d.Merge(nil)

	assert.True(t, d.HasErrors())
	assert.Len(t, d.All(), 3)
	assert.Equal(t, SeverityError, d.All()[0].Severity)
	assert.EqualError(t, d.Error(), "[log] level: [bad_level] unknown log level")
}

func TestDiagnostic_String(t *testing.T) {
	tests := []struct {
		name     string
		diag     Diagnostic
		expected string
	}{
		{
			name:     "message only",
			diag:     Diagnostic{Message: "plain"},
			expected: "plain",
		},
		{
			name:     "with code and subject",
			diag:     Diagnostic{Code: "c", Message: "m", Subject: "workers", Field: "Skils"},
			expected: "[workers] Skils: [c] m",
		},
		{
			name:     "with suggestions",
			diag:     Diagnostic{Message: "m", Suggestions: []string{"Skills", "WorkerGroup"}},
			expected: "m (did you mean: Skills, WorkerGroup?)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.diag.String())
		})
	}
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "unknown", Severity(42).String())
}

func TestReport(t *testing.T) {
	r := Report{
		Errors: []ValidationError{
			{EntityType: entity.KindClients, ID: "C1", Field: "PriorityLevel", Message: "bad"},
			{EntityType: entity.KindWorkers, ID: "W1", Field: "AvailableSlots", Message: "nan", Suggestion: "1, 2"},
			{EntityType: entity.KindClients, ID: "C1", Field: "AttributesJSON", Message: "json"},
			{EntityType: entity.KindTasks, ID: GlobalID, Field: "Skill Coverage", Message: "uncovered"},
		},
		Suggestions: []string{"advice"},
	}

	assert.False(t, r.IsValid())
	assert.Len(t, r.For(entity.KindClients, "C1"), 2)
	assert.Empty(t, r.For(entity.KindClients, "C2"))
	assert.Equal(t, map[entity.Kind]int{entity.KindClients: 2, entity.KindWorkers: 1, entity.KindTasks: 1}, r.Count())
	assert.True(t, r.Errors[1].HasSuggestion())

	assert.Equal(t, `workers/W1 AvailableSlots: nan (suggestion: "1, 2")`, r.Errors[1].String())
	assert.Contains(t, r.String(), "note: advice")

	assert.Equal(t, "no issues found", Report{}.String())
	assert.Equal(t, "clients/? ClientID: missing", ValidationError{
		EntityType: entity.KindClients, Field: "ClientID", Message: "missing",
	}.String())
}
