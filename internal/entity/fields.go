package entity

// FieldType describes how a canonical field's raw value is coerced.
type FieldType int

const (
	// FieldText is free text, stored trimmed.
	FieldText FieldType = iota
	// FieldInt is an optional integer.
	FieldInt
	// FieldList is an ordered list of strings, accepted as comma-separated text.
	FieldList
	// FieldJSON is raw text that is expected, but not required, to parse as JSON.
	FieldJSON
)

// String returns a human-readable field type name.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldInt:
		return "int"
	case FieldList:
		return "list"
	case FieldJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Canonical field names.
const (
	FieldClientID         = "ClientID"
	FieldClientName       = "ClientName"
	FieldClientGroup      = "ClientGroup"
	FieldPriorityLevel    = "PriorityLevel"
	FieldRequestedTaskIDs = "RequestedTaskIDs"
	FieldAttributesJSON   = "AttributesJSON"

	FieldWorkerID        = "WorkerID"
	FieldWorkerName      = "WorkerName"
	FieldWorkerGroup     = "WorkerGroup"
	FieldSkills          = "Skills"
	FieldAvailableSlots  = "AvailableSlots"
	FieldMaxLoadPerPhase = "MaxLoadPerPhase"
	FieldMaxConcurrent   = "MaxConcurrent"

	FieldTaskID          = "TaskID"
	FieldTaskName        = "TaskName"
	FieldCategory        = "Category"
	FieldRequiredSkills  = "RequiredSkills"
	FieldPreferredPhases = "PreferredPhases"
	FieldDuration        = "Duration"
	FieldCoRunTaskIDs    = "CoRunTaskIDs"
)

// FieldSpec declares a canonical field of an entity kind.
type FieldSpec struct {
	Name string
	Type FieldType
	// Aliases are alternative header spellings recognised on import,
	// compared after header normalization.
	Aliases []string
}

var fieldTable = map[Kind][]FieldSpec{
	KindClients: {
		{Name: FieldClientID, Type: FieldText, Aliases: []string{"client", "clientcode"}},
		{Name: FieldClientName, Type: FieldText, Aliases: []string{"name"}},
		{Name: FieldClientGroup, Type: FieldText, Aliases: []string{"group", "groupid", "grouptag"}},
		{Name: FieldPriorityLevel, Type: FieldInt, Aliases: []string{"priority"}},
		{Name: FieldRequestedTaskIDs, Type: FieldList, Aliases: []string{"requestedtasks", "tasks", "taskids"}},
		{Name: FieldAttributesJSON, Type: FieldJSON, Aliases: []string{"attributes", "metadata"}},
	},
	KindWorkers: {
		{Name: FieldWorkerID, Type: FieldText, Aliases: []string{"worker", "workercode"}},
		{Name: FieldWorkerName, Type: FieldText, Aliases: []string{"name"}},
		{Name: FieldWorkerGroup, Type: FieldText, Aliases: []string{"group", "groupid", "grouptag"}},
		{Name: FieldSkills, Type: FieldList, Aliases: []string{"skill", "skillset"}},
		{Name: FieldAvailableSlots, Type: FieldList, Aliases: []string{"slots", "availablephases", "phases"}},
		{Name: FieldMaxLoadPerPhase, Type: FieldInt, Aliases: []string{"maxload", "loadperphase"}},
		{Name: FieldMaxConcurrent, Type: FieldInt, Aliases: []string{"concurrency", "maxparallel"}},
	},
	KindTasks: {
		{Name: FieldTaskID, Type: FieldText, Aliases: []string{"task", "taskcode"}},
		{Name: FieldTaskName, Type: FieldText, Aliases: []string{"name"}},
		{Name: FieldCategory, Type: FieldText, Aliases: []string{"type", "taskcategory"}},
		{Name: FieldRequiredSkills, Type: FieldList, Aliases: []string{"skills", "requiredskill"}},
		{Name: FieldPreferredPhases, Type: FieldList, Aliases: []string{"phases", "preferredphase"}},
		{Name: FieldDuration, Type: FieldInt, Aliases: []string{"length", "durationphases"}},
		{Name: FieldCoRunTaskIDs, Type: FieldList, Aliases: []string{"corun", "coruntasks", "corunwith"}},
	},
}

// Fields returns the canonical field table for a kind, in declaration order.
// The returned slice must not be modified.
func Fields(k Kind) []FieldSpec {
	return fieldTable[k]
}

// LookupField returns the FieldSpec of a canonical field by exact name.
func LookupField(k Kind, name string) (FieldSpec, bool) {
	for _, f := range fieldTable[k] {
		if f.Name == name {
			return f, true
		}
	}

	return FieldSpec{}, false
}
