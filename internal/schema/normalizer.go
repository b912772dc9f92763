package schema

import (
	"fmt"
	"sort"

	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
	"alloc-validator/internal/match"
)

// Diagnostic codes emitted while mapping headers and decoding rows.
const (
	CodeFuzzyHeader     = "fuzzy_header"
	CodeAmbiguousHeader = "ambiguous_header"
	CodeUnmappedHeader  = "unmapped_header"
	CodeDuplicateHeader = "duplicate_header"
	CodeCoercionFailed  = "coercion_failed"
)

// suggestionFloor is the minimum similarity for a field to be offered as a
// "did you mean" suggestion on an unmapped header.
const suggestionFloor = 0.5

// Row is one input record keyed by its original headers.
type Row map[string]any

// HeaderMap maps original headers to canonical field names.
type HeaderMap map[string]string

// Normalizer maps headers and coerces values for one import.
type Normalizer struct {
	Coercer Coercer
}

// NewNormalizer creates a normalizer; strict controls numeric coercion.
func NewNormalizer(strict bool) *Normalizer {
	return &Normalizer{Coercer: Coercer{Strict: strict}}
}

// MapHeaders resolves each header to a canonical field of kind.
// Headers are processed in sorted order; when two headers resolve to the
// same field the first one wins and the other is reported.
func (n *Normalizer) MapHeaders(kind entity.Kind, headers []string) (HeaderMap, *diagnostic.Diagnostics) {
	diags := &diagnostic.Diagnostics{}
	mapping := HeaderMap{}
	claimed := map[string]string{}

	sorted := append([]string(nil), headers...)
	sort.Strings(sorted)

	subject := kind.String()

	for _, h := range sorted {
		field, ok := exactField(kind, h)
		if !ok {
			field, ok = n.fuzzyField(kind, h, diags)
		}

		if !ok {
			continue
		}

		if prev, taken := claimed[field]; taken {
			diags.AddWarning(CodeDuplicateHeader,
				fmt.Sprintf("header %q also maps to %s, already provided by %q; ignored", h, field, prev),
				subject, h)

			continue
		}

		claimed[field] = h
		mapping[h] = field
	}

	return mapping, diags
}

func exactField(kind entity.Kind, header string) (string, bool) {
	norm := match.NormalizeHeader(header)
	if norm == "" {
		return "", false
	}

	for _, f := range entity.Fields(kind) {
		if match.NormalizeHeader(f.Name) == norm {
			return f.Name, true
		}

		for _, alias := range f.Aliases {
			if match.NormalizeHeader(alias) == norm {
				return f.Name, true
			}
		}
	}

	return "", false
}

func (n *Normalizer) fuzzyField(kind entity.Kind, header string, diags *diagnostic.Diagnostics) (string, bool) {
	subject := kind.String()
	candidates := rankFields(kind, header)

	if best := candidates.HighConfidence(match.DefaultMinScore, match.DefaultMinGap); best != nil {
		diags.AddInfo(CodeFuzzyHeader,
			fmt.Sprintf("header %q mapped to %s (similarity %.2f)", header, best.Name, best.Score),
			subject, header)

		return best.Name, true
	}

	var suggestions []string

	for _, c := range candidates.Top(2) {
		if c.Score >= suggestionFloor {
			suggestions = append(suggestions, c.Name)
		}
	}

	if best := candidates.Best(); best != nil && best.Score >= match.DefaultMinScore &&
		candidates.IsAmbiguous(match.DefaultMinGap) {
		diags.AddWarning(CodeAmbiguousHeader,
			fmt.Sprintf("header %q matches several fields; ignored", header),
			subject, header, suggestions...)

		return "", false
	}

	diags.AddWarning(CodeUnmappedHeader,
		fmt.Sprintf("header %q does not match any %s field; ignored", header, subject),
		subject, header, suggestions...)

	return "", false
}

// rankFields scores each canonical field by the best similarity of its name
// or any of its aliases.
func rankFields(kind entity.Kind, header string) match.CandidateList {
	fields := entity.Fields(kind)
	list := make(match.CandidateList, 0, len(fields))

	for _, f := range fields {
		best := match.HeaderSimilarity(header, f.Name)
		for _, alias := range f.Aliases {
			best = max(best, match.HeaderSimilarity(header, alias))
		}

		list = append(list, match.Candidate{Name: f.Name, Score: best})
	}

	sort.Sort(list)

	return list
}

// Decode turns rows into entities of kind, in row order. Unmapped headers
// and coercion failures are reported; a failed field keeps its zero value.
func (n *Normalizer) Decode(kind entity.Kind, rows []Row) ([]entity.Entity, *diagnostic.Diagnostics) {
	headers := collectHeaders(rows)
	mapping, diags := n.MapHeaders(kind, headers)

	out := make([]entity.Entity, 0, len(rows))

	for i, row := range rows {
		e, err := entity.New(kind)
		if err != nil {
			diags.AddError(CodeCoercionFailed, err.Error(), kind.String(), "")
			return nil, diags
		}

		for _, h := range headers {
			raw, present := row[h]
			field, mapped := mapping[h]

			if !present || !mapped {
				continue
			}

			if err := n.setField(e, field, raw); err != nil {
				diags.AddError(CodeCoercionFailed, fmt.Sprintf("row %d: %v", i+1, err), kind.String(), field)
			}
		}

		out = append(out, e)
	}

	return out, diags
}

// FromFields rebuilds an entity from a persisted field document.
// Keys that are not canonical fields are ignored.
func (n *Normalizer) FromFields(kind entity.Kind, id string, fields map[string]any) (entity.Entity, error) {
	e, err := entity.New(kind)
	if err != nil {
		return nil, err
	}

	entity.AssignID(e, id)

	for _, f := range entity.Fields(kind) {
		raw, ok := fields[f.Name]
		if !ok {
			continue
		}

		if err := n.setField(e, f.Name, raw); err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, id, err)
		}
	}

	return e, nil
}

// SetField coerces raw and writes it to the named canonical field of e.
func (n *Normalizer) SetField(e entity.Entity, field string, raw any) error {
	return n.setField(e, field, raw)
}

func (n *Normalizer) setField(e entity.Entity, field string, raw any) error {
	spec, ok := entity.LookupField(e.Kind(), field)
	if !ok {
		return fmt.Errorf("%s has no field %q", e.Kind(), field)
	}

	v, err := n.Coercer.Coerce(spec, raw)
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}

	return e.Set(field, v)
}

// Encode renders every canonical field of e into a persistence document.
// Absent optional ints are encoded as nil so merges can clear them.
func Encode(e entity.Entity) map[string]any {
	fields := make(map[string]any, len(entity.Fields(e.Kind())))

	for _, f := range entity.Fields(e.Kind()) {
		v, _ := e.Get(f.Name)

		switch typed := v.(type) {
		case *int:
			if typed == nil {
				fields[f.Name] = nil
			} else {
				fields[f.Name] = *typed
			}
		case []string:
			fields[f.Name] = append([]string{}, typed...)
		default:
			fields[f.Name] = v
		}
	}

	return fields
}

func collectHeaders(rows []Row) []string {
	seen := map[string]struct{}{}

	var headers []string

	for _, row := range rows {
		for h := range row {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				headers = append(headers, h)
			}
		}
	}

	sort.Strings(headers)

	return headers
}
