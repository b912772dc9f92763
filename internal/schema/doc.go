// Package schema maps arbitrary input rows onto canonical entity fields.
//
// Headers are matched against each kind's field table (see entity.Fields)
// by normalized name and alias first, then by Levenshtein similarity,
// accepted only on a confident, unambiguous match. Values are coerced by
// the field's type:
//   - text: trimmed string
//   - int: parsed integer; unparseable input becomes 0, or an error in strict mode
//   - list: comma-separated text or a sequence, items trimmed, empties dropped
//   - json: raw text; decoded objects are re-encoded as JSON text
//
// The same Coercer backs imports, persistence decoding and field edits, so
// the three paths cannot disagree about what a value means.
package schema
