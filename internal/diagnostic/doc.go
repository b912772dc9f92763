// Package diagnostic provides the engine's structured findings.
//
// Key types:
//   - ValidationError: one data-integrity finding about an entity, with an
//     optional remediation suggestion
//   - Report: the ordered output of one validation pass
//   - Diagnostics: coded errors, warnings and infos raised while importing
//     rows or loading configuration
package diagnostic
