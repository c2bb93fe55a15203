// Package preflight provides readiness checks for the external tools,
// directories and services a submission run depends on.
//
// These checks run in two contexts:
//   - The run and collect commands call RunAll before touching the study
//     directory. If any check fails, the run stops before downloading.
//   - The CLI "pxsubmit check" command renders every result as a table.
package preflight
