// Package submission assembles the PRIDE submission manifest.
//
// An Accumulator owns the file-mapping and sample-metadata tables of one run
// and allocates 1-based file ids in discovery order. An Aggregator folds each
// study unit into the project-level ProjectMetadata record, enforcing the
// protocol length rules and de-duplicating list fields. Compose and WriteFile
// serialize both into the tab-delimited submission.px document.
package submission
