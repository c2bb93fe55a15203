// Package main hosts the pxsubmit CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the collection
// pipeline from it and renders run summaries, preflight reports and ledger
// history as tables, JSON or YAML. Subcommands stay thin: the study walk,
// file collection, manifest composition and upload all live in internal
// packages.
package main
