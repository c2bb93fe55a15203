// Package ledger records collection runs and the manifest rows they produced
// in a SQLite database under the state directory.
//
// The history and show commands read it, and submit uses it to find the
// directory of a study's last successful run.
package ledger
