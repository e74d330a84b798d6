// Package history persists per-run probe reports in SQLite.
//
// Only run summaries are stored (counts, extrema, mean, median); raw
// duration samples never leave the process. The store prunes old rows by
// age and count so long-running daemons don't grow the database unbounded.
package history
