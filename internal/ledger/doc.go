// Package ledger records which source posts have been synced or skipped.
//
// The ledger is the single source of truth for idempotency. It is an
// append-only set of records keyed by source id:
//
//   - SyncRecord maps a source id to the destination id it was published as.
//   - SkipRecord records a source id that was deliberately not published.
//
// A source id has at most one record across both sets. A second record for
// the same id is an InvariantError; callers treat it as fatal because it means
// the ledger and the destination have diverged. Records are never pruned.
//
// A Ledger is a plain in-memory value with an explicit load/save boundary.
// FileStore persists it as a JSON snapshot using write-temp, fsync and
// rename so a crash mid-save leaves the previous snapshot intact.
package ledger
