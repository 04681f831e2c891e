// Package journal provides SQLite-backed history of sync runs.
//
// Every engine run writes one row to runs plus one row per handled item to
// run_items. The journal is an audit aid for the status command; the sync
// ledger, not the journal, decides what has been published.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Writes are idempotent: a run id that already exists is ignored
// (ON CONFLICT DO NOTHING), so a retried write never duplicates history.
package journal
