// Package engine implements the sync orchestrator.
//
// The engine is a single-writer loop: one goroutine fetches candidates,
// sorts them oldest first and walks them one at a time. For each item it
// checks the ledger, resolves threading, transforms the content, transfers
// media, publishes, then records and saves the ledger before moving on.
//
// Key principles:
//   - Ledger first: a SyncRecord is persisted before the next item starts,
//     so an interrupted run never republishes what it already published.
//   - Publish is not idempotent at the destination, so it is retried only
//     for errors marked Transient (the request never reached the server).
//   - Media steps are retried with bounded exponential backoff.
//   - After DefaultBreakerThreshold consecutive publish failures a circuit
//     breaker stops publishing for the rest of the run.
//   - Persistence and invariant failures abort the run; per-item publish
//     failures do not.
//
// Collaborators are interfaces (Source, Destination, LedgerStore) so tests
// run the real engine against fakes from internal/testutil.
package engine
