// Package harness runs sync scenarios against the real engine.
//
// A scenario describes what the source timeline contains, what the ledger
// already knows and how the destination misbehaves. The harness runs the
// engine over it one or more times with fake platforms, a fixed clock and
// fixed run ids, then checks assertions and compares the trace with a
// golden file.
//
// # Scenario Format
//
//	name: reply_chain
//	description: "Self-replies thread under their parent"
//	options:
//	  runs: 2
//	  media_strategy: text-placeholder
//	existing:
//	  synced:
//	    - { source: old, destination: d0 }
//	items:
//	  - { id: a, text: "Thread start", minutes_ago: 30 }
//	  - { id: b, text: "Part two", minutes_ago: 20, parent: a }
//	filtered:
//	  - { id: r1, reason: repost }
//	destination:
//	  publish: [transient, ok]
//	assertions:
//	  - { type: synced, source: b, destination: d2 }
//	  - { type: reply_to, source: b, parent: a }
//
// Item ids are record keys under the account's own DID unless they are full
// AT-URIs. The destination scripts are consumed one entry per call:
// ok, transient, rejected or failed.
//
// # Assertion Types
//
//   - synced: the ledger maps source to a destination id
//   - skipped: the ledger skipped source, optionally with reason
//   - unsynced: the ledger has no record of source
//   - outcome: the last result for source has the given outcome
//   - reply_to: source was published as a reply to parent's status
//   - publish_count: the destination accepted exactly count statuses
//   - publish_order: the sources were published in this order
//
// # Golden Files
//
// RunWithGolden writes the trace as indented JSON to
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
