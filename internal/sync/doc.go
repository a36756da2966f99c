// Package sync orchestrates the four sync modes of the connector.
//
// Every mode is assembled from the same primitives:
//
//   - extract.Pool walks the source and feeds a bounded hand-off queue
//   - writer.Pool drains the queue into batched upserts, and issues deletes
//   - state.Store holds per-type checkpoints and the id-set snapshot
//   - status.Persistence records a summary of every run
//
// # Modes
//
// Incremental sync covers [checkpoint, run start) per object type. Full sync
// covers the configured [startTime, endTime) window. Both advance the
// checkpoint of every attempted type to the end of the covered window once the
// run completes, even when pages or documents were lost along the way; a
// cancelled or fatally failed run leaves checkpoints untouched.
//
// Deletion sync re-enumerates every object type, diffs the result against the
// persisted snapshot and deletes what disappeared. Records past the source's
// retention window are archived rather than deleted and are skipped.
//
// Permission sync replaces every target user's permission list with the source
// ids mapped to that user in the identity table.
//
// # Outcomes
//
// A run ends as Succeeded, PartialFailure (some pages or items were lost),
// Failed (a run-fatal error, returned as *Error) or Cancelled.
package sync
