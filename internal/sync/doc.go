// Package sync implements the optimistic-editing and synchronization core
// for the Studlancer workspace editor.
//
// The editor keeps a local-first copy of every draft the user works on and
// reconciles it against the server copy via version stamps:
//
//  1. On load, the version ledger decides the source of truth. A document
//     whose local timestamp lags the last known server timestamp (or has no
//     ledger entry at all) is stale and is refetched; otherwise the local
//     store is read without a network call.
//  2. Every edit records a pending transaction in the queue and arms the
//     debouncer. Repeated edits within the quiescence window reset the
//     timer; only the trailing call flushes, built from the cumulative
//     queue, so coalescing saves round-trips without losing edits.
//  3. The flush coalesces the queue to one transaction per attribute per
//     document, appends a synthetic lastUpdated stamp, commits the result
//     to the local store optimistically, advances the ledger to
//     {server: now, local: now}, and sends the serialized queue to the
//     server as a single request.
//
// If the server rejects the batch (document already published, wrong owner)
// or the request fails in transport, the optimistic local commit is rolled
// back from pre-images captured before the apply. The pending queue is
// still cleared: a rejected batch would be rejected again verbatim, so
// retrying it automatically would loop forever.
//
// Known limitation: there is no cross-device conflict resolution. Two
// sessions editing the same document race last-write-wins at the server.
//
// Example:
//
//	session := sync.NewSession(localStore, ledger, remote, nil)
//	defer session.Close(ctx)
//
//	doc, err := session.Load(ctx, "q1")
//	if err != nil {
//	    return err
//	}
//	session.Edit("q1", schema.AttrTitle, queue.String("Fix my proofs"))
package sync
