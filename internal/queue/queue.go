// Package queue implements the pending-transaction queue that batches
// per-keystroke attribute edits for the workspace editor.
//
// Every edit appends (or overwrites) a pending transaction keyed by
// (document, attribute). At flush time the queue is coalesced: at most one
// effective transaction per attribute per document survives (last write
// wins), plus a synthetic lastUpdated transaction stamped with the flush
// time. The whole queue is serialized as one ordered-map payload and sent
// to the server in a single request.
package queue

import (
	"fmt"
	"time"

	"github.com/studlancer/studlancer/internal/schema"
)

// Transaction is one pending attribute mutation for a document.
type Transaction struct {
	DocID     string           `json:"id"`
	Attribute schema.Attribute `json:"attribute"`
	Value     Value            `json:"value"`
}

// Queue is an ordered map from document id to the ordered list of pending
// transactions awaiting flush. Document order is insertion order; it is
// preserved through serialization.
//
// Queue is not safe for concurrent use. The editor session serializes all
// access (edits and the flush routine run on one logical writer).
type Queue struct {
	order []string
	byDoc map[string][]Transaction
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{byDoc: make(map[string][]Transaction)}
}

// Add records a pending transaction. If a transaction for the same
// (document, attribute) pair is already pending its value is overwritten in
// place; otherwise the transaction is appended.
func (q *Queue) Add(tx Transaction) {
	txs, ok := q.byDoc[tx.DocID]
	if !ok {
		q.order = append(q.order, tx.DocID)
		q.byDoc[tx.DocID] = []Transaction{tx}
		return
	}
	for i := range txs {
		if txs[i].Attribute == tx.Attribute {
			txs[i].Value = tx.Value
			return
		}
	}
	q.byDoc[tx.DocID] = append(txs, tx)
}

// Documents returns the document ids in insertion order.
func (q *Queue) Documents() []string {
	ids := make([]string, len(q.order))
	copy(ids, q.order)
	return ids
}

// Transactions returns the pending transactions for a document, in order.
func (q *Queue) Transactions(docID string) []Transaction {
	txs := q.byDoc[docID]
	cp := make([]Transaction, len(txs))
	copy(cp, txs)
	return cp
}

// Len returns the number of documents with pending transactions.
func (q *Queue) Len() int {
	return len(q.order)
}

// Empty reports whether nothing is pending.
func (q *Queue) Empty() bool {
	return len(q.order) == 0
}

// Snapshot returns a deep copy of the queue. The flush works on a snapshot
// so in-flight state visible to the editor is never mutated.
func (q *Queue) Snapshot() *Queue {
	cp := New()
	cp.order = make([]string, len(q.order))
	copy(cp.order, q.order)
	for id, txs := range q.byDoc {
		dup := make([]Transaction, len(txs))
		copy(dup, txs)
		cp.byDoc[id] = dup
	}
	return cp
}

// Clear drops every pending transaction for every document. Called after a
// successful flush: the design flushes the whole queue as one unit.
func (q *Queue) Clear() {
	q.order = nil
	q.byDoc = make(map[string][]Transaction)
}

// Merge folds the triggering transaction into the queue (last write wins
// within the flush window) and stamps a synthetic lastUpdated transaction,
// valued at now, at the end of every document's list.
func (q *Queue) Merge(trigger Transaction, now time.Time) {
	q.Add(trigger)
	stamp := Transaction{
		Attribute: schema.AttrLastUpdated,
		Value:     String(now.Format(time.RFC3339Nano)),
	}
	for _, id := range q.order {
		txs := q.byDoc[id]
		// Drop any earlier stamp so the flush timestamp always lands last.
		kept := txs[:0]
		for _, tx := range txs {
			if tx.Attribute != schema.AttrLastUpdated {
				kept = append(kept, tx)
			}
		}
		stamp.DocID = id
		q.byDoc[id] = append(kept, stamp)
	}
}

// Apply mutates doc according to tx. The synthetic lastUpdated transaction
// parses its RFC3339 string value; numeric attributes truncate to int.
func Apply(doc *schema.Document, tx Transaction) error {
	switch tx.Attribute {
	case schema.AttrTitle:
		doc.Title = tx.Value.Str()
	case schema.AttrTopic:
		doc.Topic = tx.Value.Str()
	case schema.AttrSubtopic:
		doc.Subtopic = tx.Value.Str()
	case schema.AttrContent:
		doc.Content = tx.Value.Str()
	case schema.AttrReward:
		doc.Reward = tx.Value.AsInt()
	case schema.AttrSlots:
		doc.Slots = tx.Value.AsInt()
	case schema.AttrDeadline:
		t, err := time.Parse(time.RFC3339Nano, tx.Value.Str())
		if err != nil {
			return fmt.Errorf("failed to parse deadline value: %w", err)
		}
		doc.Deadline = &t
	case schema.AttrLastUpdated:
		t, err := time.Parse(time.RFC3339Nano, tx.Value.Str())
		if err != nil {
			return fmt.Errorf("failed to parse lastUpdated value: %w", err)
		}
		doc.LastUpdated = t
	default:
		return fmt.Errorf("unknown attribute %q", tx.Attribute)
	}
	return nil
}
