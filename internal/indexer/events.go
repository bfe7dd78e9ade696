// Package indexer holds the event payloads exchanged by the positional
// index rebuild over Kafka. The rebuild itself lives in the pipeline
// sub-package.
package indexer

import "time"

// RebuildRequest asks a watching indexer to rebuild the index. The payload
// is informational; every request triggers a full rebuild.
type RebuildRequest struct {
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// IndexRebuiltEvent is published after a rebuild has been committed.
type IndexRebuiltEvent struct {
	RunID      string    `json:"run_id"`
	Table      string    `json:"table"`
	Terms      int64     `json:"terms"`
	Documents  int64     `json:"documents"`
	Rows       int64     `json:"rows"`
	FailedDocs []string  `json:"failed_docs,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
