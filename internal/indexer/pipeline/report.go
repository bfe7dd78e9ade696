package pipeline

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/store"
)

// State is how a run ended.
type State int

const (
	StateFailed State = iota
	StateNoDocuments
	StateNothingToIndex
	StateDryRun
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNoDocuments:
		return "no_documents"
	case StateNothingToIndex:
		return "nothing_to_index"
	case StateDryRun:
		return "dry_run"
	case StateCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Failure is one document that could not be decrypted.
type Failure struct {
	DocID string
	Err   error
}

// Report summarises one run for the operator.
type Report struct {
	RunID     string
	State     State
	Policy    Policy
	DryRun    bool
	StartedAt time.Time
	Duration  time.Duration

	Loaded   int
	Indexed  int
	Skipped  int
	Failures []Failure

	Rows    int
	Written store.Result
	Stats   store.Stats
	Sample  []index.Row

	Notified []string
}

func (r *Report) addOutcomes(outcomes []Outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusIndexed:
			r.Indexed++
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failures = append(r.Failures, Failure{DocID: o.DocID, Err: o.Err})
		}
	}
}

// FailedDocIDs lists the documents that failed, in load order.
func (r *Report) FailedDocIDs() []string {
	if len(r.Failures) == 0 {
		return nil
	}
	ids := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.DocID
	}
	return ids
}

// statsOf computes the statistics a sink would report for rows.
func statsOf(rows []index.Row) store.Stats {
	terms := make(map[string]struct{})
	docs := make(map[string]struct{})
	for _, r := range rows {
		terms[r.Term] = struct{}{}
		docs[r.DocID] = struct{}{}
	}
	return store.Stats{
		Terms:     int64(len(terms)),
		Documents: int64(len(docs)),
		Rows:      int64(len(rows)),
	}
}

// sampleOf returns the first n of rows, which are already ordered by term
// and document.
func sampleOf(rows []index.Row, n int) []index.Row {
	if n > len(rows) {
		n = len(rows)
	}
	return rows[:n]
}
