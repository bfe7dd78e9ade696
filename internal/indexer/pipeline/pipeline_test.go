package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/resilience"
)

type memSource struct {
	docs  []source.Document
	err   error
	loads int
}

func (s *memSource) Load(context.Context) ([]source.Document, error) {
	s.loads++
	return s.docs, s.err
}

type rowKey struct{ term, docID string }

// memSink mimics the index table: Rebuild clears it and upserts rows.
type memSink struct {
	mu       sync.Mutex
	table    map[rowKey][]int
	rebuilds int
	err      error
}

func newMemSink() *memSink {
	return &memSink{table: make(map[rowKey][]int)}
}

func (s *memSink) Rebuild(_ context.Context, rows []index.Row) (store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuilds++
	if s.err != nil {
		return store.Result{}, s.err
	}
	deleted := int64(len(s.table))
	s.table = make(map[rowKey][]int)
	for _, r := range rows {
		s.table[rowKey{r.Term, r.DocID}] = append([]int(nil), r.Positions...)
	}
	return store.Result{Deleted: deleted, Inserted: len(rows), Batches: 1}, nil
}

func (s *memSink) rows() []index.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]index.Row, 0, len(s.table))
	for k, pos := range s.table {
		rows = append(rows, index.Row{Term: k.term, DocID: k.docID, Positions: pos})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Term != rows[j].Term {
			return rows[i].Term < rows[j].Term
		}
		return rows[i].DocID < rows[j].DocID
	})
	return rows
}

func (s *memSink) Stats(context.Context) (store.Stats, error) {
	return statsOf(s.rows()), nil
}

func (s *memSink) Sample(_ context.Context, limit int) ([]index.Row, error) {
	return sampleOf(s.rows(), limit), nil
}

type fakeLocker struct {
	err      error
	released bool
}

func (l *fakeLocker) Lock(context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.released = true
		return nil
	}, nil
}

type fakeNotifier struct {
	name   string
	err    error
	events []indexer.IndexRebuiltEvent
}

func (n *fakeNotifier) Name() string { return n.name }

func (n *fakeNotifier) Notify(_ context.Context, e indexer.IndexRebuiltEvent) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, e)
	return nil
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}

func catAndDog(t *testing.T, key []byte) []source.Document {
	return []source.Document{
		testutil.EncryptedDocument(t, "1", "the cat sat", key),
		testutil.EncryptedDocument(t, "2", "the dog sat", key),
	}
}

// tamper corrupts the first byte of the stored ciphertext.
func tamper(doc source.Document) source.Document {
	b := []byte(doc.EncryptedContent)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	doc.EncryptedContent = string(b)
	return doc
}

func TestRunTwoDocuments(t *testing.T) {
	key := testutil.Key(t)
	sink := newMemSink()
	p := New(&memSource{docs: catAndDog(t, key)}, sink, key, Options{Workers: 4, SampleSize: 10})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, []index.Row{
		{Term: "cat", DocID: "1", Positions: []int{1}},
		{Term: "dog", DocID: "2", Positions: []int{1}},
		{Term: "sat", DocID: "1", Positions: []int{2}},
		{Term: "sat", DocID: "2", Positions: []int{2}},
		{Term: "the", DocID: "1", Positions: []int{0}},
		{Term: "the", DocID: "2", Positions: []int{0}},
	}, sink.rows())
	assert.Equal(t, store.Stats{Terms: 4, Documents: 2, Rows: 6}, report.Stats)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 6, report.Rows)
	assert.Len(t, report.Sample, 6)
	assert.Len(t, report.RunID, 16)
}

func TestRunIsIdempotent(t *testing.T) {
	key := testutil.Key(t)
	docs := []source.Document{
		testutil.EncryptedDocument(t, "1", "To be, or not to be: that is the question.", key),
		testutil.EncryptedDocument(t, "2", "Whether 'tis nobler in the mind to suffer", key),
		testutil.EncryptedDocument(t, "3", "", key),
	}
	sink := newMemSink()
	p := New(&memSource{docs: docs}, sink, key, Options{Workers: 3})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	first := sink.rows()

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, sink.rows())
	assert.Equal(t, int64(len(first)), report.Written.Deleted)
	assert.Equal(t, 2, sink.rebuilds)
}

func TestRunEmptyCollectionIsNoOp(t *testing.T) {
	sink := newMemSink()
	report, err := New(&memSource{}, sink, testutil.Key(t), Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateNoDocuments, report.State)
	assert.Equal(t, 0, sink.rebuilds)
}

func TestRunAllDocumentsEmpty(t *testing.T) {
	key := testutil.Key(t)
	docs := []source.Document{
		{DocID: "1"},
		testutil.EncryptedDocument(t, "2", "", key),
	}
	sink := newMemSink()
	report, err := New(&memSource{docs: docs}, sink, key, Options{Workers: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateNothingToIndex, report.State)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, sink.rebuilds)
}

func TestRunFailFastAbortsBeforeWriting(t *testing.T) {
	key := testutil.Key(t)
	docs := catAndDog(t, key)
	docs[1] = tamper(docs[1])
	sink := newMemSink()
	sink.table[rowKey{"old", "9"}] = []int{0}

	report, err := New(&memSource{docs: docs}, sink, key, Options{Workers: 1}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []string{"2"}, report.FailedDocIDs())
	assert.Equal(t, 0, sink.rebuilds)
	assert.Equal(t, []index.Row{{Term: "old", DocID: "9", Positions: []int{0}}}, sink.rows())
}

func TestRunSkipPolicyIndexesTheRest(t *testing.T) {
	key := testutil.Key(t)
	docs := catAndDog(t, key)
	docs[0] = tamper(docs[0])
	notifier := &fakeNotifier{name: "test"}
	sink := newMemSink()

	report, err := New(&memSource{docs: docs}, sink, key, Options{
		Workers:   2,
		Policy:    Skip,
		Notifiers: []Notifier{notifier},
		Retry:     fastRetry,
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 1, report.Indexed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "1", report.Failures[0].DocID)
	assert.ErrorIs(t, report.Failures[0].Err, apperrors.ErrAuthentication)
	assert.Equal(t, store.Stats{Terms: 3, Documents: 1, Rows: 3}, report.Stats)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, []string{"1"}, notifier.events[0].FailedDocs)
}

func TestRunSkipPolicyStillFailsOnBadKey(t *testing.T) {
	key := testutil.Key(t)
	docs := catAndDog(t, key)
	_, err := New(&memSource{docs: docs}, newMemSink(), key[:16], Options{Policy: Skip}).Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestRunWrongKeyFailsWholeRun(t *testing.T) {
	key := testutil.Key(t)
	docs := catAndDog(t, key)
	other := make([]byte, len(key))
	copy(other, key)
	other[0] ^= 0xff

	sink := newMemSink()
	_, err := New(&memSource{docs: docs}, sink, other, Options{Workers: 2}).Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
	assert.Equal(t, 0, sink.rebuilds)
}

func TestRunDryRunDoesNotWrite(t *testing.T) {
	key := testutil.Key(t)
	sink := newMemSink()
	locker := &fakeLocker{err: errors.New("must not be called")}
	report, err := New(&memSource{docs: catAndDog(t, key)}, sink, key, Options{
		DryRun:     true,
		SampleSize: 2,
		Locker:     locker,
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDryRun, report.State)
	assert.Equal(t, 0, sink.rebuilds)
	assert.Equal(t, store.Stats{Terms: 4, Documents: 2, Rows: 6}, report.Stats)
	assert.Equal(t, []index.Row{
		{Term: "cat", DocID: "1", Positions: []int{1}},
		{Term: "dog", DocID: "2", Positions: []int{1}},
	}, report.Sample)
}

func TestRunPersistenceFailure(t *testing.T) {
	key := testutil.Key(t)
	sink := newMemSink()
	sink.err = apperrors.New(apperrors.ErrPersistence, "connection lost")
	notifier := &fakeNotifier{name: "test"}

	_, err := New(&memSource{docs: catAndDog(t, key)}, sink, key, Options{
		Notifiers: []Notifier{notifier},
	}).Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.Empty(t, notifier.events)
}

func TestRunSourceFailure(t *testing.T) {
	_, err := New(&memSource{err: errors.New("relation does not exist")}, newMemSink(), testutil.Key(t), Options{}).Run(context.Background())
	assert.ErrorContains(t, err, "loading documents")
}

func TestRunLockHeld(t *testing.T) {
	src := &memSource{}
	locker := &fakeLocker{err: apperrors.New(apperrors.ErrRunInProgress, "lock held")}
	_, err := New(src, newMemSink(), testutil.Key(t), Options{Locker: locker}).Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrRunInProgress)
	assert.Equal(t, 0, src.loads)
}

func TestRunReleasesLock(t *testing.T) {
	key := testutil.Key(t)
	locker := &fakeLocker{}
	_, err := New(&memSource{docs: catAndDog(t, key)}, newMemSink(), key, Options{Locker: locker}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, locker.released)
}

func TestRunNotifierFailureDoesNotFailRun(t *testing.T) {
	key := testutil.Key(t)
	good := &fakeNotifier{name: "good"}
	bad := &fakeNotifier{name: "bad", err: errors.New("broker down")}

	report, err := New(&memSource{docs: catAndDog(t, key)}, newMemSink(), key, Options{
		Table:     "positional_index",
		Notifiers: []Notifier{bad, good},
		Retry:     fastRetry,
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, report.Notified)
	require.Len(t, good.events, 1)
	assert.Equal(t, report.RunID, good.events[0].RunID)
	assert.Equal(t, "positional_index", good.events[0].Table)
	assert.Equal(t, int64(6), good.events[0].Rows)
}

func TestRunRecordsMetrics(t *testing.T) {
	key := testutil.Key(t)
	docs := append(catAndDog(t, key), source.Document{DocID: "3"})
	m := metrics.New()

	_, err := New(&memSource{docs: docs}, newMemSink(), key, Options{Metrics: m}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.DocumentsLoaded))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.DocumentsProcessed.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.DocumentsProcessed.WithLabelValues("skipped")))
	assert.Equal(t, 6.0, promtest.ToFloat64(m.RowsWritten))
	assert.Equal(t, 4.0, promtest.ToFloat64(m.IndexTerms))
	assert.Positive(t, promtest.ToFloat64(m.CollectedBytes))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RunsTotal.WithLabelValues("success")))
}

func TestRunManyDocumentsInParallel(t *testing.T) {
	key := testutil.Key(t)
	var docs []source.Document
	for i := 0; i < 200; i++ {
		docs = append(docs, testutil.EncryptedDocument(t, fmt.Sprintf("%03d", i), fmt.Sprintf("common word%d common", i), key))
	}
	sink := newMemSink()
	report, err := New(&memSource{docs: docs}, sink, key, Options{Workers: 16, Tracing: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, report.Indexed)
	assert.Equal(t, store.Stats{Terms: 201, Documents: 200, Rows: 400}, report.Stats)
	for _, r := range sink.rows() {
		if r.Term == "common" {
			assert.Equal(t, []int{0, 2}, r.Positions)
		}
	}
}
