package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/store"
)

func TestWriteCompleted(t *testing.T) {
	r := &pipeline.Report{
		RunID:   "abc",
		State:   pipeline.StateCompleted,
		Loaded:  2,
		Indexed: 2,
		Written: store.Result{Deleted: 4, Inserted: 6, Batches: 1},
		Stats:   store.Stats{Terms: 4, Documents: 2, Rows: 6},
		Sample: []index.Row{
			{Term: "cat", DocID: "1", Positions: []int{1}},
			{Term: "long", DocID: "2", Positions: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
		},
		Notified: []string{"kafka"},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "run abc")
	assert.Contains(t, out, "Total unique terms:         4")
	assert.Contains(t, out, "Total documents indexed:    2")
	assert.Contains(t, out, "Total term-document pairs:  6")
	assert.Contains(t, out, "cat: 1 -> [1]")
	assert.Contains(t, out, "long: 2 -> [0, 1, 2, 3, 4, 5, 6, 7, 8, 9, ...]")
	assert.Contains(t, out, "Notified: kafka")
	assert.Contains(t, out, "COMPLETED SUCCESSFULLY")
}

func TestWriteNoDocuments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &pipeline.Report{State: pipeline.StateNoDocuments}))
	assert.Contains(t, buf.String(), "No documents found")
	assert.NotContains(t, buf.String(), "statistics")
}

func TestWriteFailedListsDocuments(t *testing.T) {
	r := &pipeline.Report{
		State:    pipeline.StateFailed,
		Loaded:   3,
		Failures: []pipeline.Failure{{DocID: "7", Err: errors.New("authentication failure")}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r))
	assert.Contains(t, buf.String(), "7: authentication failure")
	assert.Contains(t, buf.String(), "INDEX BUILD FAILED")
}

func TestWriteDryRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &pipeline.Report{State: pipeline.StateDryRun, Rows: 6}))
	assert.Contains(t, buf.String(), "6 term-document pairs would be written")
	assert.Contains(t, buf.String(), "DRY RUN COMPLETED")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWritePropagatesWriterError(t *testing.T) {
	err := Write(failingWriter{}, &pipeline.Report{State: pipeline.StateCompleted})
	assert.ErrorContains(t, err, "closed pipe")
}

func TestFormatPositions(t *testing.T) {
	assert.Equal(t, "", formatPositions(nil))
	assert.Equal(t, "3, 9", formatPositions([]int{3, 9}))
}
