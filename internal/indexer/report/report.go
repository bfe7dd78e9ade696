// Package report renders a rebuild Report as human-readable text for the
// operator. The format is not a machine contract.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/pipeline"
)

// MaxPositions is how many positions of a sample row are printed before
// the list is elided.
const MaxPositions = 10

const rule = "================================================================================"

// Write prints r to w.
func Write(w io.Writer, r *pipeline.Report) error {
	ew := &errWriter{w: w}
	ew.printf("%s\nPOSITIONAL INDEX BUILD  run %s\n%s\n", rule, r.RunID, rule)
	ew.printf("Documents loaded:    %d\n", r.Loaded)

	switch r.State {
	case pipeline.StateNoDocuments:
		ew.printf("\nNo documents found. Upload documents first.\n")
		return ew.err
	case pipeline.StateNothingToIndex:
		ew.printf("Documents skipped:   %d\n", r.Skipped)
		writeFailures(ew, r)
		ew.printf("\nNo decryptable documents found. Nothing was written.\n")
		return ew.err
	}

	ew.printf("Documents indexed:   %d\n", r.Indexed)
	ew.printf("Documents skipped:   %d\n", r.Skipped)
	writeFailures(ew, r)

	if r.State == pipeline.StateFailed {
		ew.printf("\nINDEX BUILD FAILED after %s; the previous index was left in place.\n", r.Duration.Round(time.Millisecond))
		return ew.err
	}

	if r.State == pipeline.StateDryRun {
		ew.printf("\nDry run: %d term-document pairs would be written.\n", r.Rows)
	} else {
		ew.printf("\nCleared %d existing entries, inserted %d in %d batches.\n",
			r.Written.Deleted, r.Written.Inserted, r.Written.Batches)
	}

	ew.printf("\nIndex statistics:\n")
	ew.printf("   Total unique terms:         %d\n", r.Stats.Terms)
	ew.printf("   Total documents indexed:    %d\n", r.Stats.Documents)
	ew.printf("   Total term-document pairs:  %d\n", r.Stats.Rows)

	if len(r.Sample) > 0 {
		ew.printf("\nSample index entries:\n")
		for _, row := range r.Sample {
			ew.printf("   %s: %s -> [%s]\n", row.Term, row.DocID, formatPositions(row.Positions))
		}
	}
	if len(r.Notified) > 0 {
		ew.printf("\nNotified: %s\n", strings.Join(r.Notified, ", "))
	}

	ew.printf("\n%s\n", rule)
	if r.State == pipeline.StateDryRun {
		ew.printf("DRY RUN COMPLETED in %s\n", r.Duration.Round(time.Millisecond))
	} else {
		ew.printf("POSITIONAL INDEX BUILD COMPLETED SUCCESSFULLY in %s\n", r.Duration.Round(time.Millisecond))
	}
	ew.printf("%s\n", rule)
	return ew.err
}

func writeFailures(ew *errWriter, r *pipeline.Report) {
	if len(r.Failures) == 0 {
		return
	}
	ew.printf("Documents failed:    %d\n", len(r.Failures))
	for _, f := range r.Failures {
		ew.printf("   %s: %v\n", f.DocID, f.Err)
	}
}

func formatPositions(positions []int) string {
	shown := positions
	if len(shown) > MaxPositions {
		shown = shown[:MaxPositions]
	}
	parts := make([]string, len(shown))
	for i, p := range shown {
		parts[i] = fmt.Sprint(p)
	}
	s := strings.Join(parts, ", ")
	if len(positions) > MaxPositions {
		s += ", ..."
	}
	return s
}

// errWriter remembers the first write error so Write can check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
