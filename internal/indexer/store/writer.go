// Package store persists the positional index. A rebuild replaces the whole
// table inside one transaction: concurrent readers see either the previous
// index or the new one, never a mix.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/postgres"
)

// maxParams is PostgreSQL's bind parameter limit per statement.
const maxParams = 65535

const columnsPerRow = 3

// Stats summarises the persisted index.
type Stats struct {
	Terms     int64
	Documents int64
	Rows      int64
}

// Result describes one committed rebuild.
type Result struct {
	Deleted  int64
	Inserted int
	Batches  int
}

// Writer rebuilds the index table.
//
// Expected schema:
//
//	CREATE TABLE positional_index (
//	    term      TEXT    NOT NULL,
//	    doc_id    INTEGER NOT NULL REFERENCES documents(doc_id),
//	    positions INTEGER[] NOT NULL,
//	    UNIQUE (term, doc_id)
//	);
type Writer struct {
	db        *postgres.Client
	table     string
	batchSize int
	lockKey   int64
	logger    *slog.Logger
}

// NewWriter creates a Writer for table that inserts batchSize rows per
// statement. The table name must already be validated as an identifier.
func NewWriter(db *postgres.Client, table string, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if batchSize > maxParams/columnsPerRow {
		batchSize = maxParams / columnsPerRow
	}
	return &Writer{
		db:        db,
		table:     table,
		batchSize: batchSize,
		lockKey:   LockKey(table),
		logger:    slog.Default().With("component", "index-writer", "table", table),
	}
}

// Rebuild deletes every row of the index and inserts rows, all in one
// transaction guarded by a transaction-scoped advisory lock, so two
// rebuilds of the same table serialise instead of interleaving. Inserts
// still upsert on (term, doc_id), so a key repeated in a later batch
// overwrites the earlier positions. A key must not repeat within one batch.
func (w *Writer) Rebuild(ctx context.Context, rows []index.Row) (Result, error) {
	var res Result
	err := w.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, w.lockKey); err != nil {
			return persistenceError("acquiring index lock", err)
		}

		result, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, w.table))
		if err != nil {
			return persistenceError("clearing index", err)
		}
		res.Deleted, _ = result.RowsAffected()
		w.logger.Info("cleared existing index", "rows", res.Deleted)

		for _, batch := range Batches(rows, w.batchSize) {
			if _, err := tx.ExecContext(ctx, UpsertSQL(w.table, len(batch)), UpsertArgs(batch)...); err != nil {
				return persistenceError(fmt.Sprintf("inserting batch %d", res.Batches+1), err)
			}
			res.Inserted += len(batch)
			res.Batches++
			w.logger.Debug("batch inserted", "batch", res.Batches, "rows", len(batch))
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrPersistence) {
			err = persistenceError("index transaction", err)
		}
		return Result{}, err
	}
	w.logger.Info("index rebuilt",
		"deleted", res.Deleted,
		"inserted", res.Inserted,
		"batches", res.Batches,
	)
	return res, nil
}

// Stats queries distinct terms, distinct documents and total rows.
func (w *Writer) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := w.db.DB.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT term), COUNT(DISTINCT doc_id), COUNT(*) FROM %s`, w.table,
	)).Scan(&s.Terms, &s.Documents, &s.Rows)
	if err != nil {
		return Stats{}, persistenceError("querying index stats", err)
	}
	return s, nil
}

// Sample returns the first limit rows ordered by term, then doc_id.
func (w *Writer) Sample(ctx context.Context, limit int) ([]index.Row, error) {
	rows, err := w.db.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT term, doc_id::text, positions FROM %s ORDER BY term, doc_id LIMIT $1`, w.table,
	), limit)
	if err != nil {
		return nil, persistenceError("querying index sample", err)
	}
	defer rows.Close()

	var sample []index.Row
	for rows.Next() {
		var (
			r         index.Row
			positions pq.Int64Array
		)
		if err := rows.Scan(&r.Term, &r.DocID, &positions); err != nil {
			return nil, persistenceError("scanning index row", err)
		}
		r.Positions = make([]int, len(positions))
		for i, p := range positions {
			r.Positions[i] = int(p)
		}
		sample = append(sample, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterating index sample", err)
	}
	return sample, nil
}

// UpsertSQL returns a multi-row INSERT for n rows that overwrites positions
// on (term, doc_id) conflicts.
func UpsertSQL(table string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (term, doc_id, positions) VALUES ", table)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * columnsPerRow
		fmt.Fprintf(&b, "($%d, $%d, $%d)", base+1, base+2, base+3)
	}
	b.WriteString(" ON CONFLICT (term, doc_id) DO UPDATE SET positions = EXCLUDED.positions")
	return b.String()
}

// UpsertArgs flattens rows into bind arguments matching UpsertSQL.
func UpsertArgs(rows []index.Row) []any {
	args := make([]any, 0, len(rows)*columnsPerRow)
	for _, r := range rows {
		positions := make(pq.Int64Array, len(r.Positions))
		for i, p := range r.Positions {
			positions[i] = int64(p)
		}
		args = append(args, r.Term, r.DocID, positions)
	}
	return args
}

// Batches splits rows into consecutive chunks of at most size rows.
func Batches(rows []index.Row, size int) [][]index.Row {
	if size <= 0 {
		size = len(rows)
	}
	var out [][]index.Row
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// LockKey derives the advisory lock key for a table name.
func LockKey(table string) int64 {
	h := fnv.New64a()
	h.Write([]byte("positional-index:" + table))
	return int64(h.Sum64())
}

func persistenceError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return apperrors.Newf(apperrors.ErrPersistence, "%s: %s (sqlstate %s)", op, pqErr.Message, pqErr.Code)
	}
	return apperrors.Newf(apperrors.ErrPersistence, "%s: %v", op, err)
}
