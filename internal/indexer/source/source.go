// Package source reads the encrypted document collection from PostgreSQL.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/postgres"
)

// Document is one stored, encrypted document. Every field except DocID is a
// hex string and may be empty when the column is NULL.
type Document struct {
	DocID            string
	EncryptedContent string
	IV               string
	AuthTag          string
}

// Postgres loads every row of the documents table. doc_id is read as text so
// that integer and UUID identifiers are handled alike.
//
// Expected schema:
//
//	CREATE TABLE documents (
//	    doc_id            SERIAL PRIMARY KEY,
//	    encrypted_content TEXT,
//	    iv                TEXT,
//	    auth_tag          TEXT
//	);
type Postgres struct {
	db     postgres.Querier
	table  string
	logger *slog.Logger
}

// NewPostgres creates a source reading from table. The name must already be
// validated as an identifier.
func NewPostgres(db postgres.Querier, table string) *Postgres {
	return &Postgres{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "document-source", "table", table),
	}
}

// Load returns the full collection ordered by doc_id.
func (p *Postgres) Load(ctx context.Context) ([]Document, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT doc_id::text, encrypted_content, iv, auth_tag FROM %s ORDER BY doc_id`, p.table,
	))
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc                  Document
			content, iv, authTag sql.NullString
		)
		if err := rows.Scan(&doc.DocID, &content, &iv, &authTag); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.EncryptedContent = content.String
		doc.IV = iv.String
		doc.AuthTag = authTag.String
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	p.logger.Debug("documents loaded", "count", len(docs))
	return docs, nil
}
