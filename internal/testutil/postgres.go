// Package testutil holds helpers shared by PostgreSQL-backed tests. Tests
// using it are skipped when no database is reachable.
//
// Point the tests at a database with:
//
//	TEST_POSTGRES_HOST=localhost TEST_POSTGRES_DB=ir_system_test go test ./...
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/postgres"
)

// Tables names a throwaway documents/index table pair.
type Tables struct {
	Documents string
	Index     string
}

// Postgres connects to the test database or skips the test.
func Postgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(PostgresConfig())
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func PostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "ir_system_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "postgres"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  2 * time.Second,
	}
}

// CreateTables creates a uniquely named documents table and index table and
// drops both when the test ends.
func CreateTables(t *testing.T, db *postgres.Client) Tables {
	t.Helper()
	suffix := randomSuffix(t)
	tables := Tables{
		Documents: "documents_" + suffix,
		Index:     "positional_index_" + suffix,
	}
	ctx := context.Background()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (
			doc_id            SERIAL PRIMARY KEY,
			encrypted_content TEXT,
			iv                TEXT,
			auth_tag          TEXT
		)`, tables.Documents),
		fmt.Sprintf(`CREATE TABLE %s (
			term      TEXT      NOT NULL,
			doc_id    INTEGER   NOT NULL REFERENCES %s(doc_id) ON DELETE CASCADE,
			positions INTEGER[] NOT NULL,
			UNIQUE (term, doc_id)
		)`, tables.Index, tables.Documents),
	}
	for _, stmt := range stmts {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("creating test tables: %v", err)
		}
	}
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s`, tables.Index, tables.Documents))
	})
	return tables
}

// InsertDocument stores one hex-encoded document and returns its doc_id.
func InsertDocument(t *testing.T, db *postgres.Client, table, content, iv, authTag string) string {
	t.Helper()
	var id string
	err := db.DB.QueryRowContext(context.Background(), fmt.Sprintf(
		`INSERT INTO %s (encrypted_content, iv, auth_tag) VALUES (NULLIF($1, ''), NULLIF($2, ''), NULLIF($3, '')) RETURNING doc_id::text`, table,
	), content, iv, authTag).Scan(&id)
	if err != nil {
		t.Fatalf("inserting document: %v", err)
	}
	return id
}

func randomSuffix(t *testing.T) string {
	t.Helper()
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("generating table suffix: %v", err)
	}
	return hex.EncodeToString(b)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
