// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"meal-journal/internal/models"
)

// SQLiteStore keeps participant documents in a local SQLite file. It backs
// local development and tests with the same contract as the dataset API.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS participant_records (
        participant_id TEXT PRIMARY KEY,
        document TEXT NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, participantID string, doc models.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO participant_records (participant_id, document, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(participant_id) DO NOTHING
    `, participantID, string(body), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", errors.Join(ErrTransient, err))
	}

	return expectOneRow(res, ErrConflict)
}

func (s *SQLiteStore) Read(ctx context.Context, participantID string) (models.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM participant_records WHERE participant_id = ?`, participantID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", errors.Join(ErrTransient, err))
	}

	doc := models.Document{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, participantID string, doc models.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE participant_records SET document = ?, updated_at = ?
        WHERE participant_id = ?
    `, string(body), time.Now().UTC().Format(time.RFC3339), participantID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", errors.Join(ErrTransient, err))
	}

	return expectOneRow(res, ErrNotFound)
}

func (s *SQLiteStore) Delete(ctx context.Context, participantID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM participant_records WHERE participant_id = ?`, participantID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", errors.Join(ErrTransient, err))
	}

	return expectOneRow(res, ErrNotFound)
}

func expectOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", errors.Join(ErrTransient, err))
	}
	if n == 0 {
		return none
	}
	return nil
}
