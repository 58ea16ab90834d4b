// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/stepwise/pkg/tutor"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists sessions in a relational database. The full session is
// stored as a JSON document; phase and subject are duplicated into columns
// for filtering.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS tutoring_sessions (
    id VARCHAR(255) PRIMARY KEY,
    subject VARCHAR(64) NOT NULL,
    phase VARCHAR(32) NOT NULL,
    session_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tutoring_sessions_phase ON tutoring_sessions(phase);
CREATE INDEX IF NOT EXISTS idx_tutoring_sessions_updated_at ON tutoring_sessions(updated_at);
`

// mysql has no CREATE INDEX IF NOT EXISTS; rely on the primary key and skip
// the secondary indexes there.
const createSessionsTableMySQL = `
CREATE TABLE IF NOT EXISTS tutoring_sessions (
    id VARCHAR(255) PRIMARY KEY,
    subject VARCHAR(64) NOT NULL,
    phase VARCHAR(32) NOT NULL,
    session_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// NewSQLStore creates a session store over an existing database connection.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":

	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// OpenSQLStore opens a database connection and creates a store over it.
// dialect selects the driver: sqlite (mattn/go-sqlite3), postgres (lib/pq),
// or mysql (go-sql-driver/mysql).
func OpenSQLStore(dialect, dsn string, maxConns, maxIdle int) (*SQLStore, error) {
	driverName := dialect
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	return NewSQLStore(db, dialect)
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := createSessionsTableSQL
	if s.dialect == "mysql" {
		schema = createSessionsTableMySQL
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	return nil
}

// Save upserts the session.
func (s *SQLStore) Save(ctx context.Context, session *tutor.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var query string
	switch s.dialect {
	case "postgres":
		query = `
INSERT INTO tutoring_sessions (id, subject, phase, session_json, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    subject = EXCLUDED.subject,
    phase = EXCLUDED.phase,
    session_json = EXCLUDED.session_json,
    updated_at = EXCLUDED.updated_at
`
	case "mysql":
		query = `
INSERT INTO tutoring_sessions (id, subject, phase, session_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    subject = VALUES(subject),
    phase = VALUES(phase),
    session_json = VALUES(session_json),
    updated_at = VALUES(updated_at)
`
	default:
		query = `
INSERT INTO tutoring_sessions (id, subject, phase, session_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    subject = excluded.subject,
    phase = excluded.phase,
    session_json = excluded.session_json,
    updated_at = excluded.updated_at
`
	}

	_, err = s.db.ExecContext(ctx, query,
		session.ID, string(session.Subject), string(session.Phase),
		string(sessionJSON), session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Get loads a session by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*tutor.Session, error) {
	query := `SELECT session_json FROM tutoring_sessions WHERE id = ?`
	if s.dialect == "postgres" {
		query = `SELECT session_json FROM tutoring_sessions WHERE id = $1`
	}

	var sessionJSON string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&sessionJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session tutor.Session
	if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// List returns all sessions, most recently updated first.
func (s *SQLStore) List(ctx context.Context) ([]*tutor.Session, error) {
	query := `SELECT session_json FROM tutoring_sessions ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*tutor.Session
	for rows.Next() {
		var sessionJSON string
		if err := rows.Scan(&sessionJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		var session tutor.Session
		if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}

// Delete removes a session.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tutoring_sessions WHERE id = ?`
	if s.dialect == "postgres" {
		query = `DELETE FROM tutoring_sessions WHERE id = $1`
	}

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Service
var _ Service = (*SQLStore)(nil)
