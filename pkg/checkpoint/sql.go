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

package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createCheckpointsTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    description TEXT,
    document TEXT NOT NULL
)`

// SQLStore keeps one row per checkpoint holding its JSON document.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates the checkpoints table if needed. Dialect is one of
// postgres, mysql or sqlite.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "sqlite3" {
		dialect = "sqlite"
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createCheckpointsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return s, nil
}

// rebind rewrites ? placeholders for dialects that need positional ones.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save inserts or replaces the checkpoint row.
func (s *SQLStore) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM checkpoints WHERE id = ?`), cp.ID); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO checkpoints (id, created_at, description, document) VALUES (?, ?, ?, ?)`),
		cp.ID, cp.Timestamp.UTC(), cp.Description, string(data)); err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return tx.Commit()
}

// Load reads one checkpoint row.
func (s *SQLStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT document FROM checkpoints WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// Delete removes one checkpoint row.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM checkpoints WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns all checkpoints ordered by creation time.
func (s *SQLStore) List(ctx context.Context) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document FROM checkpoints ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		var cp Checkpoint
		if err := json.Unmarshal([]byte(data), &cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", id, err)
		}
		out = append(out, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	sortOldestFirst(out)
	return out, nil
}
