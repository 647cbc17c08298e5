/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend stores named boards in PostgreSQL and talks to a running
// board server over HTTP.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"notesboard/internal/domain"
	applog "notesboard/internal/log"
	"notesboard/internal/sceneio"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a named board does not exist.
var ErrNotFound = errors.New("board not found")

// Store is a PostgreSQL-backed board repository.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Board is one stored board at its current version.
type Board struct {
	Name      string       `json:"name"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Scene     domain.Scene `json:"scene"`
}

// BoardInfo is the listing projection of a board.
type BoardInfo struct {
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	Items     int       `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{db: db, log: applog.WithComponent("backend")}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies embedded SQL migrations in filename order. Applied
// versions are recorded in schema_migrations and skipped on later runs.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// language=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		s.log.Info("applying migration", slog.String("file", fname))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("select schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// language=PostgreSQL
const upsertBoardSQL = `INSERT INTO boards (name, items, scene) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE
    SET version = boards.version + 1, items = EXCLUDED.items, scene = EXCLUDED.scene, updated_at = now()
RETURNING id, version, updated_at`

// language=PostgreSQL
const insertBoardVersionSQL = `INSERT INTO board_versions (board_id, version, scene) VALUES ($1, $2, $3)`

// PutBoard stores scene under name. The first write creates version 1; each
// later write increments the version and keeps the previous one in history.
func (s *Store) PutBoard(ctx context.Context, name string, scene domain.Scene) (Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Board{}, errors.New("board name is required")
	}
	data, err := sceneio.Export(scene)
	if err != nil {
		return Board{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Board{}, fmt.Errorf("begin put board: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id int64
		b  = Board{Name: name, Scene: scene.Clone()}
	)
	if err := tx.QueryRowContext(ctx, upsertBoardSQL, name, scene.Len(), string(data)).Scan(&id, &b.Version, &b.UpdatedAt); err != nil {
		return Board{}, fmt.Errorf("upsert board: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertBoardVersionSQL, id, b.Version, string(data)); err != nil {
		return Board{}, fmt.Errorf("insert board version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Board{}, fmt.Errorf("commit put board: %w", err)
	}
	s.log.InfoContext(applog.WithBoard(ctx, name), "board stored", slog.Int64("version", b.Version), slog.Int("items", scene.Len()))
	return b, nil
}

// GetBoard returns the current version of name or ErrNotFound.
func (s *Store) GetBoard(ctx context.Context, name string) (Board, error) {
	var (
		b   = Board{Name: name}
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, updated_at, scene FROM boards WHERE name = $1`, name).Scan(&b.Version, &b.UpdatedAt, &raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Board{}, ErrNotFound
	case err != nil:
		return Board{}, fmt.Errorf("select board: %w", err)
	}
	if err := json.Unmarshal(raw, &b.Scene); err != nil {
		return Board{}, fmt.Errorf("decode board %s: %w", name, err)
	}
	return b, nil
}

// GetBoardVersion returns a historic version of name or ErrNotFound.
func (s *Store) GetBoardVersion(ctx context.Context, name string, version int64) (Board, error) {
	var (
		b   = Board{Name: name, Version: version}
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT v.created_at, v.scene FROM board_versions v
		JOIN boards b ON b.id = v.board_id WHERE b.name = $1 AND v.version = $2`, name, version).Scan(&b.UpdatedAt, &raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Board{}, ErrNotFound
	case err != nil:
		return Board{}, fmt.Errorf("select board version: %w", err)
	}
	if err := json.Unmarshal(raw, &b.Scene); err != nil {
		return Board{}, fmt.Errorf("decode board %s@%d: %w", name, version, err)
	}
	return b, nil
}

// ListBoards returns all boards, most recently updated first.
func (s *Store) ListBoards(ctx context.Context) ([]BoardInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, version, items, updated_at FROM boards ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var list []BoardInfo
	for rows.Next() {
		var bi BoardInfo
		if err := rows.Scan(&bi.Name, &bi.Version, &bi.Items, &bi.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, bi)
	}
	return list, rows.Err()
}

// DeleteBoard removes name and its history.
func (s *Store) DeleteBoard(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
