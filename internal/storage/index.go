/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "notesboard/internal/log"
	"notesboard/internal/version"

	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds derived per-workspace data such as the history database.
	IndexDirName  = ".nb"
	IndexFileName = "history.sqlite"

	// schemaVersion is the layout created for new databases. Older files are
	// brought forward by the steps in upgrades.
	schemaVersion = 2
)

// baseTables exist in every schema generation.
var baseTables = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS version (
		id         INTEGER PRIMARY KEY CHECK(id=1),
		schema     INTEGER NOT NULL,
		app        TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
}

// historyTables is the current snapshot layout, newest row last.
var historyTables = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id     INTEGER PRIMARY KEY,
		ts     TEXT    NOT NULL,
		reason TEXT    NOT NULL DEFAULT '',
		items  INTEGER NOT NULL DEFAULT 0,
		blob   BLOB    NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts);`,
}

// upgrades maps a target schema to the statements that produce it from the
// previous one.
var upgrades = map[int][]string{
	// v1 rows carried only ts and blob.
	2: {
		`ALTER TABLE snapshots ADD COLUMN reason TEXT NOT NULL DEFAULT '';`,
		`ALTER TABLE snapshots ADD COLUMN items INTEGER NOT NULL DEFAULT 0;`,
	},
}

// IndexPath returns the location of the history database inside root.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

func nowStamp() string { return time.Now().UTC().Format(time.RFC3339) }

// InitOrOpenIndex opens the history database of the workspace at root,
// creating it when missing and upgrading older layouts. WAL journaling is
// switched on. The caller owns the returned handle.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	path := IndexPath(root)
	log := applog.WithOperation(applog.WithComponent("storage"), "open_history").With(slog.String("path", path))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Error("cannot create index directory", slog.Any("err", err))
		return nil, fmt.Errorf("create %s: %w", IndexDirName, err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path)))
	if err != nil {
		log.Error("cannot open history database", slog.Any("err", err))
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// A single connection keeps WAL and busy_timeout consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	steps := []struct {
		name string
		run  func(context.Context, *sql.DB) error
	}{
		{"journal", func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
			return err
		}},
		{"version", stampVersion},
		{"tables", func(ctx context.Context, db *sql.DB) error { return execAll(ctx, db, historyTables) }},
		{"upgrade", upgrade},
	}
	for _, s := range steps {
		if err := s.run(ctx, db); err != nil {
			_ = db.Close()
			log.Error("history setup failed", slog.String("step", s.name), slog.Any("err", err))
			return nil, fmt.Errorf("history %s: %w", s.name, err)
		}
	}
	log.Debug("history database ready")
	return db, nil
}

func execAll(ctx context.Context, ex interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, stmts []string) error {
	for _, q := range stmts {
		if _, err := ex.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// stampVersion creates the bookkeeping tables and records the running
// application version. A new database starts at schemaVersion; an existing
// one keeps its stored schema so upgrade can act on it.
func stampVersion(ctx context.Context, db *sql.DB) error {
	if err := execAll(ctx, db, baseTables); err != nil {
		return err
	}
	var stored int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&stored)
	now := nowStamp()
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.ExecContext(ctx,
			`INSERT INTO version (id, schema, app, created_at, updated_at) VALUES (1, ?, ?, ?, ?)`,
			schemaVersion, version.String(), now, now)
		return err
	}
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now)
	return err
}

// upgrade walks the stored schema forward one version per transaction.
// Files written by a newer build are left alone.
func upgrade(ctx context.Context, db *sql.DB) error {
	var at int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&at); err != nil {
		return err
	}
	for ; at < schemaVersion; at++ {
		target := at + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("to v%d: %w", target, err)
		}
		if err := execAll(ctx, tx, upgrades[target]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("to v%d: %w", target, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, target, nowStamp()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("to v%d: %w", target, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("to v%d: %w", target, err)
		}
	}
	return nil
}

// healthy reports whether db passes SQLite's quick check and still has
// a readable snapshots table.
func healthy(ctx context.Context, db *sql.DB) bool {
	var res string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&res); err != nil {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(res), "ok") {
		return false
	}
	_, err := db.ExecContext(ctx, `SELECT 1 FROM snapshots LIMIT 1;`)
	return err == nil
}

// DetectAndRebuildIndex verifies the history database and replaces it with
// an empty one when it is corrupt or fails to open. A copy of the damaged
// file goes to .nb/backups first. The boolean reports whether a rebuild ran.
func DetectAndRebuildIndex(ctx context.Context, root string) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err == nil {
		ok := healthy(ctx, db)
		_ = db.Close()
		if ok {
			return false, nil
		}
	}
	applog.WithComponent("storage").Warn("history database unusable, starting fresh", slog.String("path", path), slog.Any("err", err))
	preserve(path)
	for _, f := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(f)
	}
	if db, err = InitOrOpenIndex(root); err != nil {
		return false, fmt.Errorf("rebuild history: %w", err)
	}
	return true, db.Close()
}

// preserve keeps a timestamped copy of path under a sibling backups directory.
// Failures are ignored; the rebuild proceeds either way.
func preserve(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	dir := filepath.Join(filepath.Dir(path), "backups")
	if os.MkdirAll(dir, 0o755) != nil {
		return
	}
	name := filepath.Base(path) + "." + time.Now().Format("20060102-150405") + ".bak"
	_ = os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
