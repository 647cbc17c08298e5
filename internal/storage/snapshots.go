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
	"time"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(ts, reason, items, blob) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT id, ts, reason, items, blob FROM snapshots ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT id, ts, reason, items, blob FROM snapshots ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`

// language=SQL
// dialect=SQLite
const deleteSnapshotSQL = `DELETE FROM snapshots WHERE id = ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE id NOT IN (
	SELECT id FROM snapshots ORDER BY ts DESC, id DESC LIMIT ?
)`

// tsLayout is fixed width so that text ordering in SQL matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is one stored scene state.
type Snapshot struct {
	ID     int64
	TS     time.Time
	Reason string
	Items  int
	Blob   []byte
}

// SaveSnapshot persists a scene document blob with a timestamp and the reason
// for the change that followed it.
func SaveSnapshot(ctx context.Context, ws *Workspace, reason string, blob []byte, ts time.Time) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertSnapshotSQL, ts.UTC().Format(tsLayout), reason, ws.Scene.Len(), blob)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot; ok is false when there is none.
func LatestSnapshot(ctx context.Context, ws *Workspace) (Snapshot, bool, error) {
	if ws == nil {
		return Snapshot{}, false, errors.New("nil Workspace")
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer func() { _ = db.Close() }()
	return latest(ctx, db)
}

func latest(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (Snapshot, bool, error) {
	s, err := scanSnapshot(q.QueryRowContext(ctx, selectLatestSnapshotSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

// DeleteSnapshot removes the snapshot with the given id. ok is false when no
// such snapshot exists.
func DeleteSnapshot(ctx context.Context, ws *Workspace, id int64) (bool, error) {
	if ws == nil {
		return false, errors.New("nil Workspace")
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return false, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, deleteSnapshotSQL, id)
	if err != nil {
		return false, fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListSnapshots returns up to limit most recent snapshots, newest first.
func ListSnapshots(ctx context.Context, ws *Workspace, limit int) ([]Snapshot, error) {
	return ListSnapshotsPage(ctx, ws, 0, limit)
}

// ListSnapshotsPage is ListSnapshots after skipping the offset newest entries.
func ListSnapshotsPage(ctx context.Context, ws *Workspace, offset, limit int) ([]Snapshot, error) {
	if ws == nil {
		return nil, errors.New("nil Workspace")
	}
	if limit <= 0 {
		limit = 50
	}
	offset = max(offset, 0)
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots and deletes older ones.
func PruneSnapshots(ctx context.Context, ws *Workspace, keepLast int) (int64, error) {
	if ws == nil {
		return 0, errors.New("nil Workspace")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (Snapshot, error) {
	var s Snapshot
	var tsStr string
	if err := sc.Scan(&s.ID, &tsStr, &s.Reason, &s.Items, &s.Blob); err != nil {
		return Snapshot{}, err
	}
	// keep the blob even if the timestamp is unreadable
	s.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return s, nil
}
