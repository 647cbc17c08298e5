/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"notesboard/internal/domain"
	"notesboard/internal/sceneio"
)

const (
	BoardFileName  = sceneio.FileName
	BackupsDirName = "backups"
	ExportsDirName = "exports"
)

// Standard subfolders of a workspace.
var standardSubDirs = []string{
	ExportsDirName,
	BackupsDirName,
}

// Workspace keeps track of a board loaded from or saved to disk.
// Root is the directory containing board.json and the subfolders.
type Workspace struct {
	Root      string
	BoardPath string
	Scene     domain.Scene
	// Recovered is set when Open fell back to a backup.
	Recovered bool
}

// InitWorkspace creates a workspace at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the scene transactionally.
func InitWorkspace(root string, scene domain.Scene) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ws := &Workspace{
		Root:      root,
		BoardPath: filepath.Join(root, BoardFileName),
		Scene:     scene,
	}
	if err := Save(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing workspace. If board.json cannot be read or is not a
// valid scene document, the latest backup is used instead.
func Open(root string) (*Workspace, error) {
	bpath := filepath.Join(root, BoardFileName)
	b, err := os.ReadFile(bpath)
	if err != nil {
		s, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open board: %w; backup attempt: %v", err, berr)
		}
		return &Workspace{Root: root, BoardPath: bpath, Scene: s, Recovered: true}, nil
	}
	s, ierr := sceneio.Import(b)
	if ierr != nil {
		s, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse board: %w; backup attempt: %v", ierr, berr)
		}
		return &Workspace{Root: root, BoardPath: bpath, Scene: s, Recovered: true}, nil
	}
	return &Workspace{Root: root, BoardPath: bpath, Scene: s}, nil
}

// Save writes ws.Scene to disk with transactional semantics and a timestamped
// backup of the previous board.json (if present).
func Save(ws *Workspace) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if ws.Root == "" || ws.BoardPath == "" {
		return errors.New("invalid Workspace: missing paths")
	}
	data, err := sceneio.Export(ws.Scene)
	if err != nil {
		return err
	}

	bdir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(ws.BoardPath); statErr == nil {
		bpath := filepath.Join(bdir, backupName(time.Now(), ""))
		if cerr := copyFile(ws.BoardPath, bpath); cerr != nil {
			return fmt.Errorf("backup current board: %w", cerr)
		}
	}
	return replaceFile(ws.BoardPath, data)
}

// SaveAs writes the board to a new root folder, scaffolding structure if needed, and updates the workspace.
func SaveAs(ws *Workspace, newRoot string) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	ws.Root = newRoot
	ws.BoardPath = filepath.Join(newRoot, BoardFileName)
	return Save(ws)
}

// AutosaveCrashSnapshot writes the in-memory scene to a crash backup without
// touching board.json. The backup is picked up by Open like any other.
func AutosaveCrashSnapshot(ws *Workspace) (string, error) {
	if ws == nil || ws.Root == "" {
		return "", errors.New("invalid Workspace")
	}
	data, err := sceneio.Export(ws.Scene)
	if err != nil {
		return "", err
	}
	bdir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, backupName(time.Now(), "crash"))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// PruneBackups removes all but the newest keep backups and reports how many
// files were deleted.
func PruneBackups(root string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	candidates, err := backupFiles(root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(candidates) > keep {
		if err := os.Remove(candidates[0]); err != nil {
			return removed, fmt.Errorf("remove backup: %w", err)
		}
		candidates = candidates[1:]
		removed++
	}
	return removed, nil
}

// backupName builds board.json.<stamp>[-tag].bak; the stamp sorts lexicographically.
func backupName(ts time.Time, tag string) string {
	stamp := ts.Format("20060102-150405.000")
	if tag != "" {
		stamp += "-" + tag
	}
	return fmt.Sprintf("%s.%s.bak", BoardFileName, stamp)
}

// replaceFile writes to a temp file in the same directory, then renames it over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp board: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace board: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func backupFiles(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, BoardFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// openFromLatestBackup returns the newest backup that is a valid scene document.
func openFromLatestBackup(root string) (domain.Scene, error) {
	candidates, err := backupFiles(root)
	if err != nil {
		return domain.Scene{}, err
	}
	if len(candidates) == 0 {
		return domain.Scene{}, errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = fmt.Errorf("read backup: %w", err)
			continue
		}
		s, err := sceneio.Import(b)
		if err != nil {
			lastErr = fmt.Errorf("parse backup %s: %w", filepath.Base(candidates[i]), err)
			continue
		}
		return s, nil
	}
	return domain.Scene{}, lastErr
}
