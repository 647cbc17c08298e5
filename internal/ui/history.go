/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"

	"notesboard/internal/scroll"
	"notesboard/internal/storage"
)

const historyPageSize = 25

// historyPager feeds a scrolling list of stored snapshots, newest first.
// The next page is fetched when the list scrolls near its end.
type historyPager struct {
	ws       *storage.Workspace
	pageSize int
	entries  []storage.Snapshot
	done     bool
	err      error
	det      scroll.Detector
}

func newHistoryPager(ws *storage.Workspace, pageSize int) *historyPager {
	if pageSize <= 0 {
		pageSize = historyPageSize
	}
	p := &historyPager{ws: ws, pageSize: pageSize}
	p.det.OnReachEnd = func() { p.err = p.next(context.Background()) }
	return p
}

// next appends one page. It does nothing once the oldest entry is loaded.
func (p *historyPager) next(ctx context.Context) error {
	if p.done {
		return nil
	}
	page, err := storage.ListSnapshotsPage(ctx, p.ws, len(p.entries), p.pageSize)
	if err != nil {
		return err
	}
	p.entries = append(p.entries, page...)
	p.done = len(page) < p.pageSize
	return nil
}

// scrolled takes the list's scroll metrics and reports whether a page was fetched.
func (p *historyPager) scrolled(offset, contentHeight, viewHeight float64) bool {
	return p.det.Update(offset, contentHeight, viewHeight)
}

func historyLine(s storage.Snapshot) string {
	reason := s.Reason
	if reason == "" {
		reason = "change"
	}
	return fmt.Sprintf("%s  %s (%d items)", s.TS.Local().Format("2006-01-02 15:04:05"), reason, s.Items)
}
