//go:build fyne && cgo

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

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"notesboard/internal/storage"
)

// historyView lists the workspace history and pages in older entries as the
// list is scrolled towards its end.
type historyView struct {
	pager  *historyPager
	rows   *fyne.Container
	scroll *container.Scroll
	status *widget.Label
}

func newHistoryView(ws *storage.Workspace) *historyView {
	v := &historyView{
		pager:  newHistoryPager(ws, historyPageSize),
		rows:   container.NewVBox(),
		status: widget.NewLabel(""),
	}
	v.scroll = container.NewVScroll(v.rows)
	v.scroll.OnScrolled = func(pos fyne.Position) {
		if v.pager.scrolled(float64(pos.Y), float64(v.rows.MinSize().Height), float64(v.scroll.Size().Height)) {
			v.sync()
		}
	}
	v.pager.err = v.pager.next(context.Background())
	v.sync()
	return v
}

// sync appends rows for newly loaded entries and updates the status line.
func (v *historyView) sync() {
	for i := len(v.rows.Objects); i < len(v.pager.entries); i++ {
		v.rows.Add(widget.NewLabel(historyLine(v.pager.entries[i])))
	}
	switch {
	case v.pager.err != nil:
		v.status.SetText("History unavailable: " + v.pager.err.Error())
	case len(v.pager.entries) == 0:
		v.status.SetText("No recorded changes.")
	case v.pager.done:
		v.status.SetText(fmt.Sprintf("%d changes", len(v.pager.entries)))
	default:
		v.status.SetText(fmt.Sprintf("%d changes, scroll for older", len(v.pager.entries)))
	}
}

func (v *historyView) content() fyne.CanvasObject {
	return container.NewBorder(nil, v.status, nil, nil, v.scroll)
}

func showHistory(a fyne.App, ws *storage.Workspace) {
	w := a.NewWindow("History")
	w.SetContent(newHistoryView(ws).content())
	w.Resize(fyne.NewSize(460, 420))
	w.Show()
}
