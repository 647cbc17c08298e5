/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"notesboard/internal/domain"
	"notesboard/internal/events"
	applog "notesboard/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// seqIDs returns a deterministic id generator: box-1, circle-2, ...
func seqIDs() Option {
	n := 0
	return WithIDGenerator(func(k domain.Kind) string {
		n++
		return fmt.Sprintf("%s-%d", k, n)
	})
}

func newBoard(t *testing.T, opts ...Option) *Board {
	t.Helper()
	opts = append([]Option{seqIDs(), WithLogger(applog.Discard())}, opts...)
	b, err := New(domain.Scene{}, opts...)
	require.NoError(t, err)
	return b
}

func TestNewRejectsInvalidScene(t *testing.T) {
	bad := domain.Scene{Items: []domain.Item{
		domain.NewItem("a", domain.Point{}, domain.DefaultAttrs(domain.KindBox)),
		domain.NewItem("a", domain.Point{}, domain.DefaultAttrs(domain.KindBox)),
	}}
	_, err := New(bad, WithLogger(applog.Discard()))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidScene)
}

func TestAddItemDefaults(t *testing.T) {
	b := newBoard(t)
	box, err := b.AddItem(domain.KindBox, domain.Point{X: 10, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, "box-1", box.ID)
	assert.Equal(t, domain.Size{Width: 100, Height: 80}, box.Size())
	assert.Equal(t, "#4a90e2", box.Color())

	c, err := b.AddItem(domain.KindCircle, domain.Point{X: 200, Y: 200})
	require.NoError(t, err)
	assert.Equal(t, domain.KindCircle, c.Kind())
	assert.Equal(t, 2, b.Scene().Len())

	_, err = b.AddItem("triangle", domain.Point{})
	assert.Error(t, err)
}

func TestDefaultIDsAreUnique(t *testing.T) {
	b, err := New(domain.Scene{}, WithLogger(applog.Discard()))
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		it, err := b.AddItem(domain.KindBox, domain.Point{})
		require.NoError(t, err)
		assert.Regexp(t, `^box-[0-9a-f-]{36}$`, it.ID)
		assert.False(t, seen[it.ID])
		seen[it.ID] = true
	}
}

func TestIDCollisionIsRegenerated(t *testing.T) {
	ids := []string{"x", "x", "y"}
	i := 0
	b := newBoard(t, WithIDGenerator(func(domain.Kind) string { id := ids[i]; i++; return id }))
	_, err := b.AddItem(domain.KindBox, domain.Point{})
	require.NoError(t, err)
	it, err := b.AddItem(domain.KindBox, domain.Point{})
	require.NoError(t, err)
	assert.Equal(t, "y", it.ID)

	stuck := newBoard(t, WithIDGenerator(func(domain.Kind) string { return "x" }))
	_, err = stuck.AddItem(domain.KindBox, domain.Point{})
	require.NoError(t, err)
	_, err = stuck.AddItem(domain.KindBox, domain.Point{})
	assert.Error(t, err)
}

func TestSceneReturnsCopy(t *testing.T) {
	b := newBoard(t)
	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	s := b.Scene()
	s.Items[0].Position.X = 999
	it, _ := b.Item("box-1")
	assert.Equal(t, 0.0, it.Position.X)
}

func TestRemoveClearReplace(t *testing.T) {
	b := newBoard(t)
	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	_, _ = b.AddItem(domain.KindCircle, domain.Point{X: 100, Y: 100})

	require.NoError(t, b.RemoveItem("box-1"))
	err := b.RemoveItem("box-1")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.True(t, IsBenign(err))

	b.Clear()
	assert.Equal(t, 0, b.Scene().Len())

	next := domain.Scene{Items: []domain.Item{domain.NewItem("k", domain.Point{X: 5}, domain.DefaultAttrs(domain.KindBox))}}
	require.NoError(t, b.Replace(next))
	if diff := cmp.Diff(next.Items[0].ID, b.Scene().Items[0].ID); diff != "" {
		t.Fatalf("replace mismatch (-want +got):\n%s", diff)
	}

	bad := domain.Scene{Items: []domain.Item{domain.NewItem("", domain.Point{}, domain.DefaultAttrs(domain.KindBox))}}
	require.Error(t, b.Replace(bad))
	assert.Equal(t, 1, b.Scene().Len(), "failed replace must keep the scene")
}

func TestSetLabelAndResize(t *testing.T) {
	b := newBoard(t)
	_, _ = b.AddItem(domain.KindCircle, domain.Point{X: 100, Y: 100})
	require.NoError(t, b.SetLabel("circle-1", "idea"))
	it, _ := b.Item("circle-1")
	assert.Equal(t, "idea", it.Label)

	require.NoError(t, b.Resize("circle-1", &domain.CircleAttrs{Radius: 10, Color: "#000"}))
	it, _ = b.Item("circle-1")
	assert.Equal(t, 20.0, it.Size().Width)

	assert.Error(t, b.Resize("circle-1", &domain.BoxAttrs{Width: 1, Height: 1}))
	assert.Error(t, b.Resize("circle-1", &domain.CircleAttrs{Radius: 0}))
	assert.ErrorIs(t, b.SetLabel("nope", "x"), ErrItemNotFound)
}

func TestCopyPaste(t *testing.T) {
	b := newBoard(t, WithBounds(400, 300))
	_, err := b.Paste()
	assert.ErrorIs(t, err, ErrClipboardEmpty)
	assert.False(t, b.HasClipboard())

	_, _ = b.AddItem(domain.KindBox, domain.Point{X: 10, Y: 10})
	require.NoError(t, b.SetLabel("box-1", "note"))
	require.NoError(t, b.Copy("box-1"))
	assert.ErrorIs(t, b.Copy("missing"), ErrItemNotFound)

	p, err := b.Paste()
	require.NoError(t, err)
	assert.NotEqual(t, "box-1", p.ID)
	assert.Equal(t, domain.Point{X: 30, Y: 30}, p.Position)
	assert.Equal(t, "note", p.Label)
}

func TestPasteIsPulledBackInside(t *testing.T) {
	b := newBoard(t, WithBounds(400, 300))
	_, _ = b.AddItem(domain.KindBox, domain.Point{X: 300, Y: 220})
	require.NoError(t, b.Copy("box-1"))
	p, err := b.Paste()
	require.NoError(t, err)
	// 400-100-20, 300-80-20
	assert.Equal(t, domain.Point{X: 280, Y: 200}, p.Position)
}

func TestAddIsClampedToBounds(t *testing.T) {
	b := newBoard(t, WithBounds(400, 300))
	it, _ := b.AddItem(domain.KindBox, domain.Point{X: 390, Y: -10})
	assert.Equal(t, domain.Point{X: 300, Y: 0}, it.Position)

	free := newBoard(t, WithBounds(400, 300), WithClamp(false))
	it, _ = free.AddItem(domain.KindBox, domain.Point{X: 390, Y: -10})
	assert.Equal(t, domain.Point{X: 390, Y: -10}, it.Position)
}

func TestAddLabeledIsOneHistoryStep(t *testing.T) {
	b := newBoard(t)
	it, err := b.AddLabeled(domain.KindCircle, domain.Point{X: 80, Y: 80}, "idea")
	require.NoError(t, err)
	assert.Equal(t, "idea", it.Label)
	got, _ := b.Item(it.ID)
	assert.Equal(t, "idea", got.Label)

	u, _ := b.HistoryDepth()
	assert.Equal(t, 1, u)
	require.NoError(t, b.Undo())
	assert.Equal(t, 0, b.Scene().Len())

	_, err = b.AddLabeled("triangle", domain.Point{}, "x")
	assert.Error(t, err)
}

func TestUndoRedo(t *testing.T) {
	b := newBoard(t)
	assert.False(t, b.CanUndo())
	assert.ErrorIs(t, b.Undo(), ErrNoHistory)

	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	_, _ = b.AddItem(domain.KindCircle, domain.Point{X: 100, Y: 100})
	require.NoError(t, b.SetLabel("box-1", "x"))

	require.NoError(t, b.Undo())
	it, _ := b.Item("box-1")
	assert.Equal(t, "", it.Label)
	require.NoError(t, b.Undo())
	assert.Equal(t, 1, b.Scene().Len())
	assert.True(t, b.CanRedo())

	require.NoError(t, b.Redo())
	assert.Equal(t, 2, b.Scene().Len())
	u, r := b.HistoryDepth()
	assert.Equal(t, 2, u)
	assert.Equal(t, 1, r)

	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	assert.False(t, b.CanRedo())
}

func TestHistoryDepthCap(t *testing.T) {
	b := newBoard(t, WithHistoryDepth(3))
	for i := 0; i < 10; i++ {
		_, _ = b.AddItem(domain.KindBox, domain.Point{})
	}
	undone := 0
	for b.Undo() == nil {
		undone++
	}
	assert.Equal(t, 3, undone)
	assert.Equal(t, 7, b.Scene().Len())
}

func TestZoomClamps(t *testing.T) {
	b := newBoard(t)
	assert.Equal(t, 1.0, b.Zoom())
	assert.Equal(t, 1.1, b.ZoomIn())
	for i := 0; i < 20; i++ {
		b.ZoomIn()
	}
	assert.Equal(t, MaxZoom, b.Zoom())
	for i := 0; i < 30; i++ {
		b.ZoomOut()
	}
	assert.Equal(t, MinZoom, b.Zoom())
	assert.Equal(t, 1.0, b.ResetZoom())
	assert.Equal(t, 2.0, b.SetZoom(7))
}

func TestViewConversionAndHitTest(t *testing.T) {
	b := newBoard(t, WithBounds(400, 400))
	_, _ = b.AddItem(domain.KindBox, domain.Point{X: 150, Y: 150})
	b.SetZoom(2)
	// zoom 2 around (200,200): board (160,160) maps to view (120,120)
	v := b.ToView(domain.Point{X: 160, Y: 160})
	assert.Equal(t, domain.Point{X: 120, Y: 120}, v)
	assert.Equal(t, domain.Point{X: 160, Y: 160}, b.ToBoard(v))
	it, ok := b.ItemAtView(v)
	require.True(t, ok)
	assert.Equal(t, "box-1", it.ID)
	_, ok = b.ItemAt(domain.Point{X: 10, Y: 10})
	assert.False(t, ok)
}

func TestOnChange(t *testing.T) {
	b := newBoard(t)
	var got []int
	stop := b.OnChange(func(s domain.Scene) { got = append(got, s.Len()) })
	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	stop()
	b.Clear()
	assert.Equal(t, []int{1, 2}, got)
}

func TestBusReceivesEventsOnlyWhenConfigured(t *testing.T) {
	bus := events.NewBus(applog.Discard())
	var types []events.DragEventType
	unsub := bus.Subscribe(events.ObserverFunc(func(e events.DragEvent) { types = append(types, e.Type) }))
	defer unsub()

	b := newBoard(t, WithBus(bus))
	_, _ = b.AddItem(domain.KindBox, domain.Point{})
	require.NoError(t, b.StartDrag("box-1", domain.Point{}))
	require.NoError(t, b.UpdateDrag(domain.Point{X: 5}))
	require.NoError(t, b.EndDrag())
	assert.Equal(t, []events.DragEventType{events.DragStart, events.DragMove, events.DragEnd}, types)

	quiet := newBoard(t)
	_, _ = quiet.AddItem(domain.KindBox, domain.Point{})
	require.NoError(t, quiet.StartDrag("box-1", domain.Point{}))
	require.NoError(t, quiet.EndDrag())
	assert.Len(t, types, 3)
}

func TestIsBenign(t *testing.T) {
	assert.True(t, IsBenign(fmt.Errorf("wrap: %w", ErrItemNotFound)))
	assert.False(t, IsBenign(ErrInvalidTransition))
	assert.False(t, IsBenign(errors.New("other")))
}
