/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"notesboard/internal/domain"
	applog "notesboard/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu  sync.Mutex
	got []DragEvent
}

func (r *recorder) OnDragEvent(e DragEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBus(applog.Discard())
	b.Publish(NewDragEvent(DragStart, "a", domain.Point{}, domain.Point{}))
	assert.Equal(t, 0, b.Len())
	var nilBus *Bus
	nilBus.Publish(DragEvent{})
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	b := NewBus(applog.Discard())
	var order []string
	un1 := b.Subscribe(ObserverFunc(func(DragEvent) { order = append(order, "one") }))
	un2 := b.Subscribe(ObserverFunc(func(DragEvent) { order = append(order, "two") }))
	require.Equal(t, 2, b.Len())

	b.Publish(DragEvent{Type: DragMove})
	assert.Equal(t, []string{"one", "two"}, order)

	un1()
	un1()
	assert.Equal(t, 1, b.Len())
	b.Publish(DragEvent{Type: DragMove})
	assert.Equal(t, []string{"one", "two", "two"}, order)
	un2()
	assert.Equal(t, 0, b.Len())
}

func TestPanickingObserverDoesNotStopDelivery(t *testing.T) {
	b := NewBus(applog.Discard())
	rec := &recorder{}
	b.Subscribe(ObserverFunc(func(DragEvent) { panic("boom") }))
	b.Subscribe(rec)
	b.Publish(NewDragEvent(DragStart, "x", domain.Point{X: 1}, domain.Point{X: 1}))
	require.Len(t, rec.got, 1)
	assert.Equal(t, "x", rec.got[0].ItemID)
}

func TestUnsubscribeInsideCallback(t *testing.T) {
	b := NewBus(applog.Discard())
	var un func()
	calls := 0
	un = b.Subscribe(ObserverFunc(func(DragEvent) { calls++; un() }))
	b.Publish(DragEvent{})
	b.Publish(DragEvent{})
	assert.Equal(t, 1, calls)
}

func TestDragEventJSON(t *testing.T) {
	move := NewDragEvent(DragMove, "box-1", domain.Point{X: 1, Y: 2}, domain.Point{X: 3, Y: 4})
	b, err := json.Marshal(move)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"dragMove","itemId":"box-1","startX":1,"startY":2,"currentX":3,"currentY":4}`, string(b))

	end := NewDragEvent(DragEnd, "box-1", domain.Point{X: 1, Y: 2}, domain.Point{X: 30, Y: 40})
	b, err = json.Marshal(end)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"dragEnd","itemId":"box-1","startX":1,"startY":2,"currentX":30,"currentY":40,"endX":30,"endY":40}`, string(b))
	assert.Contains(t, end.String(), "end=(30,40)")
}

func TestConcurrentPublish(t *testing.T) {
	b := NewBus(applog.Discard())
	rec := &recorder{}
	b.Subscribe(rec)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(DragEvent{Type: DragMove})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, rec.got, 400)
}

func TestManualSource(t *testing.T) {
	src := NewManualSource()
	_, ok := src.LastPointer()
	assert.False(t, ok)

	var seen []domain.Point
	var sizes []domain.Size
	unP := src.SubscribePointer(func(p domain.Point) { seen = append(seen, p) })
	unR := src.SubscribeResize(func(s domain.Size) { sizes = append(sizes, s) })
	p, r := src.Subscribers()
	assert.Equal(t, 1, p)
	assert.Equal(t, 1, r)

	src.MovePointer(domain.Point{X: 5, Y: 6})
	src.Resize(domain.Size{Width: 800, Height: 600})
	unP()
	unR()
	src.MovePointer(domain.Point{X: 7, Y: 8})

	assert.Equal(t, []domain.Point{{X: 5, Y: 6}}, seen)
	assert.Equal(t, []domain.Size{{Width: 800, Height: 600}}, sizes)
	last, ok := src.LastPointer()
	assert.True(t, ok)
	assert.Equal(t, domain.Point{X: 7, Y: 8}, last)
	assert.Equal(t, domain.Size{Width: 800, Height: 600}, src.Size())
}
