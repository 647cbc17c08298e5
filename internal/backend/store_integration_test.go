/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"notesboard/internal/domain"
)

func openPGForTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("NB_PG_DSN")
	if dsn == "" {
		t.Skip("NB_PG_DSN not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestE2E_PutGetListBoards(t *testing.T) {
	s := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name := "e2e-" + time.Now().Format("20060102150405.000000")
	t.Cleanup(func() { _ = s.DeleteBoard(context.Background(), name) })

	first := domain.Scene{Items: []domain.Item{
		domain.NewItem("box-1", domain.Point{X: 10, Y: 10}, domain.DefaultAttrs(domain.KindBox)),
	}}
	b1, err := s.PutBoard(ctx, name, first)
	if err != nil {
		t.Fatalf("PutBoard: %v", err)
	}
	if b1.Version != 1 {
		t.Fatalf("first version = %d", b1.Version)
	}

	second := first.Clone()
	second.Items = append(second.Items, domain.NewItem("circle-1", domain.Point{X: 90, Y: 90}, domain.DefaultAttrs(domain.KindCircle)))
	b2, err := s.PutBoard(ctx, name, second)
	if err != nil {
		t.Fatalf("PutBoard again: %v", err)
	}
	if b2.Version != 2 {
		t.Fatalf("second version = %d", b2.Version)
	}

	got, err := s.GetBoard(ctx, name)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if got.Version != 2 || got.Scene.Len() != 2 || got.Scene.Items[1].ID != "circle-1" {
		t.Fatalf("GetBoard = %+v", got)
	}
	old, err := s.GetBoardVersion(ctx, name, 1)
	if err != nil || old.Scene.Len() != 1 {
		t.Fatalf("GetBoardVersion(1) = %+v, %v", old, err)
	}

	list, err := s.ListBoards(ctx)
	if err != nil {
		t.Fatalf("ListBoards: %v", err)
	}
	found := false
	for _, bi := range list {
		if bi.Name == name {
			found = bi.Items == 2 && bi.Version == 2
		}
	}
	if !found {
		t.Fatalf("board %s missing or stale in %+v", name, list)
	}

	// migrations are idempotent
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.DeleteBoard(ctx, name); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if _, err := s.GetBoard(ctx, name); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
