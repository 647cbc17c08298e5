/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scroll

import "testing"

func TestDetectorFiresOncePerEntry(t *testing.T) {
	calls := 0
	d := &Detector{OnReachEnd: func() { calls++ }}
	steps := []struct {
		top  float64
		want bool
	}{
		{0, false},   // 1000 - 400 = 600 left
		{450, false}, // 150 left
		{520, true},  // 80 left: enters zone
		{580, false}, // still inside
		{300, false}, // leaves
		{600, true},  // enters again
	}
	for i, s := range steps {
		if got := d.Update(s.top, 1000, 400); got != s.want {
			t.Fatalf("step %d (top=%v): fired=%v want %v", i, s.top, got, s.want)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestShortContentIsAlwaysNearEnd(t *testing.T) {
	d := &Detector{Threshold: 10}
	if !d.Update(0, 100, 400) {
		t.Fatalf("content shorter than the viewport should fire")
	}
	d.Reset()
	if !d.Update(0, 100, 400) {
		t.Fatalf("reset should re-arm")
	}
}

func TestNearEndThreshold(t *testing.T) {
	if NearEnd(0, 1000, 400, 50) {
		t.Fatalf("far from end")
	}
	if !NearEnd(560, 1000, 400, 50) {
		t.Fatalf("40px left should be near with threshold 50")
	}
	if !NearEnd(500, 1000, 400, 0) {
		t.Fatalf("zero threshold uses the default")
	}
}
