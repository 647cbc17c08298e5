/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scroll detects when a scrollable panel comes near its end.
package scroll

// DefaultThreshold is the distance from the bottom, in pixels, that counts as
// near the end.
const DefaultThreshold = 100.0

// Detector fires OnReachEnd once each time the viewport enters the near-end
// zone. It re-arms after the viewport leaves the zone again.
type Detector struct {
	Threshold  float64
	OnReachEnd func()

	inside bool
}

// NearEnd reports whether the viewport is within threshold of the bottom.
func NearEnd(scrollTop, scrollHeight, clientHeight, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return scrollHeight-(scrollTop+clientHeight) <= threshold
}

// Update feeds the current scroll metrics and reports whether OnReachEnd fired.
func (d *Detector) Update(scrollTop, scrollHeight, clientHeight float64) bool {
	near := NearEnd(scrollTop, scrollHeight, clientHeight, d.Threshold)
	fire := near && !d.inside
	d.inside = near
	if fire && d.OnReachEnd != nil {
		d.OnReachEnd()
	}
	return fire
}

// Reset re-arms the detector, e.g. after new content was appended.
func (d *Detector) Reset() { d.inside = false }
