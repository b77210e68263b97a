/*
   Copyright 2024 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package plexec

import "time"

// Time is wall-clock seconds since an arbitrary epoch. It is abstract so
// that a simulated clock can drive it deterministically in tests, per the
// source's use of IEEE-754 doubles for timestamps.
type Time float64

// Clock supplies the current Time to an ExternalWorld implementation.
type Clock interface {
	Now() Time
}

// RealClock reads the operating system clock.
type RealClock struct{}

func (RealClock) Now() Time { return Time(float64(time.Now().UnixNano()) / 1e9) }

// SimClock is a Clock driven entirely by test code, for deterministic
// timepoint assertions.
type SimClock struct {
	t Time
}

func NewSimClock(start Time) *SimClock { return &SimClock{t: start} }

func (c *SimClock) Now() Time { return c.t }

// Set moves the simulated clock to an arbitrary Time. Callers may move it
// backwards; NodeTimepointValue regression handling (see RecordTimepoint)
// decides whether that's visible to introspection.
func (c *SimClock) Set(t Time) { c.t = t }

// Advance moves the simulated clock forward by delta, which must be >= 0.
func (c *SimClock) Advance(delta Time) { c.t += delta }
