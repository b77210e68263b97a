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

package demoplan

import (
	plexec "github.com/joeycumines/go-plexec"
)

// World is a minimal plexec.ExternalWorld: a simulated clock, an inbound
// event queue a test or CLI driver fills between Step calls, and an
// outbound action counter standing in for whatever real dispatch queue
// a production adapter would flush (spec §6's "outbound queue executed
// at macro-step boundaries").
type World struct {
	Clock *plexec.SimClock

	inbound []plexec.Event

	cycleCount   int
	outboundFlushes int
}

// NewWorld constructs a World whose clock starts at t0.
func NewWorld(t0 plexec.Time) *World {
	return &World{Clock: plexec.NewSimClock(t0)}
}

func (w *World) CurrentTime() plexec.Time { return w.Clock.Now() }

func (w *World) IncrementCycleCount() { w.cycleCount++ }

// CycleCount returns the number of macro-step cycles completed so far.
func (w *World) CycleCount() int { return w.cycleCount }

// OutboundQueueEmpty always reports true: this demo world has nothing
// of its own to flush (an Assignment/Command's effect already lands
// synchronously via Var.SetValue / the ticked ActionHandle). A
// production adapter backed by a real transport would track its own
// pending-send count here instead.
func (w *World) OutboundQueueEmpty() bool { return true }

func (w *World) ExecuteOutboundQueue() { w.outboundFlushes++ }

// QueueEvent stages an inbound event to be drained on the next Step.
func (w *World) QueueEvent(name string, payload any) {
	w.inbound = append(w.inbound, plexec.Event{Name: name, Payload: payload})
}

func (w *World) DrainInboundEvents() []plexec.Event {
	out := w.inbound
	w.inbound = nil
	return out
}
