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

import (
	"context"

	bigbuff "github.com/joeycumines/go-bigbuff"
)

// TransitionRecord pairs a node with the state it held immediately
// before the transition just applied: spec §4.8's "(node, previousState)"
// tuple, published once per quiescence cycle.
type TransitionRecord struct {
	Node     *Node
	Previous NodeState
}

// Listener receives the engine's two outbound event kinds, plus the
// PlanError diagnostic channel supplementing ExecListenerBase's
// double-dispatch design (see SPEC_FULL.md DOMAIN STACK). Callbacks run
// inline within Step (spec §9); a Listener implementation must not
// call back into the Executive.
type Listener interface {
	NotifyOfTransitions(batch []TransitionRecord)
	NotifyOfAssignment(node *Node, dest Assignable, value any)
	NotifyOfPlanError(err *PlanError)
}

// NullListener discards every event. A nil Executive.listener is never
// dereferenced directly; SetListener (and WithListener, which calls it)
// substitutes NullListener for a nil Listener, per spec §4.8 ("the engine must tolerate its absence without
// branching into diagnostics").
type NullListener struct{}

func (NullListener) NotifyOfTransitions([]TransitionRecord)    {}
func (NullListener) NotifyOfAssignment(*Node, Assignable, any) {}
func (NullListener) NotifyOfPlanError(*PlanError)              {}

// BroadcastListener fans each event out to any number of subscriber
// channels, grounded on go-bigbuff.Notifier's key/target publish-
// subscribe model (the same idiom fangrpcstream.Stream uses to fan a
// single gRPC receive loop out to concurrent callers). Inner, if set,
// is invoked synchronously before the broadcast, so one process can
// both react to and separately observe the same event stream (e.g. a
// plan-tree printer reacting inline, and a tcell monitor subscribed for
// redraws).
type BroadcastListener struct {
	Inner Listener

	transitions bigbuff.Notifier
	assignments bigbuff.Notifier
	planErrors  bigbuff.Notifier
}

func (b *BroadcastListener) NotifyOfTransitions(batch []TransitionRecord) {
	if b.Inner != nil {
		b.Inner.NotifyOfTransitions(batch)
	}
	b.transitions.PublishContext(context.Background(), nil, batch)
}

func (b *BroadcastListener) NotifyOfAssignment(node *Node, dest Assignable, value any) {
	if b.Inner != nil {
		b.Inner.NotifyOfAssignment(node, dest, value)
	}
	b.assignments.PublishContext(context.Background(), nil, assignmentEvent{Node: node, Dest: dest, Value: value})
}

func (b *BroadcastListener) NotifyOfPlanError(err *PlanError) {
	if b.Inner != nil {
		b.Inner.NotifyOfPlanError(err)
	}
	b.planErrors.PublishContext(context.Background(), nil, err)
}

// assignmentEvent is the value type broadcast by NotifyOfAssignment.
type assignmentEvent struct {
	Node  *Node
	Dest  Assignable
	Value any
}

// SubscribeTransitions registers target to receive every future
// transition batch, until ctx is cancelled or the returned
// context.CancelFunc is called.
func (b *BroadcastListener) SubscribeTransitions(ctx context.Context, target chan<- []TransitionRecord) context.CancelFunc {
	return b.transitions.SubscribeCancel(ctx, nil, target)
}

// SubscribeAssignments registers target to receive every future
// assignment execute/retract event.
func (b *BroadcastListener) SubscribeAssignments(ctx context.Context, target chan<- assignmentEvent) context.CancelFunc {
	return b.assignments.SubscribeCancel(ctx, nil, target)
}

// SubscribePlanErrors registers target to receive every future
// PlanError diagnostic.
func (b *BroadcastListener) SubscribePlanErrors(ctx context.Context, target chan<- *PlanError) context.CancelFunc {
	return b.planErrors.SubscribeCancel(ctx, nil, target)
}
