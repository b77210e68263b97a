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

// Assignment is the side-effect primitive scheduled separately from
// node state transitions (spec §3, §4.4). It is owned, created,
// activated, executed, and retracted exclusively by its enclosing Node.
type Assignment struct {
	node   *Node
	dest   Assignable
	rhs    Expression
	value  any
	known  bool
	ack    *observableBool
	abortC *observableBool

	queueNext *Assignment // intrusive link for the execute/retract queues
}

// observableBool is a boolean sub-variable with its own change
// notification, used for Assignment.ack and Assignment.abortComplete.
type observableBool struct {
	value     bool
	listeners []ChangeListener
}

func (o *observableBool) Get() (any, bool) { return o.value, true }
func (o *observableBool) Assert() {
	o.value = true
	for _, l := range o.listeners {
		if l != nil {
			l.NotifyChanged()
		}
	}
}
func (o *observableBool) Reset() { o.value = false }
func (o *observableBool) Subscribe(l ChangeListener) func() {
	o.listeners = append(o.listeners, l)
	idx := len(o.listeners) - 1
	return func() {
		if idx < len(o.listeners) && o.listeners[idx] == l {
			o.listeners[idx] = nil
		}
	}
}

// obsExpr adapts an observableBool into an Expression, so that intrinsic
// engine signals (an Assignment's ack/abortComplete, a Command's
// ActionComplete) can be read through the same Conditions lattice as
// plan-authored expressions. It is always considered active: these
// signals have no reference-counted activation of their own.
type obsExpr struct{ o *observableBool }

func adaptObservable(o *observableBool) Expression { return obsExpr{o: o} }

func (e obsExpr) Activate()   {}
func (e obsExpr) Deactivate() {}
func (e obsExpr) IsActive() bool { return true }
func (e obsExpr) GetValue() (any, bool) { return e.o.Get() }
func (e obsExpr) Subscribe(l ChangeListener) func() { return e.o.Subscribe(l) }
func (e obsExpr) String() string {
	if e.o.value {
		return "true"
	}
	return "false"
}

// NewAssignment constructs an Assignment for the given node, writing rhs
// into dest. Created when the plan is loaded; see spec §4.4.
func NewAssignment(node *Node, dest Assignable, rhs Expression) *Assignment {
	return &Assignment{
		node:   node,
		dest:   dest,
		rhs:    rhs,
		ack:    new(observableBool),
		abortC: new(observableBool),
	}
}

// Ack reports the ack sub-variable as a TriState; it is asserted by
// execute.
func (a *Assignment) Ack() TriState { return BoolToTriState(a.ack.value) }

// AbortComplete exposes the abortComplete sub-variable, asserted by
// retract.
func (a *Assignment) AbortComplete() TriState { return BoolToTriState(a.abortC.value) }

// SubscribeAck registers l against the ack sub-variable; used by the
// owning node's state machine to notice ack assertions as candidate
// triggers.
func (a *Assignment) SubscribeAck(l ChangeListener) func() { return a.ack.Subscribe(l) }

// SubscribeAbortComplete registers l against the abortComplete
// sub-variable.
func (a *Assignment) SubscribeAbortComplete(l ChangeListener) func() { return a.abortC.Subscribe(l) }

// Activate activates the destination and RHS expressions.
func (a *Assignment) Activate() {
	a.dest.Activate()
	a.rhs.Activate()
}

// Deactivate deactivates the destination and RHS expressions and clears
// the captured value.
func (a *Assignment) Deactivate() {
	a.dest.Deactivate()
	a.rhs.Deactivate()
	a.value = nil
	a.known = false
	a.ack.Reset()
	a.abortC.Reset()
}

// FixValue snapshots the destination's current value (for retraction)
// and captures the RHS value into the record. Called on entering
// Executing.
func (a *Assignment) FixValue() {
	a.dest.SaveCurrentValue()
	a.value, a.known = a.rhs.GetValue()
}

// Execute writes the captured value to the destination and asserts ack.
// Any error from the underlying write is fatal, per spec §4.4 (the
// expressions are assumed to have validated their own inputs during
// activation).
func (a *Assignment) Execute(l Listener) {
	var v any
	if a.known {
		v = a.value
	}
	if err := a.dest.SetValue(v); err != nil {
		panic(fatalf(a.node, ErrInvariantViolation, "assignment execute: %s", err))
	}
	a.ack.Assert()
	if l != nil {
		l.NotifyOfAssignment(a.node, a.dest, v)
	}
}

// Retract restores the destination to its pre-execute snapshot and
// asserts abortComplete.
func (a *Assignment) Retract(l Listener) {
	if err := a.dest.RestoreSavedValue(); err != nil {
		panic(fatalf(a.node, ErrInvariantViolation, "assignment retract: %s", err))
	}
	a.abortC.Assert()
	if l != nil {
		value, _ := a.dest.GetValue()
		l.NotifyOfAssignment(a.node, a.dest, value)
	}
}

// Destination returns the assignment's target variable, used by the
// conflict resolver to group by BaseVariable.
func (a *Assignment) Destination() Assignable { return a.dest }
