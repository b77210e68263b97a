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

// ConditionKind names one of the 13 condition slots of spec §4.1.
type ConditionKind int

const (
	CondAncestorExit ConditionKind = iota
	CondAncestorInvariant
	CondAncestorEnd
	CondSkip
	CondStart
	CondPre
	CondExit
	CondInvariant
	CondEnd
	CondPost
	CondRepeat
	CondActionComplete
	CondAbortComplete
	numConditionKinds
)

func (k ConditionKind) String() string {
	switch k {
	case CondAncestorExit:
		return "AncestorExit"
	case CondAncestorInvariant:
		return "AncestorInvariant"
	case CondAncestorEnd:
		return "AncestorEnd"
	case CondSkip:
		return "Skip"
	case CondStart:
		return "Start"
	case CondPre:
		return "Pre"
	case CondExit:
		return "Exit"
	case CondInvariant:
		return "Invariant"
	case CondEnd:
		return "End"
	case CondPost:
		return "Post"
	case CondRepeat:
		return "Repeat"
	case CondActionComplete:
		return "ActionComplete"
	case CondAbortComplete:
		return "AbortComplete"
	default:
		return "Unknown"
	}
}

// isAncestorSlot reports whether k shadows the parent node's condition
// instead of owning/borrowing its own.
func (k ConditionKind) isAncestorSlot() bool {
	return k == CondAncestorExit || k == CondAncestorInvariant || k == CondAncestorEnd
}

// notListenedTo reports slots evaluated only at transition decision
// points, never subscribed to for candidate re-queueing (spec §4.1).
func (k ConditionKind) notListenedTo() bool {
	return k == CondPost || k == CondPre || k.isAncestorSlot()
}

type conditionSlot struct {
	expr      Expression
	owned     bool
	unsub     func()
	activated bool
}

// Conditions is the fixed-arity condition lattice attached to every Node.
type Conditions struct {
	slots [numConditionKinds]conditionSlot
	node  *Node // owner, for ancestor-slot shadowing and subscription callback
}

// Set installs expr into slot k. owned indicates the Node is responsible
// for the Expression's lifetime (deletion on node reset); an ancestor slot
// may never be set directly (use the Node.Parent() shadow instead).
func (c *Conditions) Set(k ConditionKind, expr Expression, owned bool) {
	if k.isAncestorSlot() {
		panic(fatalf(c.node, ErrInvariantViolation, "ancestor condition slots are never set directly: %s", k))
	}
	c.slots[k] = conditionSlot{expr: expr, owned: owned}
}

// Get returns the Expression bound to slot k. For an ancestor slot this
// is the immediate parent's corresponding slot (Exit/Invariant/End); the
// transitive propagation through the rest of the chain happens in Value,
// not here, since it cannot be expressed as a single borrowed Expression
// (see Value's ancestorValue).
func (c *Conditions) Get(k ConditionKind) Expression {
	if k.isAncestorSlot() {
		parent := c.node.Parent()
		if parent == nil {
			return nil
		}
		switch k {
		case CondAncestorExit:
			return parent.Conditions.Get(CondExit)
		case CondAncestorInvariant:
			return parent.Conditions.Get(CondInvariant)
		case CondAncestorEnd:
			return parent.Conditions.Get(CondEnd)
		}
	}
	return c.slots[k].expr
}

// Activate activates the condition at k (a no-op for unset or ancestor
// slots, since ancestor slots are owned and activated by the ancestor).
// Idempotent: re-activating an already-active owned slot is a no-op,
// since a node only ever enters a given state once before a matching
// Deactivate.
func (c *Conditions) Activate(k ConditionKind) {
	if k.isAncestorSlot() {
		return
	}
	s := &c.slots[k]
	if s.expr == nil || s.activated {
		return
	}
	s.expr.Activate()
	s.activated = true
	if !k.notListenedTo() {
		s.unsub = s.expr.Subscribe(c.node)
	}
}

// Deactivate deactivates the condition at k.
func (c *Conditions) Deactivate(k ConditionKind) {
	if k.isAncestorSlot() {
		return
	}
	s := &c.slots[k]
	if s.expr == nil || !s.activated {
		return
	}
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.expr.Deactivate()
	s.activated = false
}

// Value reads the tri-state value of slot k. A condition that is not
// active is a fatal error per spec §7, EXCEPT for ancestor slots, which
// are evaluated transitively across the whole ancestor chain (see
// ancestorValue) and are vacuously Unknown-turned-False/True at the root,
// and unset slots, which are vacuously Unknown.
func (c *Conditions) Value(k ConditionKind) TriState {
	if k.isAncestorSlot() {
		return c.ancestorValue(k)
	}
	expr := c.slots[k].expr
	if expr == nil {
		return Unknown
	}
	if !c.slots[k].activated {
		panic(fatalf(c.node, ErrConditionNotActive, "condition %s read while inactive", k))
	}
	return decodeBool(expr)
}

// ancestorValue implements the propagation spec §4.1 describes for the
// ancestor slots: an exit, invariant failure, or end raised anywhere
// above a node reaches every descendant beneath it, not merely its
// direct children. Each ancestor's own slot is read straight off its
// Expression rather than through Value, because by the time a deeply
// nested node checks this, an intermediate ancestor may already have
// left the state that keeps that slot active (it may itself already be
// Failing, having been interrupted by the same cascade).
func (c *Conditions) ancestorValue(k ConditionKind) TriState {
	var own ConditionKind
	var trigger TriState
	switch k {
	case CondAncestorExit:
		own, trigger = CondExit, True
	case CondAncestorInvariant:
		own, trigger = CondInvariant, False
	case CondAncestorEnd:
		own, trigger = CondEnd, True
	default:
		return Unknown
	}
	for p := c.node.Parent(); p != nil; p = p.Parent() {
		expr := p.Conditions.slots[own].expr
		if expr == nil {
			continue
		}
		if decodeBool(expr) == trigger {
			return trigger
		}
	}
	// No ancestor (or no ancestor at all) raised the condition: Invariant
	// defaults to holding, Exit/End default to not having fired.
	if k == CondAncestorInvariant {
		return True
	}
	return False
}

// decodeBool reads expr's current value as a TriState, treating both an
// unknown value and a non-boolean value as Unknown (spec §7).
func decodeBool(expr Expression) TriState {
	value, known := expr.GetValue()
	if !known {
		return Unknown
	}
	b, ok := value.(bool)
	if !ok {
		return Unknown
	}
	return BoolToTriState(b)
}

// DeactivateAll deactivates every owned/borrowed slot. The executive
// itself does not call it; applyTransition deactivates slot by slot.
func (c *Conditions) DeactivateAll() {
	for k := ConditionKind(0); k < numConditionKinds; k++ {
		c.Deactivate(k)
	}
}
