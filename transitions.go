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

// This file implements the per-(type, state) transition dispatch table of
// spec §4.2: computeNextState is the pure destination predicate, driven
// purely by the condition lattice and the node's own committed outcome;
// applyTransition performs the actual state change, the entry/exit
// condition (de)activation, timepoint stamping, and the structural side
// effects (waking parents and children) that let the quiescence loop
// reach fixpoint.

// ancestorExit/ancestorInvariantFalse/ancestorEnd read the three
// transitively-propagated slots (Conditions.Value walks the whole
// ancestor chain, not just the immediate parent); their dominance order
// (ancestor-exit over ancestor-invariant over ancestor-end, and ancestor
// conditions over the node's own Exit/Invariant) is enforced by checking
// them first in every caller below.
func ancestorExit(n *Node) bool           { return n.Conditions.Value(CondAncestorExit) == True }
func ancestorInvariantFalse(n *Node) bool { return n.Conditions.Value(CondAncestorInvariant) == False }
func ancestorEnd(n *Node) bool            { return n.Conditions.Value(CondAncestorEnd) == True }

// exitOrInvariantFailure checks the four dominance-ordered conditions
// that interrupt an active node: ancestor-exit, ancestor-invariant,
// local exit, local invariant. Returns ok=false if none hold.
func exitOrInvariantFailure(n *Node) (ok bool, outcome Outcome, ft FailureType) {
	switch {
	case ancestorExit(n):
		return true, OutcomeInterrupted, FailureParentExited
	case ancestorInvariantFalse(n):
		return true, OutcomeFailure, FailureParentFailed
	case n.Conditions.Value(CondExit) == True:
		return true, OutcomeInterrupted, FailureExited
	case n.Conditions.Value(CondInvariant) == False:
		return true, OutcomeFailure, FailureInvariantFailed
	}
	return false, OutcomeNone, FailureNone
}

// postOutcome evaluates Post once End has fired: an unset or true Post
// is a normal success, a false Post demotes the outcome to Failure/
// PostFailed without ever visiting Failing (a post-condition failure is
// detected only once the action has already finished).
func postOutcome(n *Node) (Outcome, FailureType) {
	if n.Conditions.Value(CondPost) == False {
		return OutcomeFailure, FailurePostFailed
	}
	return OutcomeSuccess, FailureNone
}

func computeNextState(n *Node) (NodeState, Outcome, FailureType) {
	switch n.state {
	case StateInactive:
		return computeInactive(n)
	case StateWaiting:
		return computeWaiting(n)
	case StateExecuting:
		switch n.Type {
		case NodeEmpty:
			return computeExecutingEmpty(n)
		case NodeAssignment:
			return computeExecutingAssignment(n)
		case NodeCommand, NodeUpdate:
			return computeExecutingAction(n)
		default: // NodeList, NodeLibraryCall
			return computeExecutingList(n)
		}
	case StateFinishing:
		return computeFinishing(n)
	case StateFailing:
		return computeFailing(n)
	case StateIterationEnded:
		return computeIterationEnded(n)
	case StateFinished:
		return computeFinished(n)
	}
	return n.state, n.outcome, n.failureType
}

func computeInactive(n *Node) (NodeState, Outcome, FailureType) {
	parentExecuting := n.IsRoot() || n.Parent().State() == StateExecuting
	if !parentExecuting {
		return StateInactive, n.outcome, n.failureType
	}
	if ancestorExit(n) || ancestorInvariantFalse(n) || ancestorEnd(n) {
		return StateFinished, OutcomeSkipped, FailureNone
	}
	return StateWaiting, OutcomeNone, FailureNone
}

func computeWaiting(n *Node) (NodeState, Outcome, FailureType) {
	if ancestorExit(n) || ancestorInvariantFalse(n) || ancestorEnd(n) ||
		n.Conditions.Value(CondExit) == True || n.Conditions.Value(CondSkip) == True {
		return StateFinished, OutcomeSkipped, FailureNone
	}
	if n.Conditions.Value(CondStart) == True {
		if n.Conditions.Value(CondPre) == True {
			return StateExecuting, OutcomeNone, FailureNone
		}
		return StateIterationEnded, OutcomeFailure, FailurePreFailed
	}
	return StateWaiting, n.outcome, n.failureType
}

func computeExecutingEmpty(n *Node) (NodeState, Outcome, FailureType) {
	if ok, oc, ft := exitOrInvariantFailure(n); ok {
		return StateIterationEnded, oc, ft
	}
	if n.Conditions.Value(CondEnd) == True {
		oc, ft := postOutcome(n)
		return StateIterationEnded, oc, ft
	}
	return StateExecuting, n.outcome, n.failureType
}

func computeExecutingAssignment(n *Node) (NodeState, Outcome, FailureType) {
	if ok, oc, ft := exitOrInvariantFailure(n); ok {
		return StateFailing, oc, ft
	}
	if n.Conditions.Value(CondActionComplete) == True {
		return StateIterationEnded, OutcomeSuccess, FailureNone
	}
	return StateExecuting, n.outcome, n.failureType
}

func computeExecutingAction(n *Node) (NodeState, Outcome, FailureType) {
	if ok, oc, ft := exitOrInvariantFailure(n); ok {
		return StateFailing, oc, ft
	}
	if n.Conditions.Value(CondEnd) == True {
		oc, ft := postOutcome(n)
		return StateFinishing, oc, ft
	}
	return StateExecuting, n.outcome, n.failureType
}

func computeExecutingList(n *Node) (NodeState, Outcome, FailureType) {
	if ok, oc, ft := exitOrInvariantFailure(n); ok {
		return StateFailing, oc, ft
	}
	if n.Conditions.Value(CondEnd) == True && n.Conditions.Value(CondActionComplete) == True {
		oc, ft := postOutcome(n)
		return StateFinishing, oc, ft
	}
	return StateExecuting, n.outcome, n.failureType
}

func computeFinishing(n *Node) (NodeState, Outcome, FailureType) {
	if ok, oc, ft := exitOrInvariantFailure(n); ok {
		return StateFailing, oc, ft
	}
	if n.Conditions.Value(CondActionComplete) == True {
		return StateIterationEnded, n.outcome, n.failureType
	}
	return StateFinishing, n.outcome, n.failureType
}

// computeFailing waits for the right "abort finished" signal per spec
// §4.2's type-specific rule: Assignment/Command/Update wait for the
// adapter's own AbortComplete, but a List/LibraryCall's abort is simply
// "every child has, in turn, also reached a terminal state" — the same
// ActionComplete signal used while Executing/Finishing, asserted by
// Node.childrenTerminal once the exit cascade reaches the leaves.
func computeFailing(n *Node) (NodeState, Outcome, FailureType) {
	slot := CondAbortComplete
	if n.Type == NodeList || n.Type == NodeLibraryCall {
		slot = CondActionComplete
	}
	if n.Conditions.Value(slot) == True {
		return StateIterationEnded, n.outcome, n.failureType
	}
	return StateFailing, n.outcome, n.failureType
}

func computeIterationEnded(n *Node) (NodeState, Outcome, FailureType) {
	if ancestorExit(n) {
		return StateFinished, OutcomeInterrupted, FailureParentExited
	}
	if ancestorInvariantFalse(n) {
		return StateFinished, OutcomeFailure, FailureParentFailed
	}
	if ancestorEnd(n) {
		return StateFinished, n.outcome, n.failureType
	}
	if n.Conditions.Value(CondRepeat) == True {
		return StateWaiting, OutcomeNone, FailureNone
	}
	return StateFinished, n.outcome, n.failureType
}

func computeFinished(n *Node) (NodeState, Outcome, FailureType) {
	if !n.IsRoot() && n.Parent().State() == StateWaiting {
		return StateInactive, OutcomeNone, FailureNone
	}
	return StateFinished, n.outcome, n.failureType
}

// activeSlots lists the condition slots that should be activated while
// a node of the given type sits in the given state. The ancestor slots
// are omitted deliberately: Conditions.Value reads them unconditionally
// regardless of activation (see condition.go), since their activation
// is governed entirely by the ancestor's own state.
func activeSlots(typ NodeType, state NodeState) []ConditionKind {
	switch state {
	case StateWaiting:
		return []ConditionKind{CondSkip, CondStart, CondPre, CondExit, CondInvariant}
	case StateExecuting:
		switch typ {
		case NodeAssignment:
			return []ConditionKind{CondExit, CondInvariant, CondActionComplete}
		case NodeList, NodeLibraryCall:
			return []ConditionKind{CondExit, CondInvariant, CondEnd, CondPost, CondActionComplete}
		default: // NodeEmpty, NodeCommand, NodeUpdate
			return []ConditionKind{CondExit, CondInvariant, CondEnd, CondPost}
		}
	case StateFinishing:
		return []ConditionKind{CondExit, CondInvariant, CondActionComplete}
	case StateFailing:
		if typ == NodeList || typ == NodeLibraryCall {
			return []ConditionKind{CondActionComplete}
		}
		return []ConditionKind{CondAbortComplete}
	case StateIterationEnded:
		return []ConditionKind{CondRepeat}
	default: // Inactive, Finished
		return nil
	}
}

// applyTransition performs the state change staged by computeNextState:
// (de)activates conditions for the old/new state, stamps timepoints,
// commits outcome/failureType, and triggers the structural side effects
// that wake parents and children (spec §4.6's "may enqueue its own
// children and siblings").
func (e *Executive) applyTransition(n *Node, now Time, next NodeState, outcome Outcome, ft FailureType) {
	old := n.state
	oldSlots := activeSlots(n.Type, old)
	newSlots := activeSlots(n.Type, next)
	for _, k := range oldSlots {
		if !containsSlot(newSlots, k) {
			n.Conditions.Deactivate(k)
		}
	}

	n.RecordTimepoint(old, true, now)

	n.state = next
	n.outcome = outcome
	n.failureType = ft
	n.hasNext = false

	if next == StateWaiting {
		n.ResetTimepoints()
		n.resetActionSignals()
	}

	for _, k := range newSlots {
		n.Conditions.Activate(k)
	}

	n.RecordTimepoint(next, false, now)

	e.onEnterState(n, old, next)

	// A node's own transition frequently unlocks a further transition
	// from its new state within the same macro step (e.g. Inactive to
	// Waiting, then immediately Waiting to Executing, if Start/Pre were
	// already true): re-check n itself. Termination is guaranteed by
	// drainCandidates's no-op when computeNextState again returns the
	// current state (spec §4.6's "Termination" note).
	e.addCandidate(n)
}

func containsSlot(slots []ConditionKind, k ConditionKind) bool {
	for _, s := range slots {
		if s == k {
			return true
		}
	}
	return false
}

// onEnterState fires the structural side effects of entering next,
// beyond condition activation: priming assignments, waking children,
// notifying parents, and registering finished roots.
func (e *Executive) onEnterState(n *Node, old, next NodeState) {
	switch next {
	case StateExecuting:
		if n.Type == NodeAssignment && n.assignment != nil {
			n.assignment.Activate()
			n.assignment.FixValue()
			e.enqueueAssignmentExecute(n.assignment)
		}
		if n.Type == NodeCommand || n.Type == NodeUpdate {
			e.trackActiveAction(n)
		}
		if n.Type == NodeList || n.Type == NodeLibraryCall {
			if n.actionCompleteObs != nil && !n.actionCompleteObs.value && n.childrenTerminal() {
				n.markActionComplete()
			}
		}
	case StateFailing:
		if n.Type == NodeAssignment && n.assignment != nil {
			e.enqueueAssignmentRetract(n.assignment)
		}
		if n.Type == NodeCommand || n.Type == NodeUpdate {
			e.untrackActiveAction(n)
			e.trackActiveAbort(n)
		}
	case StateWaiting:
		if old == StateIterationEnded {
			for _, c := range n.Children() {
				if c.state == StateFinished {
					e.addCandidate(c)
				}
			}
		}
	case StateFinished:
		if n.IsRoot() {
			e.addFinishedRoot(n)
		}
	case StateIterationEnded:
		if n.Type == NodeCommand || n.Type == NodeUpdate {
			if old == StateFinishing || old == StateExecuting {
				e.untrackActiveAction(n)
			}
			if old == StateFailing {
				e.untrackActiveAbort(n)
			}
		}
	}

	// Any transition of a List/LibraryCall node may have been driven by
	// a change to its own Exit/Invariant/End — exactly the slots its
	// children read as their AncestorExit/AncestorInvariant/AncestorEnd
	// (see notifyNodeConditionChanged's doc comment). Re-check them now,
	// regardless of which state n just entered, so a cascade (e.g. an
	// ancestor's Exit firing while several levels of List are active)
	// propagates one level per transition rather than stalling.
	if n.Type == NodeList || n.Type == NodeLibraryCall {
		for _, c := range n.Children() {
			e.addCandidate(c)
		}
	}

	if parent := n.Parent(); parent != nil {
		e.addCandidate(parent)
		if next == StateFinished && (parent.Type == NodeList || parent.Type == NodeLibraryCall) {
			if parent.actionCompleteObs != nil && !parent.actionCompleteObs.value && parent.childrenTerminal() {
				parent.markActionComplete()
			}
		}
	}
}
