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

import "math"

// NodeID is an index handle into a Plan's node arena. Nodes refer to
// their parent and children by NodeID rather than by pointer, so that
// storage ownership lives entirely with the Plan/Executive, per the
// REDESIGN FLAGS note in spec §9 on cyclic parent/child back-pointers.
type NodeID int

// NodeIDNone is the sentinel parent id for a plan root.
const NodeIDNone NodeID = -1

// Plan is the arena owning every Node of one root's subtree. The
// Executive owns a Plan per root; a Node is never self-owning.
type Plan struct {
	nodes []*Node
	root  NodeID
	exec  *Executive
}

// NewPlan constructs an empty arena. Call NewNode with a nil parent
// exactly once to establish the root.
func NewPlan() *Plan {
	return &Plan{root: NodeIDNone}
}

// Root returns the plan's root Node, or nil if none has been created.
func (p *Plan) Root() *Node {
	if p.root == NodeIDNone {
		return nil
	}
	return p.nodes[p.root]
}

// Node resolves a NodeID to its Node, or nil for NodeIDNone.
func (p *Plan) Node(id NodeID) *Node {
	if id == NodeIDNone {
		return nil
	}
	return p.nodes[id]
}

// NodeOption configures a Node at construction time.
type NodeOption func(*Node)

// WithPriority sets the node's arbitration priority (lower is
// stronger); meaningful only for Assignment nodes. Defaults to
// math.MaxUint32 (weakest), matching spec §3.
func WithPriority(priority uint32) NodeOption {
	return func(n *Node) { n.Priority = priority }
}

// Node represents one plan instruction; see spec §3 for the full
// attribute list.
type Node struct {
	ID       string
	Type     NodeType
	Priority uint32

	plan     *Plan
	handle   NodeID
	parent   NodeID
	children []NodeID // owned order; List/LibraryCall only

	state       NodeState
	outcome     Outcome
	failureType FailureType

	nextState       NodeState
	nextOutcome     Outcome
	nextFailureType FailureType
	hasNext         bool

	queueStatus  QueueStatus
	queueNext    *Node
	finishedNext *Node

	Conditions Conditions
	Variables  *VariableMap

	assignment *Assignment  // set iff Type == NodeAssignment
	action     ActionHandle // set for Command/Update nodes; only those are ticked

	// actionCompleteObs/abortCompleteObs back the intrinsic
	// CondActionComplete/CondAbortComplete slots for Command, Update,
	// List, and LibraryCall nodes: these two conditions are never
	// plan-authored (see Conditions.Set's ancestor-slot panic for the
	// analogous rule on ancestor slots), they are asserted by the
	// engine itself as the node's primary effect and abort complete.
	// Assignment nodes instead source these slots from their
	// Assignment's ack/abortC, wired in SetAssignment.
	actionCompleteObs *observableBool
	abortCompleteObs  *observableBool

	timepoints    []NodeTimepointValue
	lastTimepoint Time
	haveTimepoint bool

	// PlanErrors is a small bounded ring of diagnostic messages
	// generated while evaluating this node (original_source
	// supplement, see SPEC_FULL.md DOMAIN STACK item 3).
	PlanErrors []string
}

const maxPlanErrors = 8

func (n *Node) recordPlanError(msg string) {
	n.PlanErrors = append(n.PlanErrors, msg)
	if len(n.PlanErrors) > maxPlanErrors {
		n.PlanErrors = n.PlanErrors[len(n.PlanErrors)-maxPlanErrors:]
	}
}

// NewNode appends a new Node to parent's plan arena (or starts a new
// Plan's root, if parent is nil). A root NewNode call with a nil parent
// must be the first call for its Plan.
func (p *Plan) NewNode(id string, typ NodeType, parent *Node, opts ...NodeOption) *Node {
	n := &Node{
		ID:       id,
		Type:     typ,
		Priority: math.MaxUint32,
		plan:     p,
		parent:   NodeIDNone,
		state:    StateInactive,
	}
	n.Conditions.node = n
	n.handle = NodeID(len(p.nodes))
	p.nodes = append(p.nodes, n)
	if parent != nil {
		n.parent = parent.handle
		parent.children = append(parent.children, n.handle)
		n.Variables = NewVariableMap(parent.Variables)
	} else {
		p.root = n.handle
		n.Variables = NewVariableMap(nil)
	}
	switch typ {
	case NodeAssignment:
		// assignment is attached separately via SetAssignment, once the
		// destination/RHS expressions are known to the plan builder.
	case NodeCommand, NodeUpdate, NodeList, NodeLibraryCall:
		n.actionCompleteObs = new(observableBool)
		n.abortCompleteObs = new(observableBool)
		n.Conditions.Set(CondActionComplete, adaptObservable(n.actionCompleteObs), true)
		n.Conditions.Set(CondAbortComplete, adaptObservable(n.abortCompleteObs), true)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetAssignment attaches the Assignment record to an Assignment-type
// node, and wires the node's intrinsic CondActionComplete/
// CondAbortComplete slots to the assignment's ack/abortComplete
// sub-variables: for an Assignment node, "the primary action finished"
// means the write was acknowledged, and "the abort finished" means the
// restored value was acknowledged. Must be called before activation.
func (n *Node) SetAssignment(a *Assignment) {
	if n.Type != NodeAssignment {
		panic(fatalf(n, ErrInvariantViolation, "SetAssignment called on non-Assignment node"))
	}
	n.assignment = a
	n.Conditions.Set(CondActionComplete, adaptObservable(a.ack), false)
	n.Conditions.Set(CondAbortComplete, adaptObservable(a.abortC), false)
}

// Assignment returns the node's Assignment record, or nil.
func (n *Node) Assignment() *Assignment { return n.assignment }

// SetAction attaches the action handle to a Command/Update node; the
// executive ticks actions of those two types only. See action.go.
func (n *Node) SetAction(h ActionHandle) { n.action = h }

// ActionCompleteExpression exposes the node's intrinsic ActionComplete
// signal as a read-only Expression, so a plan builder can wire a
// List/LibraryCall's End condition to "children done" without a
// separate gating condition of its own (the common case: such a node
// finishes the moment its children do, with no extra delay). Returns
// nil for a node type with no intrinsic signal of its own (Assignment
// sources ActionComplete from its Assignment record instead).
func (n *Node) ActionCompleteExpression() Expression {
	if n.actionCompleteObs == nil {
		return nil
	}
	return adaptObservable(n.actionCompleteObs)
}

// Parent returns the node's parent, or nil for a plan root.
func (n *Node) Parent() *Node { return n.plan.Node(n.parent) }

// IsRoot reports whether this node has no parent.
func (n *Node) IsRoot() bool { return n.parent == NodeIDNone }

// Children returns the node's owned children in order (List/LibraryCall
// only; empty for other types).
func (n *Node) Children() []*Node {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]*Node, len(n.children))
	for i, id := range n.children {
		out[i] = n.plan.Node(id)
	}
	return out
}

// Plan returns the owning Plan arena.
func (n *Node) Plan() *Plan { return n.plan }

// State returns the node's current state.
func (n *Node) State() NodeState { return n.state }

// Outcome returns the node's current outcome.
func (n *Node) Outcome() Outcome { return n.outcome }

// FailureType returns the node's current failure classification.
func (n *Node) FailureType() FailureType { return n.failureType }

// QueueStatus returns which executive queue, if any, the node occupies.
func (n *Node) QueueStatus() QueueStatus { return n.queueStatus }

// NodeTimepointValue records the wall-clock time a node entered or
// exited a given state (spec §3).
type NodeTimepointValue struct {
	State NodeState
	IsEnd bool
	Time  Time
	Known bool
}

// Timepoints returns the recorded timepoints for the node's current
// activation, in recorded order.
func (n *Node) Timepoints() []NodeTimepointValue { return n.timepoints }

// RecordTimepoint stamps entry (isEnd=false) or exit (isEnd=true) to
// state at time t. Per the Open Question decision in DESIGN.md, a
// regression (t earlier than the last recorded stamp in this
// activation) is clamped forward rather than faulted, preserving the
// monotonicity testable property of spec §8 even across a clock
// correction. The clamp is silent: nothing is logged or reported.
func (n *Node) RecordTimepoint(state NodeState, isEnd bool, t Time) {
	known := true
	if n.haveTimepoint && t < n.lastTimepoint {
		t = n.lastTimepoint
	}
	n.lastTimepoint = t
	n.haveTimepoint = true
	n.timepoints = append(n.timepoints, NodeTimepointValue{State: state, IsEnd: isEnd, Time: t, Known: known})
}

// ResetTimepoints clears the timepoint log, called whenever a node
// enters Waiting (first activation, or IterationEnded->Waiting via
// repeat); entering Inactive does not clear it.
func (n *Node) ResetTimepoints() {
	n.timepoints = nil
	n.haveTimepoint = false
}

// NotifyChanged implements ChangeListener: a subscribed condition or
// assignment sub-variable changed, so the node becomes a step
// candidate. This is the sole mechanism by which external variable
// writes re-enter the quiescence loop (spec §2 Flow, §4.1).
func (n *Node) NotifyChanged() {
	if n.plan != nil && n.plan.exec != nil {
		n.plan.exec.notifyNodeConditionChanged(n)
	}
}

// markActionComplete asserts the intrinsic CondActionComplete signal for
// a Command/Update/List/LibraryCall node. A no-op for Assignment nodes,
// whose ActionComplete is driven by Assignment.Execute instead.
func (n *Node) markActionComplete() {
	if n.actionCompleteObs != nil {
		n.actionCompleteObs.Assert()
	}
}

// markAbortComplete asserts the intrinsic CondAbortComplete signal for a
// Command/Update/List/LibraryCall node.
func (n *Node) markAbortComplete() {
	if n.abortCompleteObs != nil {
		n.abortCompleteObs.Assert()
	}
}

// resetActionSignals clears the intrinsic action/abort-complete
// observables, called whenever a node enters Waiting (including after a
// repeat or an ancestor repeat), so a rerun starts from a clean slate.
func (n *Node) resetActionSignals() {
	if n.actionCompleteObs != nil {
		n.actionCompleteObs.Reset()
	}
	if n.abortCompleteObs != nil {
		n.abortCompleteObs.Reset()
	}
}

// childrenTerminal reports whether every child of a List/LibraryCall
// node has reached a terminal state (Finished) for this activation, the
// condition under which the engine asserts the parent's own
// ActionComplete (spec §4.2's node-type-specific rules for List and
// LibraryCall).
func (n *Node) childrenTerminal() bool {
	for _, id := range n.children {
		if c := n.plan.Node(id); c.state != StateFinished {
			return false
		}
	}
	return true
}

// resetOutcome clears outcome/failureType. Nothing in the package calls
// it: the Waiting and Inactive re-entries of spec §4.2 clear both through
// the OutcomeNone/FailureNone values computeNextState returns.
func (n *Node) resetOutcome() {
	n.outcome = OutcomeNone
	n.failureType = FailureNone
}
