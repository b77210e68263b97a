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
	"fmt"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// ExternalWorld is the narrow collaborator the executive drives at
// macro-step boundaries (spec §6, §1 "external world adapter").
type ExternalWorld interface {
	CurrentTime() Time
	IncrementCycleCount()
	OutboundQueueEmpty() bool
	ExecuteOutboundQueue()
	DrainInboundEvents() []Event
}

// Event is an opaque inbound world event; the core does not interpret
// its payload, only that draining the queue may mutate variables (and
// thereby enqueue candidates via their change listeners) before Step's
// first drain phase.
type Event struct {
	Name    string
	Payload any
}

// Option configures an Executive at construction time.
type Option func(*Executive)

// WithListener installs l as the executive's listener, equivalent to a
// later call to SetListener.
func WithListener(l Listener) Option {
	return func(e *Executive) { e.SetListener(l) }
}

// WithLogger installs a logiface logger backed by zerolog (via
// izerolog), following the teacher's own logging stack
// (go-utilpkg/logiface + logiface-zerolog). A nil logger disables
// logging entirely; see defaultLogger.
func WithLogger(log *logiface.Logger[*izerolog.Event]) Option {
	return func(e *Executive) { e.log = log }
}

// Executive is the quiescence engine of spec §2-§4.6: it owns every
// plan root's arena, the five executive queues, the variable conflict
// registry, and drives Step to fixpoint.
type Executive struct {
	world ExternalWorld

	roots []*Plan

	candidates    nodeQueue
	transitions   nodeQueue
	finishedRoots finishedQueue
	toExecute     assignmentQueue
	toRetract     assignmentQueue

	conflicts ConflictRegistry

	// variablesToRetract holds the base variables of Assignment nodes that
	// entered Failing this cycle: spec §4.6 step 1 of resolveOne. A
	// variable undergoing retraction must not have a new winner promoted
	// onto it until the retraction's own outcome (restoring the prior
	// value) has landed, so resolveOne defers any conflict set on the
	// same base variable. Cleared once per Step, after performAssignments.
	variablesToRetract []Assignable

	// activeActions/activeAborts are Command/Update nodes currently
	// Executing/Finishing (awaiting ActionComplete) or Failing (awaiting
	// AbortComplete), polled once per Step at the macro-step boundary;
	// see pollActiveActions.
	activeActions []*Node
	activeAborts  []*Node

	listener Listener
	log      *logiface.Logger[*izerolog.Event]

	cycleCount int
	inStep     bool
}

// defaultLogger returns a disabled logiface logger (LevelError floor on
// a discard zerolog writer), matching the teacher's convention of a
// safe, silent-by-default logger rather than a nil pointer.
func defaultLogger() *logiface.Logger[*izerolog.Event] {
	return izerolog.L.New(
		izerolog.L.WithZerolog(zerolog.New(nil).Level(zerolog.Disabled)),
		izerolog.L.WithLevel(izerolog.L.LevelError()),
	)
}

// NewExecutive constructs an Executive bound to world, applying opts.
func NewExecutive(world ExternalWorld, opts ...Option) *Executive {
	e := &Executive{
		world:    world,
		listener: NullListener{},
		log:      defaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetListener installs l, or NullListener{} if l is nil.
func (e *Executive) SetListener(l Listener) {
	if l == nil {
		l = NullListener{}
	}
	e.listener = l
}

// Listener returns the currently installed listener, never nil.
func (e *Executive) Listener() Listener { return e.listener }

// AddPlan attaches root's Plan, activates the root (entering it as a
// Check candidate), and reports whether it was accepted. A plan whose
// root is already Finished is accepted and placed on the finished-root
// queue right away, without becoming a candidate (spec §8 boundary
// behavior).
func (e *Executive) AddPlan(root *Node) bool {
	if root == nil || !root.IsRoot() {
		return false
	}
	p := root.plan
	p.exec = e
	e.roots = append(e.roots, p)
	e.log.Debug().Str("node", root.ID).Log("plan added")
	if root.state == StateFinished {
		e.addFinishedRoot(root)
	} else {
		e.addCandidate(root)
	}
	return true
}

// NeedsStep reports whether the candidate queue is non-empty.
func (e *Executive) NeedsStep() bool { return !e.candidates.empty() }

// AllPlansFinished reports whether every root is Finished (including
// those already removed by DeleteFinishedPlans).
func (e *Executive) AllPlansFinished() bool {
	for _, p := range e.roots {
		if p.Root() != nil && p.Root().state != StateFinished {
			return false
		}
	}
	return true
}

// DeleteFinishedPlans drops storage for every root on the finished-root
// queue, per spec §6.
func (e *Executive) DeleteFinishedPlans() {
	for {
		n := e.finishedRoots.pop()
		if n == nil {
			break
		}
		for i, p := range e.roots {
			if p.Root() == n {
				e.roots = append(e.roots[:i], e.roots[i+1:]...)
				break
			}
		}
	}
}

// Step runs one macro step anchored at now, per spec §4.6. A FatalError
// raised anywhere in the call graph is recovered here and returned as a
// plain error (see the Open Question decision in errors.go/DESIGN.md);
// the executive's queues are left in whatever partial state they held
// at the point of the panic, since a logic bug at that point means
// continuing is not safe regardless.
func (e *Executive) Step(now Time) (err error) {
	if e.inStep {
		panic(fatalf(nil, ErrInvariantViolation, "Step called reentrantly"))
	}
	e.inStep = true
	defer func() { e.inStep = false }()
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()

	for _, ev := range e.world.DrainInboundEvents() {
		e.log.Trace().Str("event", ev.Name).Log("inbound event drained")
	}

	e.pollActiveActions()

	for {
		e.drainCandidates()

		e.conflicts.All(func(c *ConflictSet) { e.resolveOne(c) })

		if e.transitions.empty() {
			break
		}

		var batch []TransitionRecord
		for {
			n := e.dequeueTransition()
			if n == nil {
				break
			}
			old := n.state
			next, outcome, ft := computeNextState(n)
			e.applyTransition(n, now, next, outcome, ft)
			batch = append(batch, TransitionRecord{Node: n, Previous: old})
		}
		e.listener.NotifyOfTransitions(batch)
		e.log.Debug().Int("count", len(batch)).Log("transition batch published")

		if e.candidates.empty() && e.toExecute.empty() && e.toRetract.empty() && !e.world.OutboundQueueEmpty() {
			break
		}
	}

	e.world.IncrementCycleCount()
	e.cycleCount++
	e.performAssignments()
	e.variablesToRetract = e.variablesToRetract[:0]
	e.world.ExecuteOutboundQueue()

	return nil
}

// drainCandidates implements step 1 of spec §4.6: pop every candidate,
// compute its destination, and stage a transition (or resource
// contention registration) for any node whose next state differs from
// its current one.
func (e *Executive) drainCandidates() {
	for {
		n := e.dequeueCandidate()
		if n == nil {
			break
		}
		next, outcome, ft := computeNextState(n)
		if next == n.state {
			continue
		}
		n.nextState, n.nextOutcome, n.nextFailureType, n.hasNext = next, outcome, ft, true

		if n.Type == NodeAssignment && next == StateExecuting {
			e.conflicts.Ensure(n.assignment.Destination()).Push(n)
			continue
		}
		if n.Type == NodeAssignment && leavesContention(next) {
			if c := e.conflicts.Get(n.assignment.Destination()); c != nil {
				c.Remove(n)
				if c.Empty() {
					e.conflicts.Release(c)
				}
				if next == StateFailing {
					e.variablesToRetract = append(e.variablesToRetract, n.assignment.Destination().BaseVariable())
				}
			}
		}

		e.addTransition(n)
	}
}

// leavesContention reports the destination states in spec §4.6's
// "nextState is a terminal/iteration-end" branch: IterationEnded,
// Finished, and Failing each mean the node is no longer an active
// contender.
func leavesContention(s NodeState) bool {
	return s == StateIterationEnded || s == StateFinished || s == StateFailing
}

func (e *Executive) variableBeingRetracted(v Assignable) bool {
	base := v.BaseVariable()
	for _, r := range e.variablesToRetract {
		if r == base {
			return true
		}
	}
	return false
}

// resolveOne implements spec §4.6's resolveOne(C): promote at most one
// contender per conflict set to the transition queue this cycle.
func (e *Executive) resolveOne(c *ConflictSet) {
	if c.Empty() {
		return
	}
	if e.variableBeingRetracted(c.Variable()) {
		return
	}
	k := c.FrontCount()
	if k == 1 {
		n := c.Front()
		if n.hasNext && (n.nextState == StateExecuting || n.nextState == StateFailing) {
			e.addTransition(n)
		}
		return
	}

	nodes := c.Nodes()[:k]
	var enteringCount int
	var winner *Node
	for _, n := range nodes {
		if !n.hasNext {
			continue
		}
		if n.state == StateFailing || n.state == StateExecuting {
			winner = n
		}
		if n.nextState == StateExecuting || n.nextState == StateFailing {
			enteringCount++
			if winner == nil {
				winner = n
			}
		}
	}
	if enteringCount > 1 {
		pe := &PlanError{
			Node:     nodes[0],
			Variable: c.Variable().String(),
			Msg:      fmt.Sprintf("%d nodes at priority %d both propose to enter Executing on the same variable", enteringCount, nodes[0].Priority),
		}
		nodes[0].recordPlanError(pe.Error())
		e.listener.NotifyOfPlanError(pe)
		e.log.Warning().Str("variable", pe.Variable).Log("plan error: equal-priority assignment conflict")
		return
	}
	if winner != nil {
		e.addTransition(winner)
	}
}

// performAssignments drains the execute then the retract queue, per
// spec §4.7.
func (e *Executive) performAssignments() {
	for {
		a := e.toExecute.pop()
		if a == nil {
			break
		}
		a.Execute(e.listener)
	}
	for {
		a := e.toRetract.pop()
		if a == nil {
			break
		}
		a.Retract(e.listener)
	}
}

func (e *Executive) enqueueAssignmentExecute(a *Assignment) { e.toExecute.push(a) }
func (e *Executive) enqueueAssignmentRetract(a *Assignment) { e.toRetract.push(a) }

// pollActiveActions ticks every outstanding Command/Update action once,
// at the start of Step, and re-queues its node as a candidate so the
// upcoming drain phase sees any resulting ActionComplete/AbortComplete
// assertion. This is the one departure from a pure condition-driven
// wakeup: an external command's progress is not itself a subscribable
// Expression, so it must be polled rather than waited on.
func (e *Executive) pollActiveActions() {
	for _, n := range e.activeActions {
		n.pollAction()
		e.addCandidate(n)
	}
	for _, n := range e.activeAborts {
		n.pollAbort()
		e.addCandidate(n)
	}
}

func (e *Executive) trackActiveAction(n *Node) {
	e.activeActions = append(e.activeActions, n)
}

func (e *Executive) untrackActiveAction(n *Node) {
	e.activeActions = removeNode(e.activeActions, n)
}

func (e *Executive) trackActiveAbort(n *Node) {
	e.activeAborts = append(e.activeAborts, n)
}

func (e *Executive) untrackActiveAbort(n *Node) {
	e.activeAborts = removeNode(e.activeAborts, n)
}

func removeNode(s []*Node, n *Node) []*Node {
	for i, x := range s {
		if x == n {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// notifyNodeConditionChanged is Node.NotifyChanged's sole collaborator:
// a subscribed condition fired, so n becomes a candidate. A List or
// LibraryCall node's children read n's Exit/Invariant/End as their own
// AncestorExit/AncestorInvariant/AncestorEnd (spec §4.1) without
// subscribing to them directly, since an ancestor slot is never owned
// or activated by the descendant (condition.go's isAncestorSlot
// early-return) — so whichever of n's own conditions just changed, n's
// direct children must also be reconsidered, in case it was Exit,
// Invariant, or End. Harmless for the other slots: a child whose
// computed next state is unchanged is a silent no-op in drainCandidates.
func (e *Executive) notifyNodeConditionChanged(n *Node) {
	e.addCandidate(n)
	for _, c := range n.Children() {
		e.addCandidate(c)
	}
}
