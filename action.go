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
	bt "github.com/joeycumines/go-behaviortree"
)

// ActionHandle is the external side effect attached to a Command or
// Update node, expressed as a behavior tree, matching the teacher's
// Action.Node() idiom (go-pabt's Action interface): the "what to do" of
// a plan node is a bt.Node, ticked by the executive rather than by a
// planner.
//
// Node is ticked at most once per Step, at the macro-step boundary
// (spec §6's "outbound queue executed at macro-step boundaries"),
// while the owning Node is Executing or Finishing. bt.Running means the command is
// still outstanding; bt.Success or bt.Failure asserts ActionComplete
// and records the command's own success/failure, which a List or
// LibraryCall node never sees (those derive ActionComplete from child
// completion instead; see Node.childrenTerminal).
type ActionHandle interface {
	Node() bt.Node
}

// Aborter is an optional extension of ActionHandle for actions with a
// distinct abort sequence (e.g. sending a cancel message and waiting
// for the controller to acknowledge it), exercised while the owning
// Node is Failing. An ActionHandle that does not implement Aborter is
// treated as aborting immediately: AbortComplete is asserted on the
// first poll after the node enters Failing.
type Aborter interface {
	AbortNode() bt.Node
}

// FuncActionHandle adapts a bare bt.Tick into an ActionHandle with no
// children, mirroring the teacher's bt.New constructor. Most commands
// in a demoplan-built test plan are a single tick with no sub-nodes.
type FuncActionHandle struct {
	Tick      bt.Tick
	AbortTick bt.Tick
}

func (f FuncActionHandle) Node() bt.Node { return bt.New(f.Tick) }

func (f FuncActionHandle) AbortNode() bt.Node {
	if f.AbortTick == nil {
		return bt.New(func([]bt.Node) (bt.Status, error) { return bt.Success, nil })
	}
	return bt.New(f.AbortTick)
}

// pollAction ticks n's action (if any) once, translating the resulting
// bt.Status into the node's intrinsic ActionComplete/outcome signal.
// Called by the executive at the macro-step boundary for every
// Executing or Finishing Command/Update node (spec §4.2's Command/Update-specific
// rule), and is a no-op if the node has no action attached (a
// plan-authored stub, or a node type whose ActionComplete is driven by
// something else).
func (n *Node) pollAction() {
	if n.action == nil || n.actionCompleteObs == nil {
		return
	}
	if n.actionCompleteObs.value {
		return
	}
	status, err := n.action.Node().Tick()
	if err != nil {
		n.recordPlanError(err.Error())
	}
	switch status {
	case bt.Success:
		n.outcome = OutcomeSuccess
		n.markActionComplete()
	case bt.Failure:
		n.outcome = OutcomeFailure
		n.markActionComplete()
	case bt.Running:
		// still outstanding; polled again next Step.
	}
}

// pollAbort ticks n's abort sequence once, if the attached action
// implements Aborter; otherwise asserts AbortComplete immediately.
// Called by the executive for every Failing Command/Update node.
func (n *Node) pollAbort() {
	if n.abortCompleteObs == nil || n.abortCompleteObs.value {
		return
	}
	aborter, ok := n.action.(Aborter)
	if n.action == nil || !ok {
		n.markAbortComplete()
		return
	}
	status, err := aborter.AbortNode().Tick()
	if err != nil {
		n.recordPlanError(err.Error())
	}
	if status != bt.Running {
		n.markAbortComplete()
	}
}
