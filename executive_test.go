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

package plexec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	bt "github.com/joeycumines/go-behaviortree"
	plexec "github.com/joeycumines/go-plexec"
	"github.com/joeycumines/go-plexec/demoplan"
)

// recordingListener accumulates every transition batch published during a
// test run, in order, so assertions can walk the exact sequence of
// (node, previousState) pairs a real monitor would see (spec §4.8's
// ordered, per-cycle batch).
type recordingListener struct {
	batches [][]plexec.TransitionRecord
	errors  []*plexec.PlanError
}

func (l *recordingListener) NotifyOfTransitions(batch []plexec.TransitionRecord) {
	l.batches = append(l.batches, batch)
}

func (l *recordingListener) NotifyOfAssignment(*plexec.Node, plexec.Assignable, any) {}

func (l *recordingListener) NotifyOfPlanError(err *plexec.PlanError) {
	l.errors = append(l.errors, err)
}

// transitioned reports whether node id appears anywhere in the recorded
// batches moving into state s.
func (l *recordingListener) transitioned(id string, s plexec.NodeState) bool {
	var node *plexec.Node
	for _, batch := range l.batches {
		for _, rec := range batch {
			if rec.Node.ID != id {
				continue
			}
			// each later record starts from the state the previous one moved into
			if node != nil && rec.Previous == s {
				return true
			}
			node = rec.Node
		}
	}
	// the last recorded transition moved the node into its current state
	return node != nil && node.State() == s
}

// TestSkipFromAncestorExit exercises spec §8 scenario 1: a nested List
// whose own Exit condition flips true while its children are still
// Waiting causes both children to skip straight to Finished, and the
// outer root still reaches Finished/Success once the interrupted branch
// unwinds. The children are held in Waiting across the first Step by a
// start gate, so the Exit flip can be injected between Step calls rather
// than racing the same macro step that started the branch.
func TestSkipFromAncestorExit(t *testing.T) {
	world := demoplan.NewWorld(0)
	plan := plexec.NewPlan()

	gate := demoplan.NewVar("gate", false)
	branchExit := demoplan.NewVar("branchExit", false)

	root := demoplan.NewList(plan, "root", nil)
	branch := demoplan.NewList(plan, "branch", root, demoplan.WithExit(branchExit))
	childA := demoplan.NewEmpty(plan, "childA", branch, demoplan.WithStart(gate))
	childB := demoplan.NewEmpty(plan, "childB", branch, demoplan.WithStart(gate))
	_ = childA
	_ = childB

	listener := &recordingListener{}
	exec := plexec.NewExecutive(world, plexec.WithListener(listener))
	require.True(t, exec.AddPlan(root))

	require.NoError(t, exec.Step(world.Clock.Now()))
	require.Equal(t, plexec.StateExecuting, root.State())
	require.Equal(t, plexec.StateExecuting, branch.State())
	require.Equal(t, plexec.StateWaiting, childA.State())
	require.Equal(t, plexec.StateWaiting, childB.State())

	require.NoError(t, branchExit.SetValue(true))
	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))

	require.Equal(t, plexec.StateFinished, childA.State())
	require.Equal(t, plexec.OutcomeSkipped, childA.Outcome())
	require.Equal(t, plexec.StateFinished, childB.State())
	require.Equal(t, plexec.OutcomeSkipped, childB.Outcome())

	require.Equal(t, plexec.StateFinished, branch.State())
	require.Equal(t, plexec.OutcomeInterrupted, branch.Outcome())
	require.Equal(t, plexec.FailureExited, branch.FailureType())

	require.Equal(t, plexec.StateFinished, root.State())
	require.Equal(t, plexec.OutcomeSuccess, root.Outcome())
}

// TestAssignmentArbitrationByPriority exercises spec §8 scenario 2: two
// Assignment nodes proposing to write the same variable, X at priority 1
// and Y at priority 2; X must win the first Step, and Y must not enter
// Executing while X still holds the variable.
func TestAssignmentArbitrationByPriority(t *testing.T) {
	world := demoplan.NewWorld(0)
	plan := plexec.NewPlan()

	v := demoplan.NewVar("v", 0)
	root := demoplan.NewList(plan, "root", nil)
	x := demoplan.NewAssignment(plan, "x", root, v, demoplan.Literal(true), demoplan.WithPriority(1))
	y := demoplan.NewAssignment(plan, "y", root, v, demoplan.Literal(true), demoplan.WithPriority(2))
	_ = x
	_ = y

	listener := &recordingListener{}
	exec := plexec.NewExecutive(world, plexec.WithListener(listener))
	require.True(t, exec.AddPlan(root))

	require.NoError(t, exec.Step(world.Clock.Now()))

	require.Equal(t, plexec.StateExecuting, x.State())
	require.NotEqual(t, plexec.StateExecuting, y.State())
	require.False(t, listener.transitioned("y", plexec.StateExecuting))
}

// TestAbortOnInvariantFailure exercises spec §8 scenario 3: an Assignment
// node Z whose Invariant flips false mid-execution must abort (Failing),
// restore the variable's pre-assignment value, and reach IterationEnded
// with Interrupted/InvariantFailed.
func TestAbortOnInvariantFailure(t *testing.T) {
	world := demoplan.NewWorld(0)
	plan := plexec.NewPlan()

	v := demoplan.NewVar("v", "before")
	invariant := demoplan.NewVar("invariant", true)
	root := demoplan.NewList(plan, "root", nil)
	z := demoplan.NewAssignment(plan, "z", root, v, demoplan.NewVar("rhs", "after"),
		demoplan.WithInvariant(invariant),
		demoplan.WithEnd(demoplan.Literal(false)),
	)
	_ = z

	exec := plexec.NewExecutive(world)
	require.True(t, exec.AddPlan(root))

	require.NoError(t, exec.Step(world.Clock.Now()))
	require.Equal(t, plexec.StateExecuting, z.State())
	value, known := v.GetValue()
	require.True(t, known)
	require.Equal(t, "after", value)

	require.NoError(t, invariant.SetValue(false))
	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))

	require.Equal(t, plexec.StateFailing, z.State())
	value, known = v.GetValue()
	require.True(t, known)
	require.Equal(t, "before", value)

	// abortComplete is asserted inside the Step that just ran, but only
	// once its own quiescence loop has already exited (performAssignments
	// runs at the macro-step boundary); z sees it on the next Step.
	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))

	require.Equal(t, plexec.StateIterationEnded, z.State())
	require.Equal(t, plexec.OutcomeInterrupted, z.Outcome())
	require.Equal(t, plexec.FailureInvariantFailed, z.FailureType())
}

// TestRepeatLoop exercises spec §8 scenario 4: a List with a single
// Empty child and a Repeat condition true for the first two iterations,
// false on the third.
func TestRepeatLoop(t *testing.T) {
	world := demoplan.NewWorld(0)
	plan := plexec.NewPlan()

	repeat := demoplan.NewVar("repeat", true)
	root := demoplan.NewList(plan, "root", nil, demoplan.WithRepeat(repeat))
	child := demoplan.NewEmpty(plan, "child", root)
	_ = child

	exec := plexec.NewExecutive(world)
	require.True(t, exec.AddPlan(root))

	require.NoError(t, exec.Step(world.Clock.Now()))
	require.Equal(t, plexec.StateWaiting, root.State())
	require.Equal(t, plexec.StateInactive, child.State())

	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))
	require.Equal(t, plexec.StateWaiting, root.State())
	require.Equal(t, plexec.StateInactive, child.State())

	require.NoError(t, repeat.SetValue(false))
	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))
	require.Equal(t, plexec.StateFinished, root.State())
	require.Equal(t, plexec.OutcomeSuccess, root.Outcome())
}

// TestPreConditionFailure exercises spec §8 scenario 5: an Empty node
// whose Start is true but whose Pre is false must go Waiting ->
// IterationEnded with Failure/PreFailed, never visiting Executing, and
// (with no Repeat) end the Step Finished with that outcome.
func TestPreConditionFailure(t *testing.T) {
	world := demoplan.NewWorld(0)
	plan := plexec.NewPlan()

	root := demoplan.NewEmpty(plan, "root", nil, demoplan.WithPre(demoplan.Literal(false)))

	listener := &recordingListener{}
	exec := plexec.NewExecutive(world, plexec.WithListener(listener))
	require.True(t, exec.AddPlan(root))

	require.NoError(t, exec.Step(world.Clock.Now()))

	require.False(t, listener.transitioned("root", plexec.StateExecuting))
	require.Equal(t, plexec.StateFinished, root.State())
	require.Equal(t, plexec.OutcomeFailure, root.Outcome())
	require.Equal(t, plexec.FailurePreFailed, root.FailureType())
}

// TestCascadedParentExit exercises spec §8 scenario 6: a Command node
// mid-Finishing when its outer ancestor's Exit condition fires; the
// command aborts (Failing -> IterationEnded -> Finished/Interrupted,
// FailureParentExited), and the whole nesting collapses in a single
// ordered cascade.
func TestCascadedParentExit(t *testing.T) {
	world := demoplan.NewWorld(0)
	plan := plexec.NewPlan()

	outerExit := demoplan.NewVar("outerExit", false)
	cmdDone := make(chan struct{})
	abortCalled := make(chan struct{}, 1)

	outer := demoplan.NewList(plan, "outer", nil, demoplan.WithExit(outerExit))
	inner := demoplan.NewList(plan, "inner", outer)
	cmd := demoplan.NewCommand(plan, "cmd", inner, plexec.FuncActionHandle{
		Tick: func([]bt.Node) (bt.Status, error) {
			select {
			case <-cmdDone:
				return bt.Success, nil
			default:
				return bt.Running, nil
			}
		},
		AbortTick: func([]bt.Node) (bt.Status, error) {
			select {
			case abortCalled <- struct{}{}:
			default:
			}
			return bt.Success, nil
		},
	})
	_ = cmd

	listener := &recordingListener{}
	exec := plexec.NewExecutive(world, plexec.WithListener(listener))
	require.True(t, exec.AddPlan(outer))

	require.NoError(t, exec.Step(world.Clock.Now()))
	// cmd's End condition defaults to Literal(true) (unlike List/LibraryCall,
	// Command has no default End override), so it advances straight from
	// Executing to Finishing within this same Step, before its action has
	// had a chance to report completion: exactly the premise scenario 6
	// describes ("Command child in Finishing when outer Exit fires").
	require.Equal(t, plexec.StateFinishing, cmd.State())

	require.NoError(t, outerExit.SetValue(true))
	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))

	// outer's own Exit fired, so it drops straight to Failing; the same
	// cascade reaches inner (two hops: inner's own Exit is still false,
	// but its AncestorExit now transitively sees outer's) and cmd (three
	// hops), all within this one Step, via the per-transition child
	// re-check in onEnterState. cmd's abort has been requested
	// (trackActiveAbort) but not yet ticked: pollActiveActions only polls
	// at the top of the *next* Step.
	require.Equal(t, plexec.StateFailing, outer.State())
	require.Equal(t, plexec.StateFailing, inner.State())
	require.Equal(t, plexec.StateFailing, cmd.State())
	require.Equal(t, plexec.FailureParentExited, cmd.FailureType())
	select {
	case <-abortCalled:
		t.Fatal("command's abort sequence ticked too early")
	default:
	}

	world.Clock.Advance(1)
	require.NoError(t, exec.Step(world.Clock.Now()))

	select {
	case <-abortCalled:
	default:
		t.Fatal("expected the command's abort sequence to have been ticked")
	}

	require.Equal(t, plexec.StateFinished, cmd.State())
	require.Equal(t, plexec.OutcomeInterrupted, cmd.Outcome())
	require.Equal(t, plexec.FailureParentExited, cmd.FailureType())

	require.Equal(t, plexec.StateFinished, inner.State())
	require.Equal(t, plexec.OutcomeInterrupted, inner.Outcome())

	require.Equal(t, plexec.StateFinished, outer.State())
	require.Equal(t, plexec.OutcomeInterrupted, outer.Outcome())
	require.Equal(t, plexec.FailureExited, outer.FailureType())
}
