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

// NodeType is the fixed set of plan instruction kinds.
type NodeType int

const (
	NodeEmpty NodeType = iota
	NodeAssignment
	NodeCommand
	NodeUpdate
	NodeList
	NodeLibraryCall
)

func (t NodeType) String() string {
	switch t {
	case NodeEmpty:
		return "Empty"
	case NodeAssignment:
		return "Assignment"
	case NodeCommand:
		return "Command"
	case NodeUpdate:
		return "Update"
	case NodeList:
		return "List"
	case NodeLibraryCall:
		return "LibraryCall"
	default:
		return "Unknown"
	}
}

// hasChildren reports whether this type owns an ordered child list.
func (t NodeType) hasChildren() bool { return t == NodeList || t == NodeLibraryCall }

// NodeState is the node's position in the state-transition diagram.
type NodeState int

const (
	StateInactive NodeState = iota
	StateWaiting
	StateExecuting
	StateIterationEnded
	StateFinished
	StateFailing
	StateFinishing
	stateNone // sentinel: "no transition pending" / unreachable
)

func (s NodeState) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateWaiting:
		return "WAITING"
	case StateExecuting:
		return "EXECUTING"
	case StateIterationEnded:
		return "ITERATION_ENDED"
	case StateFinished:
		return "FINISHED"
	case StateFailing:
		return "FAILING"
	case StateFinishing:
		return "FINISHING"
	default:
		return "NO_STATE"
	}
}

// Outcome is the node's terminal disposition.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeSkipped
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "NONE"
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// FailureType refines a Failure/Interrupted outcome.
type FailureType int

const (
	FailureNone FailureType = iota
	FailurePreFailed
	FailurePostFailed
	FailureInvariantFailed
	FailureParentFailed
	FailureExited
	FailureParentExited
)

func (f FailureType) String() string {
	switch f {
	case FailureNone:
		return "NONE"
	case FailurePreFailed:
		return "PRE_FAILED"
	case FailurePostFailed:
		return "POST_FAILED"
	case FailureInvariantFailed:
		return "INVARIANT_FAILED"
	case FailureParentFailed:
		return "PARENT_FAILED"
	case FailureExited:
		return "EXITED"
	case FailureParentExited:
		return "PARENT_EXITED"
	default:
		return "UNKNOWN"
	}
}

// QueueStatus tracks which of the executive's queues, if any, a Node
// currently occupies. A node belongs to at most one queue at a time; see
// the table in spec §4.5.
type QueueStatus int

const (
	QueueNone QueueStatus = iota
	QueueCheck
	QueueTransition
	QueueTransitionCheck
	QueueDelete
)

func (q QueueStatus) String() string {
	switch q {
	case QueueNone:
		return "NONE"
	case QueueCheck:
		return "CHECK"
	case QueueTransition:
		return "TRANSITION"
	case QueueTransitionCheck:
		return "TRANSITION_CHECK"
	case QueueDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// TriState is the three-valued logic result of evaluating a condition.
type TriState int

const (
	Unknown TriState = iota
	False
	True
)

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// BoolToTriState converts a known boolean into a TriState.
func BoolToTriState(b bool) TriState {
	if b {
		return True
	}
	return False
}
