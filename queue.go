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

// nodeQueue is a FIFO intrusive singly-linked queue of *Node, threaded
// through Node.queueNext. It backs both the candidate and transition
// queues of spec §4.5; which one is determined by the caller.
type nodeQueue struct {
	head, tail *Node
	size       int
}

func (q *nodeQueue) empty() bool { return q.head == nil }

func (q *nodeQueue) push(n *Node) {
	n.queueNext = nil
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.queueNext = n
	}
	q.tail = n
	q.size++
}

func (q *nodeQueue) pop() *Node {
	n := q.head
	if n == nil {
		return nil
	}
	q.head = n.queueNext
	if q.head == nil {
		q.tail = nil
	}
	n.queueNext = nil
	q.size--
	return n
}

// finishedQueue is the FIFO of finished plan roots, threaded through
// Node.finishedNext, kept separate from candidate/transition membership
// per spec §4.5's "at most one of candidate, transition, finished-root".
type finishedQueue struct {
	head, tail *Node
}

func (q *finishedQueue) empty() bool { return q.head == nil }

func (q *finishedQueue) push(n *Node) {
	n.finishedNext = nil
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.finishedNext = n
	}
	q.tail = n
}

func (q *finishedQueue) pop() *Node {
	n := q.head
	if n == nil {
		return nil
	}
	q.head = n.finishedNext
	if q.head == nil {
		q.tail = nil
	}
	n.finishedNext = nil
	return n
}

// assignmentQueue is the FIFO intrusive queue backing the
// assignments-to-execute and assignments-to-retract queues of spec §4.5,
// threaded through Assignment.queueNext.
type assignmentQueue struct {
	head, tail *Assignment
}

func (q *assignmentQueue) empty() bool { return q.head == nil }

func (q *assignmentQueue) push(a *Assignment) {
	a.queueNext = nil
	if q.tail == nil {
		q.head = a
	} else {
		q.tail.queueNext = a
	}
	q.tail = a
}

func (q *assignmentQueue) pop() *Assignment {
	a := q.head
	if a == nil {
		return nil
	}
	q.head = a.queueNext
	if q.head == nil {
		q.tail = nil
	}
	a.queueNext = nil
	return a
}

// addCandidate implements the queueStatus table's enqueue-candidate
// transitions: None->Check, Transition->TransitionCheck, and coalesces
// (no-op) from Check, TransitionCheck, or Delete.
func (e *Executive) addCandidate(n *Node) {
	switch n.queueStatus {
	case QueueNone:
		n.queueStatus = QueueCheck
		e.candidates.push(n)
	case QueueTransition:
		n.queueStatus = QueueTransitionCheck
	default:
		// Check, TransitionCheck, Delete: coalesced, no-op.
	}
}

// addTransition implements the queueStatus table's enqueue-transition
// transitions: None->Transition. Check->enqueue-transition is the one
// named illegal transition in spec §4.5 and is fatal: it means a node
// still being evaluated for candidacy was pushed for an actual state
// change without first leaving the candidate queue.
func (e *Executive) addTransition(n *Node) {
	switch n.queueStatus {
	case QueueNone:
		n.queueStatus = QueueTransition
		e.transitions.push(n)
	case QueueCheck:
		panic(fatalf(n, ErrInvariantViolation, "enqueue-transition requested while node is still on the candidate queue"))
	default:
		// Transition, TransitionCheck: already pending a transition; no-op.
	}
}

// dequeueCandidate pops the next candidate node and clears its Check
// status to None.
func (e *Executive) dequeueCandidate() *Node {
	n := e.candidates.pop()
	if n != nil && n.queueStatus == QueueCheck {
		n.queueStatus = QueueNone
	}
	return n
}

// dequeueTransition pops the next transition node. A TransitionCheck
// node is re-enqueued as a fresh candidate per the table's "(re-enqueue
// as Check)" rule; a plain Transition node returns to None.
func (e *Executive) dequeueTransition() *Node {
	n := e.transitions.pop()
	if n == nil {
		return nil
	}
	switch n.queueStatus {
	case QueueTransition:
		n.queueStatus = QueueNone
	case QueueTransitionCheck:
		n.queueStatus = QueueCheck
		e.candidates.push(n)
	}
	return n
}

// markForDeletion transitions a node with no queue membership to Delete,
// making it ineligible for further transitions (spec §4.5, §8 boundary
// behavior: a finished root must not be transitioned again).
func (e *Executive) markForDeletion(n *Node) {
	if n.queueStatus == QueueNone {
		n.queueStatus = QueueDelete
	}
}

func (e *Executive) addFinishedRoot(n *Node) {
	e.finishedRoots.push(n)
	e.markForDeletion(n)
}
