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

import "sync"

// ConflictSet is a priority-ordered multiset of nodes contending to
// write one Assignable (spec §3, §4.3). Elements are ordered by
// ascending priority (lower wins); equal-priority elements retain
// insertion order.
type ConflictSet struct {
	variable Assignable
	nodes    []*Node
	next     *ConflictSet // threads the global ConflictRegistry list
}

var conflictSetPool = sync.Pool{New: func() any { return new(ConflictSet) }}

// allocateConflictSet returns a cleared ConflictSet from the free-list
// pool, per spec §4.3. sync.Pool is the idiomatic Go free list; the
// pool is package-level, so every Executive in the process shares it.
func allocateConflictSet() *ConflictSet {
	c := conflictSetPool.Get().(*ConflictSet)
	c.variable = nil
	c.nodes = c.nodes[:0]
	c.next = nil
	return c
}

// releaseConflictSet returns c to the pool. Callers must not use c again.
func releaseConflictSet(c *ConflictSet) {
	c.variable = nil
	c.nodes = c.nodes[:0]
	c.next = nil
	conflictSetPool.Put(c)
}

// Variable returns the variable this set contends over.
func (c *ConflictSet) Variable() Assignable { return c.variable }

// Empty reports whether the set has no contending nodes.
func (c *ConflictSet) Empty() bool { return len(c.nodes) == 0 }

// Size returns the number of contending nodes.
func (c *ConflictSet) Size() int { return len(c.nodes) }

// Push inserts n in ascending-priority order; a duplicate node is a
// no-op.
func (c *ConflictSet) Push(n *Node) {
	for _, existing := range c.nodes {
		if existing == n {
			return
		}
	}
	i := 0
	for i < len(c.nodes) && c.nodes[i].Priority <= n.Priority {
		i++
	}
	c.nodes = append(c.nodes, nil)
	copy(c.nodes[i+1:], c.nodes[i:])
	c.nodes[i] = n
}

// Remove deletes n from the set; no error if n is absent.
func (c *ConflictSet) Remove(n *Node) {
	for i, existing := range c.nodes {
		if existing == n {
			c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
			return
		}
	}
}

// Front returns the candidate winner: lowest priority value, earliest
// inserted among ties. Panics if empty; callers must check Empty first.
func (c *ConflictSet) Front() *Node { return c.nodes[0] }

// FrontCount returns the size of the tie group sharing Front's priority.
func (c *ConflictSet) FrontCount() int {
	if len(c.nodes) == 0 {
		return 0
	}
	p := c.nodes[0].Priority
	n := 1
	for n < len(c.nodes) && c.nodes[n].Priority == p {
		n++
	}
	return n
}

// Nodes returns the contending nodes in priority order. Callers must
// not mutate the returned slice.
func (c *ConflictSet) Nodes() []*Node { return c.nodes }

// ConflictRegistry is the global singly-linked list of every currently
// active ConflictSet, one per contended variable (spec §4.3, §4.6).
type ConflictRegistry struct {
	head *ConflictSet
}

// Ensure returns the ConflictSet for v, allocating one and linking it
// into the registry if this is the first contender.
func (r *ConflictRegistry) Ensure(v Assignable) *ConflictSet {
	base := v.BaseVariable()
	for c := r.head; c != nil; c = c.next {
		if c.variable == base {
			return c
		}
	}
	c := allocateConflictSet()
	c.variable = base
	c.next = r.head
	r.head = c
	return c
}

// Get returns the ConflictSet for v if one is active, else nil.
func (r *ConflictRegistry) Get(v Assignable) *ConflictSet {
	base := v.BaseVariable()
	for c := r.head; c != nil; c = c.next {
		if c.variable == base {
			return c
		}
	}
	return nil
}

// Release removes c from the registry (if present as a now-empty set)
// and returns it to the free-list pool.
func (r *ConflictRegistry) Release(c *ConflictSet) {
	if r.head == c {
		r.head = c.next
	} else {
		prev := r.head
		for prev != nil && prev.next != c {
			prev = prev.next
		}
		if prev == nil {
			return // not on the list
		}
		prev.next = c.next
	}
	releaseConflictSet(c)
}

// RemoveNode removes n from whichever ConflictSet holds it (if any),
// releasing the set back to the pool if it becomes empty.
func (r *ConflictRegistry) RemoveNode(n *Node, v Assignable) {
	c := r.Get(v)
	if c == nil {
		return
	}
	c.Remove(n)
	if c.Empty() {
		r.Release(c)
	}
}

// All iterates every active ConflictSet, most recently registered first
// (Ensure links each new set at the head of the list).
func (r *ConflictRegistry) All(fn func(*ConflictSet)) {
	for c := r.head; c != nil; c = c.next {
		fn(c)
	}
}
