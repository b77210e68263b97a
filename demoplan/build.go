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

package demoplan

import (
	plexec "github.com/joeycumines/go-plexec"
)

// Option configures the condition slots of a node built by this package,
// composing with plexec.NodeOption (which configures Priority).
type Option = plexec.NodeOption

// WithStart overrides the Start condition (default: always true).
func WithStart(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondStart, e, false) }
}

// WithSkip overrides the Skip condition (default: always false).
func WithSkip(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondSkip, e, false) }
}

// WithPre overrides the Pre condition (default: always true).
func WithPre(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondPre, e, false) }
}

// WithExit overrides the Exit condition (default: always false).
func WithExit(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondExit, e, false) }
}

// WithInvariant overrides the Invariant condition (default: always
// true).
func WithInvariant(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondInvariant, e, false) }
}

// WithEnd overrides the End condition (default: always true for Empty,
// Command, and Update nodes, and "children done" for List and
// LibraryCall nodes; Assignment nodes never read it).
func WithEnd(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondEnd, e, false) }
}

// WithPost overrides the Post condition (default: always true).
func WithPost(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondPost, e, false) }
}

// WithRepeat overrides the Repeat condition (default: always false).
func WithRepeat(e plexec.Expression) Option {
	return func(n *plexec.Node) { n.Conditions.Set(plexec.CondRepeat, e, false) }
}

// WithPriority is a re-export of plexec.WithPriority, so callers need
// only import this package for node construction.
func WithPriority(priority uint32) Option { return plexec.WithPriority(priority) }

// applyDefaults installs the PLEXIL-conventional default condition set
// (Start/Invariant/Post true; Skip/Exit/Repeat false; Pre/End true) for
// every slot not subsequently overridden by an Option. Applied before
// opts, so a caller's WithX always wins.
func applyDefaults(n *plexec.Node) {
	n.Conditions.Set(plexec.CondSkip, Literal(false), false)
	n.Conditions.Set(plexec.CondStart, Literal(true), false)
	n.Conditions.Set(plexec.CondPre, Literal(true), false)
	n.Conditions.Set(plexec.CondExit, Literal(false), false)
	n.Conditions.Set(plexec.CondInvariant, Literal(true), false)
	n.Conditions.Set(plexec.CondEnd, Literal(true), false)
	n.Conditions.Set(plexec.CondPost, Literal(true), false)
	n.Conditions.Set(plexec.CondRepeat, Literal(false), false)
}

func newNode(plan *plexec.Plan, id string, typ plexec.NodeType, parent *plexec.Node, opts ...Option) *plexec.Node {
	n := plan.NewNode(id, typ, parent)
	applyDefaults(n)
	if typ == plexec.NodeList || typ == plexec.NodeLibraryCall {
		// Unlike Empty/Command/Update, a List/LibraryCall's default End
		// must not be a blanket true: AncestorEnd is read straight off the
		// parent's End expression regardless of the parent's own state
		// (spec §4.2's cascading-termination semantics), so a constant
		// true End would instantly skip every child the moment this node
		// starts Executing. Defaulting to "children done" instead makes
		// the node finish exactly when its children do, with no extra
		// gating, the common case for a plain sequence.
		n.Conditions.Set(plexec.CondEnd, n.ActionCompleteExpression(), false)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewEmpty builds an Empty node: no side effect, just a place in the
// tree whose End/Post conditions gate completion.
func NewEmpty(plan *plexec.Plan, id string, parent *plexec.Node, opts ...Option) *plexec.Node {
	return newNode(plan, id, plexec.NodeEmpty, parent, opts...)
}

// NewAssignment builds an Assignment node and attaches its Assignment
// record, writing rhs into dest once Executing.
func NewAssignment(plan *plexec.Plan, id string, parent *plexec.Node, dest plexec.Assignable, rhs plexec.Expression, opts ...Option) *plexec.Node {
	n := newNode(plan, id, plexec.NodeAssignment, parent, opts...)
	n.SetAssignment(plexec.NewAssignment(n, dest, rhs))
	return n
}

// NewCommand builds a Command node and attaches handle as its external
// action, ticked by the executive while Executing/Failing.
func NewCommand(plan *plexec.Plan, id string, parent *plexec.Node, handle plexec.ActionHandle, opts ...Option) *plexec.Node {
	n := newNode(plan, id, plexec.NodeCommand, parent, opts...)
	n.SetAction(handle)
	return n
}

// NewUpdate builds an Update node (a planner-to-world notification with
// no return value, per spec §3's node-type list), also ticked via an
// ActionHandle.
func NewUpdate(plan *plexec.Plan, id string, parent *plexec.Node, handle plexec.ActionHandle, opts ...Option) *plexec.Node {
	n := newNode(plan, id, plexec.NodeUpdate, parent, opts...)
	n.SetAction(handle)
	return n
}

// NewList builds a List node: an ordered sequence of children, whose
// intrinsic ActionComplete is asserted once every child reaches
// Finished.
func NewList(plan *plexec.Plan, id string, parent *plexec.Node, opts ...Option) *plexec.Node {
	return newNode(plan, id, plexec.NodeList, parent, opts...)
}

// NewLibraryCall builds a LibraryCall node: structurally identical to a
// List (its children are the invoked library's expanded body), kept as
// a distinct NodeType so a listener/monitor can tell the two apart.
func NewLibraryCall(plan *plexec.Plan, id string, parent *plexec.Node, opts ...Option) *plexec.Node {
	return newNode(plan, id, plexec.NodeLibraryCall, parent, opts...)
}
