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

import "fmt"

type (
	// ChangeListener is notified when an activated Expression's value
	// changes. The expression/variable store collaborator (out of core
	// scope) owns the actual subscription bookkeeping; the core only
	// implements this single method, per spec §4.1.
	ChangeListener interface {
		NotifyChanged()
	}

	// Expression models a read-only value exposed by the (external)
	// expression evaluator and variable store. Conditions and Assignment
	// right-hand-sides are Expressions.
	Expression interface {
		// Activate increments the evaluator's reference count for this
		// expression; it must be called before GetValue/IsKnown are
		// meaningful (spec §4.1, §7 "condition not active when read").
		Activate()
		// Deactivate decrements the reference count.
		Deactivate()
		// IsActive reports whether Activate has been called more times
		// than Deactivate for this expression.
		IsActive() bool
		// GetValue returns the current value and whether it is known.
		// An unknown value, or a value of the wrong type for the caller
		// (e.g. a non-boolean returned for a condition slot), must be
		// surfaced as !known rather than a panic or error, per spec §7.
		GetValue() (value any, known bool)
		// Subscribe registers l to be notified on value change, and
		// returns an unsubscribe function. Conditions.Activate calls it
		// on every activation of a listened-to slot, so the same node
		// may subscribe again after an unsubscribe, or through two
		// slots that share one Expression.
		Subscribe(l ChangeListener) (unsubscribe func())
		fmt.Stringer
	}

	// Assignable is an Expression that can also be written and whose
	// prior value can be snapshotted and restored, used as the
	// destination of an Assignment.
	Assignable interface {
		Expression
		// SetValue writes a new value. Any error is fatal per spec §4.4.
		SetValue(value any) error
		// SaveCurrentValue snapshots the value for later Restore, called
		// during Assignment.fixValue.
		SaveCurrentValue()
		// RestoreSavedValue writes back the snapshot taken by
		// SaveCurrentValue, used by Assignment.retract.
		RestoreSavedValue() error
		// BaseVariable returns the root variable an alias or array
		// reference ultimately writes, for conflict-set grouping and for
		// the resolver's variablesToRetract comparison (spec §4.6 step
		// 1, §4.7). Returns itself if not an alias.
		BaseVariable() Assignable
	}

	// VariableMap is a lexically-scoped mapping from a node-local name to
	// a Variable, chained to the parent node's map for lookup.
	VariableMap struct {
		vars   map[string]Assignable
		parent *VariableMap
	}
)

// NewVariableMap constructs a VariableMap chained to parent (which may be
// nil for a plan root).
func NewVariableMap(parent *VariableMap) *VariableMap {
	return &VariableMap{parent: parent}
}

// Declare binds name to v in this map's own scope, shadowing any
// same-named ancestor binding.
func (m *VariableMap) Declare(name string, v Assignable) {
	if m.vars == nil {
		m.vars = make(map[string]Assignable, 1)
	}
	m.vars[name] = v
}

// Lookup resolves name in this scope, falling back to ancestor scopes.
func (m *VariableMap) Lookup(name string) (Assignable, bool) {
	for s := m; s != nil; s = s.parent {
		if s.vars != nil {
			if v, ok := s.vars[name]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Names returns the locally-declared (non-inherited) variable names, for
// introspection/serialization.
func (m *VariableMap) Names() []string {
	names := make([]string, 0, len(m.vars))
	for k := range m.vars {
		names = append(names, k)
	}
	return names
}
