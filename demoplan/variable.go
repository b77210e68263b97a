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

// Package demoplan builds plexec.Plan values in process, for tests and
// the plexec-demo CLI. It is not a parser: a plan
// is assembled by calling Go functions directly, the way the teacher's
// own tcell-pick-and-place example builds its behavior trees.
package demoplan

import (
	"fmt"

	plexec "github.com/joeycumines/go-plexec"
)

// Var is a general-purpose Assignable: an in-memory cell with reference-
// counted activation and change notification, standing in for whatever
// real variable store a production caller would plug in (spec §4.1's
// "the (external) expression evaluator and variable store").
type Var struct {
	name  string
	value any
	known bool

	savedValue any
	savedKnown bool

	refs      int
	listeners []plexec.ChangeListener
}

// NewVar constructs a named Var holding an initial (possibly unknown)
// value. Passing nil leaves the variable unknown until the first
// SetValue.
func NewVar(name string, initial any) *Var {
	return &Var{name: name, value: initial, known: initial != nil}
}

func (v *Var) Activate()   { v.refs++ }
func (v *Var) Deactivate() {
	if v.refs > 0 {
		v.refs--
	}
}
func (v *Var) IsActive() bool { return v.refs > 0 }

func (v *Var) GetValue() (value any, known bool) { return v.value, v.known }

func (v *Var) Subscribe(l plexec.ChangeListener) func() {
	v.listeners = append(v.listeners, l)
	idx := len(v.listeners) - 1
	return func() {
		if idx < len(v.listeners) && v.listeners[idx] == l {
			v.listeners[idx] = nil
		}
	}
}

func (v *Var) String() string {
	if !v.known {
		return fmt.Sprintf("%s=<unknown>", v.name)
	}
	return fmt.Sprintf("%s=%v", v.name, v.value)
}

// SetValue is how external world code (the inbound event drain, a
// command's own effects) mutates the variable. It always succeeds;
// Var has no validation of its own.
func (v *Var) SetValue(value any) error {
	v.value = value
	v.known = value != nil
	v.notify()
	return nil
}

func (v *Var) SaveCurrentValue() { v.savedValue, v.savedKnown = v.value, v.known }

func (v *Var) RestoreSavedValue() error {
	v.value, v.known = v.savedValue, v.savedKnown
	v.notify()
	return nil
}

// BaseVariable returns v itself: Var is never an alias.
func (v *Var) BaseVariable() plexec.Assignable { return v }

func (v *Var) notify() {
	for _, l := range v.listeners {
		if l != nil {
			l.NotifyChanged()
		}
	}
}

// literalExpr is a constant Expression with no subscribers and no
// activation bookkeeping, used for condition slots a demo plan doesn't
// need to vary at runtime (e.g. an Invariant that is simply always
// true).
type literalExpr struct {
	value any
	known bool
}

// Literal returns an Expression that always evaluates to value.
func Literal(value bool) plexec.Expression { return literalExpr{value: value, known: true} }

// Unknown returns an Expression that never resolves.
func Unknown() plexec.Expression { return literalExpr{known: false} }

func (e literalExpr) Activate()                               {}
func (e literalExpr) Deactivate()                             {}
func (e literalExpr) IsActive() bool                          { return true }
func (e literalExpr) GetValue() (any, bool)                   { return e.value, e.known }
func (e literalExpr) Subscribe(plexec.ChangeListener) func() { return func() {} }
func (e literalExpr) String() string {
	if !e.known {
		return "unknown"
	}
	if b, _ := e.value.(bool); b {
		return "true"
	}
	return "false"
}

// AliasVar is an Assignable that forwards every operation to Base, for
// building array-element or by-reference parameter bindings whose
// conflict-set grouping and variablesToRetract comparison must resolve
// to the same underlying variable (spec §4.6 step 1, via BaseVariable).
type AliasVar struct {
	Base *Var
}

func (a AliasVar) Activate()                              { a.Base.Activate() }
func (a AliasVar) Deactivate()                             { a.Base.Deactivate() }
func (a AliasVar) IsActive() bool                          { return a.Base.IsActive() }
func (a AliasVar) GetValue() (any, bool)                   { return a.Base.GetValue() }
func (a AliasVar) Subscribe(l plexec.ChangeListener) func() { return a.Base.Subscribe(l) }
func (a AliasVar) String() string                          { return a.Base.String() }
func (a AliasVar) SetValue(value any) error                { return a.Base.SetValue(value) }
func (a AliasVar) SaveCurrentValue()                        { a.Base.SaveCurrentValue() }
func (a AliasVar) RestoreSavedValue() error                 { return a.Base.RestoreSavedValue() }
func (a AliasVar) BaseVariable() plexec.Assignable          { return a.Base }
