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

// Command plexec-demo drives a small built-in sample plan to
// completion, printing either its node tree or the transition batches
// the executive publishes along the way; a minimal stand-in for the
// teacher's own tcell-pick-and-place demo, scaled to a CLI rather than
// a graphical simulation.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	bt "github.com/joeycumines/go-behaviortree"
	plexec "github.com/joeycumines/go-plexec"
	"github.com/joeycumines/go-plexec/demoplan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plexec-demo",
		Short: "runs and inspects the go-plexec sample plan",
	}
	cmd.AddCommand(newTreeCmd(), newRunCmd())
	return cmd
}

// buildSamplePlan assembles a plan exercising the three node kinds most
// worth watching step by step: an Assignment that arms a gate variable,
// a Command gated on that variable and ticked a handful of times before
// it reports success, and the List sequencing them.
func buildSamplePlan() *plexec.Node {
	plan := plexec.NewPlan()
	armed := demoplan.NewVar("armed", false)

	root := demoplan.NewList(plan, "root", nil)
	demoplan.NewAssignment(plan, "arm", root, armed, demoplan.Literal(true))

	ticksRemaining := 3
	demoplan.NewCommand(plan, "move", root, plexec.FuncActionHandle{
		Tick: func([]bt.Node) (bt.Status, error) {
			if ticksRemaining <= 0 {
				return bt.Success, nil
			}
			ticksRemaining--
			return bt.Running, nil
		},
	}, demoplan.WithStart(armed))

	return root
}

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "prints the sample plan's node hierarchy before it runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), plexec.RenderTree(buildSamplePlan()))
			return nil
		},
	}
}

// cliListener prints one line per transition in each published batch,
// the way a plan monitor would narrate progress to an operator.
type cliListener struct {
	out io.Writer
}

func (l *cliListener) NotifyOfTransitions(batch []plexec.TransitionRecord) {
	for _, rec := range batch {
		fmt.Fprintf(l.out, "%-6s %-9s -> %-9s outcome=%s\n",
			rec.Node.ID, rec.Previous, rec.Node.State(), rec.Node.Outcome())
	}
}

func (l *cliListener) NotifyOfAssignment(node *plexec.Node, dest plexec.Assignable, value any) {
	fmt.Fprintf(l.out, "%-6s assigned %v to %s\n", node.ID, value, dest)
}

func (l *cliListener) NotifyOfPlanError(err *plexec.PlanError) {
	fmt.Fprintf(l.out, "plan error: %s\n", err.Error())
}

func newRunCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "steps the sample plan until its root finishes (or --steps is exhausted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 20, "maximum number of macro steps before giving up")
	return cmd
}

func runDemo(cmd *cobra.Command, maxSteps int) error {
	root := buildSamplePlan()
	world := demoplan.NewWorld(0)
	exec := plexec.NewExecutive(world, plexec.WithListener(&cliListener{out: cmd.OutOrStdout()}))
	exec.AddPlan(root)

	for i := 0; i < maxSteps && !exec.AllPlansFinished(); i++ {
		world.Clock.Advance(1)
		if err := exec.Step(world.Clock.Now()); err != nil {
			return err
		}
	}

	if !exec.AllPlansFinished() {
		return fmt.Errorf("root %q did not finish within %d steps (state=%s)", root.ID, maxSteps, root.State())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "root finished: outcome=%s\n", root.Outcome())
	return nil
}
