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

	"github.com/xlab/treeprint"
)

// RenderTree renders root and its descendants as an ASCII tree, each
// node labelled with its id, type, current state, and outcome. Grounded
// on the same library go-behaviortree itself pulls in to stringify a
// bt.Node tree; a Plan's Node hierarchy is the same shape of problem,
// just with plexec's own state instead of a tick result.
func RenderTree(root *Node) string {
	if root == nil {
		return ""
	}
	tree := treeprint.NewWithRoot(nodeLabel(root))
	for _, c := range root.Children() {
		addTreeNode(tree, c)
	}
	return tree.String()
}

func addTreeNode(parent treeprint.Tree, n *Node) {
	label := nodeLabel(n)
	children := n.Children()
	if len(children) == 0 {
		parent.AddNode(label)
		return
	}
	branch := parent.AddBranch(label)
	for _, c := range children {
		addTreeNode(branch, c)
	}
}

func nodeLabel(n *Node) string {
	s := fmt.Sprintf("%s [%s] state=%s outcome=%s", n.ID, n.Type, n.State(), n.Outcome())
	if n.FailureType() != FailureNone {
		s += " failure=" + n.FailureType().String()
	}
	return s
}
