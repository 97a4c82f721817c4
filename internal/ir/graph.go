/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ir

import (
    `fmt`
    `strings`

    `golang.org/x/exp/slices`
    `gonum.org/v1/gonum/graph`
    `gonum.org/v1/gonum/graph/simple`
    `gonum.org/v1/gonum/graph/topo`
)

// DependencyGraph builds the dependency graph restricted to the listed
// instructions, edges point from the required instruction to its user.
func (self *Shader) DependencyGraph(ids []InstrID) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for _, id := range ids {
		if g.Node(int64(id)) == nil {
			g.AddNode(simple.Node(id))
		}
	}

	/* add the edges inside the set */
	for _, id := range ids {
		for _, r := range self.Nodes[id].Base().Required {
			if g.Node(int64(r)) != nil && r != id {
				g.SetEdge(g.NewEdge(simple.Node(r), simple.Node(id)))
			}
		}
	}
	return g
}

// Cycles returns the dependency cycles among the listed instructions.
func (self *Shader) Cycles(ids []InstrID) [][]InstrID {
	var ret [][]InstrID
	for _, c := range topo.DirectedCyclesIn(self.DependencyGraph(ids)) {
		ret = append(ret, nodeIDs(c))
	}
	return ret
}

// Verify checks the structural invariants of the instruction graph:
// edges are reciprocal, dead instructions are detached, control flow
// instructions end their blocks, and the dependencies form a partial order.
func Verify(sh *Shader) error {
	var live []InstrID
	for _, bb := range sh.Blocks {
		for i, id := range bb.Instrs {
			switch sh.Nodes[id].(type) {
			case *IfInstr, *ControlFlowInstr:
				if i != len(bb.Instrs)-1 {
					return fmt.Errorf("ir: control flow instruction #%d does not end block %d", id, bb.ID)
				}
			}
		}
	}
	for i, n := range sh.Nodes {
		id := InstrID(i)
		b := n.Base()

		/* dead instructions must not be linked */
		if b.IsDead() {
			if len(b.Required) != 0 || len(b.Dependent) != 0 {
				return fmt.Errorf("ir: dead instruction #%d is still linked", id)
			}
			continue
		}

		/* every edge must have its reciprocal */
		for _, r := range b.Required {
			if !slices.Contains(sh.Nodes[r].Base().Dependent, id) {
				return fmt.Errorf("ir: edge #%d -> #%d has no reciprocal", r, id)
			}
		}
		for _, d := range b.Dependent {
			if !slices.Contains(sh.Nodes[d].Base().Required, id) {
				return fmt.Errorf("ir: edge #%d -> #%d has no reciprocal", id, d)
			}
		}
		live = append(live, id)
	}

	/* the dependencies must be orderable */
	if _, err := topo.Sort(sh.DependencyGraph(live)); err != nil {
		var ss []string
		if uo, ok := err.(topo.Unorderable); ok {
			for _, c := range uo {
				ss = append(ss, formatIDs(nodeIDs(c)))
			}
		}
		return fmt.Errorf("ir: dependency cycle: %s", strings.Join(ss, ", "))
	}
	return nil
}

func nodeIDs(nodes []graph.Node) []InstrID {
	ret := make([]InstrID, 0, len(nodes))
	for _, n := range nodes {
		ret = append(ret, InstrID(n.ID()))
	}
	return ret
}

func formatIDs(ids []InstrID) string {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ss := make([]string, 0, len(ids))
	for _, v := range ids {
		ss = append(ss, fmt.Sprintf("#%d", v))
	}
	return "{" + strings.Join(ss, " ") + "}"
}
