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

package sched

import (
    `fmt`
    `strings`

    `github.com/cloudwego/gpusched/internal/ir`
)

// residue reports the instructions of a block that were never issued. This
// is either a dependency cycle or a dependency on an instruction that is
// not scheduled before the block, both are compiler defects.
func (self *Scheduler) residue(bb *ir.Block, q *_Queues) {
	var sb strings.Builder
	var ids = q.pending()

	/* tell the two failure modes apart */
	kind := "missing dependency"
	if cc := self.sh.Cycles(ids); len(cc) != 0 {
		kind = "circular dependency"
		for _, c := range cc {
			fmt.Fprintf(&sb, "\n  cycle: %v", c)
		}
	}

	/* the textual form of every stuck instruction and what it waits for */
	for _, id := range ids {
		fmt.Fprintf(&sb, "\n  #%d %s", id, self.sh.Node(id).Format(self.sh))
		for _, r := range self.sh.Node(id).Base().Required {
			if !self.sh.Node(r).Base().IsScheduled() {
				fmt.Fprintf(&sb, "\n    waits for #%d %s", r, self.sh.Node(r).Format(self.sh))
			}
		}
	}

	/* dump the queues for post-mortem debugging */
	fmt.Fprintf(&sb, "\n  queues: %s", ir.DumpState(self.queueState(q)))
	panic(fmt.Sprintf("sched: %s in block %d:%s", kind, bb.ID, sb.String()))
}

func (self *Scheduler) queueState(q *_Queues) map[string][]ir.InstrID {
	ret := make(map[string][]ir.InstrID, _K_max+1)
	for k := _K_vec; k < _K_max; k++ {
		if !q.q[k].empty() {
			ret[_KindNames[k]+".avail"] = q.q[k].avail
			ret[_KindNames[k]+".ready"] = q.q[k].ready
		}
	}
	if len(q.cf) != 0 {
		ret["cf"] = q.cf
	}
	return ret
}
