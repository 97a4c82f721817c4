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
    `github.com/cloudwego/gpusched/internal/ir`
)

// scheduleOne issues the first ready instruction of a queue into a clause
// of the given type.
func (self *Scheduler) scheduleOne(p *_Queue, t ir.BlockType) bool {
	if len(p.ready) == 0 || !self.ensure(t, 1) {
		return false
	}
	id := p.ready[0]
	p.take(id)
	self.issue(id)
	return true
}

// scheduleExports issues the ready exports of the block into a CF clause,
// remembering the last export of each type. It reports whether anything
// was issued.
func (self *Scheduler) scheduleExports(q *_Queues) (ok bool) {
	p := &q.q[_K_export]
	for {
		self.promoteKind(q, _K_export)
		if len(p.ready) == 0 {
			return
		}
		for len(p.ready) != 0 {
			id := p.ready[0]
			if !self.scheduleOne(p, ir.BlockCF) {
				panic("sched: no CF clause available for exports")
			}
			self.last[self.sh.Node(id).(*ir.ExportInstr).Type] = id
			ok = true
		}
	}
}

// scheduleCF issues the control flow instructions that end the block, each
// in its own CF clause at the depth it executes in.
func (self *Scheduler) scheduleCF(q *_Queues) {
	for len(q.cf) != 0 {
		id := q.cf[0]
		if !self.sh.Ready(id) {
			return
		}

		/* find the depth of the instruction */
		depth := self.depth
		if p, ok := self.sh.Node(id).(*ir.ControlFlowInstr); ok {
			depth += p.NestingCorr()
		}

		/* control flow never shares a clause */
		self.startBlock(ir.BlockCF, depth)
		self.issue(id)
		q.cf = q.cf[1:]
	}
}
