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

    `github.com/cloudwego/gpusched/internal/ir`
    `golang.org/x/exp/slices`
)

// scheduleAlu issues one ALU group: a pre-formed one if one is ready,
// otherwise a new group filled from the ready instructions.
func (self *Scheduler) scheduleAlu(q *_Queues) bool {
	if grp := &q.q[_K_group]; len(grp.ready) != 0 {
		id := grp.ready[0]
		g := self.sh.Node(id).(*ir.AluGroup)
		grp.take(id)
		self.sh.CloseGroup(g, self.depth, false)
		self.issueGroup(g)
		return true
	}

	/* nothing to form a group from */
	if len(q.q[_K_vec].ready) == 0 && len(q.q[_K_trans].ready) == 0 {
		return false
	}

	/* the group goes into the current ALU clause if there is one */
	g := self.sh.NewGroup(self.cfg)
	full := self.fillVec(q, g)
	if g.TransFree() && self.cfg.HasTrans && !self.ldsActive() && !self.sh.HasLDSRead(g) {
		full = self.fillTrans(q, g) || full
	}

	/* nothing fits, drop the group */
	if g.Empty() {
		g.Set(ir.FlagDead)
		return false
	}

	/* a literal overflow closes the group with a NOP */
	self.sh.CloseGroup(g, self.depth, full)
	self.issueGroup(g)
	return true
}

// fillVec fills the vector slots, instructions that can not go to the
// trans slot first. It reports whether the literal pool overflowed.
func (self *Scheduler) fillVec(q *_Queues, g *ir.AluGroup) (full bool) {
	vec := &q.q[_K_vec]
	for _, trans := range [2]bool{false, true} {
		for _, id := range slices.Clone(vec.ready) {
			if g.FreeVecSlots() == 0 {
				return
			}
			if self.sh.Alu(id).Op.CanTrans(self.cfg) != trans {
				continue
			}
			switch self.sh.GroupAdd(g, id, false, self.cfg) {
			case ir.AddOK:
				vec.take(id)
			case ir.AddLiteralOverflow:
				full = true
			}
		}
	}
	return
}

// fillTrans fills the trans slot, from the trans-only instructions first.
func (self *Scheduler) fillTrans(q *_Queues, g *ir.AluGroup) (full bool) {
	for _, k := range [2]_Kind{_K_trans, _K_vec} {
		p := &q.q[k]
		for _, id := range slices.Clone(p.ready) {
			if !self.sh.Alu(id).Op.CanTrans(self.cfg) {
				continue
			}
			switch self.sh.GroupAdd(g, id, true, self.cfg) {
			case ir.AddOK:
				p.take(id)
				return
			case ir.AddLiteralOverflow:
				full = true
			}
		}
	}
	return
}

// issueGroup places a closed group into an ALU clause with enough room and
// constant cache lines, opening a new clause if needed.
func (self *Scheduler) issueGroup(g *ir.AluGroup) {
	n := g.SlotCount()
	if self.cur == nil || self.cur.Type != ir.BlockAlu || self.cur.Remaining < n {
		self.startBlock(ir.BlockAlu, self.depth)
	}

	/* the kcache lines are locked per clause */
	if !self.cur.TryReserveKcache(self.sh, g) {
		self.startBlock(ir.BlockAlu, self.depth).ForceCF = true
		self.stats.ForcedBreaks++
		g.Set(ir.FlagForceCF)
		if !self.cur.TryReserveKcache(self.sh, g) {
			panic(fmt.Sprintf("sched: kcache reservation of group #%d failed on a fresh clause", g.ID))
		}
	}

	self.issue(g.ID)
}
