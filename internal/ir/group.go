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
    `github.com/cloudwego/gpusched/internal/hw`
    `golang.org/x/exp/slices`
)

// AddResult tells why an instruction could not join a group.
type AddResult uint8

const (
	AddOK AddResult = iota
	AddNoSlot
	AddLiteralOverflow
	AddKcacheOverflow
)

var _AddResultNames = [...]string{
	AddOK:              "ok",
	AddNoSlot:          "no slot",
	AddLiteralOverflow: "literal overflow",
	AddKcacheOverflow:  "kcache overflow",
}

func (self AddResult) String() string {
	return _AddResultNames[self]
}

// NewGroup allocates an empty ALU group in the arena.
func (self *Shader) NewGroup(cfg hw.Config) *AluGroup {
	g := &AluGroup{
		Slots:  [5]InstrID{NoInstr, NoInstr, NoInstr, NoInstr, NoInstr},
		Kcache: NewKcacheSet(cfg.KcacheLines),
	}
	self.Add(g)
	return g
}

// GroupInstrs builds a pre-formed group from ALU instructions placed at the
// given slots. The group is not part of any block.
func (self *Shader) GroupInstrs(cfg hw.Config, slots [5]InstrID) *AluGroup {
	g := &AluGroup{
		Slots:  slots,
		Kcache: NewKcacheSet(cfg.KcacheLines),
	}

	/* collect the literals and constant lines */
	for _, v := range g.Members() {
		for _, l := range self.Alu(v).Literals() {
			if !slices.Contains(g.Literals, l) {
				g.Literals = append(g.Literals, l)
			}
		}
	}
	if len(g.Literals) > hw.MaxLiterals || !g.Kcache.ReserveAll(self, g.Members()) {
		panic("ir: pre-formed group exceeds the literal or kcache limits")
	}

	self.Add(g)
	return g
}

// GroupAdd tries to place the ALU instruction into a vector slot, or into
// the trans slot if `trans` is set.
func (self *Shader) GroupAdd(g *AluGroup, id InstrID, trans bool, cfg hw.Config) AddResult {
	var slot = -1
	var reg *Register
	var a = self.Alu(id)

	/* find a slot for the instruction */
	if trans {
		if g.TransFree() && a.Op.CanTrans(cfg) {
			slot = 4
		}
	} else if a.Op.CanVec(cfg) {
		if a.Dst == NoReg {
			slot = g.freeVec()
		} else if reg = self.Regs[a.Dst]; g.Slots[reg.Chan] == NoInstr {
			slot = reg.Chan
		} else if reg.CanMoveChan() && len(reg.Defs) == 1 {
			slot = g.freeVec()
		}
	}

	/* no slot available */
	if slot < 0 {
		return AddNoSlot
	}

	/* the literal pool is shared by the whole group */
	lits := slices.Clone(g.Literals)
	for _, l := range a.Literals() {
		if !slices.Contains(lits, l) {
			lits = append(lits, l)
		}
	}
	if len(lits) > hw.MaxLiterals {
		return AddLiteralOverflow
	}

	/* so are the constant cache lines */
	kc := g.Kcache
	if !kc.ReserveAll(self, []InstrID{id}) {
		return AddKcacheOverflow
	}

	/* vector instructions write the lane of their slot */
	if !trans && reg != nil && reg.Chan != slot {
		reg.Chan = slot
	}

	/* commit the placement */
	g.Slots[slot] = id
	g.Literals = lits
	g.Kcache = kc
	a.Slot, a.Parent = slot, g.ID
	return AddOK
}

// CloseGroup finalizes the group: the instruction in the highest occupied
// slot is marked last, optionally after appending a helper NOP.
func (self *Shader) CloseGroup(g *AluGroup, depth int, nop bool) {
	last := -1
	for i, v := range g.Slots {
		if v != NoInstr {
			last = i
		}
	}

	/* append a NOP after the last occupied vector slot */
	if nop && last < 3 {
		p := &AluInstr{Op: OpNop, Dst: NoReg}
		p.Set(FlagHelper)
		id := self.Add(p)
		last++
		g.Slots[last] = id
		p.Slot, p.Parent = last, g.ID
	}

	/* set the last flag */
	for i, v := range g.Slots {
		if v != NoInstr {
			self.Alu(v).Last = i == last
		}
	}
	g.Depth = depth
}

// HasLDSRead reports whether the group queues an LDS read.
func (self *Shader) HasLDSRead(g *AluGroup) bool {
	for _, v := range g.Members() {
		if self.Alu(v).Op.IsLDSRead() {
			return true
		}
	}
	return false
}

// HasLDSFetch reports whether the group pops an LDS result.
func (self *Shader) HasLDSFetch(g *AluGroup) bool {
	for _, v := range g.Members() {
		if self.Alu(v).Op.IsLDSFetch() {
			return true
		}
	}
	return false
}

func (self *AluGroup) freeVec() int {
	for i, v := range self.Slots[:4] {
		if v == NoInstr {
			return i
		}
	}
	return -1
}
