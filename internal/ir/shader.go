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

    `github.com/oleiade/lane`
    `golang.org/x/exp/slices`
)

// Shader is the per-shader arena. Every instruction and register lives
// here and is referenced by index; dropping the shader releases all of them.
type Shader struct {
	Nodes  []Node
	Regs   []*Register
	Blocks []*Block
	home   []*Block
	nblk   int
}

func NewShader() *Shader {
	return new(Shader)
}

func (self *Shader) Node(id InstrID) Node {
	return self.Nodes[id]
}

func (self *Shader) Reg(id RegID) *Register {
	return self.Regs[id]
}

// Alu returns the ALU instruction with the given index, or nil.
func (self *Shader) Alu(id InstrID) *AluInstr {
	p, _ := self.Nodes[id].(*AluInstr)
	return p
}

// NewReg allocates a register.
func (self *Shader) NewReg(sel int, ch int, pin Pin, ssa bool) RegID {
	id := RegID(len(self.Regs))
	self.Regs = append(self.Regs, &Register{
		ID:   id,
		Sel:  sel,
		Chan: ch,
		Pin:  pin,
		SSA:  ssa,
	})
	return id
}

// NewBlock allocates a block with the next id.
func (self *Shader) NewBlock(t BlockType, depth int) *Block {
	bb := &Block{
		ID:        self.nblk,
		Type:      t,
		Depth:     depth,
		Remaining: _UnlimitedSlots,
		Kcache:    KcacheSet{Max: 4},
	}
	self.nblk++
	return bb
}

// Add places a node into the arena and records its register definitions
// and usages. It does not add the node to any block.
func (self *Shader) Add(n Node) InstrID {
	id := InstrID(len(self.Nodes))
	b := n.Base()
	b.ID, b.Block, b.Index = id, -1, -1

	/* fix up the back references */
	switch p := n.(type) {
	case *AluInstr:
		p.Slot = -1
		p.Parent = NoInstr
	case *AluGroup:
		for i, v := range p.Slots {
			if v != NoInstr {
				a := self.Alu(v)
				a.Parent, a.Slot = id, i
			}
		}
	case *IfInstr:
		p.Target = NoInstr
		self.Alu(p.Pred).Parent = id
	case *ControlFlowInstr:
		p.Target = NoInstr
	}

	/* register the usages and definitions */
	for _, r := range n.Reads() {
		self.Regs[r].addUse(id)
	}
	for _, r := range n.Writes() {
		self.Regs[r].addDef(id)
	}

	self.Nodes = append(self.Nodes, n)
	self.home = append(self.home, nil)
	return id
}

// Emit adds a node to the arena and appends it to an unscheduled block.
func (self *Shader) Emit(bb *Block, n Node) InstrID {
	id := self.Add(n)
	self.place(bb, id)
	return id
}

func (self *Shader) place(bb *Block, id InstrID) {
	bb.Instrs = append(bb.Instrs, id)
	self.home[id] = bb
}

// Home returns the unscheduled block the instruction was emitted into.
// Nested instructions report the block of their parent.
func (self *Shader) Home(id InstrID) *Block {
	if bb := self.home[id]; bb != nil {
		return bb
	} else if a, ok := self.Nodes[id].(*AluInstr); ok && a.Parent != NoInstr {
		return self.Home(a.Parent)
	} else {
		return nil
	}
}

// Position returns the program order location of an unscheduled
// instruction: the index of its block in Blocks and its index in the block.
func (self *Shader) Position(id InstrID) (int, int) {
	if a, ok := self.Nodes[id].(*AluInstr); ok && a.Parent != NoInstr && self.home[id] == nil {
		return self.Position(a.Parent)
	}
	bb := self.home[id]
	if bb == nil {
		return -1, -1
	}
	return slices.Index(self.Blocks, bb), slices.Index(bb.Instrs, id)
}

// AddRequired makes `id` depend on `other`. Adding an existing edge is a
// no-op, and the reciprocal edge is maintained.
func (self *Shader) AddRequired(id InstrID, other InstrID) {
	if id == other {
		panic(fmt.Sprintf("ir: instruction #%d cannot depend on itself", id))
	}
	b := self.Nodes[id].Base()
	if !slices.Contains(b.Required, other) {
		o := self.Nodes[other].Base()
		b.Required = append(b.Required, other)
		o.Dependent = append(o.Dependent, id)
	}
}

// RemoveRequired drops the edge between `id` and `other` if there is one.
func (self *Shader) RemoveRequired(id InstrID, other InstrID) {
	b := self.Nodes[id].Base()
	o := self.Nodes[other].Base()
	if i := slices.Index(b.Required, other); i >= 0 {
		b.Required = slices.Delete(b.Required, i, i+1)
	}
	if i := slices.Index(o.Dependent, id); i >= 0 {
		o.Dependent = slices.Delete(o.Dependent, i, i+1)
	}
}

// Ready reports whether every instruction `id` depends on was scheduled.
func (self *Shader) Ready(id InstrID) bool {
	n := self.Nodes[id]
	for _, r := range n.Base().Required {
		if !self.Nodes[r].Base().IsScheduled() {
			return false
		}
	}

	/* nested instructions must be ready as well */
	switch p := n.(type) {
	case *IfInstr:
		return self.Ready(p.Pred)
	case *AluGroup:
		for _, v := range p.Members() {
			for _, r := range self.Nodes[v].Base().Required {
				if self.Nodes[r].Base().IsScheduled() {
					continue
				} else if a := self.Alu(r); a == nil || a.Parent != id {
					return false
				}
			}
		}
	}
	return true
}

// SetScheduled marks an instruction and everything nested in it scheduled.
func (self *Shader) SetScheduled(id InstrID) {
	n := self.Nodes[id]
	n.Base().Set(FlagScheduled)

	/* forward to nested instructions */
	switch p := n.(type) {
	case *IfInstr:
		self.SetScheduled(p.Pred)
	case *AluGroup:
		for _, v := range p.Members() {
			self.SetScheduled(v)
		}
	}
}

// Removable reports whether the instruction computes nothing anybody reads
// and has no other effect.
func (self *Shader) Removable(id InstrID) bool {
	n := self.Nodes[id]
	b := n.Base()

	/* already gone, or pinned alive */
	if b.Has(FlagDead | FlagAlwaysKeep) {
		return false
	}

	/* conservatively alive */
	switch p := n.(type) {
	case *IfInstr, *AluGroup, *ControlFlowInstr:
		return false
	case *AluInstr:
		if p.Op.IsKill() || p.Op.IsBarrier() || p.Parent != NoInstr {
			return false
		}
	}

	/* instructions with side effects are never removed */
	if IsImpure(self, n) {
		return false
	}

	/* every written register must be unused and uniquely defined */
	ws := n.Writes()
	if len(ws) == 0 {
		return false
	}
	for _, r := range ws {
		if reg := self.Regs[r]; reg.HasUses() || (!reg.SSA && len(reg.Defs) > 1) {
			return false
		}
	}
	return true
}

// SetDead removes the instruction from the graph. It returns false if the
// instruction was already dead or must be kept. Producers that lose their
// last use because of this are removed as well.
func (self *Shader) SetDead(id InstrID) bool {
	if !self.kill(id) {
		return false
	}

	/* re-check everything that fed the killed instructions */
	q := lane.NewQueue()
	for q.Enqueue(id); !q.Empty(); {
		v := q.Dequeue().(InstrID)
		n := self.Nodes[v]

		/* producers of the registers it read, and the other writers of the
		 * registers it wrote, may have lost their last reason to live */
		for _, r := range append(n.Reads(), n.Writes()...) {
			for _, d := range slices.Clone(self.Regs[r].Defs) {
				if self.Removable(d) && self.kill(d) {
					q.Enqueue(d)
				}
			}
		}
	}
	return true
}

func (self *Shader) kill(id InstrID) bool {
	n := self.Nodes[id]
	b := n.Base()

	/* already dead or pinned alive */
	if b.Has(FlagDead | FlagAlwaysKeep) {
		return false
	}

	/* these are never removed */
	switch p := n.(type) {
	case *IfInstr, *AluGroup:
		return false
	case *AluInstr:
		if p.Op.IsKill() || p.Op.IsBarrier() || p.Parent != NoInstr {
			return false
		}
	}

	/* detach from the block and the registers */
	b.Set(FlagDead)
	if bb := self.home[id]; bb != nil {
		bb.erase(id)
		self.home[id] = nil
	}
	for _, r := range n.Reads() {
		self.Regs[r].delUse(id)
	}
	for _, r := range n.Writes() {
		self.Regs[r].delDef(id)
	}

	/* keep the ordering that went through this instruction */
	req := slices.Clone(b.Required)
	dep := slices.Clone(b.Dependent)
	for _, d := range dep {
		for _, r := range req {
			self.AddRequired(d, r)
		}
	}

	/* unlink all the edges */
	for _, r := range req {
		self.RemoveRequired(id, r)
	}
	for _, d := range dep {
		self.RemoveRequired(d, id)
	}
	return true
}

// ReplaceSrc replaces source `i` of an ALU instruction, keeping the source
// modifiers of the old operand.
func (self *Shader) ReplaceSrc(id InstrID, i int, src Src) {
	a := self.Alu(id)
	old := a.Src[i]
	if old.Kind == S_gpr {
		self.Regs[old.Reg].delUse(id)
	}
	src.Neg, src.Abs = old.Neg, old.Abs
	a.Src[i] = src
	if src.Kind == S_gpr {
		self.Regs[src.Reg].addUse(id)
	}
}

// SetSources replaces all sources of an ALU instruction.
func (self *Shader) SetSources(id InstrID, op Opcode, src []Src) {
	a := self.Alu(id)
	for _, r := range a.Reads() {
		self.Regs[r].delUse(id)
	}
	a.Op, a.Src = op, src
	for _, r := range a.Reads() {
		self.Regs[r].addUse(id)
	}
}

// SetDst retargets the destination of an ALU instruction.
func (self *Shader) SetDst(id InstrID, dst RegID) {
	a := self.Alu(id)
	if a.Dst != NoReg {
		self.Regs[a.Dst].delDef(id)
	}
	a.Dst = dst
	if dst != NoReg {
		self.Regs[dst].addDef(id)
	}
}

// DropUse removes one lane of a vector operand from the usage list of the
// register it reads.
func (self *Shader) DropUse(id InstrID, r RegID) {
	self.Regs[r].delUse(id)
}

// Append puts a scheduled instruction at the end of an output block.
func (self *Shader) Append(bb *Block, id InstrID) {
	n := self.Nodes[id]
	b := n.Base()
	b.Block, b.Index = bb.ID, len(bb.Instrs)
	bb.Instrs = append(bb.Instrs, id)

	/* plain instructions take a single slot */
	g, ok := n.(*AluGroup)
	if !ok {
		bb.Remaining--
		return
	}

	/* groups also carry their literals and LDS queue operations */
	bb.Remaining -= g.SlotCount()
	for _, v := range g.Members() {
		a := self.Alu(v)
		a.Block, a.Index = bb.ID, b.Index
		if a.Op.IsLDSRead() {
			bb.lds++
		} else if a.Op.IsLDSFetch() {
			if bb.lds--; bb.lds < 0 {
				panic(fmt.Sprintf("ir: LDS fetch without a queued read in block %d", bb.ID))
			}
		}
	}
}
