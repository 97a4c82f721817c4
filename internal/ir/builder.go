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

    `github.com/cloudwego/gpusched/internal/hw`
)

// Builder constructs unscheduled shaders the way instruction selection
// hands them over: every register access is turned into dependency edges
// (RAW for all registers, WAR and WAW for non-SSA registers), and memory
// side effects are kept in program order. Every control flow instruction
// ends its block, the next instruction opens a block at the nesting depth
// the control flow instruction leaves behind.
type Builder struct {
	sh    *Shader
	cfg   hw.Config
	bb    *Block
	depth int
	sel   int
	mem   InstrID
	defs  map[RegID]InstrID
	reads map[RegID][]InstrID
}

func NewBuilder(sh *Shader, cfg hw.Config) *Builder {
	return &Builder{
		sh:    sh,
		cfg:   cfg,
		sel:   1,
		mem:   NoInstr,
		defs:  make(map[RegID]InstrID),
		reads: make(map[RegID][]InstrID),
	}
}

func (self *Builder) Shader() *Shader {
	return self.sh
}

// Block returns the block instructions are currently emitted into, or nil
// if the last instruction closed it.
func (self *Builder) Block() *Block {
	return self.bb
}

// StartBlock begins a new unscheduled block at the given nesting depth.
func (self *Builder) StartBlock(depth int) *Block {
	self.depth = depth
	self.bb = self.sh.NewBlock(BlockUnknown, depth)
	self.sh.Blocks = append(self.sh.Blocks, self.bb)
	return self.bb
}

// Temp allocates a virtual SSA register.
func (self *Builder) Temp() RegID {
	self.sel++
	return self.sh.NewReg(self.sel, 0, PinFree, true)
}

// TempChan allocates an SSA register bound to a channel.
func (self *Builder) TempChan(ch int) RegID {
	self.sel++
	return self.sh.NewReg(self.sel, ch, PinChan, true)
}

// Reg allocates a non-SSA register at a fixed location.
func (self *Builder) Reg(sel int, ch int) RegID {
	return self.sh.NewReg(sel, ch, PinFully, false)
}

// Emit appends a node to the current block and wires its dependencies.
func (self *Builder) Emit(n Node) InstrID {
	if self.bb == nil {
		self.StartBlock(self.depth)
	}
	id := self.sh.Emit(self.bb, n)
	self.wire(id, n)
	return id
}

// Alu emits a single ALU instruction.
func (self *Builder) Alu(op Opcode, dst RegID, src ...Src) InstrID {
	if len(src) != op.NumSrc() {
		panic(fmt.Sprintf("ir: %s takes %d sources, got %d", op, op.NumSrc(), len(src)))
	}
	return self.Emit(&AluInstr{Op: op, Dst: dst, Src: src})
}

// Group emits a pre-formed ALU group from instructions indexed by slot,
// nil entries are empty slots.
func (self *Builder) Group(slots [5]*AluInstr) InstrID {
	ids := [5]InstrID{NoInstr, NoInstr, NoInstr, NoInstr, NoInstr}
	for i, p := range slots {
		if p != nil {
			ids[i] = self.sh.Add(p)
		}
	}
	if self.bb == nil {
		self.StartBlock(self.depth)
	}
	g := self.sh.GroupInstrs(self.cfg, ids)
	self.sh.place(self.bb, g.ID)
	self.wire(g.ID, g)
	return g.ID
}

// If emits an IF whose predicate is the given predicate-setting operation.
func (self *Builder) If(op Opcode, wqm bool, src ...Src) InstrID {
	if !op.IsPred() {
		panic("ir: IF requires a predicate setter, got " + op.String())
	}
	pred := &AluInstr{Op: op, Dst: NoReg, Src: src}
	pid := self.sh.Add(pred)
	self.wire(pid, pred)
	p := &IfInstr{Pred: pid, WQM: wqm}
	id := self.Emit(p)
	self.endBlock(p.NestingOffset())
	return id
}

// CF emits a control flow instruction.
func (self *Builder) CF(t CFType) InstrID {
	p := &ControlFlowInstr{Type: t}
	id := self.Emit(p)
	self.endBlock(p.NestingOffset())
	return id
}

func (self *Builder) endBlock(offs int) {
	if self.bb = nil; self.depth+offs >= 0 {
		self.depth += offs
	}
}

func (self *Builder) wire(id InstrID, n Node) {
	switch p := n.(type) {
	case *AluGroup:
		for _, v := range p.Members() {
			self.wireRegs(v, self.sh.Node(v))
		}
	case *IfInstr, *ControlFlowInstr:
		return
	default:
		self.wireRegs(id, n)
	}

	/* exports are deferred to the end of the block, never chain them */
	if _, ok := n.(*ExportInstr); ok {
		return
	}

	/* keep memory side effects in order */
	if IsImpure(self.sh, n) {
		if self.mem != NoInstr {
			self.sh.AddRequired(id, self.mem)
		}
		self.mem = id
	}
}

func (self *Builder) wireRegs(id InstrID, n Node) {
	for _, r := range n.Reads() {
		if w, ok := self.defs[r]; ok && w != id {
			self.sh.AddRequired(id, w)
		}
		if !self.sh.Regs[r].SSA {
			self.reads[r] = append(self.reads[r], id)
		}
	}

	/* update the definitions */
	for _, r := range n.Writes() {
		if w, ok := self.defs[r]; ok && w != id {
			if self.sh.Regs[r].SSA {
				panic(fmt.Sprintf("ir: SSA register %s defined twice", self.sh.Regs[r]))
			}
			self.sh.AddRequired(id, w)
		}
		for _, u := range self.reads[r] {
			if u != id {
				self.sh.AddRequired(id, u)
			}
		}
		delete(self.reads, r)
		self.defs[r] = id
	}
}
