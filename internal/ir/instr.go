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
)

// InstrID indexes an instruction in the shader arena.
type InstrID int32

const (
	NoInstr InstrID = -1
)

// Flags is the instruction state bit set.
type Flags uint16

const (
	FlagAlwaysKeep Flags = 1 << iota
	FlagDead
	FlagScheduled
	FlagVectorPopStack
	FlagForceCF
	FlagAckRatReturnWrite
	FlagHelper
)

var _FlagNames = [...]string{
	"keep",
	"dead",
	"scheduled",
	"vpop",
	"force_cf",
	"ack_rat",
	"helper",
}

func (self Flags) String() string {
	var ss []string
	for i, v := range _FlagNames {
		if self&(1<<i) != 0 {
			ss = append(ss, v)
		}
	}
	return strings.Join(ss, "|")
}

// Instr is the state every scheduled unit carries. Edges are arena indices
// and never own the instruction they point to.
type Instr struct {
	ID        InstrID
	Block     int
	Index     int
	Flags     Flags
	Required  []InstrID
	Dependent []InstrID
}

func (self *Instr) Base() *Instr { return self }

func (self *Instr) Has(f Flags) bool { return self.Flags&f != 0 }
func (self *Instr) Set(f Flags)      { self.Flags |= f }
func (self *Instr) Clear(f Flags)    { self.Flags &^= f }

func (self *Instr) IsDead() bool      { return self.Has(FlagDead) }
func (self *Instr) IsScheduled() bool { return self.Has(FlagScheduled) }

// Node is the closed set of instruction kinds; passes match on the concrete
// type.
type Node interface {
	Base() *Instr
	Reads() []RegID
	Writes() []RegID
	Format(sh *Shader) string
	node()
}

func (*AluInstr) node()         {}
func (*AluGroup) node()         {}
func (*TexInstr) node()         {}
func (*FetchInstr) node()       {}
func (*GDSInstr) node()         {}
func (*ExportInstr) node()      {}
func (*MemRingInstr) node()     {}
func (*WriteTFInstr) node()     {}
func (*RatInstr) node()         {}
func (*ScratchInstr) node()     {}
func (*ControlFlowInstr) node() {}
func (*IfInstr) node()          {}

// AluInstr is a single ALU operation. Slot and Parent are assigned when the
// instruction is placed into a group; the predicate of an IfInstr has the
// IfInstr as parent.
type AluInstr struct {
	Instr
	Op     Opcode
	Dst    RegID
	Src    []Src
	Sat    bool
	Last   bool
	Slot   int
	Parent InstrID
}

func (self *AluInstr) Reads() (rr []RegID) {
	for _, s := range self.Src {
		if s.Kind == S_gpr {
			rr = append(rr, s.Reg)
		}
	}
	return
}

func (self *AluInstr) Writes() []RegID {
	if self.Dst == NoReg {
		return nil
	} else {
		return []RegID{self.Dst}
	}
}

// IsPlainMove reports whether the instruction copies its source unmodified.
func (self *AluInstr) IsPlainMove() bool {
	return self.Op == OpMov && self.Dst != NoReg && !self.Sat && !self.Src[0].HasMods()
}

// Literals returns the distinct literal dwords the instruction reads.
func (self *AluInstr) Literals() (ret []uint32) {
	for _, s := range self.Src {
		if s.Kind == S_literal && !slices.Contains(ret, s.Value) {
			ret = append(ret, s.Value)
		}
	}
	return
}

func (self *AluInstr) Format(sh *Shader) string {
	var sb strings.Builder
	sb.WriteString("ALU ")
	sb.WriteString(self.Op.String())
	if self.Sat {
		sb.WriteString("_SAT")
	}
	sb.WriteString(" ")
	if self.Dst == NoReg {
		sb.WriteString("__")
	} else {
		sb.WriteString(sh.Reg(self.Dst).String())
	}
	for _, s := range self.Src {
		sb.WriteString(", ")
		sb.WriteString(s.format(sh))
	}
	if self.Last {
		sb.WriteString(" {L}")
	}
	return sb.String()
}

// AluGroup is one VLIW bundle: four vector slots and, on parts that have
// one, the trans slot.
type AluGroup struct {
	Instr
	Slots    [5]InstrID
	Literals []uint32
	Depth    int
	Kcache   KcacheSet
}

func (*AluGroup) Reads() []RegID  { return nil }
func (*AluGroup) Writes() []RegID { return nil }

// Members returns the occupied slots in issue order.
func (self *AluGroup) Members() (ret []InstrID) {
	for _, v := range self.Slots {
		if v != NoInstr {
			ret = append(ret, v)
		}
	}
	return
}

// Empty reports whether no slot is occupied.
func (self *AluGroup) Empty() bool {
	for _, v := range self.Slots {
		if v != NoInstr {
			return false
		}
	}
	return true
}

// FreeVecSlots counts the unoccupied x/y/z/w slots.
func (self *AluGroup) FreeVecSlots() (n int) {
	for _, v := range self.Slots[:4] {
		if v == NoInstr {
			n++
		}
	}
	return
}

// TransFree reports whether the trans slot is unoccupied.
func (self *AluGroup) TransFree() bool {
	return self.Slots[4] == NoInstr
}

// SlotCount is the number of clause slots the group consumes, literals are
// packed two per slot.
func (self *AluGroup) SlotCount() int {
	return len(self.Members()) + (len(self.Literals)+1)/2
}

func (self *AluGroup) Format(sh *Shader) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ALU_GROUP_BEGIN #%d", self.ID)
	for i, v := range self.Slots {
		if v != NoInstr {
			fmt.Fprintf(&sb, "\n  %c: %s", "xyzwt"[i], sh.Node(v).Format(sh))
		}
	}
	sb.WriteString("\nALU_GROUP_END")
	return sb.String()
}

// TexOp is a texture instruction opcode.
type TexOp uint8

const (
	TexSample TexOp = iota
	TexSampleL
	TexSampleG
	TexLd
	TexGetGradH
	TexGetGradV
	TexGetResInfo
)

var _TexOpNames = [...]string{
	TexSample:     "SAMPLE",
	TexSampleL:    "SAMPLE_L",
	TexSampleG:    "SAMPLE_G",
	TexLd:         "LD",
	TexGetGradH:   "GET_GRADIENTS_H",
	TexGetGradV:   "GET_GRADIENTS_V",
	TexGetResInfo: "GET_TEXTURE_RESINFO",
}

type TexInstr struct {
	Instr
	Op       TexOp
	Dst      Vec
	Src      Vec
	Resource int
	Sampler  int
}

func (self *TexInstr) Reads() []RegID  { return self.Src.regs() }
func (self *TexInstr) Writes() []RegID { return self.Dst.regs() }

func (self *TexInstr) Format(sh *Shader) string {
	return fmt.Sprintf("TEX %s %s : %s RID:%d SID:%d", _TexOpNames[self.Op], self.Dst.format(sh), self.Src.format(sh), self.Resource, self.Sampler)
}

// FetchInstr is a vertex or buffer fetch.
type FetchInstr struct {
	Instr
	Dst      Vec
	Addr     RegID
	Resource int
	Offset   int
}

func (self *FetchInstr) Reads() []RegID  { return []RegID{self.Addr} }
func (self *FetchInstr) Writes() []RegID { return self.Dst.regs() }

func (self *FetchInstr) Format(sh *Shader) string {
	return fmt.Sprintf("VFETCH %s : %s + %d RID:%d", self.Dst.format(sh), sh.Reg(self.Addr).String(), self.Offset, self.Resource)
}

type GDSInstr struct {
	Instr
	Op       string
	Dst      RegID
	Src      Vec
	Resource int
}

func (self *GDSInstr) Reads() []RegID { return self.Src.regs() }

func (self *GDSInstr) Writes() []RegID {
	if self.Dst == NoReg {
		return nil
	} else {
		return []RegID{self.Dst}
	}
}

func (self *GDSInstr) Format(sh *Shader) string {
	dst := "__"
	if self.Dst != NoReg {
		dst = sh.Reg(self.Dst).String()
	}
	return fmt.Sprintf("GDS %s %s : %s RID:%d", self.Op, dst, self.Src.format(sh), self.Resource)
}

// ExportType is the target of an export instruction.
type ExportType uint8

const (
	ExportPixel ExportType = iota
	ExportPos
	ExportParam
)

var _ExportNames = [...]string{
	ExportPixel: "PIXEL",
	ExportPos:   "POS",
	ExportParam: "PARAM",
}

type ExportInstr struct {
	Instr
	Type     ExportType
	Location int
	Value    Vec
	IsLast   bool
}

func (self *ExportInstr) Reads() []RegID { return self.Value.regs() }
func (*ExportInstr) Writes() []RegID     { return nil }

func (self *ExportInstr) Format(sh *Shader) string {
	op := "EXPORT"
	if self.IsLast {
		op = "EXPORT_DONE"
	}
	return fmt.Sprintf("%s %s %d %s", op, _ExportNames[self.Type], self.Location, self.Value.format(sh))
}

type MemRingInstr struct {
	Instr
	Ring   int
	Offset int
	Index  RegID
	Value  Vec
}

func (self *MemRingInstr) Reads() []RegID {
	rr := self.Value.regs()
	if self.Index != NoReg {
		rr = append(rr, self.Index)
	}
	return rr
}

func (*MemRingInstr) Writes() []RegID { return nil }

func (self *MemRingInstr) Format(sh *Shader) string {
	return fmt.Sprintf("MEM_RING%d WRITE %d %s", self.Ring, self.Offset, self.Value.format(sh))
}

type WriteTFInstr struct {
	Instr
	Value Vec
}

func (self *WriteTFInstr) Reads() []RegID { return self.Value.regs() }
func (*WriteTFInstr) Writes() []RegID     { return nil }

func (self *WriteTFInstr) Format(sh *Shader) string {
	return "WRITE_TF " + self.Value.format(sh)
}

// RatInstr is a random access target (image / buffer) write or atomic.
type RatInstr struct {
	Instr
	Op       string
	Value    Vec
	Addr     Vec
	Resource int
}

func (self *RatInstr) Reads() []RegID {
	return append(self.Value.regs(), self.Addr.regs()...)
}

func (*RatInstr) Writes() []RegID { return nil }

func (self *RatInstr) Format(sh *Shader) string {
	return fmt.Sprintf("MEM_RAT %s RAT%d %s @%s", self.Op, self.Resource, self.Value.format(sh), self.Addr.format(sh))
}

type ScratchInstr struct {
	Instr
	Loc   int
	Addr  RegID
	Value Vec
}

func (self *ScratchInstr) Reads() []RegID {
	rr := self.Value.regs()
	if self.Addr != NoReg {
		rr = append(rr, self.Addr)
	}
	return rr
}

func (*ScratchInstr) Writes() []RegID { return nil }

func (self *ScratchInstr) Format(sh *Shader) string {
	return fmt.Sprintf("WRITE_SCRATCH %d %s", self.Loc, self.Value.format(sh))
}

// CFType enumerates the non-predicated control flow instructions.
type CFType uint8

const (
	CFElse CFType = iota
	CFEndif
	CFLoopBegin
	CFLoopEnd
	CFLoopBreak
	CFLoopContinue
	CFWaitAck
)

var _CFNames = [...]string{
	CFElse:         "ELSE",
	CFEndif:        "ENDIF",
	CFLoopBegin:    "LOOP_BEGIN",
	CFLoopEnd:      "LOOP_END",
	CFLoopBreak:    "BREAK",
	CFLoopContinue: "CONTINUE",
	CFWaitAck:      "WAIT_ACK",
}

func (self CFType) String() string {
	return _CFNames[self]
}

type ControlFlowInstr struct {
	Instr
	Type   CFType
	Target InstrID
}

func (*ControlFlowInstr) Reads() []RegID  { return nil }
func (*ControlFlowInstr) Writes() []RegID { return nil }

// NestingCorr is the change of the nesting depth that applies to the
// instruction itself.
func (self *ControlFlowInstr) NestingCorr() int {
	switch self.Type {
	case CFElse, CFEndif, CFLoopEnd:
		return -1
	default:
		return 0
	}
}

// NestingOffset is the change of the nesting depth after the instruction.
func (self *ControlFlowInstr) NestingOffset() int {
	switch self.Type {
	case CFEndif, CFLoopEnd:
		return -1
	case CFLoopBegin:
		return 1
	default:
		return 0
	}
}

func (self *ControlFlowInstr) Format(*Shader) string {
	if self.Target == NoInstr {
		return self.Type.String()
	} else {
		return fmt.Sprintf("%s -> #%d", self.Type, self.Target)
	}
}

// IfInstr opens a predicated region. Pred is a predicate setting ALU
// instruction that is never placed in a block on its own.
type IfInstr struct {
	Instr
	Pred   InstrID
	WQM    bool
	Target InstrID
}

func (*IfInstr) Reads() []RegID  { return nil }
func (*IfInstr) Writes() []RegID { return nil }

func (*IfInstr) NestingCorr() int   { return 0 }
func (*IfInstr) NestingOffset() int { return 1 }

func (self *IfInstr) Format(sh *Shader) string {
	var sb strings.Builder
	sb.WriteString("IF")
	if self.WQM {
		sb.WriteString("_WQM")
	}
	sb.WriteString(" (( ")
	sb.WriteString(sh.Node(self.Pred).Format(sh))
	sb.WriteString(" ))")
	if self.Target != NoInstr {
		fmt.Fprintf(&sb, " -> #%d", self.Target)
	}
	return sb.String()
}

// IsImpure reports whether the instruction has effects besides writing its
// destination registers.
func IsImpure(sh *Shader, n Node) bool {
	switch p := n.(type) {
	case *AluInstr:
		return p.Op.HasSideEffects()
	case *AluGroup:
		for _, v := range p.Members() {
			if IsImpure(sh, sh.Node(v)) {
				return true
			}
		}
		return false
	case *TexInstr, *FetchInstr:
		return false
	case *GDSInstr, *ExportInstr, *MemRingInstr, *WriteTFInstr, *RatInstr, *ScratchInstr:
		return true
	case *ControlFlowInstr, *IfInstr:
		return true
	default:
		panic("unreachable")
	}
}
