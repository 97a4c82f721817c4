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
    `math`
    `strings`

    `golang.org/x/exp/slices`
)

// RegID indexes a register in the shader arena.
type RegID int32

const (
	NoReg RegID = -1
)

// Pin describes how much freedom the scheduler has with a register.
type Pin uint8

const (
	PinNone  Pin = iota // channel may move
	PinChan             // channel is fixed
	PinFully            // sel and channel are fixed
	PinFree             // fully virtual
)

var _PinNames = [...]string{
	PinNone:  "",
	PinChan:  "@chan",
	PinFully: "@fully",
	PinFree:  "@free",
}

func (self Pin) String() string {
	if int(self) < len(_PinNames) {
		return _PinNames[self]
	} else {
		return fmt.Sprintf("@pin(%d)", uint8(self))
	}
}

// Register is a general purpose register value. SSA registers have exactly
// one static definition; the others may be written many times.
type Register struct {
	ID   RegID
	Sel  int
	Chan int
	Pin  Pin
	SSA  bool
	Defs []InstrID
	Uses []InstrID
}

// CanMoveChan reports whether the register may be assigned another channel.
func (self *Register) CanMoveChan() bool {
	return self.Pin == PinNone || self.Pin == PinFree
}

// HasUses reports whether anything still reads the register.
func (self *Register) HasUses() bool {
	return len(self.Uses) != 0
}

func (self *Register) addUse(id InstrID) {
	self.Uses = append(self.Uses, id)
}

func (self *Register) delUse(id InstrID) {
	if i := slices.Index(self.Uses, id); i >= 0 {
		self.Uses = slices.Delete(self.Uses, i, i+1)
	}
}

func (self *Register) addDef(id InstrID) {
	if !slices.Contains(self.Defs, id) {
		self.Defs = append(self.Defs, id)
	}
}

func (self *Register) delDef(id InstrID) {
	if i := slices.Index(self.Defs, id); i >= 0 {
		self.Defs = slices.Delete(self.Defs, i, i+1)
	}
}

func (self *Register) String() string {
	var sb strings.Builder
	if self.SSA {
		sb.WriteString("S")
	} else {
		sb.WriteString("R")
	}
	fmt.Fprintf(&sb, "%d.%c%s", self.Sel, "xyzw"[self.Chan&3], self.Pin)
	return sb.String()
}

// Inline is one of the hardware's constant source selectors.
type Inline uint8

const (
	InlineZero Inline = iota
	InlineOne
	InlineOneInt
	InlineMinusOneInt
	InlineHalf
)

var _InlineNames = [...]string{
	InlineZero:        "0",
	InlineOne:         "1.0",
	InlineOneInt:      "1",
	InlineMinusOneInt: "-1",
	InlineHalf:        "0.5",
}

// SrcKind tags the source operand variants.
type SrcKind uint8

const (
	S_none SrcKind = iota
	S_gpr
	S_literal
	S_inline
	S_kcache
)

// Src is an ALU source operand.
type Src struct {
	Kind  SrcKind
	Reg   RegID
	Value uint32
	Bank  int
	Index int
	Chan  int
	Neg   bool
	Abs   bool
}

const (
	_FloatOne = 0x3f800000
)

func Gpr(r RegID) Src {
	return Src{Kind: S_gpr, Reg: r}
}

func Literal(v uint32) Src {
	return Src{Kind: S_literal, Reg: NoReg, Value: v}
}

func LiteralFloat(v float32) Src {
	return Literal(math.Float32bits(v))
}

func Const(c Inline) Src {
	return Src{Kind: S_inline, Reg: NoReg, Value: uint32(c)}
}

// Kcache references constant `index`.`ch` of the constant buffer `bank`.
func Kcache(bank int, index int, ch int) Src {
	return Src{Kind: S_kcache, Reg: NoReg, Bank: bank, Index: index, Chan: ch}
}

// Negate returns the operand with the negation modifier toggled.
func (self Src) Negate() Src {
	self.Neg = !self.Neg
	return self
}

// Absolute returns the operand with the absolute value modifier set.
func (self Src) Absolute() Src {
	self.Abs = true
	return self
}

// HasMods reports whether any source modifier is applied.
func (self Src) HasMods() bool {
	return self.Neg || self.Abs
}

// IsZero reports whether the operand reads a literal or inline zero.
func (self Src) IsZero() bool {
	switch self.Kind {
	case S_literal:
		return self.Value == 0
	case S_inline:
		return Inline(self.Value) == InlineZero
	default:
		return false
	}
}

// IsFloatOne reports whether the operand reads 1.0f with no modifiers.
func (self Src) IsFloatOne() bool {
	if self.HasMods() {
		return false
	}
	switch self.Kind {
	case S_literal:
		return self.Value == _FloatOne
	case S_inline:
		return Inline(self.Value) == InlineOne
	default:
		return false
	}
}

// IsIntOne reports whether the operand reads the integer 1 with no modifiers.
func (self Src) IsIntOne() bool {
	if self.HasMods() {
		return false
	}
	switch self.Kind {
	case S_literal:
		return self.Value == 1
	case S_inline:
		return Inline(self.Value) == InlineOneInt
	default:
		return false
	}
}

func (self Src) format(sh *Shader) string {
	var v string
	switch self.Kind {
	case S_none:
		return "_"
	case S_gpr:
		v = sh.Reg(self.Reg).String()
	case S_literal:
		v = fmt.Sprintf("L[0x%x]", self.Value)
	case S_inline:
		v = "I[" + _InlineNames[self.Value] + "]"
	case S_kcache:
		v = fmt.Sprintf("KC%d[%d].%c", self.Bank, self.Index, "xyzw"[self.Chan&3])
	}
	if self.Abs {
		v = "|" + v + "|"
	}
	if self.Neg {
		v = "-" + v
	}
	return v
}

const (
	SwzZero = 4
	SwzOne  = 5
	SwzMask = 7
)

// Vec is a four lane register operand. Each lane either selects one of
// the registers or one of the constant selectors.
type Vec struct {
	Regs [4]RegID
	Swz  [4]uint8
}

// VecOf builds a vector reading every lane from the given registers.
func VecOf(x RegID, y RegID, z RegID, w RegID) Vec {
	return Vec{
		Regs: [4]RegID{x, y, z, w},
		Swz:  [4]uint8{0, 1, 2, 3},
	}
}

// Lane returns the register read by lane i, or NoReg for constant and
// masked lanes.
func (self *Vec) Lane(i int) RegID {
	if self.Swz[i] < 4 {
		return self.Regs[self.Swz[i]]
	} else {
		return NoReg
	}
}

func (self *Vec) regs() (rr []RegID) {
	for i := range self.Swz {
		if r := self.Lane(i); r != NoReg {
			rr = append(rr, r)
		}
	}
	return
}

func (self *Vec) format(sh *Shader) string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, s := range self.Swz {
		if i != 0 {
			sb.WriteString(",")
		}
		switch {
		case s < 4:
			sb.WriteString(sh.Reg(self.Regs[s]).String())
		case s == SwzZero:
			sb.WriteString("0")
		case s == SwzOne:
			sb.WriteString("1")
		default:
			sb.WriteString("_")
		}
	}
	sb.WriteString("}")
	return sb.String()
}
