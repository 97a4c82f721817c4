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

    `github.com/cloudwego/gpusched/internal/hw`
    `golang.org/x/exp/slices`
)

// BlockType is the hardware clause kind of a block.
type BlockType uint8

const (
	BlockUnknown BlockType = iota
	BlockCF
	BlockAlu
	BlockScalarAlu
	BlockTex
	BlockVtx
	BlockGDS
)

var _BlockTypeNames = [...]string{
	BlockUnknown:   "unknown",
	BlockCF:        "cf",
	BlockAlu:       "alu",
	BlockScalarAlu: "salu",
	BlockTex:       "tex",
	BlockVtx:       "vtx",
	BlockGDS:       "gds",
}

func (self BlockType) String() string {
	return _BlockTypeNames[self]
}

const (
	_UnlimitedSlots = 0xffff
)

// Block is an ordered list of instructions. Input blocks are split at
// control flow boundaries and have the unknown type; the scheduler emits
// typed blocks that map to hardware clauses.
type Block struct {
	ID        int
	Type      BlockType
	Depth     int
	Instrs    []InstrID
	Remaining int
	Kcache    KcacheSet
	ForceCF   bool
	lds       int
}

// SetType fixes the clause kind and resets the slot budget.
func (self *Block) SetType(t BlockType, cfg hw.Config) {
	if len(self.Instrs) != 0 && t != self.Type {
		panic(fmt.Sprintf("ir: changing type of non-empty block %d from %s to %s", self.ID, self.Type, t))
	}
	self.Type = t
	self.Kcache = NewKcacheSet(cfg.KcacheLines)

	/* set the slot budget */
	switch t {
	case BlockTex, BlockVtx, BlockGDS:
		self.Remaining = cfg.FetchSlots
	case BlockAlu, BlockScalarAlu:
		self.Remaining = hw.AluClauseSlots
	default:
		self.Remaining = _UnlimitedSlots
	}
}

// Empty reports whether the block has no instructions.
func (self *Block) Empty() bool {
	return len(self.Instrs) == 0
}

// LDSActive reports whether an LDS read was queued in this block and its
// result was not popped yet.
func (self *Block) LDSActive() bool {
	return self.lds > 0
}

// TryReserveKcache locks the constant lines the group reads.
func (self *Block) TryReserveKcache(sh *Shader, g *AluGroup) bool {
	return self.Kcache.ReserveAll(sh, g.Members())
}

func (self *Block) erase(id InstrID) bool {
	if i := slices.Index(self.Instrs, id); i < 0 {
		return false
	} else {
		self.Instrs = slices.Delete(self.Instrs, i, i+1)
		return true
	}
}

func (self *Block) Format(sh *Shader) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BLOCK %d %s depth=%d", self.ID, self.Type, self.Depth)
	if self.ForceCF {
		sb.WriteString(" force_cf")
	}
	for _, v := range self.Instrs {
		for _, ln := range strings.Split(sh.Node(v).Format(sh), "\n") {
			sb.WriteString("\n  ")
			sb.WriteString(ln)
		}
	}
	return sb.String()
}
