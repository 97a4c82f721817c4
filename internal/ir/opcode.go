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

// Opcode is an already-selected ALU operation.
type Opcode uint16

const (
	OpNop Opcode = iota
	OpMov
	OpAdd
	OpMul
	OpMulIEEE
	OpMulAdd
	OpMulAddIEEE
	OpAddInt
	OpMulLoInt
	OpFlt2Int
	OpInt2Flt

	/* float comparisons, 1.0 / 0.0 results */
	OpSetE
	OpSetGT
	OpSetGE
	OpSetNE

	/* float comparisons, ~0 / 0 results */
	OpSetEDX10
	OpSetGTDX10
	OpSetGEDX10
	OpSetNEDX10

	/* integer comparisons */
	OpSetEInt
	OpSetGTInt
	OpSetGEInt
	OpSetNEInt
	OpSetGTUint
	OpSetGEUint

	/* predicate setters */
	OpPredSetE
	OpPredSetGT
	OpPredSetGE
	OpPredSetNE
	OpPredSetEInt
	OpPredSetGTInt
	OpPredSetGEInt
	OpPredSetNEInt
	OpPredSetGTUint
	OpPredSetGEUint

	/* conditional selects */
	OpCndE
	OpCndGT
	OpCndGE
	OpCndEInt
	OpCndGTInt
	OpCndGEInt

	/* predicated discards */
	OpKillE
	OpKillGT
	OpKillGE
	OpKillNE
	OpKillEInt
	OpKillGTInt
	OpKillGEInt
	OpKillNEInt

	/* transcendentals */
	OpRecipIEEE
	OpRecipSqrtIEEE
	OpSqrtIEEE
	OpExpIEEE
	OpLogIEEE
	OpSin
	OpCos

	OpDot4
	OpDot4IEEE
	OpGroupBarrier

	/* local data share */
	OpLdsRead
	OpLdsFetch
	OpLdsWrite
	OpLdsAddRet

	_OpMax
)

type _OpFlags uint16

const (
	_F_vec _OpFlags = 1 << iota
	_F_trans
	_F_kill
	_F_barrier
	_F_pred
	_F_lds
	_F_lds_addr
	_F_lds_fetch
	_F_side
)

const (
	_F_any = _F_vec | _F_trans
)

type _OpInfo struct {
	name  string
	nsrc  int
	flags _OpFlags
}

var _OpTab = [_OpMax]_OpInfo{
	OpNop:           {"NOP", 0, _F_any},
	OpMov:           {"MOV", 1, _F_any},
	OpAdd:           {"ADD", 2, _F_any},
	OpMul:           {"MUL", 2, _F_any},
	OpMulIEEE:       {"MUL_IEEE", 2, _F_any},
	OpMulAdd:        {"MULADD", 3, _F_any},
	OpMulAddIEEE:    {"MULADD_IEEE", 3, _F_any},
	OpAddInt:        {"ADD_INT", 2, _F_any},
	OpMulLoInt:      {"MULLO_INT", 2, _F_trans},
	OpFlt2Int:       {"FLT_TO_INT", 1, _F_trans},
	OpInt2Flt:       {"INT_TO_FLT", 1, _F_trans},
	OpSetE:          {"SETE", 2, _F_any},
	OpSetGT:         {"SETGT", 2, _F_any},
	OpSetGE:         {"SETGE", 2, _F_any},
	OpSetNE:         {"SETNE", 2, _F_any},
	OpSetEDX10:      {"SETE_DX10", 2, _F_any},
	OpSetGTDX10:     {"SETGT_DX10", 2, _F_any},
	OpSetGEDX10:     {"SETGE_DX10", 2, _F_any},
	OpSetNEDX10:     {"SETNE_DX10", 2, _F_any},
	OpSetEInt:       {"SETE_INT", 2, _F_any},
	OpSetGTInt:      {"SETGT_INT", 2, _F_any},
	OpSetGEInt:      {"SETGE_INT", 2, _F_any},
	OpSetNEInt:      {"SETNE_INT", 2, _F_any},
	OpSetGTUint:     {"SETGT_UINT", 2, _F_any},
	OpSetGEUint:     {"SETGE_UINT", 2, _F_any},
	OpPredSetE:      {"PRED_SETE", 2, _F_any | _F_pred},
	OpPredSetGT:     {"PRED_SETGT", 2, _F_any | _F_pred},
	OpPredSetGE:     {"PRED_SETGE", 2, _F_any | _F_pred},
	OpPredSetNE:     {"PRED_SETNE", 2, _F_any | _F_pred},
	OpPredSetEInt:   {"PRED_SETE_INT", 2, _F_any | _F_pred},
	OpPredSetGTInt:  {"PRED_SETGT_INT", 2, _F_any | _F_pred},
	OpPredSetGEInt:  {"PRED_SETGE_INT", 2, _F_any | _F_pred},
	OpPredSetNEInt:  {"PRED_SETNE_INT", 2, _F_any | _F_pred},
	OpPredSetGTUint: {"PRED_SETGT_UINT", 2, _F_any | _F_pred},
	OpPredSetGEUint: {"PRED_SETGE_UINT", 2, _F_any | _F_pred},
	OpCndE:          {"CNDE", 3, _F_vec},
	OpCndGT:         {"CNDGT", 3, _F_vec},
	OpCndGE:         {"CNDGE", 3, _F_vec},
	OpCndEInt:       {"CNDE_INT", 3, _F_vec},
	OpCndGTInt:      {"CNDGT_INT", 3, _F_vec},
	OpCndGEInt:      {"CNDGE_INT", 3, _F_vec},
	OpKillE:         {"KILLE", 2, _F_vec | _F_kill | _F_side},
	OpKillGT:        {"KILLGT", 2, _F_vec | _F_kill | _F_side},
	OpKillGE:        {"KILLGE", 2, _F_vec | _F_kill | _F_side},
	OpKillNE:        {"KILLNE", 2, _F_vec | _F_kill | _F_side},
	OpKillEInt:      {"KILLE_INT", 2, _F_vec | _F_kill | _F_side},
	OpKillGTInt:     {"KILLGT_INT", 2, _F_vec | _F_kill | _F_side},
	OpKillGEInt:     {"KILLGE_INT", 2, _F_vec | _F_kill | _F_side},
	OpKillNEInt:     {"KILLNE_INT", 2, _F_vec | _F_kill | _F_side},
	OpRecipIEEE:     {"RECIP_IEEE", 1, _F_trans},
	OpRecipSqrtIEEE: {"RECIPSQRT_IEEE", 1, _F_trans},
	OpSqrtIEEE:      {"SQRT_IEEE", 1, _F_trans},
	OpExpIEEE:       {"EXP_IEEE", 1, _F_trans},
	OpLogIEEE:       {"LOG_IEEE", 1, _F_trans},
	OpSin:           {"SIN", 1, _F_trans},
	OpCos:           {"COS", 1, _F_trans},
	OpDot4:          {"DOT4", 2, _F_vec},
	OpDot4IEEE:      {"DOT4_IEEE", 2, _F_vec},
	OpGroupBarrier:  {"GROUP_BARRIER", 0, _F_vec | _F_barrier | _F_side},
	OpLdsRead:       {"LDS_READ_RET", 1, _F_vec | _F_lds | _F_lds_addr | _F_side},
	OpLdsFetch:      {"MOV_LDS_OQ_A_POP", 0, _F_vec | _F_lds | _F_lds_fetch | _F_side},
	OpLdsWrite:      {"LDS_WRITE", 2, _F_vec | _F_lds | _F_lds_addr | _F_side},
	OpLdsAddRet:     {"LDS_ADD_RET", 2, _F_vec | _F_lds | _F_lds_addr | _F_side},
}

func (self Opcode) info() *_OpInfo {
	if self >= _OpMax {
		panic(fmt.Sprintf("ir: invalid opcode %d", self))
	}
	return &_OpTab[self]
}

func (self Opcode) String() string {
	if self < _OpMax {
		return _OpTab[self].name
	} else {
		return fmt.Sprintf("Opcode(%d)", uint16(self))
	}
}

// NumSrc is the number of source operands the opcode takes.
func (self Opcode) NumSrc() int { return self.info().nsrc }

// IsKill reports whether the opcode is a predicated discard.
func (self Opcode) IsKill() bool { return self.info().flags&_F_kill != 0 }

// IsBarrier reports whether the opcode is a workgroup barrier.
func (self Opcode) IsBarrier() bool { return self.info().flags&_F_barrier != 0 }

// IsPred reports whether the opcode sets the predicate of an IF.
func (self Opcode) IsPred() bool { return self.info().flags&_F_pred != 0 }

// IsLDS reports whether the opcode accesses the local data share.
func (self Opcode) IsLDS() bool { return self.info().flags&_F_lds != 0 }

// HasLDSAddress reports whether the opcode carries an LDS address, and
// hence occupies an address register until it is issued.
func (self Opcode) HasLDSAddress() bool { return self.info().flags&_F_lds_addr != 0 }

// IsLDSRead reports whether the opcode queues an LDS read whose result
// must be popped within the same ALU clause.
func (self Opcode) IsLDSRead() bool {
	return self == OpLdsRead || self == OpLdsAddRet
}

// IsLDSFetch reports whether the opcode pops an LDS result.
func (self Opcode) IsLDSFetch() bool { return self.info().flags&_F_lds_fetch != 0 }

// HasSideEffects reports whether removing an unused instance would change
// the observable behavior of the shader.
func (self Opcode) HasSideEffects() bool { return self.info().flags&_F_side != 0 }

// CanVec reports whether the opcode may be issued in one of the x/y/z/w slots.
func (self Opcode) CanVec(cfg hw.Config) bool {
	if self.info().flags&_F_vec != 0 {
		return true
	} else {
		return !cfg.HasTrans
	}
}

// CanTrans reports whether the opcode may be issued in the trans slot.
func (self Opcode) CanTrans(cfg hw.Config) bool {
	return cfg.HasTrans && self.info().flags&_F_trans != 0
}

// TransOnly reports whether the trans slot is the only place for the opcode.
func (self Opcode) TransOnly(cfg hw.Config) bool {
	return self.CanTrans(cfg) && !self.CanVec(cfg)
}

// PredFromOp returns the predicate opcode that tests the comparison `op`
// directly, given that `pred` tests the result of `op` against zero.
// OpNop is returned for every pair that must not be fused.
func PredFromOp(pred Opcode, op Opcode) Opcode {
	switch pred {
	case OpPredSetNEInt:
		switch op {
		case OpSetGEDX10:
			return OpPredSetGE
		case OpSetGTDX10:
			return OpPredSetGT
		case OpSetEDX10:
			return OpPredSetE
		case OpSetNEDX10:
			return OpPredSetNE
		case OpSetGEInt:
			return OpPredSetGEInt
		case OpSetGTInt:
			return OpPredSetGTInt
		case OpSetGEUint:
			return OpPredSetGEUint
		case OpSetGTUint:
			return OpPredSetGTUint
		case OpSetEInt:
			return OpPredSetEInt
		case OpSetNEInt:
			return OpPredSetNEInt
		}
	case OpPredSetEInt:
		switch op {
		case OpSetEInt:
			return OpPredSetNEInt
		case OpSetNEInt:
			return OpPredSetEInt
		}
	case OpPredSetNE:
		switch op {
		case OpSetGE:
			return OpPredSetGE
		case OpSetGT:
			return OpPredSetGT
		case OpSetE:
			return OpPredSetE
		case OpSetNE:
			return OpPredSetNE
		}
	case OpPredSetE:
		switch op {
		case OpSetE:
			return OpPredSetNE
		case OpSetNE:
			return OpPredSetE
		}
	}
	return OpNop
}
