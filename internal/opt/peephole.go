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

package opt

import (
    `github.com/cloudwego/gpusched/internal/ir`
    `golang.org/x/exp/slices`
)

// Peephole folds arithmetic with neutral operands into moves, and IF
// predicates that test a comparison result against zero into the
// comparison itself.
type Peephole struct{}

func (Peephole) Apply(sh *ir.Shader) (progress bool) {
	wl := seedWorklist(sh)
	for id, ok := wl.pop(); ok; id, ok = wl.pop() {
		if a := live(sh, id); a == nil {
			continue
		} else if a.Op.IsPred() {
			progress = foldPred(sh, a) || progress
		} else {
			progress = reduce(sh, a) || progress
		}
	}
	return
}

// reduce rewrites `x + 0`, `x * 1` and `0 * y + z` into moves.
func reduce(sh *ir.Shader, a *ir.AluInstr) bool {
	var keep = -1
	var src = a.Src

	/* find the operand that survives */
	switch a.Op {
	case ir.OpAdd, ir.OpAddInt:
		if src[1].IsZero() {
			keep = 0
		} else if src[0].IsZero() {
			keep = 1
		}
	case ir.OpMul, ir.OpMulIEEE:
		if src[1].IsFloatOne() {
			keep = 0
		} else if src[0].IsFloatOne() {
			keep = 1
		}
	case ir.OpMulLoInt:
		if src[1].IsIntOne() {
			keep = 0
		} else if src[0].IsIntOne() {
			keep = 1
		}
	case ir.OpMulAdd, ir.OpMulAddIEEE:
		if src[0].IsZero() || src[1].IsZero() {
			keep = 2
		}
	}

	/* nothing to fold */
	if keep < 0 {
		return false
	}

	/* turn it into a move */
	sh.SetSources(a.ID, ir.OpMov, []ir.Src{src[keep]})
	return true
}

// foldPred replaces `PRED_SETxx (SETyy a, b), 0` with the predicate that
// compares a and b directly.
func foldPred(sh *ir.Shader, pred *ir.AluInstr) bool {
	if len(pred.Src) != 2 {
		return false
	}

	/* the predicate must test a plain register against zero */
	lhs, rhs := pred.Src[0], pred.Src[1]
	if lhs.Kind != ir.S_gpr || lhs.HasMods() || !rhs.IsZero() || rhs.HasMods() {
		return false
	}

	/* produced by a single comparison */
	reg := sh.Reg(lhs.Reg)
	if !reg.SSA || len(reg.Defs) != 1 {
		return false
	}
	cmp := live(sh, reg.Defs[0])
	if cmp == nil || cmp.Parent != ir.NoInstr || cmp.Sat || len(cmp.Src) != 2 {
		return false
	}

	/* the comparison operands must still hold their values at the IF */
	for _, s := range cmp.Src {
		if s.Kind == ir.S_gpr && !sh.Reg(s.Reg).SSA {
			return false
		}
	}

	/* only the fusions listed in the table are allowed */
	op := ir.PredFromOp(pred.Op, cmp.Op)
	if op == ir.OpNop {
		return false
	}

	/* compare the original operands */
	sh.SetSources(pred.ID, op, slices.Clone(cmp.Src))
	for _, r := range cmp.Required {
		if r != pred.ID {
			sh.AddRequired(pred.ID, r)
		}
	}
	return true
}
