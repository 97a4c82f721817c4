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
)

// SimplifySrcVec reads constant zero and one lanes of texture and export
// operands from the hardware constant selectors instead of registers.
type SimplifySrcVec struct{}

func (SimplifySrcVec) Apply(sh *ir.Shader) (progress bool) {
	for _, bb := range sh.Blocks {
		for _, id := range bb.Instrs {
			switch p := sh.Node(id).(type) {
			case *ir.TexInstr:
				progress = simplifyVec(sh, id, &p.Src) || progress
			case *ir.ExportInstr:
				progress = simplifyVec(sh, id, &p.Value) || progress
			}
		}
	}
	return
}

func simplifyVec(sh *ir.Shader, id ir.InstrID, vec *ir.Vec) (progress bool) {
	for i := range vec.Swz {
		r := vec.Lane(i)
		if r == ir.NoReg {
			continue
		}

		/* the lane must be loaded from a constant by a single move */
		reg := sh.Reg(r)
		if !reg.SSA || len(reg.Defs) != 1 {
			continue
		}
		mov := live(sh, reg.Defs[0])
		if mov == nil || mov.Parent != ir.NoInstr || !mov.IsPlainMove() {
			continue
		}

		/* select the matching constant */
		switch src := mov.Src[0]; {
		case src.IsZero():
			vec.Swz[i] = ir.SwzZero
		case src.IsFloatOne():
			vec.Swz[i] = ir.SwzOne
		default:
			continue
		}

		/* the register is no longer read by this lane */
		sh.DropUse(id, r)
		progress = true
	}
	return
}
