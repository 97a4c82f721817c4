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

const (
	_MaxKcacheSrc = 2
)

// CopyPropFwd replaces the reads of a moved value with the source of the
// move.
type CopyPropFwd struct{}

func (CopyPropFwd) Apply(sh *ir.Shader) (progress bool) {
	wl := seedWorklist(sh)
	for id, ok := wl.pop(); ok; id, ok = wl.pop() {
		if mov := live(sh, id); mov != nil && mov.Parent == ir.NoInstr && mov.IsPlainMove() {
			progress = forwardMove(sh, wl, mov) || progress
		}
	}
	return
}

func forwardMove(sh *ir.Shader, wl *_Worklist, mov *ir.AluInstr) (progress bool) {
	src := mov.Src[0]
	dst := sh.Reg(mov.Dst)

	/* the destination must have this move as its only definition */
	if len(dst.Defs) != 1 || (src.Kind == ir.S_gpr && src.Reg == mov.Dst) {
		return false
	}

	/* non-SSA values only propagate down their own block */
	local := !dst.SSA || (src.Kind == ir.S_gpr && !sh.Reg(src.Reg).SSA)

	/* rewrite every qualifying use */
	for _, u := range slices.Clone(dst.Uses) {
		user := live(sh, u)
		if user == nil || !slices.Contains(user.Reads(), mov.Dst) {
			continue
		}
		if local && !before(sh, mov.ID, u) {
			continue
		}
		if src.Kind == ir.S_gpr && !sh.Reg(src.Reg).SSA && redefined(sh, src.Reg, mov.ID, u, ir.NoInstr) {
			continue
		}
		if !canReplace(user, src) {
			continue
		}

		/* replace all the occurrences in the user */
		for i, s := range user.Src {
			if s.Kind == ir.S_gpr && s.Reg == mov.Dst {
				sh.ReplaceSrc(u, i, src)
			}
		}

		/* the user now reads what the move read */
		for _, r := range mov.Required {
			if r != u {
				sh.AddRequired(u, r)
			}
		}

		/* later writers of a register source must wait for the new reader */
		if src.Kind == ir.S_gpr && !sh.Reg(src.Reg).SSA {
			for _, d := range sh.Reg(src.Reg).Defs {
				if d != u && before(sh, u, d) {
					sh.AddRequired(d, u)
				}
			}
		}

		wl.push(u)
		progress = true
	}
	return
}

// canReplace reports whether `src` may take the place of a register
// operand of `user`.
func canReplace(user *ir.AluInstr, src ir.Src) bool {
	if src.Kind == ir.S_gpr {
		return true
	}

	/* LDS operations only take register operands */
	if user.Op.IsLDS() {
		return false
	}

	/* constant cache reads are limited per instruction */
	if src.Kind == ir.S_kcache {
		n := 1
		for _, s := range user.Src {
			if s.Kind == ir.S_kcache {
				n++
			}
		}
		return n <= _MaxKcacheSrc
	}
	return true
}

// CopyPropBack makes the producer of a moved value write the destination
// of the move directly.
type CopyPropBack struct{}

func (CopyPropBack) Apply(sh *ir.Shader) (progress bool) {
	wl := seedWorklist(sh)
	for id, ok := wl.pop(); ok; id, ok = wl.pop() {
		if mov := live(sh, id); mov != nil && mov.Parent == ir.NoInstr && mov.IsPlainMove() {
			if p := backwardMove(sh, mov); p != ir.NoInstr {
				wl.push(p)
				progress = true
			}
		}
	}
	return
}

func backwardMove(sh *ir.Shader, mov *ir.AluInstr) ir.InstrID {
	src := mov.Src[0]
	if src.Kind != ir.S_gpr || src.Reg == mov.Dst || mov.Has(ir.FlagAlwaysKeep) {
		return ir.NoInstr
	}

	/* the moved value must be an SSA temporary only the move reads */
	tmp := sh.Reg(src.Reg)
	if !tmp.SSA || len(tmp.Defs) != 1 || len(tmp.Uses) != 1 || tmp.Uses[0] != mov.ID {
		return ir.NoInstr
	}

	/* produced by a free standing ALU instruction earlier in the block */
	p := tmp.Defs[0]
	prod := live(sh, p)
	if prod == nil || prod.Parent != ir.NoInstr || !before(sh, p, mov.ID) {
		return ir.NoInstr
	}

	/* the destination must have no other writer */
	dst := sh.Reg(mov.Dst)
	if len(dst.Defs) != 1 || dst.Defs[0] != mov.ID {
		return ir.NoInstr
	}

	/* the producer would write the register earlier than the move did */
	if !dst.SSA {
		for _, u := range dst.Uses {
			if before(sh, p, u) && before(sh, u, mov.ID) {
				return ir.NoInstr
			}
		}
	}

	/* the producer takes over the ordering of the move */
	for _, r := range mov.Required {
		if r != p && dependsOn(sh, r, p) {
			return ir.NoInstr
		}
	}
	for _, r := range mov.Required {
		if r != p {
			sh.AddRequired(p, r)
		}
	}

	/* retarget and drop the move */
	sh.SetDst(p, mov.Dst)
	if !sh.SetDead(mov.ID) {
		panic("opt: cannot remove a propagated move")
	}
	return p
}
