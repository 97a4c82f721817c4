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
    `github.com/oleiade/lane`
)

// _Worklist is a FIFO of instructions to re-examine, an instruction is
// queued at most once at a time.
type _Worklist struct {
	q  *lane.Queue
	in map[ir.InstrID]struct{}
}

func newWorklist() *_Worklist {
	return &_Worklist{
		q:  lane.NewQueue(),
		in: make(map[ir.InstrID]struct{}),
	}
}

// seedWorklist queues every live instruction of the unscheduled blocks in
// program order, including the predicates nested in IF instructions.
func seedWorklist(sh *ir.Shader) *_Worklist {
	wl := newWorklist()
	for _, bb := range sh.Blocks {
		for _, id := range bb.Instrs {
			wl.push(id)
			if p, ok := sh.Node(id).(*ir.IfInstr); ok {
				wl.push(p.Pred)
			}
		}
	}
	return wl
}

func (self *_Worklist) push(id ir.InstrID) {
	if _, ok := self.in[id]; !ok {
		self.in[id] = struct{}{}
		self.q.Enqueue(id)
	}
}

func (self *_Worklist) pop() (ir.InstrID, bool) {
	if self.q.Empty() {
		return ir.NoInstr, false
	}
	id := self.q.Dequeue().(ir.InstrID)
	delete(self.in, id)
	return id, true
}

// live returns the instruction as an ALU instruction if it is a live one
// that is not bundled into a group.
func live(sh *ir.Shader, id ir.InstrID) *ir.AluInstr {
	a := sh.Alu(id)
	if a == nil || a.IsDead() {
		return nil
	}
	if a.Parent != ir.NoInstr {
		if _, ok := sh.Node(a.Parent).(*ir.IfInstr); !ok {
			return nil
		}
	}
	return a
}

// before reports whether `a` precedes `b` in the same unscheduled block.
func before(sh *ir.Shader, a ir.InstrID, b ir.InstrID) bool {
	ab, ai := sh.Position(a)
	bb, bi := sh.Position(b)
	return ab >= 0 && ab == bb && ai < bi
}

// redefined reports whether register `r` is written by something other
// than `skip` strictly between `from` and `to`, which are in one block.
func redefined(sh *ir.Shader, r ir.RegID, from ir.InstrID, to ir.InstrID, skip ir.InstrID) bool {
	_, fi := sh.Position(from)
	tb, ti := sh.Position(to)
	for _, d := range sh.Reg(r).Defs {
		if d == skip {
			continue
		}
		if db, di := sh.Position(d); db == tb && di > fi && di < ti {
			return true
		}
	}
	return false
}

// dependsOn reports whether `id` transitively requires `on`.
func dependsOn(sh *ir.Shader, id ir.InstrID, on ir.InstrID) bool {
	seen := map[ir.InstrID]struct{}{id: {}}
	q := lane.NewQueue()
	for q.Enqueue(id); !q.Empty(); {
		v := q.Dequeue().(ir.InstrID)
		for _, r := range sh.Node(v).Base().Required {
			if r == on {
				return true
			}
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				q.Enqueue(r)
			}
		}
	}
	return false
}
