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

package sched

import (
    `github.com/cloudwego/gpusched/internal/hw`
    `github.com/cloudwego/gpusched/internal/ir`
    `golang.org/x/exp/slices`
)

type _Kind uint8

const (
	_K_vec _Kind = iota
	_K_trans
	_K_group
	_K_tex
	_K_fetch
	_K_gds
	_K_memring
	_K_writetf
	_K_rat
	_K_free
	_K_export
	_K_max
)

var _KindNames = [_K_max]string{
	_K_vec:     "alu_vec",
	_K_trans:   "alu_trans",
	_K_group:   "alu_groups",
	_K_tex:     "tex",
	_K_fetch:   "fetch",
	_K_gds:     "gds",
	_K_memring: "mem_ring",
	_K_writetf: "write_tf",
	_K_rat:     "rat",
	_K_free:    "free",
	_K_export:  "exports",
}

const (
	_Lookahead    = 16
	_LookaheadVec = 32
	_MaxLDSAddr   = 64
)

// _Queue holds the instructions of one kind that are waiting for their
// dependencies (avail) and the ones that may be issued right now (ready).
type _Queue struct {
	avail []ir.InstrID
	ready []ir.InstrID
}

func (self *_Queue) empty() bool {
	return len(self.avail) == 0 && len(self.ready) == 0
}

func (self *_Queue) take(id ir.InstrID) {
	if i := slices.Index(self.ready, id); i < 0 {
		panic("sched: instruction is not ready")
	} else {
		self.ready = slices.Delete(self.ready, i, i+1)
	}
}

// _Queues is the per input block scheduling state.
type _Queues struct {
	q  [_K_max]_Queue
	cf []ir.InstrID
}

func classify(sh *ir.Shader, cfg hw.Config, id ir.InstrID) _Kind {
	switch p := sh.Node(id).(type) {
	case *ir.AluInstr:
		if p.Op.TransOnly(cfg) {
			return _K_trans
		} else {
			return _K_vec
		}
	case *ir.AluGroup:
		return _K_group
	case *ir.TexInstr:
		return _K_tex
	case *ir.FetchInstr:
		return _K_fetch
	case *ir.GDSInstr:
		return _K_gds
	case *ir.MemRingInstr:
		return _K_memring
	case *ir.WriteTFInstr:
		return _K_writetf
	case *ir.RatInstr:
		return _K_rat
	case *ir.ScratchInstr:
		return _K_free
	case *ir.ExportInstr:
		return _K_export
	case *ir.ControlFlowInstr, *ir.IfInstr:
		return _K_max
	default:
		panic("unreachable")
	}
}

func newQueues(sh *ir.Shader, cfg hw.Config, bb *ir.Block) *_Queues {
	ret := new(_Queues)
	for _, id := range bb.Instrs {
		if k := classify(sh, cfg, id); k == _K_max {
			ret.cf = append(ret.cf, id)
		} else {
			ret.q[k].avail = append(ret.q[k].avail, id)
		}
	}
	return ret
}

// pending returns every instruction that was not scheduled yet.
func (self *_Queues) pending() (ret []ir.InstrID) {
	for i := range self.q {
		ret = append(ret, self.q[i].avail...)
		ret = append(ret, self.q[i].ready...)
	}
	return append(ret, self.cf...)
}

func (self *_Queues) empty() bool {
	for i := range self.q {
		if !self.q[i].empty() {
			return false
		}
	}
	return len(self.cf) == 0
}
