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
    `fmt`
    `io`
    `sync/atomic`

    `github.com/cloudwego/gpusched/internal/hw`
    `github.com/cloudwego/gpusched/internal/ir`
)

type _Category uint8

const (
	_C_alu _Category = iota
	_C_tex
	_C_fetch
	_C_gds
	_C_memring
	_C_writetf
	_C_rat
	_C_free
	_C_max
)

var _CategoryNames = [_C_max]string{
	_C_alu:     "alu",
	_C_tex:     "tex",
	_C_fetch:   "fetch",
	_C_gds:     "gds",
	_C_memring: "mem_ring",
	_C_writetf: "write_tf",
	_C_rat:     "rat",
	_C_free:    "free",
}

func (self _Category) String() string {
	return _CategoryNames[self]
}

var (
	ShaderCount      uint64
	BlockCount       uint64
	GroupCount       uint64
	ForcedBreakCount uint64
)

// Stats counts what the scheduler produced.
type Stats struct {
	Blocks       int
	Groups       int
	Instrs       int
	HelperNops   int
	ForcedBreaks int
}

// Scheduler rebuilds the blocks of a shader as hardware clauses.
type Scheduler struct {
	sh    *ir.Shader
	cfg   hw.Config
	dbg   io.Writer
	out   []*ir.Block
	cur   *ir.Block
	depth int
	prev  _Category
	lds   int
	last  [3]ir.InstrID
	stats Stats
}

func NewScheduler(sh *ir.Shader, cfg hw.Config, dbg io.Writer) *Scheduler {
	return &Scheduler{
		sh:   sh,
		cfg:  cfg,
		dbg:  dbg,
		last: [3]ir.InstrID{ir.NoInstr, ir.NoInstr, ir.NoInstr},
	}
}

// Schedule replaces the blocks of the shader with the scheduled clauses.
func Schedule(sh *ir.Shader, cfg hw.Config, dbg io.Writer) Stats {
	s := NewScheduler(sh, cfg, dbg)
	s.Run()
	atomic.AddUint64(&ShaderCount, 1)
	atomic.AddUint64(&BlockCount, uint64(s.stats.Blocks))
	atomic.AddUint64(&GroupCount, uint64(s.stats.Groups))
	atomic.AddUint64(&ForcedBreakCount, uint64(s.stats.ForcedBreaks))
	return s.stats
}

// Run schedules every input block in program order.
func (self *Scheduler) Run() {
	for _, bb := range self.sh.Blocks {
		self.scheduleBlock(bb)
	}

	/* only the last export of each kind finishes the stream */
	for _, id := range self.last {
		if id != ir.NoInstr {
			self.sh.Node(id).(*ir.ExportInstr).IsLast = true
		}
	}

	/* the scheduled clauses replace the input */
	self.sh.Blocks = self.out
	self.stats.Blocks = len(self.out)
}

// Stats returns the counters collected so far.
func (self *Scheduler) Stats() Stats {
	return self.stats
}

func (self *Scheduler) scheduleBlock(bb *ir.Block) {
	q := newQueues(self.sh, self.cfg, bb)
	n := len(self.out)
	self.cur = nil
	self.depth = bb.Depth
	self.prev = _C_alu

	/* exports are held back until nothing else can be issued, and release
	 * the instructions that overwrite the registers they read */
	for done := false; !done; {
		for self.promote(q) {
			if !self.step(q) {
				break
			}
		}

		/* an LDS read must be consumed in its own clause */
		if self.ldsActive() {
			panic(fmt.Sprintf("sched: LDS read left pending at the end of block %d", bb.ID))
		}
		done = !self.scheduleExports(q)
	}

	/* the control flow ends the block */
	self.scheduleCF(q)

	/* everything must have been issued */
	if !q.empty() {
		self.residue(bb, q)
	}
	self.trace(bb, self.out[n:])
}

// promote moves instructions whose dependencies were issued to the ready
// lists, and reports whether anything is ready.
func (self *Scheduler) promote(q *_Queues) (ok bool) {
	for k := _K_vec; k < _K_export; k++ {
		self.promoteKind(q, k)
		ok = ok || len(q.q[k].ready) != 0
	}
	return
}

func (self *Scheduler) promoteKind(q *_Queues, k _Kind) {
	n := _Lookahead
	p := &q.q[k]
	if k == _K_vec {
		n = _LookaheadVec
	}

	/* scan a bounded window of the available list */
	for i := 0; i < len(p.avail) && n > 0; n-- {
		id := p.avail[i]
		if !self.sh.Ready(id) || !self.admitLDS(id) {
			i++
			continue
		}
		p.ready = append(p.ready, id)
		p.avail = append(p.avail[:i], p.avail[i+1:]...)
	}
}

// admitLDS throttles the LDS operations that hold an address register.
func (self *Scheduler) admitLDS(id ir.InstrID) bool {
	n := self.ldsAddrs(id)
	if n == 0 {
		return true
	} else if self.lds > _MaxLDSAddr {
		return false
	} else {
		self.lds += n
		return true
	}
}

func (self *Scheduler) ldsAddrs(id ir.InstrID) (n int) {
	switch p := self.sh.Node(id).(type) {
	case *ir.AluInstr:
		if p.Op.HasLDSAddress() {
			n++
		}
	case *ir.AluGroup:
		for _, v := range p.Members() {
			n += self.ldsAddrs(v)
		}
	}
	return
}

// pick selects the category to start from.
func (self *Scheduler) pick(q *_Queues) _Category {
	switch {
	case len(q.q[_K_tex].ready) > 3 && !self.ldsActive():
		return _C_tex
	case len(q.q[_K_memring].ready) > 15:
		return _C_memring
	case len(q.q[_K_rat].ready) > 3:
		return _C_rat
	case len(q.q[_K_free].ready) > 8 && self.prev != _C_free:
		return _C_free
	default:
		return _C_alu
	}
}

// step issues from the picked category, falling through the others in
// precedence order until something is issued.
func (self *Scheduler) step(q *_Queues) bool {
	c := self.pick(q)
	for i := 0; i < int(_C_max); i++ {
		if self.try(q, c) {
			self.prev = c
			return true
		}
		c = (c + 1) % _C_max
	}
	return false
}

func (self *Scheduler) try(q *_Queues, c _Category) bool {
	switch c {
	case _C_alu:
		return self.scheduleAlu(q)
	case _C_tex:
		return self.scheduleOne(&q.q[_K_tex], ir.BlockTex)
	case _C_fetch:
		return self.scheduleOne(&q.q[_K_fetch], ir.BlockVtx)
	case _C_gds:
		return self.scheduleOne(&q.q[_K_gds], ir.BlockGDS)
	case _C_memring:
		return self.scheduleOne(&q.q[_K_memring], ir.BlockCF)
	case _C_writetf:
		return self.scheduleOne(&q.q[_K_writetf], ir.BlockCF)
	case _C_rat:
		return self.scheduleOne(&q.q[_K_rat], ir.BlockCF)
	case _C_free:
		return self.scheduleOne(&q.q[_K_free], ir.BlockCF)
	default:
		panic("unreachable")
	}
}

func (self *Scheduler) ldsActive() bool {
	return self.cur != nil && self.cur.LDSActive()
}

// startBlock closes the current clause and opens a new one.
func (self *Scheduler) startBlock(t ir.BlockType, depth int) *ir.Block {
	if self.ldsActive() {
		panic(fmt.Sprintf("sched: clause %d closed between an LDS read and its fetch", self.cur.ID))
	}
	bb := self.sh.NewBlock(t, depth)
	bb.SetType(t, self.cfg)
	self.out = append(self.out, bb)
	self.cur = bb
	return bb
}

// ensure makes sure the current clause has the given type and room for
// `n` more slots. It fails if the clause cannot be closed.
func (self *Scheduler) ensure(t ir.BlockType, n int) bool {
	if self.cur != nil && self.cur.Type == t && self.cur.Remaining >= n {
		return true
	} else if self.ldsActive() {
		return false
	} else {
		self.startBlock(t, self.depth)
		return true
	}
}

// issue appends a unit to the current clause and marks it scheduled.
func (self *Scheduler) issue(id ir.InstrID) {
	self.sh.Append(self.cur, id)
	self.sh.SetScheduled(id)
	self.lds -= self.ldsAddrs(id)

	/* count the instructions, not the bundles */
	if g, ok := self.sh.Node(id).(*ir.AluGroup); !ok {
		self.stats.Instrs++
	} else {
		self.stats.Groups++
		for _, v := range g.Members() {
			if self.sh.Node(v).Base().Has(ir.FlagHelper) {
				self.stats.HelperNops++
			} else {
				self.stats.Instrs++
			}
		}
	}
}

func (self *Scheduler) trace(bb *ir.Block, out []*ir.Block) {
	if self.dbg != nil {
		fmt.Fprintf(self.dbg, "--- block %d: %d clauses\n%s\n", bb.ID, len(out), ir.Dump(self.sh, out))
	}
}
