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
    `testing`

    `github.com/cloudwego/gpusched/internal/flow`
    `github.com/cloudwego/gpusched/internal/hw`
    `github.com/cloudwego/gpusched/internal/ir`
    `github.com/stretchr/testify/require`
)

func newBuilder(gen hw.Generation) (*ir.Shader, *ir.Builder, hw.Config) {
	sh := ir.NewShader()
	cfg := hw.New(gen)
	return sh, ir.NewBuilder(sh, cfg), cfg
}

func group(t *testing.T, sh *ir.Shader, id ir.InstrID) *ir.AluGroup {
	g, ok := sh.Node(id).(*ir.AluGroup)
	require.True(t, ok, "#%d is not a group", id)
	return g
}

func requireLast(t *testing.T, sh *ir.Shader, g *ir.AluGroup) {
	last := -1
	for i, v := range g.Slots {
		if v != ir.NoInstr {
			last = i
		}
	}
	for i, v := range g.Slots {
		if v != ir.NoInstr {
			require.Equal(t, i == last, sh.Alu(v).Last, "slot %d of group #%d", i, g.ID)
		}
	}
}

func TestSchedule_FourLanes(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	var ids []ir.InstrID
	for i := 0; i < 4; i++ {
		ids = append(ids, b.Alu(ir.OpAdd, b.Temp(), ir.Kcache(0, i, 0), ir.Kcache(0, i, 1)))
	}
	st := Schedule(sh, cfg, nil)
	require.Len(t, sh.Blocks, 1)
	require.Equal(t, ir.BlockAlu, sh.Blocks[0].Type)
	require.Len(t, sh.Blocks[0].Instrs, 1)

	/* all four lanes in one group, the fourth one is last */
	g := group(t, sh, sh.Blocks[0].Instrs[0])
	require.Equal(t, ids, g.Members())
	require.Equal(t, 0, g.FreeVecSlots())
	for i, v := range ids {
		require.Equal(t, i == 3, sh.Alu(v).Last)
		require.Equal(t, i, sh.Reg(sh.Alu(v).Dst).Chan)
		require.True(t, sh.Alu(v).IsScheduled())
	}
	require.Equal(t, Stats{Blocks: 1, Groups: 1, Instrs: 4}, st)
}

func TestSchedule_LiteralOverflow(t *testing.T) {
	sh, b, cfg := newBuilder(hw.Evergreen)
	x := b.Alu(ir.OpAdd, b.Temp(), ir.Literal(1), ir.Literal(2))
	y := b.Alu(ir.OpAdd, b.Temp(), ir.Literal(3), ir.Literal(4))
	z := b.Alu(ir.OpMul, b.Temp(), ir.Literal(5), ir.Const(ir.InlineHalf))
	st := Schedule(sh, cfg, nil)
	require.Len(t, sh.Blocks, 1)
	require.Len(t, sh.Blocks[0].Instrs, 2)

	/* the fifth literal closes the group with a NOP */
	g1 := group(t, sh, sh.Blocks[0].Instrs[0])
	require.Equal(t, []uint32{1, 2, 3, 4}, g1.Literals)
	require.Equal(t, x, g1.Slots[0])
	require.Equal(t, y, g1.Slots[1])
	nop := sh.Alu(g1.Slots[2])
	require.Equal(t, ir.OpNop, nop.Op)
	require.True(t, nop.Has(ir.FlagHelper))
	require.True(t, nop.Last)
	require.False(t, sh.Alu(y).Last)

	/* and the fifth literal starts a new one */
	g2 := group(t, sh, sh.Blocks[0].Instrs[1])
	require.Equal(t, []ir.InstrID{z}, g2.Members())
	require.True(t, sh.Alu(z).Last)
	require.Equal(t, 1, st.HelperNops)
	require.Equal(t, hw.AluClauseSlots-g1.SlotCount()-g2.SlotCount(), sh.Blocks[0].Remaining)
}

func TestSchedule_TransSlot(t *testing.T) {
	for _, gen := range []hw.Generation{hw.R600, hw.Cayman} {
		sh, b, cfg := newBuilder(gen)
		c := b.Temp()
		b.Alu(ir.OpMov, c, ir.Kcache(0, 0, 0))
		for i := 0; i < 3; i++ {
			b.Alu(ir.OpCndE, b.Temp(), ir.Gpr(c), ir.Kcache(0, 1, i), ir.Kcache(0, 2, i))
		}
		a1 := b.Alu(ir.OpAdd, b.Temp(), ir.Gpr(c), ir.Literal(1))
		a2 := b.Alu(ir.OpAdd, b.Temp(), ir.Gpr(c), ir.Literal(2))
		Schedule(sh, cfg, nil)
		require.Len(t, sh.Blocks, 1, gen.String())
		ids := sh.Blocks[0].Instrs
		if gen == hw.R600 {
			require.Len(t, ids, 2)
			g := group(t, sh, ids[1])
			require.Len(t, g.Members(), 5)
			require.Equal(t, a1, g.Slots[3])
			require.Equal(t, a2, g.Slots[4])
			require.True(t, sh.Alu(a2).Last)
		} else {
			require.Len(t, ids, 3)
			require.Len(t, group(t, sh, ids[1]).Members(), 4)
			require.Equal(t, []ir.InstrID{a2}, group(t, sh, ids[2]).Members())
		}
		for _, id := range ids {
			requireLast(t, sh, group(t, sh, id))
		}
	}
}

func TestSchedule_TransOnly(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R700)
	x := b.Temp()
	b.Alu(ir.OpMov, x, ir.Kcache(0, 0, 0))
	r1 := b.Alu(ir.OpRecipIEEE, b.Temp(), ir.Gpr(x))
	r2 := b.Alu(ir.OpSqrtIEEE, b.Temp(), ir.Gpr(x))
	Schedule(sh, cfg, nil)
	ids := sh.Blocks[0].Instrs
	require.Len(t, ids, 3)
	require.Equal(t, r1, group(t, sh, ids[1]).Slots[4])
	require.Equal(t, r2, group(t, sh, ids[2]).Slots[4])
}

func TestSchedule_PreformedGroup(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	r0, r1 := b.Reg(1, 0), b.Reg(1, 1)
	m := b.Alu(ir.OpMov, r0, ir.Kcache(0, 0, 0))
	g := b.Group([5]*ir.AluInstr{
		{Op: ir.OpMov, Dst: r0, Src: []ir.Src{ir.Gpr(r1)}},
		{Op: ir.OpMov, Dst: r1, Src: []ir.Src{ir.Gpr(r0)}},
	})
	Schedule(sh, cfg, nil)
	require.Len(t, sh.Blocks, 1)
	require.Equal(t, g, sh.Blocks[0].Instrs[1])
	grp := group(t, sh, g)
	requireLast(t, sh, grp)
	require.True(t, sh.Alu(grp.Slots[1]).Last)
	require.Equal(t, []ir.InstrID{m}, group(t, sh, sh.Blocks[0].Instrs[0]).Members())
}

func TestSchedule_KcacheBreak(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	x := b.Alu(ir.OpAdd, b.TempChan(0), ir.Kcache(0, 0, 0), ir.Kcache(1, 0, 0))
	y := b.Alu(ir.OpAdd, b.TempChan(0), ir.Kcache(2, 0, 0), ir.Kcache(3, 0, 0))
	st := Schedule(sh, cfg, nil)
	require.Len(t, sh.Blocks, 2)
	require.False(t, sh.Blocks[0].ForceCF)
	require.True(t, sh.Blocks[1].ForceCF)
	require.Equal(t, []ir.InstrID{x}, group(t, sh, sh.Blocks[0].Instrs[0]).Members())
	require.Equal(t, []ir.InstrID{y}, group(t, sh, sh.Blocks[1].Instrs[0]).Members())
	require.Equal(t, 2, sh.Blocks[1].Kcache.Used())
	require.Equal(t, 1, st.ForcedBreaks)
}

func TestSchedule_TexEscalation(t *testing.T) {
	for _, n := range []int{3, 4} {
		sh, b, cfg := newBuilder(hw.Evergreen)
		src := ir.VecOf(b.Reg(1, 0), b.Reg(1, 1), b.Reg(1, 2), b.Reg(1, 3))
		for i := 0; i < n; i++ {
			b.Emit(&ir.TexInstr{Op: ir.TexSample, Dst: ir.VecOf(b.TempChan(0), b.TempChan(1), b.TempChan(2), b.TempChan(3)), Src: src})
		}
		b.Alu(ir.OpMov, b.Temp(), ir.Literal(7))
		Schedule(sh, cfg, nil)
		if n == 3 {
			require.Equal(t, []ir.BlockType{ir.BlockAlu, ir.BlockTex}, blockTypes(sh))
			require.Len(t, sh.Blocks[1].Instrs, 3)
		} else {
			require.Equal(t, []ir.BlockType{ir.BlockTex, ir.BlockAlu, ir.BlockTex}, blockTypes(sh))
			require.Len(t, sh.Blocks[2].Instrs, 3)
		}
	}
}

func TestSchedule_FetchCapacity(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	addr := b.Reg(1, 0)
	for i := 0; i < cfg.FetchSlots+1; i++ {
		b.Emit(&ir.FetchInstr{Dst: ir.VecOf(b.TempChan(0), b.TempChan(1), b.TempChan(2), b.TempChan(3)), Addr: addr, Offset: 16 * i})
	}
	Schedule(sh, cfg, nil)
	require.Equal(t, []ir.BlockType{ir.BlockVtx, ir.BlockVtx}, blockTypes(sh))
	require.Len(t, sh.Blocks[0].Instrs, cfg.FetchSlots)
	require.Equal(t, 0, sh.Blocks[0].Remaining)
}

func blockTypes(sh *ir.Shader) (ret []ir.BlockType) {
	for _, bb := range sh.Blocks {
		ret = append(ret, bb.Type)
	}
	return
}

func TestSchedule_Exports(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	v := b.Temp()
	b.Alu(ir.OpMov, v, ir.Kcache(0, 0, 0))
	vec := ir.VecOf(v, v, v, v)
	p1 := b.Emit(&ir.ExportInstr{Type: ir.ExportPos, Value: vec})
	q1 := b.Emit(&ir.ExportInstr{Type: ir.ExportParam, Value: vec})
	w := b.Alu(ir.OpMul, b.Temp(), ir.Gpr(v), ir.Gpr(v))
	b.StartBlock(0)
	p2 := b.Emit(&ir.ExportInstr{Type: ir.ExportPos, Location: 1, Value: vec})
	Schedule(sh, cfg, nil)

	/* exports come after all the ALU work of their block */
	require.Equal(t, []ir.BlockType{ir.BlockAlu, ir.BlockCF, ir.BlockCF}, blockTypes(sh))
	require.Len(t, group(t, sh, sh.Blocks[0].Instrs[0]).Members(), 1)
	require.Equal(t, w, group(t, sh, sh.Blocks[0].Instrs[1]).Slots[0])
	require.Equal(t, []ir.InstrID{p1, q1}, sh.Blocks[1].Instrs)
	require.Equal(t, []ir.InstrID{p2}, sh.Blocks[2].Instrs)

	/* only the last export of each type is final */
	require.False(t, sh.Node(p1).(*ir.ExportInstr).IsLast)
	require.True(t, sh.Node(p2).(*ir.ExportInstr).IsLast)
	require.True(t, sh.Node(q1).(*ir.ExportInstr).IsLast)
}

func TestSchedule_ExportOverwrittenRegister(t *testing.T) {
	sh, b, cfg := newBuilder(hw.Evergreen)
	r := b.Reg(1, 0)
	vec := ir.VecOf(r, r, r, r)
	m1 := b.Alu(ir.OpMov, r, ir.Literal(7))
	e1 := b.Emit(&ir.ExportInstr{Type: ir.ExportParam, Value: vec})
	m2 := b.Alu(ir.OpMov, r, ir.Literal(9))
	e2 := b.Emit(&ir.ExportInstr{Type: ir.ExportParam, Location: 1, Value: vec})
	Schedule(sh, cfg, nil)

	/* the first export is released before the register is written again */
	require.Equal(t, []ir.BlockType{ir.BlockAlu, ir.BlockCF, ir.BlockAlu, ir.BlockCF}, blockTypes(sh))
	require.Equal(t, m1, group(t, sh, sh.Blocks[0].Instrs[0]).Slots[0])
	require.Equal(t, []ir.InstrID{e1}, sh.Blocks[1].Instrs)
	require.Equal(t, m2, group(t, sh, sh.Blocks[2].Instrs[0]).Slots[0])
	require.Equal(t, []ir.InstrID{e2}, sh.Blocks[3].Instrs)
	require.False(t, sh.Node(e1).(*ir.ExportInstr).IsLast)
	require.True(t, sh.Node(e2).(*ir.ExportInstr).IsLast)
}

func TestSchedule_RegionBody(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	c := b.Temp()
	b.Alu(ir.OpSetGT, c, ir.Kcache(0, 0, 0), ir.Literal(0))
	iff := b.If(ir.OpPredSetNE, false, ir.Gpr(c), ir.Literal(0))
	mov := b.Alu(ir.OpMov, b.Reg(2, 0), ir.Literal(1))
	end := b.CF(ir.CFEndif)
	require.NoError(t, ir.Verify(sh))
	Schedule(sh, cfg, nil)

	/* the body stays between the IF and the ENDIF */
	pos := make(map[ir.InstrID]int)
	for i, bb := range sh.Blocks {
		for _, id := range bb.Instrs {
			if g, ok := sh.Node(id).(*ir.AluGroup); ok {
				for _, v := range g.Members() {
					pos[v] = i
				}
			} else {
				pos[id] = i
			}
		}
	}
	require.Less(t, pos[iff], pos[mov])
	require.Less(t, pos[mov], pos[end])
	require.Equal(t, 1, sh.Blocks[pos[mov]].Depth)
	require.Equal(t, 1, flow.Resolve(sh, sh.Blocks, cfg))
}

func TestSchedule_ControlFlow(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	c := b.Temp()
	b.Alu(ir.OpSetGTDX10, c, ir.Kcache(0, 0, 0), ir.Literal(0))
	iff := b.If(ir.OpPredSetNEInt, false, ir.Gpr(c), ir.Literal(0))
	b.StartBlock(1)
	b.Alu(ir.OpMov, b.Reg(2, 0), ir.Literal(1))
	el := b.CF(ir.CFElse)
	b.StartBlock(1)
	b.Alu(ir.OpMov, b.Reg(2, 0), ir.Literal(2))
	end := b.CF(ir.CFEndif)
	Schedule(sh, cfg, nil)

	types := []ir.BlockType{ir.BlockAlu, ir.BlockCF, ir.BlockAlu, ir.BlockCF, ir.BlockAlu, ir.BlockCF}
	depths := []int{0, 0, 1, 0, 1, 0}
	require.Equal(t, types, blockTypes(sh))
	for i, bb := range sh.Blocks {
		require.Equal(t, depths[i], bb.Depth, "block %d", i)
	}
	require.Equal(t, []ir.InstrID{iff}, sh.Blocks[1].Instrs)
	require.Equal(t, []ir.InstrID{el}, sh.Blocks[3].Instrs)
	require.Equal(t, []ir.InstrID{end}, sh.Blocks[5].Instrs)

	/* the scheduled stream resolves */
	require.Equal(t, 1, flow.Resolve(sh, sh.Blocks, cfg))
	require.Equal(t, end, sh.Node(iff).(*ir.IfInstr).Target)
	require.Equal(t, end, sh.Node(el).(*ir.ControlFlowInstr).Target)
	require.True(t, sh.Node(end).Base().Has(ir.FlagVectorPopStack))
}

func TestSchedule_LoopBreak(t *testing.T) {
	sh, b, cfg := newBuilder(hw.Evergreen)
	lb := b.CF(ir.CFLoopBegin)
	b.StartBlock(1)
	c := b.Temp()
	b.Alu(ir.OpSetEInt, c, ir.Kcache(0, 0, 0), ir.Literal(3))
	iff := b.If(ir.OpPredSetNEInt, false, ir.Gpr(c), ir.Literal(0))
	b.StartBlock(2)
	br := b.CF(ir.CFLoopBreak)
	b.StartBlock(2)
	ei := b.CF(ir.CFEndif)
	b.StartBlock(1)
	le := b.CF(ir.CFLoopEnd)
	Schedule(sh, cfg, nil)

	require.Equal(t, 2, flow.Resolve(sh, sh.Blocks, cfg))
	require.Equal(t, le, sh.Node(lb).(*ir.ControlFlowInstr).Target)
	require.Equal(t, le, sh.Node(br).(*ir.ControlFlowInstr).Target)
	require.Equal(t, ei, sh.Node(iff).(*ir.IfInstr).Target)
	require.Equal(t, ir.NoInstr, sh.Node(ei).(*ir.ControlFlowInstr).Target)
}

func TestSchedule_LDS(t *testing.T) {
	sh, b, cfg := newBuilder(hw.Evergreen)
	addr := b.Reg(1, 0)
	rd := b.Alu(ir.OpLdsRead, ir.NoReg, ir.Gpr(addr))
	x := b.Alu(ir.OpMov, b.Temp(), ir.Literal(1))
	ft := b.Alu(ir.OpLdsFetch, b.TempChan(0))
	b.Emit(&ir.TexInstr{Op: ir.TexSample, Dst: ir.VecOf(b.TempChan(0), b.TempChan(1), b.TempChan(2), b.TempChan(3)), Src: ir.VecOf(addr, addr, addr, addr)})
	Schedule(sh, cfg, nil)

	/* the read and the fetch share a clause */
	require.Equal(t, []ir.BlockType{ir.BlockAlu, ir.BlockTex}, blockTypes(sh))
	require.Equal(t, sh.Alu(rd).Block, sh.Alu(ft).Block)
	require.NotEqual(t, sh.Alu(rd).Index, sh.Alu(ft).Index)
	require.False(t, sh.Blocks[0].LDSActive())
	g := group(t, sh, sh.Blocks[0].Instrs[0])
	require.Contains(t, g.Members(), x)
	require.True(t, g.TransFree())
}

func TestScheduler_LDSPairing(t *testing.T) {
	sh, _, cfg := newBuilder(hw.Evergreen)
	s := NewScheduler(sh, cfg, nil)
	rd := sh.Add(&ir.AluInstr{Op: ir.OpLdsRead, Dst: ir.NoReg, Src: []ir.Src{ir.Gpr(sh.NewReg(1, 0, ir.PinFully, false))}})
	g := sh.NewGroup(cfg)
	require.Equal(t, ir.AddOK, sh.GroupAdd(g, rd, false, cfg))
	sh.CloseGroup(g, 0, false)
	s.issueGroup(g)
	require.True(t, s.ldsActive())

	/* the clause can not be left until the result was fetched */
	require.False(t, s.ensure(ir.BlockTex, 1))
	require.True(t, s.ensure(ir.BlockAlu, 1))

	/* nor can it run out of slots */
	s.cur.Remaining = 0
	mov := sh.Add(&ir.AluInstr{Op: ir.OpMov, Dst: sh.NewReg(2, 0, ir.PinChan, true), Src: []ir.Src{ir.Literal(1)}})
	g2 := sh.NewGroup(cfg)
	require.Equal(t, ir.AddOK, sh.GroupAdd(g2, mov, false, cfg))
	sh.CloseGroup(g2, 0, false)
	require.PanicsWithValue(t, "sched: clause 0 closed between an LDS read and its fetch", func() { s.issueGroup(g2) })
}

func TestScheduler_LDSThrottle(t *testing.T) {
	sh, b, cfg := newBuilder(hw.Evergreen)
	addr := b.Reg(1, 0)
	var ids []ir.InstrID
	for i := 0; i < _MaxLDSAddr+4; i++ {
		ids = append(ids, sh.Add(&ir.AluInstr{Op: ir.OpLdsWrite, Dst: ir.NoReg, Src: []ir.Src{ir.Gpr(addr), ir.Literal(uint32(i))}}))
	}
	s := NewScheduler(sh, cfg, nil)
	q := new(_Queues)
	q.q[_K_vec].avail = ids
	for i := 0; i < 3; i++ {
		s.promoteKind(q, _K_vec)
	}
	require.Len(t, q.q[_K_vec].ready, _MaxLDSAddr+1)
	require.Len(t, q.q[_K_vec].avail, 3)
	require.Equal(t, _MaxLDSAddr+1, s.lds)

	/* issuing frees the address registers */
	require.True(t, s.scheduleAlu(q))
	require.Less(t, s.lds, _MaxLDSAddr+1)
	s.promoteKind(q, _K_vec)
	require.Empty(t, q.q[_K_vec].avail)
}

func panicMessage(fn func()) (msg string) {
	defer func() {
		msg, _ = recover().(string)
	}()
	fn()
	return
}

func TestSchedule_CircularDependency(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	x := b.Alu(ir.OpMov, b.Temp(), ir.Literal(1))
	y := b.Alu(ir.OpMov, b.Temp(), ir.Literal(2))
	b.Alu(ir.OpMov, b.Temp(), ir.Literal(3))
	sh.AddRequired(x, y)
	sh.AddRequired(y, x)
	msg := panicMessage(func() { Schedule(sh, cfg, nil) })
	require.Contains(t, msg, "sched: circular dependency in block 0:")
	require.Contains(t, msg, "\n  cycle: [")
	require.Contains(t, msg, "\n  #0 ALU MOV S2.x@free, L[0x1]\n    waits for #1 ALU MOV S3.x@free, L[0x2]")
	require.Contains(t, msg, "\n  #1 ALU MOV S3.x@free, L[0x2]\n    waits for #0 ALU MOV S2.x@free, L[0x1]")
	require.Contains(t, msg, "\n  queues: (map[string][]ir.InstrID)")
	require.Contains(t, msg, "alu_vec.avail")
}

func TestSchedule_MissingDependency(t *testing.T) {
	sh, b, cfg := newBuilder(hw.R600)
	x := b.Alu(ir.OpMov, b.Temp(), ir.Literal(1))
	b.StartBlock(0)
	y := b.Alu(ir.OpMov, b.Temp(), ir.Literal(2))
	sh.AddRequired(x, y)
	msg := panicMessage(func() { Schedule(sh, cfg, nil) })
	require.Contains(t, msg, "sched: missing dependency in block 0:")
	require.NotContains(t, msg, "cycle")
}
