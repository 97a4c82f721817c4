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

package gpusched

import (
    `bytes`
    `runtime`
    `testing`

    `github.com/cloudwego/gpusched/internal/ir`
    `github.com/stretchr/testify/require`
)

func TestCompile(t *testing.T) {
	sh := NewShader()
	b := NewBuilder(sh)
	x := b.Temp()
	y := b.Temp()
	b.Alu(ir.OpMov, x, ir.Kcache(0, 4, 1))
	b.Alu(ir.OpAdd, y, ir.Gpr(x), ir.Literal(0))
	b.Emit(&ir.ExportInstr{Type: ir.ExportPixel, Value: ir.VecOf(y, y, y, y)})

	buf := new(bytes.Buffer)
	ret, err := Compile(sh, WithDebugOutput(buf))
	require.NoError(t, err)
	require.Equal(t, 0, ret.MaxStackEntries)
	require.Equal(t, 1, ret.Stats.Groups)
	require.Equal(t, []ir.BlockType{ir.BlockAlu, ir.BlockCF}, []ir.BlockType{ret.Blocks[0].Type, ret.Blocks[1].Type})
	require.Contains(t, buf.String(), "=== evergreen: 2 clauses, 0 stack entries")
	require.Contains(t, buf.String(), "EXPORT_DONE PIXEL")
	require.NotContains(t, buf.String(), "=== round")
}

func TestCompile_IRDump(t *testing.T) {
	sh := NewShader()
	b := NewBuilder(sh)
	x := b.Temp()
	b.Alu(ir.OpMul, x, ir.Kcache(0, 0, 0), ir.LiteralFloat(1))
	b.Emit(&ir.ExportInstr{Type: ir.ExportPos, Value: ir.VecOf(x, x, x, x)})

	buf := new(bytes.Buffer)
	ret, err := Compile(sh, WithDebugOutput(buf), WithIRDump(true))
	require.NoError(t, err)
	require.Greater(t, ret.Rounds, 1)
	require.Contains(t, buf.String(), "=== round 0: Peephole")
}

func TestCompile_ControlFlow(t *testing.T) {
	sh := NewShader()
	b := NewBuilder(sh, WithGeneration("r600"))
	c := b.Temp()
	b.Alu(ir.OpSetGTDX10, c, ir.Kcache(0, 0, 0), ir.Literal(0))
	iff := b.If(ir.OpPredSetNEInt, false, ir.Gpr(c), ir.Literal(0))
	b.StartBlock(1)
	b.Alu(ir.OpMov, b.Reg(2, 0), ir.Literal(1))
	end := b.CF(ir.CFEndif)

	ret, err := Compile(sh, WithGeneration("r600"), WithStackEntrySize(8))
	require.NoError(t, err)
	require.Equal(t, 1, ret.MaxStackEntries)
	require.Equal(t, end, sh.Node(iff).(*ir.IfInstr).Target)

	/* the comparison is folded into the predicate */
	pred := sh.Alu(sh.Node(iff).(*ir.IfInstr).Pred)
	require.Equal(t, ir.OpPredSetGT, pred.Op)
	require.False(t, sh.Reg(c).HasUses())
}

func TestCompile_InvalidGraph(t *testing.T) {
	sh := NewShader()
	b := NewBuilder(sh)
	x := b.Alu(ir.OpMov, b.Reg(1, 0), ir.Literal(1))
	y := b.Alu(ir.OpMov, b.Reg(1, 1), ir.Literal(2))
	sh.AddRequired(x, y)
	sh.AddRequired(y, x)

	_, err := Compile(sh)
	require.Error(t, err)
	e, ok := err.(CompileError)
	require.True(t, ok)
	require.Equal(t, "verify", e.Stage)
	require.Contains(t, e.Error(), "CompileError(verify): ir: dependency cycle")
}

func TestCompile_MissingDependency(t *testing.T) {
	sh := NewShader()
	b := NewBuilder(sh)
	r0 := b.Reg(1, 0)
	r1 := b.Reg(1, 1)
	x := b.Alu(ir.OpMov, r0, ir.Literal(1))
	b.Emit(&ir.ExportInstr{Type: ir.ExportParam, Value: ir.VecOf(r0, r0, r0, r0)})
	b.StartBlock(0)
	y := b.Alu(ir.OpMov, r1, ir.Literal(2))
	b.Emit(&ir.ExportInstr{Type: ir.ExportParam, Location: 1, Value: ir.VecOf(r1, r1, r1, r1)})
	sh.AddRequired(x, y)

	_, err := Compile(sh)
	require.Error(t, err)
	require.Equal(t, "schedule", err.(CompileError).Stage)
	require.Contains(t, err.Error(), "sched: missing dependency in block 0")
}

func TestCompile_UnbalancedControlFlow(t *testing.T) {
	sh := NewShader()
	b := NewBuilder(sh, WithGeneration("cayman"))
	b.CF(ir.CFLoopBegin)

	_, err := Compile(sh, WithGeneration("cayman"))
	require.Error(t, err)
	require.Equal(t, CompileError{Stage: "resolve", Note: "flow: 0 if and 1 loop regions left open at the end of the shader"}, err)
}

func runtimeError() (err runtime.Error) {
	defer func() { err = recover().(runtime.Error) }()
	var m map[string]int
	m["x"] = 1
	return
}

func TestCompileError(t *testing.T) {
	require.Equal(t, "CompileError: oops", CompileError{Note: "oops"}.Error())
	require.Equal(t, CompileError{Stage: "schedule", Note: "oops"}, asCompileError("schedule", "oops"))
	require.Equal(t, CompileError{Stage: "resolve", Note: "42"}, asCompileError("resolve", 42))

	/* real bugs are not masked */
	e := runtimeError()
	require.PanicsWithError(t, e.Error(), func() { _ = asCompileError("optimize", e) })
}

func TestOptions(t *testing.T) {
	require.PanicsWithValue(t, `gpusched: invalid generation: "r800"`, func() { WithGeneration("r800") })
	require.PanicsWithValue(t, "gpusched: invalid stack entry size: 6", func() { WithStackEntrySize(6) })
	require.PanicsWithValue(t, "gpusched: invalid debug level: -1", func() { SetDebugLevel(-1) })

	/* the debug level controls the defaults */
	old := SetDebugLevel(2)
	o := newOptions(nil)
	require.NotNil(t, o.Debug)
	require.True(t, o.DumpIR)
	SetDebugLevel(old)

	o = newOptions([]Option{WithDebugOutput(nil), WithStackEntrySize(8), WithGeneration("r700")})
	require.Nil(t, o.Debug)
	require.Equal(t, 8, o.Config().StackEntrySize)
	require.True(t, o.Config().HasTrans)
}
