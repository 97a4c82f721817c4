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

package flow

import (
    `fmt`

    `github.com/cloudwego/gpusched/internal/hw`
    `github.com/cloudwego/gpusched/internal/ir`
    `github.com/oleiade/lane`
)

// Resolve walks the scheduled blocks in order, patches the jump target of
// every control flow instruction and returns the number of call-stack
// entries the shader needs.
func Resolve(sh *ir.Shader, blocks []*ir.Block, cfg hw.Config) int {
	cs := NewCallStack(cfg)
	ifs := lane.NewStack()
	jt := NewJumpTracker(func(site ir.InstrID, final ir.InstrID) {
		switch p := sh.Node(site).(type) {
		case *ir.IfInstr:
			p.Target = final
		case *ir.ControlFlowInstr:
			p.Target = final
		default:
			panic(fmt.Sprintf("flow: instruction #%d is not a jump", site))
		}
	})

	/* visit every control flow instruction */
	depth := 0
	prev := ir.BlockUnknown
	for _, bb := range blocks {
		for _, id := range bb.Instrs {
			switch p := sh.Node(id).(type) {
			case *ir.IfInstr:
				kind := PushVPM
				if p.WQM {
					kind = PushWQM
				}
				cs.Push(kind)
				ifs.Push(kind)
				jt.Push(id, JumpIf)
				depth += p.NestingOffset()
			case *ir.ControlFlowInstr:
				resolveCF(p, prev, cs, ifs, jt)
				if depth += p.NestingOffset(); depth < 0 {
					panic(fmt.Sprintf("flow: negative nesting depth at #%d", id))
				}
			}
		}
		prev = bb.Type
	}

	/* every region must be closed at the end of the shader */
	if !jt.Empty() || depth != 0 {
		panic(fmt.Sprintf("flow: %d if and %d loop regions left open at the end of the shader", jt.Depth(JumpIf), jt.Depth(JumpLoop)))
	}
	return cs.MaxEntries()
}

func resolveCF(p *ir.ControlFlowInstr, prev ir.BlockType, cs *CallStack, ifs *lane.Stack, jt *JumpTracker) {
	switch p.Type {
	case ir.CFElse:
		if !jt.AddMid(p.ID, JumpIf) {
			panic(fmt.Sprintf("flow: ELSE #%d outside of an IF region", p.ID))
		}
	case ir.CFEndif:
		if ifs.Empty() || !jt.Pop(p.ID, JumpIf) {
			panic(fmt.Sprintf("flow: ENDIF #%d without a matching IF", p.ID))
		}
		cs.Pop(ifs.Pop().(StackKind))

		/* the pop can be folded into a preceding ALU clause */
		if prev == ir.BlockAlu {
			p.Set(ir.FlagVectorPopStack)
		}
	case ir.CFLoopBegin:
		cs.Push(Loop)
		jt.Push(p.ID, JumpLoop)
	case ir.CFLoopEnd:
		if !jt.Pop(p.ID, JumpLoop) {
			panic(fmt.Sprintf("flow: LOOP_END #%d without a matching LOOP_BEGIN", p.ID))
		}
		cs.Pop(Loop)
	case ir.CFLoopBreak, ir.CFLoopContinue:
		if !jt.AddMid(p.ID, JumpLoop) {
			panic(fmt.Sprintf("flow: %s #%d outside of a loop", p.Type, p.ID))
		}
	case ir.CFWaitAck:
		break
	default:
		panic("unreachable")
	}
}
