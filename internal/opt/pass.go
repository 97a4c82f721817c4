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
    `fmt`
    `io`
    `sync/atomic`

    `github.com/cloudwego/gpusched/internal/ir`
)

var (
	RoundCount uint64
)

// Pass is a graph rewrite; Apply reports whether anything changed.
type Pass interface {
	Apply(sh *ir.Shader) bool
}

type _PassDescriptor struct {
	pass Pass
	desc string
}

var _passes = [...]_PassDescriptor{
	{desc: "Forward Copy Propagation", pass: new(CopyPropFwd)},
	{desc: "Dead Code Elimination", pass: new(DCE)},
	{desc: "Backward Copy Propagation", pass: new(CopyPropBack)},
	{desc: "Dead Code Elimination", pass: new(DCE)},
	{desc: "Source Vector Simplification", pass: new(SimplifySrcVec)},
	{desc: "Peephole", pass: new(Peephole)},
	{desc: "Dead Code Elimination", pass: new(DCE)},
}

// Optimize runs the pass pipeline until a whole round makes no progress,
// and returns the number of rounds. Each pass that changes the shader is
// traced to `w` if it is not nil.
func Optimize(sh *ir.Shader, w io.Writer) (rounds int) {
	for progress := true; progress; rounds++ {
		progress = false
		for _, p := range _passes {
			if p.pass.Apply(sh) {
				progress = true
				if w != nil {
					fmt.Fprintf(w, "=== round %d: %s\n%s\n", rounds, p.desc, ir.Dump(sh, sh.Blocks))
				}
			}
		}
	}
	atomic.AddUint64(&RoundCount, uint64(rounds))
	return
}
