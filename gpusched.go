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
    `fmt`
    `io`

    `github.com/cloudwego/gpusched/internal/flow`
    `github.com/cloudwego/gpusched/internal/ir`
    `github.com/cloudwego/gpusched/internal/opt`
    `github.com/cloudwego/gpusched/internal/opts`
    `github.com/cloudwego/gpusched/internal/sched`
)

type (
	Shader  = ir.Shader
	Builder = ir.Builder
	Block   = ir.Block
)

// NewShader creates an empty shader.
func NewShader() *Shader {
	return ir.NewShader()
}

// NewBuilder creates a builder that emits into sh for the generation the
// options select.
func NewBuilder(sh *Shader, options ...Option) *Builder {
	o := newOptions(options)
	return ir.NewBuilder(sh, o.Config())
}

// Result is a shader lowered to hardware clauses.
type Result struct {
	Blocks          []*Block
	MaxStackEntries int
	Rounds          int
	Stats           sched.Stats
}

// Compile optimizes the unscheduled shader, schedules it into clauses and
// resolves its control flow. The shader is modified in place, and should
// not be compiled again.
func Compile(sh *Shader, options ...Option) (ret *Result, err error) {
	o := newOptions(options)
	cfg := o.Config()
	stage := "verify"

	/* invariant violations abort the compilation */
	defer func() {
		if v := recover(); v != nil {
			ret, err = nil, asCompileError(stage, v)
		}
	}()

	/* reject malformed graphs early */
	if err = ir.Verify(sh); err != nil {
		return nil, CompileError{Stage: stage, Note: err.Error()}
	}

	/* optimizer rounds are only dumped on request */
	var dump io.Writer
	if o.DumpIR {
		dump = o.Debug
	}

	/* run the pipeline */
	ret = new(Result)
	stage = "optimize"
	ret.Rounds = opt.Optimize(sh, dump)
	stage = "schedule"
	ret.Stats = sched.Schedule(sh, cfg, o.Debug)
	stage = "resolve"
	ret.MaxStackEntries = flow.Resolve(sh, sh.Blocks, cfg)
	ret.Blocks = sh.Blocks

	/* the final program */
	if o.Debug != nil {
		fmt.Fprintf(o.Debug, "=== %s: %d clauses, %d stack entries\n%s\n", cfg.Gen, len(ret.Blocks), ret.MaxStackEntries, ir.Dump(sh, ret.Blocks))
	}
	return
}

func newOptions(options []Option) opts.Options {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}
	return o
}
