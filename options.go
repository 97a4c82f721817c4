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

    `github.com/cloudwego/gpusched/internal/hw`
    `github.com/cloudwego/gpusched/internal/opts`
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

const (
	_MinStackEntrySize = 4
	_MaxStackEntrySize = 8
)

// WithGeneration selects the GPU family the shader is scheduled for.
//
// The family decides the presence of the trans slot, the number of constant
// cache lines an ALU clause can lock and the capacity of fetch clauses.
//
// The default value of this option is "evergreen".
func WithGeneration(gen string) Option {
	if v, err := hw.ParseGeneration(gen); err != nil {
		panic(fmt.Sprintf("gpusched: invalid generation: %q", gen))
	} else {
		return func(o *opts.Options) { o.Generation = v }
	}
}

// WithStackEntrySize sets the number of call-stack elements per stack entry.
//
// Parts with 64-lane wavefronts use "4", the smaller parts that run 32 or
// 16 lanes per wavefront use "8".
//
// The default value of this option is "4".
func WithStackEntrySize(size int) Option {
	if size != _MinStackEntrySize && size != _MaxStackEntrySize {
		panic(fmt.Sprintf("gpusched: invalid stack entry size: %d", size))
	} else {
		return func(o *opts.Options) { o.StackEntrySize = size }
	}
}

// WithDebugOutput writes the scheduler traces to w. Setting it to nil
// disables tracing.
//
// This option defaults to os.Stderr when the `GPUSCHED_DEBUG` environment
// variable is set to a non-zero value.
func WithDebugOutput(w io.Writer) Option {
	return func(o *opts.Options) { o.Debug = w }
}

// WithIRDump additionally dumps the shader after every optimizer pass that
// changed it. It has no effect without a debug output.
func WithIRDump(v bool) Option {
	return func(o *opts.Options) { o.DumpIR = v }
}

// SetDebugLevel sets the default debug level for all compilations from now
// on: "0" disables tracing, "1" traces the scheduler and "2" also dumps the
// optimizer rounds.
//
// This value can also be configured with the `GPUSCHED_DEBUG` environment
// variable.
//
// Returns the old opts.DebugLevel value.
func SetDebugLevel(level int) int {
	if level < 0 {
		panic(fmt.Sprintf("gpusched: invalid debug level: %d", level))
	}
	level, opts.DebugLevel = opts.DebugLevel, level
	return level
}
