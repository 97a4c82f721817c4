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

package opts

import (
    `io`
    `os`

    `github.com/cloudwego/gpusched/internal/hw`
)

type Options struct {
	Generation     hw.Generation
	StackEntrySize int
	Debug          io.Writer
	DumpIR         bool
}

// Config derives the hardware description the compiler components share.
func (self *Options) Config() hw.Config {
	return hw.New(self.Generation).WithStackEntrySize(self.StackEntrySize)
}

// Tracing reports whether the passes should write their traces.
func (self *Options) Tracing() bool {
	return self.Debug != nil
}

func GetDefaultOptions() Options {
	ret := Options{
		Generation:     hw.Evergreen,
		StackEntrySize: _DefaultStackEntrySize,
	}

	/* GPUSCHED_DEBUG=1 traces the scheduler, 2 also dumps every optimizer round */
	if DebugLevel > 0 {
		ret.Debug = os.Stderr
		ret.DumpIR = DebugLevel > 1
	}
	return ret
}
