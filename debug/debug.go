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

package debug

import (
    `sync/atomic`

    `github.com/cloudwego/gpusched/internal/opt`
    `github.com/cloudwego/gpusched/internal/sched`
)

// A Stats records statistics about the compiled shaders.
type Stats struct {
	Shaders   int
	Optimizer OptStats
	Scheduler SchedStats
}

// An OptStats records statistics about the optimization pipeline.
type OptStats struct {
	Rounds int
}

// A SchedStats records statistics about the emitted clauses.
type SchedStats struct {
	Blocks       int
	Groups       int
	ForcedBreaks int
}

// GetStats returns statistics of every compilation in this process.
func GetStats() Stats {
	return Stats{
		Shaders: int(atomic.LoadUint64(&sched.ShaderCount)),
		Optimizer: OptStats{
			Rounds: int(atomic.LoadUint64(&opt.RoundCount)),
		},
		Scheduler: SchedStats{
			Blocks:       int(atomic.LoadUint64(&sched.BlockCount)),
			Groups:       int(atomic.LoadUint64(&sched.GroupCount)),
			ForcedBreaks: int(atomic.LoadUint64(&sched.ForcedBreakCount)),
		},
	}
}
