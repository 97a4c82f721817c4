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
    `testing`

    `github.com/cloudwego/gpusched/internal/hw`
    `github.com/cloudwego/gpusched/internal/ir`
    `github.com/cloudwego/gpusched/internal/opt`
    `github.com/cloudwego/gpusched/internal/sched`
    `github.com/stretchr/testify/require`
)

func TestGetStats(t *testing.T) {
	cfg := hw.New(hw.Evergreen)
	sh := ir.NewShader()
	b := ir.NewBuilder(sh, cfg)
	x := b.Temp()
	b.Alu(ir.OpMov, x, ir.Kcache(0, 0, 0))
	b.Emit(&ir.ExportInstr{Type: ir.ExportPixel, Value: ir.VecOf(x, x, x, x)})

	old := GetStats()
	rounds := opt.Optimize(sh, nil)
	st := sched.Schedule(sh, cfg, nil)
	now := GetStats()

	require.Equal(t, old.Shaders+1, now.Shaders)
	require.Equal(t, old.Optimizer.Rounds+rounds, now.Optimizer.Rounds)
	require.Equal(t, old.Scheduler.Blocks+st.Blocks, now.Scheduler.Blocks)
	require.Equal(t, old.Scheduler.Groups+st.Groups, now.Scheduler.Groups)
	require.Equal(t, old.Scheduler.ForcedBreaks, now.Scheduler.ForcedBreaks)
}
