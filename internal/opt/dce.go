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
    `github.com/cloudwego/gpusched/internal/ir`
    `golang.org/x/exp/slices`
)

// DCE removes instructions whose results are never read. Pre-formed
// groups are kept whole.
type DCE struct{}

func (DCE) Apply(sh *ir.Shader) (progress bool) {
	for _, bb := range sh.Blocks {
		for _, id := range slices.Clone(bb.Instrs) {
			if sh.Removable(id) && sh.SetDead(id) {
				progress = true
			}
		}
	}
	return
}
