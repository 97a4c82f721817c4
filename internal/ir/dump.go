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

package ir

import (
    `strings`

    `github.com/davecgh/go-spew/spew`
)

var _DumpConfig = spew.ConfigState{
	Indent:                  "    ",
	SortKeys:                true,
	DisablePointerMethods:   true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
}

// Dump renders the blocks in their textual form.
func Dump(sh *Shader, blocks []*Block) string {
	ss := make([]string, 0, len(blocks))
	for _, bb := range blocks {
		ss = append(ss, bb.Format(sh))
	}
	return strings.Join(ss, "\n")
}

// DumpState renders arbitrary compiler state for diagnostics.
func DumpState(v ...interface{}) string {
	return _DumpConfig.Sdump(v...)
}
