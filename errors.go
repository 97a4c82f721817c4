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
    `runtime`
)

// CompileError occures when a shader cannot be scheduled, the Stage tells
// which step of the compilation rejected it.
type CompileError struct {
    Stage string
    Note  string
}

func (self CompileError) Error() string {
    if self.Stage != "" {
        return fmt.Sprintf("CompileError(%s): %s", self.Stage, self.Note)
    } else {
        return "CompileError: " + self.Note
    }
}

func asCompileError(stage string, v interface{}) error {
    switch e := v.(type) {
        case runtime.Error : panic(e)
        case error         : return CompileError { Stage: stage, Note: e.Error() }
        case string        : return CompileError { Stage: stage, Note: e }
        default            : return CompileError { Stage: stage, Note: fmt.Sprint(v) }
    }
}
