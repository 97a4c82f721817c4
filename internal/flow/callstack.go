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
)

// StackKind is the kind of call-stack operation.
type StackKind uint8

const (
	PushVPM StackKind = iota // predicated push
	PushWQM                  // whole-quad-mode preserving push
	Loop                     // loop entry
)

var _StackKindNames = [...]string{
	PushVPM: "push",
	PushWQM: "push_wqm",
	Loop:    "loop",
}

func (self StackKind) String() string {
	return _StackKindNames[self]
}

const (
	_EntryWidth = 4
)

// CallStack accounts the hardware control flow stack usage of a shader.
type CallStack struct {
	cfg        hw.Config
	push       int
	pushWQM    int
	loop       int
	maxEntries int
}

func NewCallStack(cfg hw.Config) *CallStack {
	return &CallStack{cfg: cfg}
}

// Push records a stack operation and returns the number of stack elements
// in use after it.
func (self *CallStack) Push(kind StackKind) int {
	switch kind {
	case PushVPM:
		self.push++
	case PushWQM:
		self.pushWQM++
	case Loop:
		self.loop++
	default:
		panic(fmt.Sprintf("flow: invalid stack operation %d", kind))
	}
	return self.updateMaxDepth(kind)
}

// Pop releases a stack operation.
func (self *CallStack) Pop(kind StackKind) {
	var p *int
	switch kind {
	case PushVPM:
		p = &self.push
	case PushWQM:
		p = &self.pushWQM
	case Loop:
		p = &self.loop
	default:
		panic(fmt.Sprintf("flow: invalid stack operation %d", kind))
	}
	if *p == 0 {
		panic("flow: call stack underflow on " + kind.String())
	}
	*p--
}

// MaxEntries is the number of stack entries the shader needs at most.
func (self *CallStack) MaxEntries() int {
	return self.maxEntries
}

func (self *CallStack) updateMaxDepth(kind StackKind) int {
	elements := (self.loop+self.pushWQM)*self.cfg.StackEntrySize + self.push

	/* hardware specific reservations */
	switch self.cfg.Gen {
	case hw.R600, hw.R700:
		/* any non-WQM push reserves 2 elements for the active and continue masks */
		if kind == PushVPM || self.push > 0 {
			elements += 2
		}
	case hw.Cayman:
		/* any stack operation on an empty stack consumes 2 additional elements */
		elements += 2
	case hw.Evergreen:
		if kind == PushVPM || self.push > 0 {
			elements += 1
		}
	default:
		panic("unreachable")
	}

	/* convert to whole entries */
	entries := (elements + _EntryWidth - 1) / _EntryWidth
	if entries > self.maxEntries {
		self.maxEntries = entries
	}
	return elements
}
