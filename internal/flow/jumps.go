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
    `github.com/cloudwego/gpusched/internal/ir`
    `github.com/oleiade/lane`
)

// JumpType selects the region stack of the tracker.
type JumpType uint8

const (
	JumpIf JumpType = iota
	JumpLoop
	_JumpMax
)

// FixupFunc patches the forward jump at `site` to land on `final`.
type FixupFunc func(site ir.InstrID, final ir.InstrID)

type _Frame struct {
	start ir.InstrID
	mids  []ir.InstrID
}

// JumpTracker links the start of if/else and loop regions with their end,
// so forward jump targets can be patched when the end is reached.
type JumpTracker struct {
	fix    FixupFunc
	stacks [_JumpMax]*lane.Stack
}

func NewJumpTracker(fix FixupFunc) *JumpTracker {
	ret := &JumpTracker{fix: fix}
	for i := range ret.stacks {
		ret.stacks[i] = lane.NewStack()
	}
	return ret
}

// Push opens a region starting at `start`.
func (self *JumpTracker) Push(start ir.InstrID, t JumpType) {
	self.stacks[t].Push(&_Frame{start: start})
}

// Pop closes the innermost region of type `t`, resolving its start and
// every recorded mid fixup against `final`. It returns false if no such
// region is open.
func (self *JumpTracker) Pop(final ir.InstrID, t JumpType) bool {
	if self.stacks[t].Empty() {
		return false
	}

	/* resolve all the fixups of the frame */
	fp := self.stacks[t].Pop().(*_Frame)
	self.fix(fp.start, final)
	for _, v := range fp.mids {
		self.fix(v, final)
	}
	return true
}

// AddMid records `source` as an additional fixup site of the innermost
// open region of type `t`.
func (self *JumpTracker) AddMid(source ir.InstrID, t JumpType) bool {
	if self.stacks[t].Empty() {
		return false
	}
	fp := self.stacks[t].Head().(*_Frame)
	fp.mids = append(fp.mids, source)
	return true
}

// Depth is the number of open regions of type `t`.
func (self *JumpTracker) Depth(t JumpType) int {
	return self.stacks[t].Size()
}

// Empty reports whether every region was closed.
func (self *JumpTracker) Empty() bool {
	for _, s := range self.stacks {
		if !s.Empty() {
			return false
		}
	}
	return true
}
