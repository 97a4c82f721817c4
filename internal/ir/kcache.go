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
    `fmt`

    `github.com/cloudwego/gpusched/internal/hw`
)

// KcacheMode is the locking mode of a kcache set.
type KcacheMode uint8

const (
	KcacheUnused KcacheMode = iota
	KcacheLock1
	KcacheLock2
)

// KcacheLine locks one, or two consecutive, lines of a constant buffer.
type KcacheLine struct {
	Bank int
	Addr int
	Mode KcacheMode
}

// KcacheSet is the set of constant cache lines an ALU clause (or a group
// being formed) has locked.
type KcacheSet struct {
	Lines [4]KcacheLine
	Max   int
}

func NewKcacheSet(max int) KcacheSet {
	if max <= 0 || max > 4 {
		panic(fmt.Sprintf("ir: invalid kcache set count: %d", max))
	}
	return KcacheSet{Max: max}
}

// Reserve locks the line holding constant `index` of `bank`, widening an
// existing lock when the line is adjacent to it.
func (self *KcacheSet) Reserve(bank int, index int) bool {
	line := index / hw.KcacheLineSize

	/* lines are allocated in order, the first unused one ends the search */
	for i := 0; i < self.Max; i++ {
		p := &self.Lines[i]
		switch p.Mode {
		case KcacheUnused:
			p.Bank, p.Addr, p.Mode = bank, line, KcacheLock1
			return true
		case KcacheLock1:
			if p.Bank != bank {
				continue
			} else if p.Addr == line {
				return true
			} else if p.Addr+1 == line {
				p.Mode = KcacheLock2
				return true
			} else if line+1 == p.Addr {
				p.Addr, p.Mode = line, KcacheLock2
				return true
			}
		case KcacheLock2:
			if p.Bank == bank && (line == p.Addr || line == p.Addr+1) {
				return true
			}
		}
	}
	return false
}

// ReserveAll locks every kcache source of the listed instructions, the
// reservation is only committed if all of them fit.
func (self *KcacheSet) ReserveAll(sh *Shader, ids []InstrID) bool {
	tmp := *self
	for _, id := range ids {
		if a, ok := sh.Node(id).(*AluInstr); ok {
			for _, s := range a.Src {
				if s.Kind == S_kcache && !tmp.Reserve(s.Bank, s.Index) {
					return false
				}
			}
		}
	}
	*self = tmp
	return true
}

// Used counts the allocated sets.
func (self *KcacheSet) Used() (n int) {
	for i := 0; i < self.Max; i++ {
		if self.Lines[i].Mode != KcacheUnused {
			n++
		}
	}
	return
}
