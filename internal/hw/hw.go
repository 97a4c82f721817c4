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

package hw

import (
    `fmt`
)

// Generation selects the target GPU family.
type Generation uint8

const (
	R600 Generation = iota
	R700
	Evergreen
	Cayman
)

var _GenerationNames = [...]string{
	R600:      "r600",
	R700:      "r700",
	Evergreen: "evergreen",
	Cayman:    "cayman",
}

func (self Generation) String() string {
	if int(self) < len(_GenerationNames) {
		return _GenerationNames[self]
	} else {
		return fmt.Sprintf("Generation(%d)", uint8(self))
	}
}

// Valid reports whether the generation is one of the known families.
func (self Generation) Valid() bool {
	return self <= Cayman
}

// ParseGeneration converts a family name into a Generation.
func ParseGeneration(name string) (Generation, error) {
	for i, v := range _GenerationNames {
		if v == name {
			return Generation(i), nil
		}
	}
	return 0, fmt.Errorf("hw: unknown generation %q", name)
}

const (
	VecSlots       = 4   // x, y, z, w
	MaxLiterals    = 4   // literal dwords per ALU group
	KcacheLineSize = 16  // constants per kcache line
	AluClauseSlots = 128 // ALU slots (instructions + literal pairs) per clause
)

// Config is the read-only description of a hardware generation. It is
// built once per compilation and threaded through every component.
type Config struct {
	Gen            Generation
	HasTrans       bool
	KcacheLines    int
	FetchSlots     int
	StackEntrySize int
}

// New returns the configuration of a generation with the default
// call-stack entry size.
func New(gen Generation) Config {
	if !gen.Valid() {
		panic("hw: invalid generation " + gen.String())
	}

	/* pre-r8xx parts only have 2 kcache sets and 8 entries per fetch clause */
	if gen < Evergreen {
		return Config{
			Gen:            gen,
			HasTrans:       true,
			KcacheLines:    2,
			FetchSlots:     8,
			StackEntrySize: 4,
		}
	}

	/* r9xx dropped the trans unit */
	return Config{
		Gen:            gen,
		HasTrans:       gen != Cayman,
		KcacheLines:    4,
		FetchSlots:     16,
		StackEntrySize: 4,
	}
}

// WithStackEntrySize returns a copy of the config using the specified
// call-stack entry size (4 or 8 elements, depending on the wavefront size).
func (self Config) WithStackEntrySize(n int) Config {
	if n != 4 && n != 8 {
		panic(fmt.Sprintf("hw: invalid stack entry size: %d", n))
	}
	self.StackEntrySize = n
	return self
}

// Slots is the number of issue slots of one ALU group.
func (self Config) Slots() int {
	if self.HasTrans {
		return VecSlots + 1
	} else {
		return VecSlots
	}
}
