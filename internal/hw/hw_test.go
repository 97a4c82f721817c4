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
    `testing`

    `github.com/stretchr/testify/require`
)

func TestConfig_Generations(t *testing.T) {
	tests := []struct {
		gen    Generation
		trans  bool
		lines  int
		fetch  int
		slots  int
	}{
		{R600, true, 2, 8, 5},
		{R700, true, 2, 8, 5},
		{Evergreen, true, 4, 16, 5},
		{Cayman, false, 4, 16, 4},
	}
	for _, tc := range tests {
		t.Run(tc.gen.String(), func(t *testing.T) {
			cfg := New(tc.gen)
			require.Equal(t, tc.trans, cfg.HasTrans)
			require.Equal(t, tc.lines, cfg.KcacheLines)
			require.Equal(t, tc.fetch, cfg.FetchSlots)
			require.Equal(t, tc.slots, cfg.Slots())
			require.Equal(t, 4, cfg.StackEntrySize)
		})
	}
}

func TestConfig_StackEntrySize(t *testing.T) {
	cfg := New(R600).WithStackEntrySize(8)
	require.Equal(t, 8, cfg.StackEntrySize)
	require.Panics(t, func() { New(R600).WithStackEntrySize(3) })
	require.Panics(t, func() { New(Generation(9)) })
}

func TestParseGeneration(t *testing.T) {
	gen, err := ParseGeneration("evergreen")
	require.NoError(t, err)
	require.Equal(t, Evergreen, gen)
	_, err = ParseGeneration("gcn")
	require.Error(t, err)
}
