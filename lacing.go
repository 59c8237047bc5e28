// Copyright 2026 Seqmedia Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blockmux

import (
	"github.com/seqmedia/blockmux/ebmlio"
)

// Lacing selects how multiple frames are packed into one block. The first
// four values match the on-wire lacing bits of the block flags byte.
type Lacing uint8

const (
	// LacingNone stores a single frame without a size table.
	LacingNone Lacing = 0
	// LacingXiph encodes each size as 255-valued continuation bytes
	// followed by a remainder byte.
	LacingXiph Lacing = 1
	// LacingFixed stores only the frame count; all frames share one size.
	LacingFixed Lacing = 2
	// LacingEBML encodes the first size as an unsigned vint and each
	// following size as a signed delta vint from the previous size.
	LacingEBML Lacing = 3
	// LacingAuto lets the block pick the smallest encoding at render time.
	LacingAuto Lacing = 4
)

func (l Lacing) String() string {
	switch l {
	case LacingNone:
		return "none"
	case LacingXiph:
		return "Xiph"
	case LacingFixed:
		return "fixed"
	case LacingEBML:
		return "EBML"
	case LacingAuto:
		return "auto"
	}
	return "unknown"
}

// Block flags byte layout.
const (
	flagKeyframe    = 0x80 // extended layout only
	flagInvisible   = 0x08
	flagLacingMask  = 0x06
	flagLacingShift = 1
	flagDiscardable = 0x01 // extended layout only

	// A lace frame count is stored in one byte.
	maxLaceFrames = 255
)

// xiphSizeLength returns the encoded length of one Xiph laced frame size:
// size/255 continuation bytes plus the remainder byte.
func xiphSizeLength(size int32) int {
	return int(size/255) + 1
}

// laceTableSize returns the byte length of the size table for the given
// lacing over sizes. The last frame size is never encoded; it is inferred
// from the element length.
func laceTableSize(lacing Lacing, sizes []int32) int {
	total := 0
	switch lacing {
	case LacingXiph:
		for _, s := range sizes[:len(sizes)-1] {
			total += xiphSizeLength(s)
		}
	case LacingEBML:
		total = ebmlio.CodedSizeLength(uint64(sizes[0]))
		for i := 1; i < len(sizes)-1; i++ {
			total += ebmlio.CodedSizeLengthSigned(int64(sizes[i]) - int64(sizes[i-1]))
		}
	}
	return total
}

// bestLacing picks the lacing with the smallest size table: fixed when every
// frame has the same size, otherwise the cheaper of Xiph and EBML.
func bestLacing(sizes []int32) Lacing {
	if len(sizes) <= 1 {
		return LacingNone
	}
	fixed := true
	for _, s := range sizes[1:] {
		if s != sizes[0] {
			fixed = false
			break
		}
	}
	if fixed {
		return LacingFixed
	}
	if laceTableSize(LacingXiph, sizes) < laceTableSize(LacingEBML, sizes) {
		return LacingXiph
	}
	return LacingEBML
}
