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

package kvsink

import (
	"github.com/at-wat/ebml-go"

	"github.com/seqmedia/blockmux"
)

// TimedBlock pairs a block with the absolute producer timestamp of its first
// frame, in timescale ticks. The relative timestamp written on the wire is
// assigned per fragment by the provider.
type TimedBlock struct {
	Timestamp uint64
	Block     *blockmux.SimpleBlock
}

// wireTrack adapts a bare track number to the handle AddFrame expects when
// rebuilding blocks from the wire.
type wireTrack uint64

func (t wireTrack) TrackNumber() uint64          { return uint64(t) }
func (t wireTrack) GlobalTimestampScale() uint64 { return 1 }

func wireLacing(l blockmux.Lacing) ebml.LacingMode {
	switch l {
	case blockmux.LacingXiph:
		return ebml.LacingXiph
	case blockmux.LacingFixed:
		return ebml.LacingFixed
	case blockmux.LacingEBML:
		return ebml.LacingEBML
	}
	return ebml.LacingNo
}

func blockLacing(l ebml.LacingMode) blockmux.Lacing {
	switch l {
	case ebml.LacingXiph:
		return blockmux.LacingXiph
	case ebml.LacingFixed:
		return blockmux.LacingFixed
	case ebml.LacingEBML:
		return blockmux.LacingEBML
	}
	return blockmux.LacingNone
}

// wireBlock converts a block into the marshalling form, with the fragment
// relative timestamp already resolved. Released frames make the conversion
// fail.
func wireBlock(b *blockmux.SimpleBlock, relative int16) (ebml.Block, error) {
	data := make([][]byte, 0, b.NumberFrames())
	for i := 0; i < b.NumberFrames(); i++ {
		buf := b.GetBuffer(i)
		if !buf.Valid() {
			return ebml.Block{}, blockmux.ErrInvalidBuffer
		}
		data = append(data, buf.Bytes())
	}
	return ebml.Block{
		TrackNumber: b.TrackNum(),
		Timecode:    relative,
		Keyframe:    b.IsKeyframe(),
		Invisible:   b.IsInvisible(),
		Lacing:      wireLacing(b.GetBestLacingType()),
		Discardable: b.IsDiscardable(),
		Data:        data,
	}, nil
}

// blockFromWire rebuilds a block from its unmarshalled wire form. The frame
// payloads are copied so the block outlives the decoder's buffers.
func blockFromWire(base uint64, wb ebml.Block) (*TimedBlock, error) {
	abs := uint64(int64(base) + int64(wb.Timecode))
	b := blockmux.NewSimpleBlock()
	b.SetKeyframe(wb.Keyframe)
	b.SetDiscardable(wb.Discardable)
	lacing := blockLacing(wb.Lacing)
	if len(wb.Data) <= 1 {
		lacing = blockmux.LacingNone
	}
	for _, frame := range wb.Data {
		if err := b.AddFrame(wireTrack(wb.TrackNumber), abs, blockmux.NewOwnedBuffer(frame), lacing, wb.Invisible); err != nil {
			return nil, err
		}
	}
	return &TimedBlock{Timestamp: abs, Block: b}, nil
}
