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
	"errors"
	"reflect"
	"testing"

	"github.com/at-wat/ebml-go"

	"github.com/seqmedia/blockmux"
)

func newSimpleBlock(t *testing.T, track uint64, timestamp uint64, frames [][]byte) *blockmux.SimpleBlock {
	t.Helper()
	b := blockmux.NewSimpleBlock()
	for _, frame := range frames {
		if err := b.AddFrame(wireTrack(track), timestamp, blockmux.NewBuffer(frame, nil), blockmux.LacingAuto, false); err != nil {
			t.Fatalf("Failed to add frame: %v", err)
		}
	}
	return b
}

func TestWireBlock(t *testing.T) {
	b := newSimpleBlock(t, 3, 5000, [][]byte{{0x01, 0x02}, {0x03, 0x04}})
	b.SetDiscardable(true)

	wb, err := wireBlock(b, 42)
	if err != nil {
		t.Fatal(err)
	}
	expected := ebml.Block{
		TrackNumber: 3,
		Timecode:    42,
		Keyframe:    true,
		Lacing:      ebml.LacingFixed,
		Discardable: true,
		Data:        [][]byte{{0x01, 0x02}, {0x03, 0x04}},
	}
	if !reflect.DeepEqual(expected, wb) {
		t.Errorf("Expected block %+v, got %+v", expected, wb)
	}
}

func TestWireBlockReleasedFrame(t *testing.T) {
	b := newSimpleBlock(t, 1, 5000, [][]byte{{0x01}, {0x02}})
	b.GetBuffer(0).Release()
	if _, err := wireBlock(b, 0); !errors.Is(err, blockmux.ErrInvalidBuffer) {
		t.Errorf("Expected ErrInvalidBuffer, got %v", err)
	}
}

func TestBlockFromWire(t *testing.T) {
	wb := ebml.Block{
		TrackNumber: 2,
		Timecode:    -100,
		Keyframe:    true,
		Lacing:      ebml.LacingNo,
		Data:        [][]byte{{0x0A, 0x0B}},
	}
	tb, err := blockFromWire(5000, wb)
	if err != nil {
		t.Fatal(err)
	}
	if tb.Timestamp != 4900 {
		t.Errorf("Expected timestamp 4900, got %d", tb.Timestamp)
	}
	if tb.Block.TrackNum() != 2 {
		t.Errorf("Expected track 2, got %d", tb.Block.TrackNum())
	}
	if !tb.Block.IsKeyframe() {
		t.Error("Expected keyframe flag preserved")
	}
	if n := tb.Block.NumberFrames(); n != 1 {
		t.Fatalf("Expected 1 frame, got %d", n)
	}
	got := tb.Block.GetBuffer(0).Bytes()
	if !reflect.DeepEqual([]byte{0x0A, 0x0B}, got) {
		t.Errorf("Expected frame bytes [10 11], got %v", got)
	}
}

func TestWireBlockRoundTrip(t *testing.T) {
	b := newSimpleBlock(t, 1, 7000, [][]byte{{0x01}, {0x02, 0x03}, {0x04}})
	wb, err := wireBlock(b, 100)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := blockFromWire(6900, wb)
	if err != nil {
		t.Fatal(err)
	}
	if tb.Timestamp != 7000 {
		t.Errorf("Expected timestamp 7000, got %d", tb.Timestamp)
	}
	if n := tb.Block.NumberFrames(); n != b.NumberFrames() {
		t.Fatalf("Expected %d frames, got %d", b.NumberFrames(), n)
	}
	for i := 0; i < b.NumberFrames(); i++ {
		if !reflect.DeepEqual(b.GetBuffer(i).Bytes(), tb.Block.GetBuffer(i).Bytes()) {
			t.Errorf("Frame %d differs", i)
		}
	}
}
