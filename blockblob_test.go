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
	"bytes"
	"errors"
	"testing"

	"github.com/seqmedia/blockmux/ebmlio"
)

func newTestBlob(t *testing.T, mode BlobMode, track TrackRef, timestamp uint64) *BlockBlob {
	t.Helper()
	b := NewBlockBlob(mode)
	if err := b.AddFrameAuto(track, timestamp, NewBuffer([]byte{0x01, 0x02}, nil), LacingAuto, nil, nil); err != nil {
		t.Fatalf("Failed to add frame: %v", err)
	}
	return b
}

func TestBlockBlobAutoUpgrade(t *testing.T) {
	track := &testTrack{num: 1, scale: 1}
	past := newTestBlob(t, BlobSimpleAuto, track, 1000)

	b := NewBlockBlob(BlobSimpleAuto)
	if !b.IsSimpleBlock() {
		t.Fatal("Expected a fresh auto blob to hold the simple form")
	}
	if err := b.AddFrameAuto(track, 2000, NewBuffer([]byte{0x03}, nil), LacingAuto, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !b.IsSimpleBlock() {
		t.Fatal("Expected the simple form without references")
	}
	if _, ok := b.Simple(); !ok {
		t.Fatal("Expected access to the simple variant")
	}
	if _, ok := b.Group(); ok {
		t.Fatal("Group variant must not be accessible in the simple form")
	}

	// A referencing frame forces the group form and drops accumulated frames.
	if err := b.AddFrameAuto(track, 2010, NewBuffer([]byte{0x04}, nil), LacingAuto, past, nil); err != nil {
		t.Fatal(err)
	}
	if b.IsSimpleBlock() {
		t.Fatal("Expected the group form after a referencing append")
	}
	g, ok := b.Group()
	if !ok {
		t.Fatal("Expected access to the group variant")
	}
	if n := b.NumberFrames(); n != 1 {
		t.Errorf("Expected 1 frame after the upgrade, got %d", n)
	}
	if n := g.ReferenceCount(); n != 1 {
		t.Fatalf("Expected 1 reference, got %d", n)
	}
	if d := g.Reference(0).Delta; d != -1010 {
		t.Errorf("Expected reference delta -1010, got %d", d)
	}
}

func TestBlockBlobAlwaysSimpleRefusesRefs(t *testing.T) {
	track := &testTrack{num: 1, scale: 1}
	past := newTestBlob(t, BlobSimpleAuto, track, 1000)

	b := newTestBlob(t, BlobAlwaysSimple, track, 2000)
	err := b.AddFrameAuto(track, 2010, NewBuffer([]byte{0x04}, nil), LacingAuto, past, nil)
	if !errors.Is(err, ErrReferenceNotAllowed) {
		t.Fatalf("Expected ErrReferenceNotAllowed, got %v", err)
	}
	if !b.IsSimpleBlock() {
		t.Error("Refused append must not change the form")
	}
	if n := b.NumberFrames(); n != 1 {
		t.Errorf("Refused append must not change the frame count, got %d", n)
	}

	if err := b.SetBlockDuration(40); !errors.Is(err, ErrReferenceNotAllowed) {
		t.Errorf("Expected ErrReferenceNotAllowed for duration, got %v", err)
	}
}

func TestBlockBlobNoSimple(t *testing.T) {
	track := &testTrack{num: 1, scale: 1}
	b := newTestBlob(t, BlobNoSimple, track, 1000)
	if b.IsSimpleBlock() {
		t.Fatal("Expected the group form in no-simple mode")
	}
	if _, ok := b.Group(); !ok {
		t.Fatal("Expected access to the group variant")
	}
}

func TestBlockBlobDurationUpgrade(t *testing.T) {
	track := &testTrack{num: 1, scale: 1}
	b := newTestBlob(t, BlobSimpleAuto, track, 1000)
	if err := b.SetBlockDuration(40); err != nil {
		t.Fatal(err)
	}
	if b.IsSimpleBlock() {
		t.Fatal("Expected the group form after setting a duration")
	}
	g, ok := b.Group()
	if !ok {
		t.Fatal("Expected access to the group variant")
	}
	d, ok := g.GetBlockDuration()
	if !ok || d != 40 {
		t.Errorf("Expected duration (40, true), got (%d, %v)", d, ok)
	}
}

func TestBlockBlobRender(t *testing.T) {
	cluster := &testCluster{base: 0, scale: 1}
	track := &testTrack{num: 1, scale: 1}

	testCases := map[string]struct {
		mode       BlobMode
		expectedID uint32
	}{
		"SimpleForm": {mode: BlobSimpleAuto, expectedID: ebmlio.IDSimpleBlock},
		"GroupForm":  {mode: BlobNoSimple, expectedID: ebmlio.IDBlockGroup},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			b := NewBlockBlob(tt.mode)
			if err := b.SetParent(cluster); err != nil {
				t.Fatal(err)
			}
			if err := b.AddFrameAuto(track, 100, NewBuffer([]byte{0x01}, nil), LacingAuto, nil, nil); err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if _, err := b.Render(ebmlio.NewWriter(&buf)); err != nil {
				t.Fatalf("Failed to render: %v", err)
			}
			id, _, err := ebmlio.NewReader(&buf).ReadElementID()
			if err != nil {
				t.Fatal(err)
			}
			if id != tt.expectedID {
				t.Errorf("Expected element 0x%X, got 0x%X", tt.expectedID, id)
			}
		})
	}
}
