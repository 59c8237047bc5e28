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

	"github.com/google/go-cmp/cmp"

	"github.com/seqmedia/blockmux/ebmlio"
)

func newTestGroup(t *testing.T, track TrackRef, timestamp uint64) *BlockGroup {
	t.Helper()
	g := NewBlockGroup()
	if err := g.AddFrame(track, timestamp, NewBuffer([]byte{0x01, 0x02}, nil), LacingAuto); err != nil {
		t.Fatalf("Failed to add frame: %v", err)
	}
	return g
}

func TestBlockGroupReferences(t *testing.T) {
	track := &testTrack{num: 1, scale: 1}

	past := newTestGroup(t, track, 1000)
	forward := newTestGroup(t, track, 3000)

	t.Run("PastRef", func(t *testing.T) {
		g := NewBlockGroup()
		err := g.AddFrameWithPastRef(track, 2000, NewBuffer([]byte{0x03}, nil), past, LacingAuto)
		if err != nil {
			t.Fatal(err)
		}
		if n := g.ReferenceCount(); n != 1 {
			t.Fatalf("Expected 1 reference, got %d", n)
		}
		if d := g.Reference(0).Delta; d != -1000 {
			t.Errorf("Expected past reference delta -1000, got %d", d)
		}
	})
	t.Run("PastAndForwardRefs", func(t *testing.T) {
		g := NewBlockGroup()
		err := g.AddFrameWithRefs(track, 2000, NewBuffer([]byte{0x03}, nil), past, forward, LacingAuto)
		if err != nil {
			t.Fatal(err)
		}
		if n := g.ReferenceCount(); n != 2 {
			t.Fatalf("Expected 2 references, got %d", n)
		}
		if d := g.Reference(0).Delta; d != -1000 {
			t.Errorf("Expected past reference delta -1000, got %d", d)
		}
		if d := g.Reference(1).Delta; d != 1000 {
			t.Errorf("Expected forward reference delta 1000, got %d", d)
		}
	})
	t.Run("FailedAppendAddsNoReference", func(t *testing.T) {
		g := newTestGroup(t, track, 2000)
		otherTrack := &testTrack{num: 9, scale: 1}
		err := g.AddFrameWithPastRef(otherTrack, 2001, NewBuffer([]byte{0x03}, nil), past, LacingAuto)
		if !errors.Is(err, ErrTrackMismatch) {
			t.Fatalf("Expected ErrTrackMismatch, got %v", err)
		}
		if n := g.ReferenceCount(); n != 0 {
			t.Errorf("Failed append must not record a reference, got %d", n)
		}
	})
}

func TestBlockGroupDuration(t *testing.T) {
	g := NewBlockGroup()
	if _, ok := g.GetBlockDuration(); ok {
		t.Error("Expected no duration on a fresh group")
	}
	g.SetBlockDuration(40)
	d, ok := g.GetBlockDuration()
	if !ok || d != 40 {
		t.Errorf("Expected duration (40, true), got (%d, %v)", d, ok)
	}
}

func TestBlockGroupRoundTrip(t *testing.T) {
	cluster := &testCluster{base: 0, scale: 1}
	track := &testTrack{num: 2, scale: 1}

	past := newTestGroup(t, track, 1000)

	g := NewBlockGroup()
	if err := g.SetParent(cluster); err != nil {
		t.Fatal(err)
	}
	frame := []byte{0x0A, 0x0B, 0x0C}
	if err := g.AddFrameWithPastRef(track, 2000, NewBuffer(frame, nil), past, LacingAuto); err != nil {
		t.Fatal(err)
	}
	g.SetBlockDuration(40)

	size, err := g.UpdateSize()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	written, err := g.Render(ebmlio.NewWriter(&buf))
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	idLen := int64(ebmlio.IDLength(ebmlio.IDBlockGroup))
	sizeLen := int64(ebmlio.CodedSizeLength(uint64(size)))
	if written != idLen+sizeLen+size {
		t.Errorf("Expected %d bytes written, got %d", idLen+sizeLen+size, written)
	}

	r := ebmlio.NewReader(&buf)
	id, _, err := r.ReadElementID()
	if err != nil {
		t.Fatal(err)
	}
	if id != ebmlio.IDBlockGroup {
		t.Fatalf("Expected BlockGroup identifier, got 0x%X", id)
	}
	payloadSize, _, err := r.ReadVInt()
	if err != nil {
		t.Fatal(err)
	}
	decoded := NewBlockGroup()
	if err := decoded.ReadData(r, int64(payloadSize)); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if decoded.TrackNumber() != 2 {
		t.Errorf("Expected track 2, got %d", decoded.TrackNumber())
	}
	if decoded.InternalBlock().NumberFrames() != 1 {
		t.Fatalf("Expected 1 frame, got %d", decoded.InternalBlock().NumberFrames())
	}
	if !bytes.Equal(decoded.InternalBlock().GetBuffer(0).Bytes(), frame) {
		t.Errorf("Frame differs: expected %v, got %v", frame, decoded.InternalBlock().GetBuffer(0).Bytes())
	}
	wantRefs := []Reference{{Delta: -1000}}
	if diff := cmp.Diff(wantRefs, decoded.references); diff != "" {
		t.Errorf("References differ: %s", diff)
	}
	d, ok := decoded.GetBlockDuration()
	if !ok || d != 40 {
		t.Errorf("Expected duration (40, true), got (%d, %v)", d, ok)
	}
}

func TestBlockGroupReadDataSkipsUnknown(t *testing.T) {
	var buf bytes.Buffer
	w := ebmlio.NewWriter(&buf)
	// An unknown child followed by a ReferenceBlock.
	if _, err := w.WriteElementID(0xEC); err != nil { // Void
		t.Fatal(err)
	}
	if _, err := w.WriteVInt(3); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte{0x00, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteElementID(ebmlio.IDReferenceBlock); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteVInt(1); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteVIntSigned(-25); err != nil {
		t.Fatal(err)
	}

	g := NewBlockGroup()
	if err := g.ReadData(ebmlio.NewReader(&buf), w.Position()); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if n := g.ReferenceCount(); n != 1 {
		t.Fatalf("Expected 1 reference, got %d", n)
	}
	if d := g.Reference(0).Delta; d != -25 {
		t.Errorf("Expected reference delta -25, got %d", d)
	}
}

func TestBlockGroupReadDataMalformed(t *testing.T) {
	var buf bytes.Buffer
	w := ebmlio.NewWriter(&buf)
	if _, err := w.WriteElementID(ebmlio.IDBlock); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteVInt(100); err != nil { // declared size beyond the group
		t.Fatal(err)
	}
	if _, err := w.Write([]byte{0x81, 0x00, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}

	g := NewBlockGroup()
	err := g.ReadData(ebmlio.NewReader(&buf), w.Position())
	if !errors.Is(err, ErrMalformedBlock) {
		t.Errorf("Expected ErrMalformedBlock, got %v", err)
	}
}

func TestBlockGroupScaleQueries(t *testing.T) {
	track := &testTrack{num: 1, scale: 90000}
	g := newTestGroup(t, track, 1000)
	if s := g.GlobalTimestampScale(); s != 90000 {
		t.Errorf("Expected scale 90000, got %d", s)
	}

	fresh := NewBlockGroup()
	defer func() {
		if recover() == nil {
			t.Error("Expected panic without a parent track")
		}
	}()
	fresh.GlobalTimestampScale()
}
