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
	"fmt"

	"github.com/seqmedia/blockmux/ebmlio"
)

// Reference is a signed timestamp delta to another block this block's
// frames depend on: negative for a past reference, positive for a forward
// reference. Deltas are relative to the owning group's base timestamp.
type Reference struct {
	Delta int64
}

// BlockGroup wraps one minimal layout Block together with its frame
// dependency references and an optional explicit duration.
type BlockGroup struct {
	theBlock    Block
	references  []Reference
	duration    uint64
	durationSet bool
	parent      ClusterRef
	parentTrack TrackRef
}

func NewBlockGroup() *BlockGroup {
	return &BlockGroup{theBlock: *NewBlock()}
}

// AddFrame appends an independent frame without references.
func (g *BlockGroup) AddFrame(track TrackRef, timestamp uint64, buf *FrameBuffer, lacing Lacing) error {
	g.parentTrack = track
	return g.theBlock.AddFrame(track, timestamp, buf, lacing, false)
}

// AddFrameWithPastRef appends a frame depending on a past block (P frame
// style). The recorded reference delta is negative.
func (g *BlockGroup) AddFrameWithPastRef(track TrackRef, timestamp uint64, buf *FrameBuffer, past *BlockGroup, lacing Lacing) error {
	if err := g.AddFrame(track, timestamp, buf, lacing); err != nil {
		return err
	}
	g.addReference(past.baseTimestamp())
	return nil
}

// AddFrameWithRefs appends a frame depending on a past and a forward block
// (B frame style). The past delta is negative, the forward delta positive.
func (g *BlockGroup) AddFrameWithRefs(track TrackRef, timestamp uint64, buf *FrameBuffer, past, forward *BlockGroup, lacing Lacing) error {
	if err := g.AddFrame(track, timestamp, buf, lacing); err != nil {
		return err
	}
	g.addReference(past.baseTimestamp())
	g.addReference(forward.baseTimestamp())
	return nil
}

// AddFrameWithBlobRefs appends a frame resolving the references through
// block economy wrappers, whichever variant they hold. Nil wrappers are
// skipped.
func (g *BlockGroup) AddFrameWithBlobRefs(track TrackRef, timestamp uint64, buf *FrameBuffer, past, forward *BlockBlob, lacing Lacing) error {
	if err := g.AddFrame(track, timestamp, buf, lacing); err != nil {
		return err
	}
	if past != nil {
		g.addReference(past.baseTimestamp())
	}
	if forward != nil {
		g.addReference(forward.baseTimestamp())
	}
	return nil
}

func (g *BlockGroup) addReference(refTimestamp uint64) {
	g.references = append(g.references, Reference{
		Delta: int64(refTimestamp) - int64(g.baseTimestamp()),
	})
}

func (g *BlockGroup) baseTimestamp() uint64 {
	return g.theBlock.timestamp
}

// SetBlockDuration stores an explicit duration, in track timestamp scale
// units, applying to the whole frame set of the group.
func (g *BlockGroup) SetBlockDuration(duration uint64) {
	g.duration = duration
	g.durationSet = true
}

// GetBlockDuration returns the explicit duration, or false if none was set.
func (g *BlockGroup) GetBlockDuration() (uint64, bool) {
	return g.duration, g.durationSet
}

// ReferenceCount returns the number of references, in the order added.
func (g *BlockGroup) ReferenceCount() int {
	return len(g.references)
}

// Reference returns the i-th reference in insertion order.
func (g *BlockGroup) Reference(i int) Reference {
	return g.references[i]
}

// SetParent binds the owning cluster for position and timestamp queries.
func (g *BlockGroup) SetParent(cluster ClusterRef) error {
	g.parent = cluster
	return g.theBlock.SetParent(cluster)
}

// SetParentTrack binds the track entry providing the timestamp scale.
func (g *BlockGroup) SetParentTrack(track TrackRef) {
	g.parentTrack = track
}

// GlobalTimestamp returns the absolute timestamp of the group's block.
func (g *BlockGroup) GlobalTimestamp() uint64 {
	return g.theBlock.GlobalTimestamp()
}

// GlobalTimestampScale returns the track timestamp scale. It panics if no
// parent track has been set.
func (g *BlockGroup) GlobalTimestampScale() uint64 {
	if g.parentTrack == nil {
		panic("blockmux: block group has no parent track")
	}
	return g.parentTrack.GlobalTimestampScale()
}

// TrackNumber returns the track number of the contained block.
func (g *BlockGroup) TrackNumber() uint64 {
	return g.theBlock.TrackNum()
}

// ClusterPosition returns the byte offset of the underlying block inside its
// cluster, or -1 before a successful render.
func (g *BlockGroup) ClusterPosition() int64 {
	return g.theBlock.ClusterPosition()
}

// ReleaseFrames releases all frames of the contained block.
func (g *BlockGroup) ReleaseFrames() {
	g.theBlock.ReleaseFrames()
}

// InternalBlock exposes the contained block.
func (g *BlockGroup) InternalBlock() *Block {
	return &g.theBlock
}

// UpdateSize returns the payload size of the group element, children
// included.
func (g *BlockGroup) UpdateSize() (int64, error) {
	blockPayload, err := g.theBlock.UpdateSize()
	if err != nil {
		return 0, err
	}
	size := childElementSize(ebmlio.IDBlock, blockPayload)
	for _, ref := range g.references {
		size += childElementSize(ebmlio.IDReferenceBlock, int64(ebmlio.CodedSizeLengthSigned(ref.Delta)))
	}
	if g.durationSet {
		size += childElementSize(ebmlio.IDBlockDuration, int64(ebmlio.CodedSizeLength(g.duration)))
	}
	return size, nil
}

func childElementSize(id uint32, payload int64) int64 {
	return int64(ebmlio.IDLength(id)) + int64(ebmlio.CodedSizeLength(uint64(payload))) + payload
}

// Render writes the full BlockGroup element: the contained Block, one
// ReferenceBlock per reference and the optional BlockDuration.
func (g *BlockGroup) Render(w *ebmlio.Writer) (int64, error) {
	size, err := g.UpdateSize()
	if err != nil {
		return 0, err
	}
	start := w.Position()
	if _, err := w.WriteElementID(ebmlio.IDBlockGroup); err != nil {
		return w.Position() - start, err
	}
	if _, err := w.WriteVInt(uint64(size)); err != nil {
		return w.Position() - start, err
	}
	if _, err := g.theBlock.Render(w); err != nil {
		return w.Position() - start, err
	}
	for _, ref := range g.references {
		if _, err := w.WriteElementID(ebmlio.IDReferenceBlock); err != nil {
			return w.Position() - start, err
		}
		if _, err := w.WriteVInt(uint64(ebmlio.CodedSizeLengthSigned(ref.Delta))); err != nil {
			return w.Position() - start, err
		}
		if _, err := w.WriteVIntSigned(ref.Delta); err != nil {
			return w.Position() - start, err
		}
	}
	if g.durationSet {
		if _, err := w.WriteElementID(ebmlio.IDBlockDuration); err != nil {
			return w.Position() - start, err
		}
		if _, err := w.WriteVInt(uint64(ebmlio.CodedSizeLength(g.duration))); err != nil {
			return w.Position() - start, err
		}
		if _, err := w.WriteVInt(g.duration); err != nil {
			return w.Position() - start, err
		}
	}
	return w.Position() - start, nil
}

// ReadData decodes the children of a BlockGroup element of the declared
// payload size. Unknown child elements are skipped.
func (g *BlockGroup) ReadData(r *ebmlio.Reader, size int64) error {
	end := r.Position() + size
	for r.Position() < end {
		id, _, err := r.ReadElementID()
		if err != nil {
			return err
		}
		childSize, _, err := r.ReadVInt()
		if err != nil {
			return err
		}
		if r.Position()+int64(childSize) > end {
			return fmt.Errorf("%w: child element exceeds group size", ErrMalformedBlock)
		}
		switch id {
		case ebmlio.IDBlock:
			if err := g.theBlock.ReadData(r, int64(childSize)); err != nil {
				return err
			}
		case ebmlio.IDReferenceBlock:
			delta, n, err := r.ReadVIntSigned()
			if err != nil {
				return err
			}
			if int64(n) != int64(childSize) {
				return fmt.Errorf("%w: reference size mismatch", ErrMalformedBlock)
			}
			g.references = append(g.references, Reference{Delta: delta})
		case ebmlio.IDBlockDuration:
			duration, n, err := r.ReadVInt()
			if err != nil {
				return err
			}
			if int64(n) != int64(childSize) {
				return fmt.Errorf("%w: duration size mismatch", ErrMalformedBlock)
			}
			g.duration = duration
			g.durationSet = true
		default:
			if err := r.Skip(int64(childSize)); err != nil {
				return err
			}
		}
	}
	return nil
}
