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

// BlobMode fixes, at construction, which block forms a BlockBlob may hold.
type BlobMode int

const (
	// BlobNoSimple always uses a block group.
	BlobNoSimple BlobMode = iota
	// BlobSimpleAuto uses a simple block until references or a duration
	// require the group form.
	BlobSimpleAuto
	// BlobAlwaysSimple refuses references and durations.
	BlobAlwaysSimple
)

// BlockBlob is a tagged choice between a SimpleBlock and a BlockGroup,
// letting a multiplexer pick the cheaper encoding per frame behind one
// append interface. The blob exclusively owns whichever variant it holds.
type BlockBlob struct {
	mode      BlobMode
	useSimple bool
	simple    *SimpleBlock
	group     *BlockGroup
	parent    ClusterRef
}

func NewBlockBlob(mode BlobMode) *BlockBlob {
	return &BlockBlob{
		mode:      mode,
		useSimple: mode != BlobNoSimple,
	}
}

// IsSimpleBlock reports whether the blob currently holds the simple form.
func (b *BlockBlob) IsSimpleBlock() bool {
	return b.useSimple
}

// Simple returns the held simple block, if that is the current form.
func (b *BlockBlob) Simple() (*SimpleBlock, bool) {
	if !b.useSimple {
		return nil, false
	}
	b.ensureVariant()
	return b.simple, true
}

// Group returns the held block group, if that is the current form.
func (b *BlockBlob) Group() (*BlockGroup, bool) {
	if b.useSimple {
		return nil, false
	}
	b.ensureVariant()
	return b.group, true
}

func (b *BlockBlob) ensureVariant() {
	switch {
	case b.useSimple && b.simple == nil:
		b.simple = NewSimpleBlock()
		if b.parent != nil {
			b.simple.SetParent(b.parent)
		}
	case !b.useSimple && b.group == nil:
		b.group = NewBlockGroup()
		if b.parent != nil {
			b.group.SetParent(b.parent)
		}
	}
}

// AddFrameAuto appends a frame, upgrading the blob from the simple form to
// the group form when references are supplied. The upgrade discards frames
// accumulated in the simple form.
func (b *BlockBlob) AddFrameAuto(track TrackRef, timestamp uint64, buf *FrameBuffer, lacing Lacing, past, forward *BlockBlob) error {
	if b.useSimple && past == nil && forward == nil {
		b.ensureVariant()
		return b.simple.AddFrame(track, timestamp, buf, lacing, false)
	}
	if b.useSimple {
		if b.mode == BlobAlwaysSimple {
			return ErrReferenceNotAllowed
		}
		b.ReplaceSimpleByGroup()
	}
	b.ensureVariant()
	return b.group.AddFrameWithBlobRefs(track, timestamp, buf, past, forward, lacing)
}

// ReplaceSimpleByGroup switches the blob to the group form in place. The
// transition is one way: the simple block content is dropped and the caller
// is responsible for re-adding accumulated state.
func (b *BlockBlob) ReplaceSimpleByGroup() {
	if !b.useSimple {
		return
	}
	if b.simple != nil {
		b.simple.ReleaseFrames()
		b.simple = nil
	}
	b.useSimple = false
	b.ensureVariant()
}

// SetBlockDuration stores an explicit duration, upgrading to the group form
// when needed.
func (b *BlockBlob) SetBlockDuration(duration uint64) error {
	if b.useSimple {
		if b.mode == BlobAlwaysSimple {
			return ErrReferenceNotAllowed
		}
		b.ReplaceSimpleByGroup()
	}
	b.ensureVariant()
	b.group.SetBlockDuration(duration)
	return nil
}

// SetParent binds the owning cluster on whichever variant the blob holds,
// now and after later upgrades.
func (b *BlockBlob) SetParent(cluster ClusterRef) error {
	b.parent = cluster
	if b.useSimple {
		if b.simple != nil {
			return b.simple.SetParent(cluster)
		}
		return nil
	}
	b.ensureVariant()
	return b.group.SetParent(cluster)
}

// Render writes whichever element the blob holds.
func (b *BlockBlob) Render(w *ebmlio.Writer) (int64, error) {
	b.ensureVariant()
	if b.useSimple {
		return b.simple.Render(w)
	}
	return b.group.Render(w)
}

// NumberFrames returns the frame count of the held variant.
func (b *BlockBlob) NumberFrames() int {
	if b.useSimple {
		if b.simple == nil {
			return 0
		}
		return b.simple.NumberFrames()
	}
	if b.group == nil {
		return 0
	}
	return b.group.InternalBlock().NumberFrames()
}

// ReleaseFrames releases the frames of the held variant.
func (b *BlockBlob) ReleaseFrames() {
	if b.useSimple {
		if b.simple != nil {
			b.simple.ReleaseFrames()
		}
		return
	}
	if b.group != nil {
		b.group.ReleaseFrames()
	}
}

// baseTimestamp resolves through the blob to the base timestamp of the held
// block, used when encoding references against another blob.
func (b *BlockBlob) baseTimestamp() uint64 {
	if b.useSimple {
		if b.simple == nil {
			return 0
		}
		return b.simple.timestamp
	}
	if b.group == nil {
		return 0
	}
	return b.group.baseTimestamp()
}
