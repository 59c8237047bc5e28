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

// virtualBlockSize is the fixed payload size of a virtual block: track
// number vint, 16 bit relative timestamp and flags byte, zero padded.
const virtualBlockSize = 5

// VirtualBlock is a fixed size placeholder record referencing frame data
// stored outside the normal frame stream. It shares the block header layout
// but has no frames, no lacing and no buffer ownership.
type VirtualBlock struct {
	timestamp      uint64
	localTimestamp int16
	trackNumber    uint64
	parent         ClusterRef
}

func NewVirtualBlock() *VirtualBlock {
	return &VirtualBlock{}
}

// SetTrackNumber sets the referenced track.
func (v *VirtualBlock) SetTrackNumber(track uint64) {
	v.trackNumber = track
}

func (v *VirtualBlock) TrackNum() uint64 {
	return v.trackNumber
}

// SetTimestamp sets the absolute, unscaled timestamp of the referenced data.
func (v *VirtualBlock) SetTimestamp(timestamp uint64) {
	v.timestamp = timestamp
}

func (v *VirtualBlock) Timestamp() uint64 {
	return v.timestamp
}

func (v *VirtualBlock) GetRelativeTimestamp() int16 {
	return v.localTimestamp
}

// SetParent binds the owning cluster and fixes the relative timestamp.
func (v *VirtualBlock) SetParent(cluster ClusterRef) error {
	delta := (int64(v.timestamp) - int64(cluster.GlobalTimestamp())) / clusterScale(cluster)
	if delta < -32768 || delta > 32767 {
		return ErrTimestampRange
	}
	v.localTimestamp = int16(delta)
	v.parent = cluster
	return nil
}

// UpdateSize returns the declared payload size, always the fixed size.
func (v *VirtualBlock) UpdateSize() (int64, error) {
	if ebmlio.CodedSizeLength(v.trackNumber)+3 > virtualBlockSize {
		return 0, fmt.Errorf("track number %d does not fit virtual block", v.trackNumber)
	}
	return virtualBlockSize, nil
}

// RenderData writes the fixed payload: track number vint, relative
// timestamp and a zero flags byte, padded to the fixed size.
func (v *VirtualBlock) RenderData(w *ebmlio.Writer) (int64, error) {
	if _, err := v.UpdateSize(); err != nil {
		return 0, err
	}
	payload, err := ebmlio.AppendVInt(nil, v.trackNumber)
	if err != nil {
		return 0, err
	}
	payload = append(payload, byte(uint16(v.localTimestamp)>>8), byte(uint16(v.localTimestamp)))
	payload = append(payload, 0) // flags, no lacing
	for len(payload) < virtualBlockSize {
		payload = append(payload, 0)
	}
	n, err := w.Write(payload)
	return int64(n), err
}

// Render writes the full BlockVirtual element.
func (v *VirtualBlock) Render(w *ebmlio.Writer) (int64, error) {
	start := w.Position()
	if _, err := w.WriteElementID(ebmlio.IDBlockVirtual); err != nil {
		return w.Position() - start, err
	}
	if _, err := w.WriteVInt(virtualBlockSize); err != nil {
		return w.Position() - start, err
	}
	if _, err := v.RenderData(w); err != nil {
		return w.Position() - start, err
	}
	return w.Position() - start, nil
}

// ReadData validates the declared size and decodes the fixed payload. Any
// trailing bytes beyond the fixed size are discarded.
func (v *VirtualBlock) ReadData(r *ebmlio.Reader, size int64) error {
	if size < virtualBlockSize {
		return fmt.Errorf("%w: virtual block size %d below %d", ErrMalformedBlock, size, virtualBlockSize)
	}
	track, n, err := r.ReadVInt()
	if err != nil {
		return err
	}
	consumed := int64(n)
	if consumed+3 > virtualBlockSize {
		return fmt.Errorf("%w: virtual block track number too long", ErrMalformedBlock)
	}
	hi, err := r.ReadByte()
	if err != nil {
		return err
	}
	lo, err := r.ReadByte()
	if err != nil {
		return err
	}
	consumed += 2
	if err := r.Skip(size - consumed); err != nil {
		return err
	}
	v.trackNumber = track
	v.localTimestamp = int16(uint16(hi)<<8 | uint16(lo))
	return nil
}
