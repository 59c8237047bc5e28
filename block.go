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
	"math"

	"github.com/seqmedia/blockmux/ebmlio"
)

// minBlockSize is the smallest valid block payload: a one byte track number,
// the 16 bit relative timestamp and the flags byte.
const minBlockSize = 4

// block is the encoding and decoding engine shared by Block and SimpleBlock.
// It holds the ordered frame list, the track number, the base timestamp of
// the first frame (unscaled) and the signed 16 bit timestamp relative to the
// owning cluster.
type block struct {
	simple bool

	buffers []*FrameBuffer
	sizes   []int32

	timestamp          uint64
	localTimestamp     int16
	localTimestampUsed bool
	trackNumber        uint64
	lacing             Lacing
	invisible          bool
	keyframe           bool
	discardable        bool

	parent ClusterRef

	elementPosition    int64 // stream offset of the element, -1 until rendered
	firstFrameLocation int64 // stream offset of the first frame, -1 until rendered or read
	totalSize          int64 // declared payload size from UpdateSize or ReadData
}

func newBlock(simple bool) block {
	return block{
		simple:             simple,
		keyframe:           simple, // extended layout defaults to keyframe
		lacing:             LacingAuto,
		elementPosition:    -1,
		firstFrameLocation: -1,
	}
}

func clusterScale(c ClusterRef) int64 {
	if s := int64(c.GlobalTimestampScale()); s != 0 {
		return s
	}
	return 1
}

func trackScale(t TrackRef) int64 {
	if s := int64(t.GlobalTimestampScale()); s != 0 {
		return s
	}
	return 1
}

// AddFrame appends one frame to the block. The first frame fixes the track
// number and the base timestamp; every following frame must carry the same
// track number and a timestamp within the signed 16 bit range of the base.
// On failure no state is changed.
func (b *block) AddFrame(track TrackRef, timestamp uint64, buf *FrameBuffer, lacing Lacing, invisible bool) error {
	if buf == nil || !buf.Valid() {
		return ErrInvalidBuffer
	}
	if len(b.buffers) >= maxLaceFrames {
		return ErrTooManyFrames
	}
	if len(b.buffers) == 0 {
		local := int16(0)
		used := false
		if b.parent != nil {
			delta := (int64(timestamp) - int64(b.parent.GlobalTimestamp())) / clusterScale(b.parent)
			if delta < math.MinInt16 || delta > math.MaxInt16 {
				return ErrTimestampRange
			}
			local, used = int16(delta), true
		}
		b.timestamp = timestamp
		b.trackNumber = track.TrackNumber()
		b.localTimestamp = local
		b.localTimestampUsed = used
	} else {
		if track.TrackNumber() != b.trackNumber {
			return ErrTrackMismatch
		}
		delta := (int64(timestamp) - int64(b.timestamp)) / trackScale(track)
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return ErrTimestampRange
		}
	}
	b.lacing = lacing
	b.invisible = invisible
	b.buffers = append(b.buffers, buf)
	b.sizes = append(b.sizes, int32(buf.Size()))
	return nil
}

// SetParent binds the owning cluster. When frames are already present, the
// block relative timestamp is computed from the cluster base timestamp.
func (b *block) SetParent(cluster ClusterRef) error {
	if len(b.buffers) > 0 && !b.localTimestampUsed {
		delta := (int64(b.timestamp) - int64(cluster.GlobalTimestamp())) / clusterScale(cluster)
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return ErrTimestampRange
		}
		b.localTimestamp = int16(delta)
		b.localTimestampUsed = true
	}
	b.parent = cluster
	return nil
}

// NumberFrames returns the number of frames held by the block.
func (b *block) NumberFrames() int {
	return len(b.sizes)
}

// GetBuffer returns the i-th frame buffer.
func (b *block) GetBuffer(i int) *FrameBuffer {
	return b.buffers[i]
}

// TrackNum returns the block track number.
func (b *block) TrackNum() uint64 {
	return b.trackNumber
}

// IsInvisible reports the invisibility flag.
func (b *block) IsInvisible() bool {
	return b.invisible
}

// GetRelativeTimestamp returns the timestamp as written in the block, the
// unscaled delta to the owning cluster base timestamp.
func (b *block) GetRelativeTimestamp() int16 {
	return b.localTimestamp
}

// GlobalTimestamp returns the absolute timestamp of the block first frame.
// It panics if no parent cluster has been set.
func (b *block) GlobalTimestamp() uint64 {
	if b.parent == nil {
		panic("blockmux: block has no parent cluster")
	}
	if b.localTimestampUsed {
		return uint64(int64(b.parent.GlobalTimestamp()) + int64(b.localTimestamp)*clusterScale(b.parent))
	}
	return b.timestamp
}

// ClusterPosition returns the byte offset of the block element inside its
// cluster, or -1 before a successful render. It panics if no parent cluster
// has been set.
func (b *block) ClusterPosition() int64 {
	if b.parent == nil {
		panic("blockmux: block has no parent cluster")
	}
	if b.elementPosition < 0 {
		return -1
	}
	return b.elementPosition - int64(b.parent.Position())
}

// GetFrameSize returns the size of a given frame, or -1 if it does not
// exist.
func (b *block) GetFrameSize(i int) int64 {
	if i < 0 || i >= len(b.sizes) {
		return -1
	}
	return int64(b.sizes[i])
}

// GetDataPosition returns the stream position of a given frame, or -1 if the
// block has not been rendered or read yet.
func (b *block) GetDataPosition(i int) int64 {
	if b.firstFrameLocation < 0 || i < 0 || i >= len(b.sizes) {
		return -1
	}
	pos := b.firstFrameLocation
	for j := 0; j < i; j++ {
		pos += int64(b.sizes[j])
	}
	return pos
}

// ReleaseFrames releases every held frame buffer. The frame metadata is
// kept, so size and position queries stay valid after the frame memory is
// freed. Releasing twice is a no-op.
func (b *block) ReleaseFrames() {
	for _, buf := range b.buffers {
		buf.Release()
	}
}

// GetBestLacingType returns the lacing producing the smallest size table for
// the current frame set. When any frame no longer has addressable bytes the
// choice falls back to no lacing.
func (b *block) GetBestLacingType() Lacing {
	if len(b.buffers) <= 1 {
		return LacingNone
	}
	for _, buf := range b.buffers {
		if !buf.Valid() {
			return LacingNone
		}
	}
	return bestLacing(b.sizes)
}

// UpdateSize resolves the lacing mode and recomputes the declared payload
// size: header, lace size table and raw frame bytes. It must succeed before
// any byte is written.
func (b *block) UpdateSize() (int64, error) {
	if len(b.buffers) == 0 {
		return 0, ErrNoFrames
	}
	lacing := b.lacing
	if lacing == LacingAuto {
		lacing = b.GetBestLacingType()
	}
	if len(b.buffers) == 1 {
		lacing = LacingNone
	}
	switch {
	case lacing == LacingNone && len(b.buffers) > 1:
		return 0, ErrLacingRequired
	case lacing == LacingFixed:
		for _, s := range b.sizes[1:] {
			if s != b.sizes[0] {
				return 0, ErrFixedLaceSize
			}
		}
	}
	size := int64(ebmlio.CodedSizeLength(b.trackNumber)) + 2 + 1
	if lacing != LacingNone {
		size += 1 + int64(laceTableSize(lacing, b.sizes))
	}
	for _, s := range b.sizes {
		size += int64(s)
	}
	b.lacing = lacing
	b.totalSize = size
	return size, nil
}

func (b *block) flagsByte() byte {
	flags := byte(b.lacing) << flagLacingShift
	if b.invisible {
		flags |= flagInvisible
	}
	if b.simple {
		if b.keyframe {
			flags |= flagKeyframe
		}
		if b.discardable {
			flags |= flagDiscardable
		}
	}
	return flags
}

// RenderData writes the block payload: track number vint, relative
// timestamp, flags byte, lace size table and the concatenated frame bytes.
func (b *block) RenderData(w *ebmlio.Writer) (int64, error) {
	if _, err := b.UpdateSize(); err != nil {
		return 0, err
	}
	if !b.localTimestampUsed {
		if b.parent == nil {
			return 0, ErrNoParent
		}
		if err := b.SetParent(b.parent); err != nil {
			return 0, err
		}
	}
	for _, buf := range b.buffers {
		if !buf.Valid() {
			return 0, ErrInvalidBuffer
		}
	}
	start := w.Position()
	if _, err := w.WriteVInt(b.trackNumber); err != nil {
		return w.Position() - start, err
	}
	if _, err := w.WriteInt16(b.localTimestamp); err != nil {
		return w.Position() - start, err
	}
	if err := w.WriteByte(b.flagsByte()); err != nil {
		return w.Position() - start, err
	}
	if b.lacing != LacingNone {
		if err := b.renderLaceTable(w); err != nil {
			return w.Position() - start, err
		}
	}
	b.firstFrameLocation = w.Position()
	for _, buf := range b.buffers {
		if _, err := w.Write(buf.Bytes()); err != nil {
			return w.Position() - start, err
		}
	}
	return w.Position() - start, nil
}

func (b *block) renderLaceTable(w *ebmlio.Writer) error {
	if err := w.WriteByte(byte(len(b.sizes))); err != nil {
		return err
	}
	switch b.lacing {
	case LacingXiph:
		for _, s := range b.sizes[:len(b.sizes)-1] {
			for s >= 255 {
				if err := w.WriteByte(0xFF); err != nil {
					return err
				}
				s -= 255
			}
			if err := w.WriteByte(byte(s)); err != nil {
				return err
			}
		}
	case LacingEBML:
		if _, err := w.WriteVInt(uint64(b.sizes[0])); err != nil {
			return err
		}
		for i := 1; i < len(b.sizes)-1; i++ {
			if _, err := w.WriteVIntSigned(int64(b.sizes[i]) - int64(b.sizes[i-1])); err != nil {
				return err
			}
		}
	}
	return nil
}

// render writes the full element: identifier, declared size and payload.
func (b *block) render(w *ebmlio.Writer, id uint32) (int64, error) {
	size, err := b.UpdateSize()
	if err != nil {
		return 0, err
	}
	start := w.Position()
	if _, err := w.WriteElementID(id); err != nil {
		return w.Position() - start, err
	}
	if _, err := w.WriteVInt(uint64(size)); err != nil {
		return w.Position() - start, err
	}
	if _, err := b.RenderData(w); err != nil {
		return w.Position() - start, err
	}
	b.elementPosition = start
	return w.Position() - start, nil
}

type blockHead struct {
	trackNumber    uint64
	localTimestamp int16
	flags          byte
	lacing         Lacing
	consumed       int64
}

func readBlockHead(r *ebmlio.Reader, size int64) (blockHead, error) {
	var h blockHead
	if size < minBlockSize {
		return h, fmt.Errorf("%w: element size %d below minimum %d", ErrMalformedBlock, size, minBlockSize)
	}
	track, n, err := r.ReadVInt()
	if err != nil {
		return h, err
	}
	h.consumed = int64(n)
	hi, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	lo, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	h.consumed += 3
	if h.consumed > size {
		return h, fmt.Errorf("%w: header exceeds element size %d", ErrMalformedBlock, size)
	}
	h.trackNumber = track
	h.localTimestamp = int16(uint16(hi)<<8 | uint16(lo))
	h.flags = flags
	h.lacing = Lacing((flags & flagLacingMask) >> flagLacingShift)
	return h, nil
}

// ReadInternalHead reads only the fixed block header without materializing
// frame payloads, for fast structural scans. It returns the number of bytes
// consumed.
func (b *block) ReadInternalHead(r *ebmlio.Reader, size int64) (int64, error) {
	h, err := readBlockHead(r, size)
	if err != nil {
		return h.consumed, err
	}
	b.applyHead(h)
	return h.consumed, nil
}

func (b *block) applyHead(h blockHead) {
	b.trackNumber = h.trackNumber
	b.localTimestamp = h.localTimestamp
	b.localTimestampUsed = true
	b.lacing = h.lacing
	b.invisible = h.flags&flagInvisible != 0
	if b.simple {
		b.keyframe = h.flags&flagKeyframe != 0
		b.discardable = h.flags&flagDiscardable != 0
	}
}

// ReadData decodes a block payload of the declared size: header, lace size
// table and per frame spans. The decoded frames are borrowed views into the
// read payload. On failure the block is left unchanged.
func (b *block) ReadData(r *ebmlio.Reader, size int64) error {
	h, err := readBlockHead(r, size)
	if err != nil {
		return err
	}
	remaining := size - h.consumed

	frameCount := 1
	var sizes []int32
	if h.lacing != LacingNone {
		cnt, err := r.ReadByte()
		if err != nil {
			return err
		}
		remaining--
		if cnt == 0 {
			return fmt.Errorf("%w: zero lace count", ErrMalformedBlock)
		}
		frameCount = int(cnt)
		sizes, remaining, err = readLaceSizes(r, h.lacing, frameCount, remaining)
		if err != nil {
			return err
		}
	} else {
		if remaining < 0 {
			return fmt.Errorf("%w: negative payload", ErrMalformedBlock)
		}
		sizes = []int32{int32(remaining)}
	}

	payload := make([]byte, remaining)
	firstFrameLocation := r.Position()
	if err := r.ReadFull(payload); err != nil {
		return err
	}

	buffers := make([]*FrameBuffer, 0, frameCount)
	off := 0
	for _, s := range sizes {
		buffers = append(buffers, NewBuffer(payload[off:off+int(s)], nil))
		off += int(s)
	}

	b.applyHead(h)
	b.buffers = buffers
	b.sizes = sizes
	b.totalSize = size
	b.firstFrameLocation = firstFrameLocation
	return nil
}

// readLaceSizes decodes the size table for frameCount frames and returns the
// full per frame size list including the inferred last size, together with
// the payload bytes remaining after the table. Sizes are decoded as int64 and
// checked against the remaining payload before narrowing to int32.
func readLaceSizes(r *ebmlio.Reader, lacing Lacing, frameCount int, remaining int64) ([]int32, int64, error) {
	laced := make([]int64, 0, frameCount)
	switch lacing {
	case LacingXiph:
		for i := 0; i < frameCount-1; i++ {
			var s int64
			for {
				if remaining <= 0 {
					return nil, 0, fmt.Errorf("%w: lace size table exceeds payload", ErrMalformedBlock)
				}
				c, err := r.ReadByte()
				if err != nil {
					return nil, 0, err
				}
				remaining--
				s += int64(c)
				if c != 0xFF {
					break
				}
			}
			if s > remaining {
				return nil, 0, fmt.Errorf("%w: laced frame size %d exceeds payload %d", ErrMalformedBlock, s, remaining)
			}
			laced = append(laced, s)
		}
	case LacingEBML:
		var last int64
		for i := 0; i < frameCount-1; i++ {
			if remaining <= 0 {
				return nil, 0, fmt.Errorf("%w: lace size table exceeds payload", ErrMalformedBlock)
			}
			var n int
			if i == 0 {
				first, m, err := r.ReadVInt()
				if err != nil {
					return nil, 0, err
				}
				last, n = int64(first), m
			} else {
				delta, m, err := r.ReadVIntSigned()
				if err != nil {
					return nil, 0, err
				}
				last, n = last+delta, m
			}
			remaining -= int64(n)
			if remaining < 0 {
				return nil, 0, fmt.Errorf("%w: lace size table exceeds payload", ErrMalformedBlock)
			}
			if last < 0 || last > remaining {
				return nil, 0, fmt.Errorf("%w: laced frame size %d out of payload range %d", ErrMalformedBlock, last, remaining)
			}
			laced = append(laced, last)
		}
	case LacingFixed:
		if remaining <= 0 || remaining%int64(frameCount) != 0 {
			return nil, 0, fmt.Errorf("%w: fixed lace payload %d not divisible by %d frames", ErrMalformedBlock, remaining, frameCount)
		}
		each := remaining / int64(frameCount)
		if each > math.MaxInt32 {
			return nil, 0, fmt.Errorf("%w: laced frame size %d exceeds limit", ErrMalformedBlock, each)
		}
		sizes := make([]int32, frameCount)
		for i := range sizes {
			sizes[i] = int32(each)
		}
		return sizes, remaining, nil
	}
	// The last frame size is inferred from the element length.
	var sum int64
	for _, s := range laced {
		sum += s
	}
	if sum > remaining {
		return nil, 0, fmt.Errorf("%w: laced sizes %d exceed payload %d", ErrMalformedBlock, sum, remaining)
	}
	laced = append(laced, remaining-sum)
	sizes := make([]int32, len(laced))
	for i, s := range laced {
		if s > math.MaxInt32 {
			return nil, 0, fmt.Errorf("%w: laced frame size %d exceeds limit", ErrMalformedBlock, s)
		}
		sizes[i] = int32(s)
	}
	return sizes, remaining, nil
}
