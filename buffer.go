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

// ReleaseFunc is called once when a borrowed frame buffer is released.
// It receives the base allocation backing the buffer, which for an offset
// view is the full original slice, not the offset view.
type ReleaseFunc func(base []byte)

// FrameBuffer is a byte span with an ownership policy. A borrowed buffer
// keeps pointing at caller memory and may carry a release callback; an owned
// buffer copies the bytes at construction time. The underlying storage is
// released at most once.
type FrameBuffer struct {
	data    []byte // visible span
	base    []byte // backing allocation, differs from data for offset views
	size    int
	valid   bool
	owned   bool
	release ReleaseFunc
}

// NewBuffer returns a borrowed buffer over data. The optional release
// callback runs once when the buffer is released.
func NewBuffer(data []byte, release ReleaseFunc) *FrameBuffer {
	return &FrameBuffer{
		data:    data,
		base:    data,
		size:    len(data),
		valid:   true,
		release: release,
	}
}

// NewOwnedBuffer returns a buffer holding its own copy of data.
func NewOwnedBuffer(data []byte) *FrameBuffer {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &FrameBuffer{
		data:  cp,
		base:  cp,
		size:  len(cp),
		valid: true,
		owned: true,
	}
}

// NewOffsetBuffer returns a borrowed view starting at offset into base.
// Releasing the view passes the base allocation, not the offset span, to the
// release callback.
func NewOffsetBuffer(base []byte, offset int, release ReleaseFunc) *FrameBuffer {
	return &FrameBuffer{
		data:    base[offset:],
		base:    base,
		size:    len(base) - offset,
		valid:   true,
		release: release,
	}
}

// Bytes returns the visible span. It panics if the buffer has been released.
func (b *FrameBuffer) Bytes() []byte {
	if !b.valid {
		panic("blockmux: access to released frame buffer")
	}
	return b.data[:b.size]
}

// Size returns the span length in bytes. Zero after release.
func (b *FrameBuffer) Size() int {
	return b.size
}

// Valid reports whether the buffer still holds usable storage.
func (b *FrameBuffer) Valid() bool {
	return b.valid
}

// Release frees the buffer storage. It is idempotent: the release callback
// runs at most once, and after the first call the size is zero and the
// buffer is invalid.
func (b *FrameBuffer) Release() {
	if !b.valid || b.data == nil {
		return
	}
	if b.release != nil {
		b.release(b.base)
	}
	b.data = nil
	b.base = nil
	b.size = 0
	b.valid = false
}

// Clone returns an independent handle over the same storage with its own
// release policy and validity. The base allocation pointer is preserved so a
// clone of an offset view still releases the original allocation.
func (b *FrameBuffer) Clone() *FrameBuffer {
	c := *b
	return &c
}
