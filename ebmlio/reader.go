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

package ebmlio

import (
	"io"
)

// Reader wraps an io.Reader and tracks the absolute stream position.
// I/O errors of the underlying reader are returned unchanged.
type Reader struct {
	r   io.Reader
	pos int64
	one [1]byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Position returns the number of bytes consumed so far.
func (r *Reader) Position() int64 {
	return r.pos
}

func (r *Reader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	r.pos += int64(n)
	return n, err
}

// ReadFull reads exactly len(b) bytes.
func (r *Reader) ReadFull(b []byte) error {
	n, err := io.ReadFull(r.r, b)
	r.pos += int64(n)
	return err
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.ReadFull(r.one[:]); err != nil {
		return 0, err
	}
	return r.one[0], nil
}

// ReadVInt reads an unsigned variable length integer and returns the value
// and its encoded length.
func (r *Reader) ReadVInt() (uint64, int, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	length := vintLength(first)
	if length == 0 {
		return 0, 0, ErrInvalidVInt
	}
	v := uint64(first & (0xFF >> length))
	for i := 1; i < length; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		v = v<<8 | uint64(b)
	}
	return v, length, nil
}

// ReadVIntSigned reads a signed variable length integer and returns the
// value and its encoded length.
func (r *Reader) ReadVIntSigned() (int64, int, error) {
	v, length, err := r.ReadVInt()
	if err != nil {
		return 0, 0, err
	}
	bias := (int64(1) << (7*length - 1)) - 1
	return int64(v) - bias, length, nil
}

// ReadElementID reads an element identifier keeping its marker bits.
func (r *Reader) ReadElementID() (uint32, int, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	length := vintLength(first)
	if length == 0 || length > 4 {
		return 0, 0, ErrInvalidVInt
	}
	id := uint32(first)
	for i := 1; i < length; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		id = id<<8 | uint32(b)
	}
	return id, length, nil
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	written, err := io.CopyN(io.Discard, r.r, n)
	r.pos += written
	return err
}
