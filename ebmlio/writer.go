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

// Writer wraps an io.Writer and tracks the absolute stream position.
// I/O errors of the underlying writer are returned unchanged.
type Writer struct {
	w   io.Writer
	pos int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Position returns the number of bytes written so far.
func (w *Writer) Position() int64 {
	return w.pos
}

func (w *Writer) Write(b []byte) (int, error) {
	n, err := w.w.Write(b)
	w.pos += int64(n)
	return n, err
}

// WriteVInt writes v as an unsigned variable length integer.
func (w *Writer) WriteVInt(v uint64) (int, error) {
	b, err := AppendVInt(nil, v)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

// WriteVIntSigned writes v as a signed variable length integer.
func (w *Writer) WriteVIntSigned(v int64) (int, error) {
	b, err := AppendVIntSigned(nil, v)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

// WriteElementID writes an element identifier including its marker bits.
func (w *Writer) WriteElementID(id uint32) (int, error) {
	return w.Write(AppendElementID(nil, id))
}

// WriteInt16 writes v big endian.
func (w *Writer) WriteInt16(v int16) (int, error) {
	return w.Write([]byte{byte(uint16(v) >> 8), byte(uint16(v))})
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	_, err := w.Write([]byte{b})
	return err
}
