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

// Package ebmlio implements the low level EBML primitives used by the block
// layer: variable length integers, element identifiers, and position tracked
// reader/writer wrappers over a byte stream.
package ebmlio

import (
	"errors"
)

// Matroska element identifiers handled by the block layer. The identifiers
// keep their EBML length marker bits.
const (
	IDBlockGroup     uint32 = 0xA0
	IDBlock          uint32 = 0xA1
	IDBlockVirtual   uint32 = 0xA2
	IDSimpleBlock    uint32 = 0xA3
	IDBlockDuration  uint32 = 0x9B
	IDReferenceBlock uint32 = 0xFB
)

var (
	// ErrInvalidVInt is returned when a variable length integer has an
	// invalid length marker.
	ErrInvalidVInt = errors.New("invalid variable length integer")
	// ErrValueTooLarge is returned when a value cannot be represented as a
	// variable length integer.
	ErrValueTooLarge = errors.New("value too large for variable length integer")
)

const maxVIntBytes = 8

// CodedSizeLength returns the number of bytes needed to encode v as an
// unsigned variable length integer. The all-ones pattern of each length is
// reserved to mean "unknown size", so a single byte holds 0..126.
func CodedSizeLength(v uint64) int {
	for length := 1; length <= maxVIntBytes; length++ {
		if v < (uint64(1)<<(7*length))-1 {
			return length
		}
	}
	return maxVIntBytes
}

// CodedSizeLengthSigned returns the number of bytes needed to encode v as a
// signed variable length integer. An n-byte signed vint covers
// -(2^(7n-1)-1)..+(2^(7n-1)-1).
func CodedSizeLengthSigned(v int64) int {
	for length := 1; length <= maxVIntBytes; length++ {
		bound := (int64(1) << (7*length - 1)) - 1
		if v >= -bound && v <= bound {
			return length
		}
	}
	return maxVIntBytes
}

// IDLength returns the encoded length in bytes of an element identifier.
func IDLength(id uint32) int {
	switch {
	case id < 0x100:
		return 1
	case id < 0x10000:
		return 2
	case id < 0x1000000:
		return 3
	default:
		return 4
	}
}

// vintLength returns the total byte length of a vint starting with first,
// or 0 if the length marker is invalid.
func vintLength(first byte) int {
	for length := 1; length <= maxVIntBytes; length++ {
		if first&(0x80>>(length-1)) != 0 {
			return length
		}
	}
	return 0
}

func appendVInt(b []byte, v uint64, length int) []byte {
	for i := length - 1; i >= 0; i-- {
		octet := byte(v >> (8 * uint(i)))
		if i == length-1 {
			octet |= 0x80 >> (length - 1)
		}
		b = append(b, octet)
	}
	return b
}

// AppendVInt appends v encoded as an unsigned variable length integer.
func AppendVInt(b []byte, v uint64) ([]byte, error) {
	length := CodedSizeLength(v)
	if v >= (uint64(1)<<(7*maxVIntBytes))-1 {
		return b, ErrValueTooLarge
	}
	return appendVInt(b, v, length), nil
}

// AppendVIntSigned appends v encoded as a signed variable length integer.
// The stored pattern is the unsigned encoding of v+(2^(7n-1)-1) for the
// chosen length n.
func AppendVIntSigned(b []byte, v int64) ([]byte, error) {
	length := CodedSizeLengthSigned(v)
	bias := (int64(1) << (7*length - 1)) - 1
	if v < -bias || v > bias {
		return b, ErrValueTooLarge
	}
	return appendVInt(b, uint64(v+bias), length), nil
}

// AppendElementID appends an element identifier. The marker bits are part of
// the identifier and are written as-is.
func AppendElementID(b []byte, id uint32) []byte {
	length := IDLength(id)
	for i := length - 1; i >= 0; i-- {
		b = append(b, byte(id>>(8*uint(i))))
	}
	return b
}
