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
	"errors"
)

var (
	// ErrInvalidBuffer is returned when a frame is appended with a nil or
	// released buffer.
	ErrInvalidBuffer = errors.New("invalid frame buffer")
	// ErrTrackMismatch is returned when a frame is appended with a track
	// number differing from the block's fixed track number.
	ErrTrackMismatch = errors.New("track number mismatch")
	// ErrTimestampRange is returned when a frame timestamp does not fit in
	// the signed 16 bit range relative to the block's base timestamp.
	ErrTimestampRange = errors.New("timestamp out of signed 16 bit range")
	// ErrTooManyFrames is returned when a block already holds the maximum
	// number of laced frames.
	ErrTooManyFrames = errors.New("too many frames in lace")
	// ErrNoFrames is returned when rendering a block without frames.
	ErrNoFrames = errors.New("no frames in block")
	// ErrNoParent is returned when an operation needs the owning cluster but
	// no parent has been set.
	ErrNoParent = errors.New("no parent cluster")
	// ErrFixedLaceSize is returned when fixed size lacing is requested for
	// frames of differing sizes.
	ErrFixedLaceSize = errors.New("fixed lacing with unequal frame sizes")
	// ErrLacingRequired is returned when multiple frames are rendered with
	// lacing explicitly disabled.
	ErrLacingRequired = errors.New("multiple frames require lacing")
	// ErrReferenceNotAllowed is returned when a reference frame is added to
	// a wrapper locked to the simple block form.
	ErrReferenceNotAllowed = errors.New("reference not allowed in simple block mode")
	// ErrMalformedBlock is returned, possibly wrapped, when decoding a block
	// whose binary layout is inconsistent.
	ErrMalformedBlock = errors.New("malformed block")
)
