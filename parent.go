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

// ClusterRef is a non-owning handle to the cluster that holds a block. The
// cluster registry is owned by the multiplexer; a block never manages its
// parent's lifetime.
type ClusterRef interface {
	// GlobalTimestamp returns the cluster base timestamp, already scaled
	// by the track timestamp scale.
	GlobalTimestamp() uint64
	// GlobalTimestampScale returns the scale factor between raw track
	// timestamps and container timestamps.
	GlobalTimestampScale() uint64
	// Position returns the byte offset of the cluster payload in the
	// stream, once known.
	Position() uint64
}

// TrackRef is a non-owning handle to the track entry a frame belongs to.
type TrackRef interface {
	TrackNumber() uint64
	GlobalTimestampScale() uint64
}
