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

// Package blockmux implements the frame container layer of a Matroska style
// multimedia stream: frame buffers with explicit ownership, blocks packing
// one or more frames of a single track with lacing, block groups carrying
// frame dependency references and durations, and the economy wrapper a
// multiplexer uses to pick the cheaper encoding per frame.
//
// Track, cluster and segment level multiplexing live above this package;
// blocks reach their cluster and track only through the non-owning ClusterRef
// and TrackRef handles.
package blockmux
