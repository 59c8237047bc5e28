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

// Block is the minimal block layout: no per block keyframe or discardable
// flags. It is the layout wrapped by a BlockGroup.
type Block struct {
	block
}

func NewBlock() *Block {
	return &Block{block: newBlock(false)}
}

// Render writes the full Block element to w.
func (b *Block) Render(w *ebmlio.Writer) (int64, error) {
	return b.render(w, ebmlio.IDBlock)
}

// SimpleBlock is the extended block layout carrying keyframe and discardable
// flags in addition to the minimal layout.
type SimpleBlock struct {
	block
}

func NewSimpleBlock() *SimpleBlock {
	return &SimpleBlock{block: newBlock(true)}
}

// SetKeyframe sets the keyframe flag written at render time. Default true.
func (b *SimpleBlock) SetKeyframe(keyframe bool) {
	b.keyframe = keyframe
}

// SetDiscardable sets the discardable flag written at render time.
// Default false.
func (b *SimpleBlock) SetDiscardable(discardable bool) {
	b.discardable = discardable
}

func (b *SimpleBlock) IsKeyframe() bool {
	return b.keyframe
}

func (b *SimpleBlock) IsDiscardable() bool {
	return b.discardable
}

// Render writes the full SimpleBlock element to w.
func (b *SimpleBlock) Render(w *ebmlio.Writer) (int64, error) {
	return b.render(w, ebmlio.IDSimpleBlock)
}
