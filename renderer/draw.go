// Copyright 2022 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"structs"

	"honnef.co/go/mondrian/encoding"
)

// DrawMonoid locates a draw object's path and auxiliary data. The fields
// are exclusive prefix sums over the draw tag stream.
type DrawMonoid struct {
	_ structs.HostLayout

	// The number of paths preceding this draw object.
	PathIdx uint32
	// The number of clip operations preceding this draw object. Always
	// zero in this pipeline; carried for layout compatibility.
	ClipIdx uint32
	// The offset of the encoded draw object in the scene (u32s), relative
	// to the draw data base.
	SceneOffset uint32
	// The offset of the associated info words.
	InfoOffset uint32
}

func NewDrawMonoid(tag encoding.DrawTag) DrawMonoid {
	var pathIdx uint32
	if tag != encoding.DrawTagNop {
		pathIdx = 1
	}
	return DrawMonoid{
		PathIdx:     pathIdx,
		ClipIdx:     uint32(tag) & 1,
		SceneOffset: (uint32(tag) >> 2) & 0x7,
		InfoOffset:  (uint32(tag) >> 6) & 0xf,
	}
}

func (m DrawMonoid) Combine(other DrawMonoid) DrawMonoid {
	return DrawMonoid{
		PathIdx:     m.PathIdx + other.PathIdx,
		ClipIdx:     m.ClipIdx + other.ClipIdx,
		SceneOffset: m.SceneOffset + other.SceneOffset,
		InfoOffset:  m.InfoOffset + other.InfoOffset,
	}
}

// BinHeader describes one partition's contribution to one bin: how many
// draw object refs the partition placed in the bin and where in the bin
// data region they start.
type BinHeader struct {
	_ structs.HostLayout

	ElementCount uint32
	ChunkOffset  uint32
}
