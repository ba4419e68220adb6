// Copyright 2022 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"structs"
)

// Path is a draw object's tile rectangle: its bounding box in tile
// coordinates and the base index of its tiles in the global tile buffer.
// The row stride of the rectangle is Bbox[2] - Bbox[0].
type Path struct {
	_ structs.HostLayout

	Bbox  [4]uint32
	Tiles uint32
	_     [3]uint32
}

// LineSoup is an unordered line segment in pixel coordinates, tagged with
// the draw object it belongs to.
type LineSoup struct {
	_ structs.HostLayout

	PathIdx uint32
	_       uint32 // padding
	P0      [2]float32
	P1      [2]float32
}

// PathSegment is a line segment assigned to a single tile. Segments of one
// tile form an intrusive singly-linked list through Next; index 0
// terminates the list (and is therefore never a valid segment slot).
//
// Origin and Delta are in pixel coordinates. YEdge is the y coordinate at
// which the segment crosses the tile's left edge, or 1e9 if it does not
// cross it.
type PathSegment struct {
	_ structs.HostLayout

	Origin [2]float32
	Delta  [2]float32
	YEdge  float32
	Next   uint32
}

// Tile is one 16×16-pixel tile of a path. Backdrop is the winding number
// at the tile's left edge; Segments heads the segment list. A tile with
// Segments == 0 and Backdrop == 0 is empty.
type Tile struct {
	_ structs.HostLayout

	Backdrop int32
	Segments uint32
}
