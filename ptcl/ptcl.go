// Copyright 2022 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package ptcl describes the per-tile command list, the intermediate
// format between the coarse and fine rasterization stages.
//
// The PTCL buffer is an array of little-endian 32-bit words in two
// regions: a static region of InitialAlloc words per tile, statically
// partitioned in tile order, followed by a bump-allocated pool of
// Increment-word blocks. Every tile's command stream starts at
// tile_ix*InitialAlloc; TagJump commands chain blocks, and TagEnd
// terminates the stream.
package ptcl

import (
	"fmt"
	"math"
)

// Layout constants of the command buffer.
const (
	// InitialAlloc is the size in words of each tile's static block.
	InitialAlloc = 64
	// Increment is the size in words of each bump-allocated block.
	Increment = 256
	// Headroom is the number of words reserved at the end of each block
	// so that the terminating jump always fits.
	Headroom = 2
)

// Tag identifies a command in a tile's stream.
type Tag uint32

const (
	TagEnd    Tag = 0
	TagFill   Tag = 1
	TagStroke Tag = 2
	TagSolid  Tag = 3
	TagColor  Tag = 5
	TagJump   Tag = 11
)

func (t Tag) String() string {
	switch t {
	case TagEnd:
		return "end"
	case TagFill:
		return "fill"
	case TagStroke:
		return "stroke"
	case TagSolid:
		return "solid"
	case TagColor:
		return "color"
	case TagJump:
		return "jump"
	default:
		return fmt.Sprintf("Tag(%d)", uint32(t))
	}
}

// words returns the payload width of the command including the tag word.
// Jump and end are handled separately by the decoder.
func (t Tag) words() (uint32, bool) {
	switch t {
	case TagFill, TagStroke:
		return 3, true
	case TagSolid:
		return 1, true
	case TagColor:
		return 2, true
	default:
		return 0, false
	}
}

// Command is one decoded draw command. Only the fields of the command's
// tag are meaningful.
type Command struct {
	Tag Tag
	// Segment list head (TagFill, TagStroke).
	Segments uint32
	// Winding number at the tile's left edge (TagFill).
	Backdrop int32
	// Half the stroke width (TagStroke).
	HalfWidth float32
	// Packed premultiplied RGBA (TagColor).
	RGBA uint32
}

// DecodeTile decodes the command stream of one tile, following jumps. It
// returns the draw commands in stream order; jump and end records are
// consumed, not returned. Unknown tags and streams that run off the
// buffer or do not terminate are errors.
func DecodeTile(buf []uint32, tileIx uint32) ([]Command, error) {
	var cmds []Command
	ix := tileIx * InitialAlloc
	// A stream can occupy at most the whole buffer; anything longer must
	// be cyclic.
	for steps := 0; steps <= len(buf); steps++ {
		if ix >= uint32(len(buf)) {
			return nil, fmt.Errorf("ptcl: stream of tile %d ran off the buffer at %d", tileIx, ix)
		}
		tag := Tag(buf[ix])
		switch tag {
		case TagEnd:
			return cmds, nil
		case TagJump:
			if ix+1 >= uint32(len(buf)) {
				return nil, fmt.Errorf("ptcl: truncated jump at %d", ix)
			}
			ix = buf[ix+1]
		default:
			n, ok := tag.words()
			if !ok {
				return nil, fmt.Errorf("ptcl: unknown tag %d at %d", uint32(tag), ix)
			}
			if ix+n > uint32(len(buf)) {
				return nil, fmt.Errorf("ptcl: truncated %v at %d", tag, ix)
			}
			cmd := Command{Tag: tag}
			switch tag {
			case TagFill:
				cmd.Segments = buf[ix+1]
				cmd.Backdrop = int32(buf[ix+2])
			case TagStroke:
				cmd.Segments = buf[ix+1]
				cmd.HalfWidth = math.Float32frombits(buf[ix+2])
			case TagColor:
				cmd.RGBA = buf[ix+1]
			}
			cmds = append(cmds, cmd)
			ix += n
		}
	}
	return nil, fmt.Errorf("ptcl: stream of tile %d does not terminate", tileIx)
}
