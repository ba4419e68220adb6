// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package renderer defines the buffer layouts shared by all rasterization
// stages.
//
// These data structures mirror the GPU-side definitions word for word; the
// CPU kernels in package cpu reinterpret raw byte buffers as slices of them.
package renderer

import (
	"structs"
	"unsafe"

	"golang.org/x/exp/constraints"

	"honnef.co/go/mondrian/jmath"
)

type WorkgroupSize [3]uint32

// ConfigUniform contains uniform render configuration data used by all
// stages.
type ConfigUniform struct {
	_ structs.HostLayout

	// Width of the scene in tiles.
	WidthInTiles uint32
	// Height of the scene in tiles.
	HeightInTiles uint32
	// Width of the target in pixels.
	TargetWidth uint32
	// Height of the target in pixels.
	TargetHeight uint32
	// Layout of packed scene data.
	Layout Layout
	// Size of binning buffer allocation (in uint32s).
	BinningSize uint32
	// Size of tile buffer allocation (in [Tile]s).
	TilesSize uint32
	// Size of segment buffer allocation (in [PathSegment]s).
	SegmentsSize uint32
	// Size of per-tile command list buffer allocation (in uint32s).
	PtclSize uint32
}

type Layout struct {
	_ structs.HostLayout

	// Number of draw objects.
	NumDrawObjects uint32
	// Start of binning data in the info/bin-data buffer. The words before
	// it hold per-draw-object info.
	BinDataStart uint32
	// Start of the draw tag stream in the scene buffer.
	DrawTagBase uint32
	// Start of the draw data stream in the scene buffer.
	DrawDataBase uint32
}

// BufferEstimates sizes the bump-allocated buffers for one scene. The
// values are upper bounds computed at resolve time, not heuristics.
type BufferEstimates struct {
	// Total words of bin data across all (partition, bin) chunks.
	BinData uint32
	// Total tiles across all path tile rectangles, clamped to the
	// viewport.
	Tiles uint32
	// Upper bound on allocated path segments.
	Segments uint32
}

type RenderConfig struct {
	Gpu             ConfigUniform
	WorkgroupCounts WorkgroupCounts
	BufferSizes     BufferSizes
}

func NewRenderConfig(layout *Layout, width, height uint32, est BufferEstimates) *RenderConfig {
	newWidth := nextMultipleOf(width, tileWidth)
	newHeight := nextMultipleOf(height, tileHeight)
	widthInTiles := newWidth / tileWidth
	heightInTiles := newHeight / tileHeight
	workgroupCounts := NewWorkgroupCounts(layout, widthInTiles, heightInTiles)
	bufferSizes := NewBufferSizes(layout, &workgroupCounts, widthInTiles, heightInTiles, est)
	return &RenderConfig{
		Gpu: ConfigUniform{
			WidthInTiles:  widthInTiles,
			HeightInTiles: heightInTiles,
			TargetWidth:   width,
			TargetHeight:  height,
			Layout:        *layout,
			BinningSize:   uint32(bufferSizes.InfoBinData) - layout.BinDataStart,
			TilesSize:     uint32(bufferSizes.Tiles),
			SegmentsSize:  uint32(bufferSizes.Segments),
			PtclSize:      uint32(bufferSizes.Ptcl),
		},
		WorkgroupCounts: workgroupCounts,
		BufferSizes:     bufferSizes,
	}
}

func NewBufferSizes(
	layout *Layout,
	workgroups *WorkgroupCounts,
	widthInTiles, heightInTiles uint32,
	est BufferEstimates,
) BufferSizes {
	numDrawObjects := layout.NumDrawObjects
	numPartitions := workgroups.Binning[0]

	// Every covered tile of every draw object emits at most five command
	// words; each jump chunk additionally wastes at most the headroom plus
	// the jump itself. The slack absorbs chunk rounding.
	ptclStatic := widthInTiles * heightInTiles * ptclInitialAlloc
	ptclDyn := jmath.AlignUp32(8*est.Tiles+4096, ptclIncrement)

	return BufferSizes{
		Paths:       NewBufferSize[Path](numDrawObjects),
		DrawMonoids: NewBufferSize[DrawMonoid](numDrawObjects),
		BinHeaders:  NewBufferSize[BinHeader](numPartitions * nTile),
		InfoBinData: NewBufferSize[uint32](layout.BinDataStart + est.BinData),
		BumpAlloc:   NewBufferSize[BumpAllocators](1),
		Tiles:       NewBufferSize[Tile](est.Tiles),
		// Slot 0 of the segment buffer is the list terminator and is
		// never written.
		Segments: NewBufferSize[PathSegment](est.Segments + 1),
		Ptcl:     NewBufferSize[uint32](ptclStatic + ptclDyn),
		Output:   NewBufferSize[uint32](widthInTiles * tileWidth * heightInTiles * tileHeight),
	}
}

func NewWorkgroupCounts(layout *Layout, widthInTiles, heightInTiles uint32) WorkgroupCounts {
	numDrawObjects := layout.NumDrawObjects
	drawObjectWgs := (numDrawObjects + nTile - 1) / nTile
	widthInBins := (widthInTiles + nTileX - 1) / nTileX
	heightInBins := (heightInTiles + nTileY - 1) / nTileY
	return WorkgroupCounts{
		TileAlloc:  [3]uint32{drawObjectWgs, 1, 1},
		Binning:    [3]uint32{drawObjectWgs, 1, 1},
		PathTiling: [3]uint32{1, 1, 1},
		Backdrop:   [3]uint32{drawObjectWgs, 1, 1},
		Coarse:     [3]uint32{widthInBins, heightInBins, 1},
		Fine:       [3]uint32{widthInTiles, heightInTiles, 1},
	}
}

func nextMultipleOf[T constraints.Integer](x, y T) T {
	r := x % y
	if r == 0 {
		return x
	} else {
		return x + y - r
	}
}

const tileWidth = 16
const tileHeight = 16
const nTileX = 16
const nTileY = 16
const nTile = nTileX * nTileY
const ptclInitialAlloc = 64
const ptclIncrement = 256

type BufferSizes struct {
	// Known size buffers
	Paths       BufferSize[Path]
	DrawMonoids BufferSize[DrawMonoid]
	BinHeaders  BufferSize[BinHeader]
	BumpAlloc   BufferSize[BumpAllocators]
	Output      BufferSize[uint32]
	// Bump allocated buffers
	InfoBinData BufferSize[uint32]
	Tiles       BufferSize[Tile]
	Segments    BufferSize[PathSegment]
	Ptcl        BufferSize[uint32]
}

type WorkgroupCounts struct {
	TileAlloc  WorkgroupSize
	Binning    WorkgroupSize
	PathTiling WorkgroupSize
	Backdrop   WorkgroupSize
	Coarse     WorkgroupSize
	Fine       WorkgroupSize
}

// BumpAllocators is the shared block of bump-allocator cursors. The coarse
// stage advances Ptcl with atomic adds; the other cursors are advanced by
// the sequential upstream kernels. Failed is a bitmask of BumpFailed
// flags.
type BumpAllocators struct {
	_ structs.HostLayout

	Failed   uint32
	Binning  uint32
	Ptcl     uint32
	Tile     uint32
	Segments uint32
}

const (
	BumpFailedPtcl = 1 << iota
)

type BufferSize[T any] uint32

func NewBufferSize[T any](x uint32) BufferSize[T] {
	return BufferSize[T](max(x, 1))
}

func (s BufferSize[T]) SizeInBytes() uint32 {
	return uint32(s) * uint32(unsafe.Sizeof(*new(T)))
}
