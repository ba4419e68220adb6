// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mondrian is a CPU implementation of a tile-based 2D vector
// graphics rasterization pipeline.
//
// A scene is a list of solid-color fills and strokes (package encoding).
// Rendering runs the pipeline's compute kernels (package cpu) over shared
// buffers in the GPU layouts of package renderer: tile allocation, bin
// assignment, per-tile segment generation, the coarse rasterizer that
// produces a per-tile command list (package ptcl), and the fine rasterizer
// that interprets it into anti-aliased pixels.
package mondrian

import (
	"errors"
	"image"
	"log/slog"

	"honnef.co/go/safeish"

	"honnef.co/go/mondrian/cpu"
	"honnef.co/go/mondrian/encoding"
	"honnef.co/go/mondrian/renderer"
)

// ErrPtclOverflow is returned when the per-tile command list outgrew its
// buffer. The frame is not rendered.
var ErrPtclOverflow = errors.New("mondrian: per-tile command list allocation overflowed")

// Frame is a rendered framebuffer. Pix holds one packed 0xAABBGGRR word
// per pixel, row-major with Stride words per row. Stride is the target
// width rounded up to whole tiles.
type Frame struct {
	Width  uint32
	Height uint32
	Stride uint32
	Pix    []uint32
}

// Pixel returns the packed pixel at (x, y).
func (f *Frame) Pixel(x, y uint32) uint32 {
	return f.Pix[y*f.Stride+x]
}

// Image copies the frame into an image.RGBA, dropping the tile padding.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(f.Width), int(f.Height)))
	for y := range f.Height {
		for x := range f.Width {
			px := f.Pix[y*f.Stride+x]
			i := img.PixOffset(int(x), int(y))
			img.Pix[i+0] = uint8(px)
			img.Pix[i+1] = uint8(px >> 8)
			img.Pix[i+2] = uint8(px >> 16)
			img.Pix[i+3] = uint8(px >> 24)
		}
	}
	return img
}

// Render rasterizes the scene into a width×height frame.
//
// The kernels run in the pipeline's dispatch order with a full barrier
// between stages: tile allocation, binning, path tiling, backdrop
// propagation, coarse, fine. All buffers are sized from resolve-time upper
// bounds, so the only runtime failure mode is PTCL exhaustion, reported as
// ErrPtclOverflow.
func Render(sc *encoding.Scene, width, height uint32) (*Frame, error) {
	resolved := renderer.Resolve(sc)
	cfg := renderer.NewRenderConfig(&resolved.Layout, width, height, resolved.Estimates(width, height))
	sizes := &cfg.BufferSizes
	counts := &cfg.WorkgroupCounts

	configBuf := bufferFromSlice([]renderer.ConfigUniform{cfg.Gpu})
	sceneBuf := bufferFromSlice(resolved.Scene)
	monoidsBuf := bufferFromSlice(resolved.DrawMonoids)
	bboxesBuf := bufferFromSlice(resolved.DrawBboxes)
	linesBuf := bufferFromSlice(resolved.Lines)
	infoBinDataBuf := cpu.NewBuffer[uint32](uint32(sizes.InfoBinData))
	copy(safeish.SliceCast[[]uint32](infoBinDataBuf), resolved.Info)
	pathsBuf := cpu.NewBuffer[renderer.Path](uint32(sizes.Paths))
	tilesBuf := cpu.NewBuffer[renderer.Tile](uint32(sizes.Tiles))
	segmentsBuf := cpu.NewBuffer[renderer.PathSegment](uint32(sizes.Segments))
	ptclBuf := cpu.NewBuffer[uint32](uint32(sizes.Ptcl))
	bumpBuf := cpu.NewBuffer[renderer.BumpAllocators](1)
	outputBuf := cpu.NewBuffer[uint32](uint32(sizes.Output))
	binHeadersBuf := cpu.NewBuffer[renderer.BinHeader](uint32(sizes.BinHeaders))

	logger().Debug("mondrian: dispatching",
		slog.Uint64("width_in_tiles", uint64(cfg.Gpu.WidthInTiles)),
		slog.Uint64("height_in_tiles", uint64(cfg.Gpu.HeightInTiles)),
		slog.Uint64("draw_objects", uint64(resolved.Layout.NumDrawObjects)),
		slog.Uint64("lines", uint64(len(resolved.Lines))),
		slog.Uint64("ptcl_words", uint64(sizes.Ptcl)),
	)

	cpu.TileAlloc(counts.TileAlloc[0], []cpu.CPUBinding{
		configBuf, sceneBuf, bboxesBuf, bumpBuf, pathsBuf, tilesBuf,
	})
	cpu.Binning(counts.Binning[0], []cpu.CPUBinding{
		configBuf, bboxesBuf, bumpBuf, infoBinDataBuf, binHeadersBuf,
	})
	if len(resolved.Lines) > 0 {
		cpu.PathTiling(counts.PathTiling[0], []cpu.CPUBinding{
			monoidsBuf, infoBinDataBuf, linesBuf, pathsBuf, tilesBuf, bumpBuf, segmentsBuf,
		})
	}
	cpu.Backdrop(counts.Backdrop[0], []cpu.CPUBinding{
		configBuf, pathsBuf, tilesBuf,
	})
	cpu.Coarse(counts.Coarse[0], []cpu.CPUBinding{
		configBuf, sceneBuf, monoidsBuf, binHeadersBuf, infoBinDataBuf, pathsBuf, tilesBuf, bumpBuf, ptclBuf,
	})
	cpu.Fine(counts.Fine[0], []cpu.CPUBinding{
		configBuf, ptclBuf, segmentsBuf, bumpBuf, outputBuf,
	})

	bump := safeish.SliceCast[[]renderer.BumpAllocators](bumpBuf)[0]
	logger().Debug("mondrian: finished",
		slog.Uint64("bump_ptcl", uint64(bump.Ptcl)),
		slog.Uint64("bump_tile", uint64(bump.Tile)),
		slog.Uint64("bump_segments", uint64(bump.Segments)),
	)
	if bump.Failed != 0 {
		logger().Warn("mondrian: allocation failure", slog.Uint64("flags", uint64(bump.Failed)))
		return nil, ErrPtclOverflow
	}

	return &Frame{
		Width:  width,
		Height: height,
		Stride: cfg.Gpu.WidthInTiles * 16,
		Pix:    safeish.SliceCast[[]uint32](outputBuf),
	}, nil
}

// bufferFromSlice copies vs into a fresh CPUBuffer, padding empty slices
// to one element so every binding is non-empty.
func bufferFromSlice[E any](vs []E) cpu.CPUBuffer {
	buf := cpu.NewBuffer[E](uint32(max(len(vs), 1)))
	copy(safeish.SliceCast[[]E](buf), vs)
	return buf
}
