// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"math"

	"honnef.co/go/mondrian/encoding"
	"honnef.co/go/mondrian/jmath"
)

// Resolved is an encoded scene packed into the buffer layouts the kernels
// read: the scene stream (draw tags, then draw data), the draw monoids,
// the info words, the line soup, and the per-object draw bounding boxes.
type Resolved struct {
	Layout      Layout
	Scene       []uint32
	DrawMonoids []DrawMonoid
	Info        []uint32
	Lines       []LineSoup
	DrawBboxes  [][4]float32
}

// Resolve packs a scene. Draw monoids are the exclusive prefix sums of the
// per-tag footprints, computed the same way the GPU draw_leaf stage does.
func Resolve(sc *encoding.Scene) *Resolved {
	n := uint32(len(sc.Objects))
	r := &Resolved{
		DrawMonoids: make([]DrawMonoid, n),
		DrawBboxes:  make([][4]float32, n),
	}

	var m DrawMonoid
	var infoSize uint32
	for _, obj := range sc.Objects {
		infoSize += obj.Tag.InfoSize()
	}
	r.Info = make([]uint32, infoSize)
	r.Scene = make([]uint32, 0, 2*n)
	for _, obj := range sc.Objects {
		r.Scene = append(r.Scene, uint32(obj.Tag))
	}
	for i, obj := range sc.Objects {
		r.DrawMonoids[i] = m
		r.Scene = append(r.Scene, obj.Data...)
		r.Info[m.InfoOffset] = math.Float32bits(obj.Linewidth)
		r.DrawBboxes[i] = obj.Bbox
		for _, l := range obj.Lines {
			r.Lines = append(r.Lines, LineSoup{
				PathIdx: uint32(i),
				P0:      l.P0,
				P1:      l.P1,
			})
		}
		m = m.Combine(NewDrawMonoid(obj.Tag))
	}

	r.Layout = Layout{
		NumDrawObjects: n,
		BinDataStart:   infoSize,
		DrawTagBase:    0,
		DrawDataBase:   n,
	}
	return r
}

// Estimates computes upper bounds for the bump-allocated buffers of this
// scene at the given target size.
func (r *Resolved) Estimates(width, height uint32) BufferEstimates {
	widthInTiles := nextMultipleOf(width, tileWidth) / tileWidth
	heightInTiles := nextMultipleOf(height, tileHeight) / tileHeight
	widthInBins := (widthInTiles + nTileX - 1) / nTileX
	heightInBins := (heightInTiles + nTileY - 1) / nTileY

	var est BufferEstimates
	tileBboxes := make([][4]int32, len(r.DrawBboxes))
	for i, bbox := range r.DrawBboxes {
		var x0, y0, x1, y1 int32
		if bbox[0] < bbox[2] && bbox[1] < bbox[3] {
			x0 = int32(jmath.Floor32(bbox[0] / tileWidth))
			y0 = int32(jmath.Floor32(bbox[1] / tileHeight))
			x1 = int32(jmath.Ceil32(bbox[2] / tileWidth))
			y1 = int32(jmath.Ceil32(bbox[3] / tileHeight))
		}
		tx0 := jmath.Clamp(x0, 0, int32(widthInTiles))
		ty0 := jmath.Clamp(y0, 0, int32(heightInTiles))
		tx1 := jmath.Clamp(x1, 0, int32(widthInTiles))
		ty1 := jmath.Clamp(y1, 0, int32(heightInTiles))
		tileBboxes[i] = [4]int32{tx0, ty0, tx1, ty1}
		est.Tiles += uint32((tx1 - tx0) * (ty1 - ty0))

		bx0 := jmath.Clamp(x0/nTileX, 0, int32(widthInBins))
		by0 := jmath.Clamp(y0/nTileY, 0, int32(heightInBins))
		bx1 := jmath.Clamp((x1+nTileX-1)/nTileX, 0, int32(widthInBins))
		by1 := jmath.Clamp((y1+nTileY-1)/nTileY, 0, int32(heightInBins))
		est.BinData += uint32((bx1 - bx0) * (by1 - by0))
	}

	for _, line := range r.Lines {
		lw := math.Float32frombits(r.Info[r.DrawMonoids[line.PathIdx].InfoOffset])
		if lw < 0 {
			// A fill line allocates at most one segment per tile the DDA
			// walk visits.
			sx := spanEst(line.P0[0], line.P1[0])
			sy := spanEst(line.P0[1], line.P1[1])
			est.Segments += sx + sy
		} else {
			// A stroke line is scattered into every tile of its expanded
			// bounding box.
			radius := 0.5*lw + 1
			bbox := tileBboxes[line.PathIdx]
			x0 := jmath.Clamp(int32(jmath.Floor32((min(line.P0[0], line.P1[0])-radius)/tileWidth)), bbox[0], bbox[2])
			y0 := jmath.Clamp(int32(jmath.Floor32((min(line.P0[1], line.P1[1])-radius)/tileHeight)), bbox[1], bbox[3])
			x1 := jmath.Clamp(int32(jmath.Ceil32((max(line.P0[0], line.P1[0])+radius)/tileWidth)), bbox[0], bbox[2])
			y1 := jmath.Clamp(int32(jmath.Ceil32((max(line.P0[1], line.P1[1])+radius)/tileHeight)), bbox[1], bbox[3])
			est.Segments += uint32((x1 - x0) * (y1 - y0))
		}
	}
	return est
}

func spanEst(a, b float32) uint32 {
	return uint32(max(jmath.Ceil32(max(a, b)/tileWidth)-jmath.Floor32(min(a, b)/tileWidth), 1)) + 1
}
