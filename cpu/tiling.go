// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"math"

	"honnef.co/go/safeish"

	"honnef.co/go/mondrian/encoding"
	"honnef.co/go/mondrian/renderer"
)

// The largest floating point value strictly less than 1.
//
// This value is used to limit the value of b so that its floor is strictly
// less than 1. That guarantees that floor(a * i + b) == 0 for i == 0, which
// lands on the correct first tile.
const ONE_MINUS_ULP = 0.99999994

// An epsilon to be applied in path numerical robustness.
//
// When floor(a * (n - 1) + b) does not match the expected value (the width
// in grid cells minus one), this delta is applied to a to push it in the
// correct direction. The theory is that a is not off by more than a few
// ulp, and it's always in the range of 0..1.
const ROBUST_EPSILON = 2e-7

// TileAlloc allocates each draw object's tile rectangle: the draw bbox
// clamped to the viewport in tile units, with the tiles zeroed and the
// Path record written.
func TileAlloc(_ uint32, resources []CPUBinding) {
	const SX = 1.0 / TILE_WIDTH
	const SY = 1.0 / TILE_HEIGHT

	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	scene := safeish.SliceCast[[]uint32](resources[1].(CPUBuffer))
	draw_bboxes := safeish.SliceCast[[][4]float32](resources[2].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[3].(CPUBuffer))
	paths := safeish.SliceCast[[]renderer.Path](resources[4].(CPUBuffer))
	tiles := safeish.SliceCast[[]renderer.Tile](resources[5].(CPUBuffer))

	drawtag_base := config.Layout.DrawTagBase
	width_in_tiles := int32(config.WidthInTiles)
	height_in_tiles := int32(config.HeightInTiles)
	for drawobj_ix := range config.Layout.NumDrawObjects {
		drawtag := encoding.DrawTag(scene[drawtag_base+drawobj_ix])
		var x0 int32
		var y0 int32
		var x1 int32
		var y1 int32
		if drawtag != encoding.DrawTagNop {
			bbox := draw_bboxes[drawobj_ix]
			if bbox[0] < bbox[2] && bbox[1] < bbox[3] {
				x0 = int32(floor32(bbox[0] * SX))
				y0 = int32(floor32(bbox[1] * SY))
				x1 = int32(ceil32(bbox[2] * SX))
				y1 = int32(ceil32(bbox[3] * SY))
			}
		}
		ux0 := uint32(clampi(x0, 0, width_in_tiles))
		uy0 := uint32(clampi(y0, 0, height_in_tiles))
		ux1 := uint32(clampi(x1, 0, width_in_tiles))
		uy1 := uint32(clampi(y1, 0, height_in_tiles))
		tile_count := (ux1 - ux0) * (uy1 - uy0)
		offset := bump.Tile
		bump.Tile += tile_count
		// We construct it this way because padding is private.
		var path renderer.Path
		path.Bbox = [4]uint32{ux0, uy0, ux1, uy1}
		path.Tiles = offset
		paths[drawobj_ix] = path
		for i := range tile_count {
			tiles[offset+i] = renderer.Tile{}
		}
	}
}

// Binning writes, per partition of 256 draw objects, the draw-object refs
// of each bin it touches. Within a bin the refs of one partition are
// contiguous and in draw order; partitions are concatenated in partition
// order, which is the ordering invariant the coarse stage depends on.
func Binning(numWgs uint32, resources []CPUBinding) {
	const SX = 1.0 / (N_TILE_X * TILE_WIDTH)
	const SY = 1.0 / (N_TILE_Y * TILE_HEIGHT)

	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	draw_bboxes := safeish.SliceCast[[][4]float32](resources[1].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[2].(CPUBuffer))
	info_bin_data := safeish.SliceCast[[]uint32](resources[3].(CPUBuffer))
	bin_header := safeish.SliceCast[[]renderer.BinHeader](resources[4].(CPUBuffer))

	width_in_bins := int32((config.WidthInTiles + N_TILE_X - 1) / N_TILE_X)
	height_in_bins := int32((config.HeightInTiles + N_TILE_Y - 1) / N_TILE_Y)
	// One lane per bin in the header pass; larger targets need a wider
	// bin header layout.
	assertInvariant(width_in_bins*height_in_bins <= N_TILE)

	for wg := range numWgs {
		var counts [N_TILE]uint32
		var bboxes [WG_SIZE][4]int32
		for local_ix := range uint32(WG_SIZE) {
			element_ix := wg*WG_SIZE + local_ix
			var x0 int32
			var y0 int32
			var x1 int32
			var y1 int32
			if element_ix < config.Layout.NumDrawObjects {
				bbox := draw_bboxes[element_ix]
				if bbox[0] < bbox[2] && bbox[1] < bbox[3] {
					x0 = int32(math.Floor(float64(bbox[0] * SX)))
					y0 = int32(math.Floor(float64(bbox[1] * SY)))
					x1 = int32(math.Ceil(float64(bbox[2] * SX)))
					y1 = int32(math.Ceil(float64(bbox[3] * SY)))
				}
			}
			x0 = clampi(x0, 0, width_in_bins)
			y0 = clampi(y0, 0, height_in_bins)
			x1 = clampi(x1, 0, width_in_bins)
			y1 = clampi(y1, 0, height_in_bins)
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					counts[y*width_in_bins+x]++
				}
			}
			bboxes[local_ix] = [4]int32{x0, y0, x1, y1}
		}
		var chunk_offset [N_TILE]uint32
		for bin_ix := range uint32(N_TILE) {
			chunk_offset[bin_ix] = bump.Binning
			bump.Binning += counts[bin_ix]
			bin_header[wg*N_TILE+bin_ix] = renderer.BinHeader{
				ElementCount: counts[bin_ix],
				ChunkOffset:  chunk_offset[bin_ix],
			}
		}
		for local_ix := range uint32(WG_SIZE) {
			element_ix := wg*WG_SIZE + local_ix
			bbox := bboxes[local_ix]
			for y := bbox[1]; y < bbox[3]; y++ {
				for x := bbox[0]; x < bbox[2]; x++ {
					bin_ix := y*width_in_bins + x
					ix := config.Layout.BinDataStart + chunk_offset[bin_ix]
					info_bin_data[ix] = element_ix
					chunk_offset[bin_ix]++
				}
			}
		}
	}
}

// PathTiling assigns every line of the line soup to the tiles it affects.
//
// Fill lines walk their covered tiles with the robust tile DDA, get
// clipped to each tile, and also write the backdrop winding deltas (row
// seeds and top-edge crossings). Stroke lines are scattered unclipped into
// every tile of their half-width-expanded bounding box, because the
// distance-field stroker needs the true geometry.
//
// Segments are prepended to each tile's intrusive list; slot 0 is the
// list terminator and is never allocated.
func PathTiling(_ uint32, resources []CPUBinding) {
	draw_monoids := safeish.SliceCast[[]renderer.DrawMonoid](resources[0].(CPUBuffer))
	info_bin_data := safeish.SliceCast[[]uint32](resources[1].(CPUBuffer))
	lines := safeish.SliceCast[[]renderer.LineSoup](resources[2].(CPUBuffer))
	paths := safeish.SliceCast[[]renderer.Path](resources[3].(CPUBuffer))
	tiles := safeish.SliceCast[[]renderer.Tile](resources[4].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[5].(CPUBuffer))
	segments := safeish.SliceCast[[]renderer.PathSegment](resources[6].(CPUBuffer))

	if bump.Segments == 0 {
		bump.Segments = 1
	}
	for line_ix := range lines {
		line := lines[line_ix]
		linewidth := math.Float32frombits(info_bin_data[draw_monoids[line.PathIdx].InfoOffset])
		path := paths[line.PathIdx]
		if linewidth >= 0 {
			strokeLine(line, linewidth, path, tiles, bump, segments)
		} else {
			fillLine(line, path, tiles, bump, segments)
		}
	}
}

func allocSegment(bump *renderer.BumpAllocators, segments []renderer.PathSegment) uint32 {
	seg_ix := bump.Segments
	assertInvariant(seg_ix < uint32(len(segments)))
	bump.Segments++
	return seg_ix
}

func strokeLine(
	line renderer.LineSoup,
	linewidth float32,
	path renderer.Path,
	tiles []renderer.Tile,
	bump *renderer.BumpAllocators,
	segments []renderer.PathSegment,
) {
	p0 := vec2FromArray(line.P0)
	p1 := vec2FromArray(line.P1)
	// Coverage reaches half a width from the spine plus one pixel of
	// anti-aliasing ramp.
	r := 0.5*linewidth + 1

	bbox := [4]int32{
		int32(path.Bbox[0]),
		int32(path.Bbox[1]),
		int32(path.Bbox[2]),
		int32(path.Bbox[3]),
	}
	stride := bbox[2] - bbox[0]
	x0 := clampi(int32(floor32((min(p0.x, p1.x)-r)*TILE_SCALE)), bbox[0], bbox[2])
	y0 := clampi(int32(floor32((min(p0.y, p1.y)-r)*TILE_SCALE)), bbox[1], bbox[3])
	x1 := clampi(int32(ceil32((max(p0.x, p1.x)+r)*TILE_SCALE)), bbox[0], bbox[2])
	y1 := clampi(int32(ceil32((max(p0.y, p1.y)+r)*TILE_SCALE)), bbox[1], bbox[3])
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			tile := &tiles[int32(path.Tiles)+(y-bbox[1])*stride+(x-bbox[0])]
			seg_ix := allocSegment(bump, segments)
			segments[seg_ix] = renderer.PathSegment{
				Origin: p0.toArray(),
				Delta:  p1.sub(p0).toArray(),
				YEdge:  1e9,
				Next:   tile.Segments,
			}
			tile.Segments = seg_ix
		}
	}
}

func fillLine(
	line renderer.LineSoup,
	path renderer.Path,
	tiles []renderer.Tile,
	bump *renderer.BumpAllocators,
	segments []renderer.PathSegment,
) {
	p0 := vec2FromArray(line.P0)
	p1 := vec2FromArray(line.P1)
	is_down := p1.y >= p0.y
	var xy0, xy1 vec2
	if is_down {
		xy0, xy1 = p0, p1
	} else {
		xy0, xy1 = p1, p0
	}
	s0 := xy0.mul(TILE_SCALE)
	s1 := xy1.mul(TILE_SCALE)
	count_x := span(s0.x, s1.x) - 1
	count := count_x + span(s0.y, s1.y)

	dx := abs32(s1.x - s0.x)
	dy := s1.y - s0.y
	if dx+dy == 0.0 {
		return
	}
	if dy == 0.0 && floor32(s0.y) == s0.y {
		return
	}
	idxdy := 1.0 / (dx + dy)
	a := dx * idxdy
	is_positive_slope := s1.x >= s0.x
	var sign float32
	if is_positive_slope {
		sign = 1.0
	} else {
		sign = -1.0
	}
	xt0 := floor32(s0.x * sign)
	c := s0.x*sign - xt0
	y0 := floor32(s0.y)
	var ytop float32
	if s0.y == s1.y {
		ytop = ceil32(s0.y)
	} else {
		ytop = y0 + 1.0
	}
	b := min((dy*c+dx*(ytop-s0.y))*idxdy, ONE_MINUS_ULP)
	robust_err := floor32(a*(float32(count)-1.0)+b) - float32(count_x)
	if robust_err != 0.0 {
		a -= copysign32(ROBUST_EPSILON, robust_err)
	}
	x0f := xt0 * sign
	if !is_positive_slope {
		x0f += -1.0
	}

	bbox := [4]int32{
		int32(path.Bbox[0]),
		int32(path.Bbox[1]),
		int32(path.Bbox[2]),
		int32(path.Bbox[3]),
	}
	xmin := min(s0.x, s1.x)
	stride := bbox[2] - bbox[0]
	if s0.y >= float32(bbox[3]) || s1.y < float32(bbox[1]) || xmin >= float32(bbox[2]) || stride == 0 {
		return
	}
	// Clip the line to the bounding box. Clipping is done in "i" space.
	imin := uint32(0)
	if s0.y < float32(bbox[1]) {
		iminf := round32((float32(bbox[1])-y0+b-a)/(1.0-a)) - 1.0
		if y0+iminf-floor32(a*iminf+b) < float32(bbox[1]) {
			iminf += 1.0
		}
		imin = uint32(iminf)
	}
	imax := count
	if s1.y > float32(bbox[3]) {
		imaxf := round32((float32(bbox[3])-y0+b-a)/(1.0-a)) - 1.0
		if y0+imaxf-floor32(a*imaxf+b) < float32(bbox[3]) {
			imaxf += 1.0
		}
		imax = uint32(imaxf)
	}
	var delta int32
	if is_down {
		delta = -1
	} else {
		delta = 1
	}
	var ymin, ymax int32
	if max(s0.x, s1.x) < float32(bbox[0]) {
		ymin = int32(ceil32(s0.y))
		ymax = int32(ceil32(s1.y))
		imax = imin
	} else {
		var fudge float32
		if is_positive_slope {
			fudge = 0.0
		} else {
			fudge = 1.0
		}
		if xmin < float32(bbox[0]) {
			f := round32((sign*(float32(bbox[0])-x0f) - b + fudge) / a)
			if (x0f+sign*floor32(a*f+b) < float32(bbox[0])) == is_positive_slope {
				f += 1.0
			}
			ynext := int32(y0 + f - floor32(a*f+b) + 1.0)
			if is_positive_slope {
				if uint32(f) > imin {
					ymin = int32(y0)
					if y0 != s0.y {
						ymin += 1
					}
					ymax = ynext
					imin = uint32(f)
				}
			} else if uint32(f) < imax {
				ymin = ynext
				ymax = int32(ceil32(s1.y))
				imax = uint32(f)
			}
		}
		if max(s0.x, s1.x) > float32(bbox[2]) {
			f := round32((sign*(float32(bbox[2])-x0f) - b + fudge) / a)
			if (x0f+sign*floor32(a*f+b) < float32(bbox[2])) == is_positive_slope {
				f += 1.0
			}
			if is_positive_slope {
				imax = min(imax, uint32(f))
			} else {
				imin = max(imin, uint32(f))
			}
		}
	}
	imax = max(imin, imax)
	ymin = max(ymin, bbox[1])
	ymax = min(ymax, bbox[3])
	for y := ymin; y < ymax; y++ {
		base := int32(path.Tiles) + (y-bbox[1])*stride
		tiles[base].Backdrop += delta
	}

	last_z := floor32(a*(float32(imin)-1.0) + b)
	for i := imin; i < imax; i++ {
		zf := a*float32(i) + b
		z := floor32(zf)
		y := int32(y0 + float32(i) - z)
		x := int32(x0f + sign*z)
		base := int32(path.Tiles) + (y-bbox[1])*stride - bbox[0]
		var top_edge bool
		if i == 0 {
			top_edge = y0 == s0.y
		} else {
			top_edge = last_z == z
		}
		if top_edge && x+1 < bbox[2] {
			x_bump := max(x+1, bbox[0])
			tiles[base+x_bump].Backdrop += delta
		}

		// Clip the line to this tile.
		tile_xy := vec2{float32(x) * TILE_WIDTH, float32(y) * TILE_HEIGHT}
		tile_xy1 := tile_xy.add(vec2{TILE_WIDTH, TILE_HEIGHT})
		sxy0, sxy1 := xy0, xy1
		if i > 0 {
			if z == last_z {
				// Top edge is clipped.
				xt := xy0.x + (xy1.x-xy0.x)*(tile_xy.y-xy0.y)/(xy1.y-xy0.y)
				xt = clamp32(xt, tile_xy.x+1e-3, tile_xy1.x)
				sxy0 = vec2{xt, tile_xy.y}
			} else {
				// If is_positive_slope, left edge is clipped, otherwise
				// right.
				var x_clip float32
				if is_positive_slope {
					x_clip = tile_xy.x
				} else {
					x_clip = tile_xy1.x
				}
				yt := xy0.y + (xy1.y-xy0.y)*(x_clip-xy0.x)/(xy1.x-xy0.x)
				yt = clamp32(yt, tile_xy.y+1e-3, tile_xy1.y)
				sxy0 = vec2{x_clip, yt}
			}
		}
		if i < count-1 {
			z_next := floor32(a*(float32(i)+1.0) + b)
			if z == z_next {
				// Bottom edge is clipped.
				xt := xy0.x + (xy1.x-xy0.x)*(tile_xy1.y-xy0.y)/(xy1.y-xy0.y)
				xt = clamp32(xt, tile_xy.x+1e-3, tile_xy1.x)
				sxy1 = vec2{xt, tile_xy1.y}
			} else {
				var x_clip float32
				if is_positive_slope {
					x_clip = tile_xy1.x
				} else {
					x_clip = tile_xy.x
				}
				yt := xy0.y + (xy1.y-xy0.y)*(x_clip-xy0.x)/(xy1.x-xy0.x)
				yt = clamp32(yt, tile_xy.y+1e-3, tile_xy1.y)
				sxy1 = vec2{x_clip, yt}
			}
		}

		// Numerical robustness in tile-local space: nudge exact vertical
		// edges off x == 0 and record left-edge crossings in y_edge.
		y_edge := float32(1e9)
		q0 := sxy0.sub(tile_xy)
		q1 := sxy1.sub(tile_xy)
		const EPSILON = 1e-6
		if q0.x == 0.0 {
			if q1.x == 0.0 {
				q0.x = EPSILON
				if q0.y == 0.0 {
					// Entire tile
					q1.x = EPSILON
					q1.y = TILE_HEIGHT
				} else {
					// Make segment disappear
					q1.x = 2.0 * EPSILON
					q1.y = q0.y
				}
			} else if q0.y == 0.0 {
				q0.x = EPSILON
			} else {
				y_edge = q0.y
			}
		} else if q1.x == 0.0 {
			if q1.y == 0.0 {
				q1.x = EPSILON
			} else {
				y_edge = q1.y
			}
		}
		if q0.x == floor32(q0.x) && q0.x != 0.0 {
			q0.x -= EPSILON
		}
		if q1.x == floor32(q1.x) && q1.x != 0.0 {
			q1.x -= EPSILON
		}
		if !is_down {
			q0, q1 = q1, q0
		}
		assertInvariant(q0.x >= 0.0 && q0.x <= TILE_WIDTH)
		assertInvariant(q0.y >= 0.0 && q0.y <= TILE_HEIGHT)
		assertInvariant(q1.x >= 0.0 && q1.x <= TILE_WIDTH)
		assertInvariant(q1.y >= 0.0 && q1.y <= TILE_HEIGHT)
		if y_edge != 1e9 {
			y_edge += tile_xy.y
		}

		tile := &tiles[base+x]
		seg_ix := allocSegment(bump, segments)
		segments[seg_ix] = renderer.PathSegment{
			Origin: tile_xy.add(q0).toArray(),
			Delta:  q1.sub(q0).toArray(),
			YEdge:  y_edge,
			Next:   tile.Segments,
		}
		tile.Segments = seg_ix
		last_z = z
	}
}

// Backdrop converts the per-tile winding deltas into the winding number at
// each tile's left edge by a left-to-right prefix sum over each row of
// each path's tile rectangle.
func Backdrop(_ uint32, resources []CPUBinding) {
	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	paths := safeish.SliceCast[[]renderer.Path](resources[1].(CPUBuffer))
	tiles := safeish.SliceCast[[]renderer.Tile](resources[2].(CPUBuffer))

	for drawobj_ix := range config.Layout.NumDrawObjects {
		path := paths[drawobj_ix]
		width := path.Bbox[2] - path.Bbox[0]
		height := path.Bbox[3] - path.Bbox[1]
		base := path.Tiles
		for y := range height {
			var sum int32
			for x := range width {
				tile := &tiles[base+y*width+x]
				sum += tile.Backdrop
				tile.Backdrop = sum
			}
		}
	}
}
