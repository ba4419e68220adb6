// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"honnef.co/go/safeish"

	"honnef.co/go/mondrian/renderer"
)

// PIXELS_PER_THREAD is the number of horizontal pixels each fine lane
// owns; a 4×16 lane grid covers one 16×16 tile.
const PIXELS_PER_THREAD = 4

// Fine interprets every tile's command stream and writes the final
// anti-aliased pixels. One workgroup covers one tile; tiles are
// independent (each pixel is written by exactly one lane), so workgroups
// run concurrently on a goroutine pool.
//
// If the coarse stage recorded an allocation failure, no output is
// produced.
func Fine(_ uint32, resources []CPUBinding) {
	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	ptcl := safeish.SliceCast[[]uint32](resources[1].(CPUBuffer))
	segments := safeish.SliceCast[[]renderer.PathSegment](resources[2].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[3].(CPUBuffer))
	output := safeish.SliceCast[[]uint32](resources[4].(CPUBuffer))

	if atomic.LoadUint32(&bump.Failed) != 0 {
		return
	}

	n_tiles := config.WidthInTiles * config.HeightInTiles
	workers := min(runtime.GOMAXPROCS(0), int(n_tiles))
	tile_ch := make(chan uint32)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile_ix := range tile_ch {
				fineTile(config, ptcl, segments, output, tile_ix)
			}
		}()
	}
	for tile_ix := range n_tiles {
		tile_ch <- tile_ix
	}
	close(tile_ch)
	wg.Wait()
}

func fineTile(
	config *renderer.ConfigUniform,
	ptcl []uint32,
	segments []renderer.PathSegment,
	output []uint32,
	tile_ix uint32,
) {
	tile_x := tile_ix % config.WidthInTiles
	tile_y := tile_ix / config.WidthInTiles
	for local_y := range uint32(TILE_HEIGHT) {
		for local_x := range uint32(TILE_WIDTH / PIXELS_PER_THREAD) {
			xy := vec2{
				float32(tile_x*TILE_WIDTH + local_x*PIXELS_PER_THREAD),
				float32(tile_y*TILE_HEIGHT + local_y),
			}
			fineLane(config, ptcl, segments, output, tile_ix, xy)
		}
	}
}

// fineLane runs the command interpreter for one lane: four horizontal
// pixels starting at xy.
func fineLane(
	config *renderer.ConfigUniform,
	ptcl []uint32,
	segments []renderer.PathSegment,
	output []uint32,
	tile_ix uint32,
	xy vec2,
) {
	var rgba [PIXELS_PER_THREAD][4]float32
	var area [PIXELS_PER_THREAD]float32
	cmd_ix := tile_ix * PTCL_INITIAL_ALLOC
interp:
	for {
		tag := ptcl[cmd_ix]
		switch tag {
		case CMD_END:
			break interp
		case CMD_FILL:
			tile_seg := ptcl[cmd_ix+1]
			backdrop := int32(ptcl[cmd_ix+2])
			area = fill_path(segments, tile_seg, backdrop, xy)
			cmd_ix += 3
		case CMD_STROKE:
			tile_seg := ptcl[cmd_ix+1]
			half_width := math.Float32frombits(ptcl[cmd_ix+2])
			area = stroke_path(segments, tile_seg, half_width, xy)
			cmd_ix += 3
		case CMD_SOLID:
			for i := range area {
				area[i] = 1.0
			}
			cmd_ix += 1
		case CMD_COLOR:
			fg := unpackColor(ptcl[cmd_ix+1])
			for i := range PIXELS_PER_THREAD {
				fg_r := fg[0] * area[i]
				fg_g := fg[1] * area[i]
				fg_b := fg[2] * area[i]
				fg_a := fg[3] * area[i]
				inv := 1.0 - fg_a
				rgba[i][0] = rgba[i][0]*inv + fg_r
				rgba[i][1] = rgba[i][1]*inv + fg_g
				rgba[i][2] = rgba[i][2]*inv + fg_b
				rgba[i][3] = rgba[i][3]*inv + fg_a
			}
			cmd_ix += 2
		case CMD_JUMP:
			cmd_ix = ptcl[cmd_ix+1]
		default:
			panic(fmt.Sprintf("unknown ptcl tag %d at %d", tag, cmd_ix))
		}
	}

	out_stride := config.WidthInTiles * TILE_WIDTH
	base := uint32(xy.y)*out_stride + uint32(xy.x)
	for i := range uint32(PIXELS_PER_THREAD) {
		px := rgba[i]
		a_inv := 1.0 / (px[3] + 1e-6)
		output[base+i] = packColor([4]float32{
			px[0] * a_inv,
			px[1] * a_inv,
			px[2] * a_inv,
			px[3],
		})
	}
}

// fill_path computes the exact-area coverage of the tile's segment list
// for the lane's four pixels, under the non-zero winding rule.
func fill_path(segments []renderer.PathSegment, seg_ix uint32, backdrop int32, xy vec2) [PIXELS_PER_THREAD]float32 {
	var area [PIXELS_PER_THREAD]float32
	for i := range area {
		area[i] = float32(backdrop)
	}
	for s := seg_ix; s != 0; s = segments[s].Next {
		segment := segments[s]
		y := segment.Origin[1] - xy.y
		y0 := clamp32(y, 0.0, 1.0)
		y1 := clamp32(y+segment.Delta[1], 0.0, 1.0)
		dy := y0 - y1
		if dy != 0.0 {
			vec_y_recip := 1.0 / segment.Delta[1]
			t0 := (y0 - y) * vec_y_recip
			t1 := (y1 - y) * vec_y_recip
			startx := segment.Origin[0] - xy.x
			x0 := startx + t0*segment.Delta[0]
			x1 := startx + t1*segment.Delta[0]
			xmin0 := min(x0, x1)
			xmax0 := max(x0, x1)
			for i := range area {
				i_f := float32(i)
				xmin := min(xmin0-i_f, 1.0) - 1e-6
				xmax := xmax0 - i_f
				b := min(xmax, 1.0)
				c := max(b, 0.0)
				d := max(xmin, 0.0)
				a := (b - xmin + 0.5*(d-c)*(d+c)) / (xmax - xmin)
				area[i] += a * dy
			}
		}
		// Contribution of the half-open edge along the tile's left
		// boundary that clipping introduced.
		y_edge := sign32(segment.Delta[0]) * clamp32(xy.y-segment.YEdge+1.0, 0.0, 1.0)
		for i := range area {
			area[i] += y_edge
		}
	}
	for i := range area {
		area[i] = abs32(area[i])
	}
	return area
}

// stroke_path computes stroke coverage as a clamped distance field over
// the tile's segment list.
func stroke_path(segments []renderer.PathSegment, seg_ix uint32, half_width float32, xy vec2) [PIXELS_PER_THREAD]float32 {
	var df [PIXELS_PER_THREAD]float32
	for i := range df {
		df[i] = 1e9
	}
	for s := seg_ix; s != 0; s = segments[s].Next {
		segment := segments[s]
		delta := vec2FromArray(segment.Delta)
		dd := delta.dot(delta)
		if dd == 0.0 {
			// Zero-length segment; no distance to measure.
			continue
		}
		scale := 1.0 / dd
		dpos0 := xy.add(vec2{0.5, 0.5}).sub(vec2FromArray(segment.Origin))
		for i := range df {
			dpos := vec2{dpos0.x + float32(i), dpos0.y}
			t := clamp32(dpos.dot(delta)*scale, 0.0, 1.0)
			df[i] = min(df[i], delta.mul(t).sub(dpos).length())
		}
	}
	var area [PIXELS_PER_THREAD]float32
	for i := range area {
		area[i] = clamp32(half_width+0.5-df[i], 0.0, 1.0)
	}
	return area
}

// unpackColor unpacks a scene color word (0xRRGGBBAA, premultiplied) into
// (r, g, b, a) channels.
func unpackColor(rgba uint32) [4]float32 {
	return [4]float32{
		float32(rgba>>24&0xff) / 255.0,
		float32(rgba>>16&0xff) / 255.0,
		float32(rgba>>8&0xff) / 255.0,
		float32(rgba&0xff) / 255.0,
	}
}

// packColor packs (r, g, b, a) channels into a framebuffer word
// (0xAABBGGRR).
func packColor(rgba [4]float32) uint32 {
	r := uint32(round32(clamp32(rgba[0], 0.0, 1.0) * 255.0))
	g := uint32(round32(clamp32(rgba[1], 0.0, 1.0) * 255.0))
	b := uint32(round32(clamp32(rgba[2], 0.0, 1.0) * 255.0))
	a := uint32(round32(clamp32(rgba[3], 0.0, 1.0) * 255.0))
	return a<<24 | b<<16 | g<<8 | r
}
