// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"math"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"

	"honnef.co/go/safeish"

	"honnef.co/go/mondrian/encoding"
	"honnef.co/go/mondrian/renderer"
)

// tileState is one lane's PTCL cursor: the write position in the tile's
// current block and the limit past which a jump to a fresh block is
// needed. After an allocation failure the cursor is parked and all writes
// are suppressed.
type tileState struct {
	cmd_offset uint32
	cmd_limit  uint32
	failed     bool
}

func newTileState(tile_ix uint32) tileState {
	cmd_offset := tile_ix * PTCL_INITIAL_ALLOC
	cmd_limit := cmd_offset + (PTCL_INITIAL_ALLOC - PTCL_HEADROOM)
	return tileState{
		cmd_offset: cmd_offset,
		cmd_limit:  cmd_limit,
	}
}

// alloc_cmd ensures size words fit at the cursor. If the current block is
// about to overflow it bumps a fresh block and links it with a jump; the
// headroom kept below cmd_limit guarantees the jump itself always fits.
func (self *tileState) alloc_cmd(
	size uint32,
	config *renderer.ConfigUniform,
	bump *renderer.BumpAllocators,
	ptcl []uint32,
) {
	if self.failed {
		return
	}
	if self.cmd_offset+size >= self.cmd_limit {
		ptcl_dyn_start := config.WidthInTiles * config.HeightInTiles * PTCL_INITIAL_ALLOC
		chunk_size := max(uint32(PTCL_INCREMENT), size+PTCL_HEADROOM)
		offset := atomic.AddUint32(&bump.Ptcl, chunk_size) - chunk_size
		new_cmd := ptcl_dyn_start + offset
		if new_cmd+chunk_size > config.PtclSize {
			atomic.OrUint32(&bump.Failed, renderer.BumpFailedPtcl)
			self.failed = true
			return
		}
		ptcl[self.cmd_offset] = CMD_JUMP
		ptcl[self.cmd_offset+1] = new_cmd
		self.cmd_offset = new_cmd
		self.cmd_limit = new_cmd + (PTCL_INCREMENT - PTCL_HEADROOM)
	}
}

func (self *tileState) write(ptcl []uint32, offset uint32, value uint32) {
	if self.failed {
		return
	}
	ptcl[self.cmd_offset+offset] = value
}

// write_path emits the coverage command for one (draw object, tile) pair.
// The three words are reserved up front so both branches fit; the solid
// branch wastes the reservation, which is accepted.
func (self *tileState) write_path(
	config *renderer.ConfigUniform,
	bump *renderer.BumpAllocators,
	ptcl []uint32,
	tile renderer.Tile,
	linewidth float32,
) {
	self.alloc_cmd(3, config, bump, ptcl)
	if linewidth < 0.0 {
		if tile.Segments != 0 {
			self.write(ptcl, 0, CMD_FILL)
			self.write(ptcl, 1, tile.Segments)
			self.write(ptcl, 2, uint32(tile.Backdrop))
			self.cmd_offset += 3
		} else {
			self.write(ptcl, 0, CMD_SOLID)
			self.cmd_offset += 1
		}
	} else {
		self.write(ptcl, 0, CMD_STROKE)
		self.write(ptcl, 1, tile.Segments)
		self.write(ptcl, 2, math.Float32bits(0.5*linewidth))
		self.cmd_offset += 3
	}
}

func (self *tileState) write_color(
	config *renderer.ConfigUniform,
	bump *renderer.BumpAllocators,
	ptcl []uint32,
	rgba_color uint32,
) {
	self.alloc_cmd(2, config, bump, ptcl)
	self.write(ptcl, 0, CMD_COLOR)
	self.write(ptcl, 1, rgba_color)
	self.cmd_offset += 2
}

// coarseScratch is one workgroup's shared scratchpad. Each worker
// goroutine owns one and reuses it across bins.
type coarseScratch struct {
	sh_bitmaps      [N_SLICE][N_TILE]uint32
	sh_part_count   [N_TILE]uint32
	sh_part_offsets [N_TILE]uint32
	sh_drawobj_ix   [N_TILE]uint32
	sh_tile_count   [N_TILE]uint32
	sh_tile_stride  [N_TILE]uint32
	sh_tile_width   [N_TILE]uint32
	sh_tile_x0      [N_TILE]uint32
	sh_tile_y0      [N_TILE]uint32
	sh_tile_base    [N_TILE]uint32
	states          [N_TILE]tileState
}

// Coarse merges each bin's binned draw-object lists in streaming windows
// of N_TILE elements, fans every draw object out over the tiles it covers,
// and emits each tile's command stream.
//
// One workgroup processes one bin; workgroups run concurrently on a small
// goroutine pool and interact only through atomics on bump. Within a
// workgroup the lane phases between barriers are expressed as plain loops
// over the lane index, which preserves the shader's observable behavior:
// all cross-lane reads happen on the far side of the corresponding
// barrier.
func Coarse(_ uint32, resources []CPUBinding) {
	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	scene := safeish.SliceCast[[]uint32](resources[1].(CPUBuffer))
	draw_monoids := safeish.SliceCast[[]renderer.DrawMonoid](resources[2].(CPUBuffer))
	bin_headers := safeish.SliceCast[[]renderer.BinHeader](resources[3].(CPUBuffer))
	info_bin_data := safeish.SliceCast[[]uint32](resources[4].(CPUBuffer))
	paths := safeish.SliceCast[[]renderer.Path](resources[5].(CPUBuffer))
	tiles := safeish.SliceCast[[]renderer.Tile](resources[6].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[7].(CPUBuffer))
	ptcl := safeish.SliceCast[[]uint32](resources[8].(CPUBuffer))

	width_in_bins := (config.WidthInTiles + N_TILE_X - 1) / N_TILE_X
	height_in_bins := (config.HeightInTiles + N_TILE_Y - 1) / N_TILE_Y
	n_bins := width_in_bins * height_in_bins

	workers := min(runtime.GOMAXPROCS(0), int(n_bins))
	bin_ch := make(chan uint32)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sh := &coarseScratch{}
			for bin_ix := range bin_ch {
				coarseBin(config, scene, draw_monoids, bin_headers, info_bin_data, paths, tiles, bump, ptcl, sh, bin_ix)
			}
		}()
	}
	for bin_ix := range n_bins {
		bin_ch <- bin_ix
	}
	close(bin_ch)
	wg.Wait()
}

func coarseBin(
	config *renderer.ConfigUniform,
	scene []uint32,
	draw_monoids []renderer.DrawMonoid,
	bin_headers []renderer.BinHeader,
	info_bin_data []uint32,
	paths []renderer.Path,
	tiles []renderer.Tile,
	bump *renderer.BumpAllocators,
	ptcl []uint32,
	sh *coarseScratch,
	bin_ix uint32,
) {
	width_in_tiles := config.WidthInTiles
	height_in_tiles := config.HeightInTiles
	width_in_bins := (width_in_tiles + N_TILE_X - 1) / N_TILE_X
	drawtag_base := config.Layout.DrawTagBase
	n_partitions := (config.Layout.NumDrawObjects + N_TILE - 1) / N_TILE

	bin_x := bin_ix % width_in_bins
	bin_y := bin_ix / width_in_bins
	bin_tile_x := N_TILE_X * bin_x
	bin_tile_y := N_TILE_Y * bin_y

	for local_ix := range uint32(N_TILE) {
		tile_x := local_ix % N_TILE_X
		tile_y := local_ix / N_TILE_X
		this_tile_ix := (bin_tile_y+tile_y)*width_in_tiles + bin_tile_x + tile_x
		sh.states[local_ix] = newTileState(this_tile_ix)
	}

	var rd_ix uint32
	var wr_ix uint32
	var partition_ix uint32
	var ready_ix uint32
	// Base element index of the partition batch currently held in
	// sh_part_count/sh_part_offsets.
	var part_start_ix uint32

	for {
		for i := range sh.sh_bitmaps {
			clear(sh.sh_bitmaps[i][:])
		}

		// Refill the window: read and scan partition headers whenever the
		// scanned elements are exhausted, then have each lane fetch one
		// draw-object ref via binary search over the partition prefix
		// sums.
		for {
			if ready_ix == wr_ix && partition_ix < n_partitions {
				part_start_ix = ready_ix
				var sum uint32
				for local_ix := range uint32(N_TILE) {
					var count uint32
					if partition_ix+local_ix < n_partitions {
						in_ix := (partition_ix+local_ix)*N_TILE + bin_ix
						bin_header := bin_headers[in_ix]
						count = bin_header.ElementCount
						sh.sh_part_offsets[local_ix] = bin_header.ChunkOffset
					} else {
						sh.sh_part_offsets[local_ix] = 0
					}
					sum += count
					sh.sh_part_count[local_ix] = part_start_ix + sum
				}
				ready_ix = sh.sh_part_count[N_TILE-1]
				partition_ix += N_TILE
			}
			for local_ix := range uint32(N_TILE) {
				ix := rd_ix + local_ix
				if ix >= wr_ix && ix < ready_ix {
					var part_ix uint32
					for probe_step := uint32(N_TILE / 2); probe_step > 0; probe_step >>= 1 {
						probe := part_ix + probe_step
						if ix >= sh.sh_part_count[probe-1] {
							part_ix = probe
						}
					}
					rel_ix := ix - part_start_ix
					if part_ix > 0 {
						rel_ix = ix - sh.sh_part_count[part_ix-1]
					}
					offset := config.Layout.BinDataStart + sh.sh_part_offsets[part_ix]
					sh.sh_drawobj_ix[local_ix] = info_bin_data[offset+rel_ix]
				}
			}
			wr_ix = min(rd_ix+N_TILE, ready_ix)
			if wr_ix-rd_ix >= N_TILE || (wr_ix >= ready_ix && partition_ix >= n_partitions) {
				break
			}
		}

		// Fan out: the lane index is reinterpreted as a window element.
		// Each lane intersects its draw object's tile rectangle with the
		// bin and records the geometry for the scatter pass.
		var total_tile_count uint32
		for local_ix := range uint32(N_TILE) {
			tag := uint32(DRAWTAG_NOP)
			var drawobj_ix uint32
			if rd_ix+local_ix < wr_ix {
				drawobj_ix = sh.sh_drawobj_ix[local_ix]
				tag = scene[drawtag_base+drawobj_ix]
			}
			var tile_count uint32
			if tag != DRAWTAG_NOP {
				draw_monoid := draw_monoids[drawobj_ix]
				path := paths[draw_monoid.PathIdx]
				stride := path.Bbox[2] - path.Bbox[0]
				dx := int32(path.Bbox[0]) - int32(bin_tile_x)
				dy := int32(path.Bbox[1]) - int32(bin_tile_y)
				x0 := clampi(dx, 0, N_TILE_X)
				y0 := clampi(dy, 0, N_TILE_Y)
				x1 := clampi(int32(path.Bbox[2])-int32(bin_tile_x), 0, N_TILE_X)
				y1 := clampi(int32(path.Bbox[3])-int32(bin_tile_y), 0, N_TILE_Y)
				width := uint32(x1 - x0)
				tile_count = width * uint32(y1-y0)
				base := int32(path.Tiles) - (dy*int32(stride) + dx)
				sh.sh_tile_stride[local_ix] = stride
				sh.sh_tile_width[local_ix] = width
				sh.sh_tile_x0[local_ix] = uint32(x0)
				sh.sh_tile_y0[local_ix] = uint32(y0)
				sh.sh_tile_base[local_ix] = uint32(base)
			}
			total_tile_count += tile_count
			sh.sh_tile_count[local_ix] = total_tile_count
		}

		// Scatter: all (draw object, tile) pairs of the window, load
		// balanced over the lanes. A bit is set iff the tile has content,
		// so the emission scan below touches only live pairs. The bit
		// position encodes the window element, which preserves draw order.
		for ix := uint32(0); ix < total_tile_count; ix++ {
			var el_ix uint32
			for probe_step := uint32(N_TILE / 2); probe_step > 0; probe_step >>= 1 {
				probe := el_ix + probe_step
				if ix >= sh.sh_tile_count[probe-1] {
					el_ix = probe
				}
			}
			seq_ix := ix
			if el_ix > 0 {
				seq_ix -= sh.sh_tile_count[el_ix-1]
			}
			width := sh.sh_tile_width[el_ix]
			x := sh.sh_tile_x0[el_ix] + seq_ix%width
			y := sh.sh_tile_y0[el_ix] + seq_ix/width
			tile := tiles[sh.sh_tile_base[el_ix]+sh.sh_tile_stride[el_ix]*y+x]
			include_tile := tile.Segments != 0 || tile.Backdrop != 0
			if include_tile {
				sh.sh_bitmaps[el_ix/32][y*N_TILE_X+x] |= 1 << (el_ix & 31)
			}
		}

		// Emit: the lane index reverts to its tile. Scanning the slices
		// low to high and each word LSB first visits window elements in
		// ascending order, so commands land in draw order.
		for local_ix := range uint32(N_TILE) {
			tile_x := local_ix % N_TILE_X
			tile_y := local_ix / N_TILE_X
			tile_state := &sh.states[local_ix]
			for slice_ix := range uint32(N_SLICE) {
				bitmap := sh.sh_bitmaps[slice_ix][local_ix]
				for bitmap != 0 {
					el_ix := slice_ix*32 + uint32(bits.TrailingZeros32(bitmap))
					bitmap &= bitmap - 1
					drawobj_ix := sh.sh_drawobj_ix[el_ix]
					drawtag := scene[drawtag_base+drawobj_ix]
					draw_monoid := draw_monoids[drawobj_ix]
					tile := tiles[sh.sh_tile_base[el_ix]+sh.sh_tile_stride[el_ix]*tile_y+tile_x]
					switch encoding.DrawTag(drawtag) {
					case encoding.DrawTagColor:
						linewidth := math.Float32frombits(info_bin_data[draw_monoid.InfoOffset])
						tile_state.write_path(config, bump, ptcl, tile, linewidth)
						rgba_color := scene[config.Layout.DrawDataBase+draw_monoid.SceneOffset]
						tile_state.write_color(config, bump, ptcl, rgba_color)
					default:
						panic("unreachable")
					}
				}
			}
		}

		rd_ix += N_TILE
		if rd_ix >= ready_ix && partition_ix >= n_partitions {
			break
		}
	}

	for local_ix := range uint32(N_TILE) {
		tile_x := local_ix % N_TILE_X
		tile_y := local_ix / N_TILE_X
		tile_state := &sh.states[local_ix]
		if bin_tile_x+tile_x < width_in_tiles && bin_tile_y+tile_y < height_in_tiles && !tile_state.failed {
			ptcl[tile_state.cmd_offset] = CMD_END
		}
	}
}
