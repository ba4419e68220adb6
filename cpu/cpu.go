// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cpu provides CPU implementations of the rasterization compute
// shaders.
//
// These kernels intentionally replicate the compute shaders instead of
// using more CPU-friendly alternatives: the coarse stage runs the
// workgroup-cooperative streaming algorithm (sliding element window,
// prefix-sum load balancing, order-preserving bitmap scatter) with the
// lane phases between barriers expressed as plain loops, and workgroups
// dispatched across goroutines. Variable naming inside the kernels follows
// the shader source.
package cpu

import (
	"fmt"
	"unsafe"

	"honnef.co/go/safeish"

	"honnef.co/go/mondrian/ptcl"
)

const WG_SIZE = 256

const TILE_WIDTH = 16
const TILE_HEIGHT = 16
const TILE_SCALE = 1.0 / 16.0
const N_TILE_X = 16
const N_TILE_Y = 16
const N_TILE = N_TILE_X * N_TILE_Y
const N_SLICE = WG_SIZE / 32

const PTCL_INITIAL_ALLOC = ptcl.InitialAlloc
const PTCL_INCREMENT = ptcl.Increment
const PTCL_HEADROOM = ptcl.Headroom

// Tags for PTCL commands
const CMD_END = uint32(ptcl.TagEnd)
const CMD_FILL = uint32(ptcl.TagFill)
const CMD_STROKE = uint32(ptcl.TagStroke)
const CMD_SOLID = uint32(ptcl.TagSolid)
const CMD_COLOR = uint32(ptcl.TagColor)
const CMD_JUMP = uint32(ptcl.TagJump)

const DRAWTAG_NOP = 0

func assertInvariant(b bool) {
	if !b {
		panic("failed assert")
	}
}

func span(a, b float32) uint32 {
	return uint32(max(ceil32(max(a, b))-floor32(min(a, b)), 1))
}

type CPUBinding interface {
	// One of CPUBuffer, CPUTexture
}

type CPUBuffer []byte

type CPUTexture struct {
	Width  int
	Height int
	Pixels []uint32
}

// NewBuffer returns a CPUBuffer large enough for n values of type E,
// zero-initialized.
func NewBuffer[E any](n uint32) CPUBuffer {
	return make(CPUBuffer, uintptr(n)*unsafe.Sizeof(*new(E)))
}

// BufferOf returns a CPUBuffer viewing vs. The buffer aliases the slice.
func BufferOf[E any](vs []E) CPUBuffer {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vs))), uintptr(len(vs))*unsafe.Sizeof(*new(E)))
}

func fromBytes[E any, T *E](b []byte) T {
	if uintptr(len(b)) < unsafe.Sizeof(*new(E)) {
		panic(fmt.Sprintf(
			"buffer of size %d cannot represent object of size %d", len(b), unsafe.Sizeof(*new(E))))
	}

	return safeish.Cast[T](&b[0])
}
