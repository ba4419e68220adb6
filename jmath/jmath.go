// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package jmath provides the float32 math helpers used by the
// rasterization kernels.
package jmath

import (
	"structs"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"

	"honnef.co/go/curve"
)

func Abs32(f float32) float32 {
	return math32.Abs(f)
}

func Floor32(f float32) float32 {
	return math32.Floor(f)
}

func Ceil32(f float32) float32 {
	return math32.Ceil(f)
}

func Round32(f float32) float32 {
	return math32.Round(f)
}

func Sqrt32(f float32) float32 {
	return math32.Sqrt(f)
}

func Hypot32(x, y float32) float32 {
	return math32.Hypot(x, y)
}

func Copysign32(x, y float32) float32 {
	return math32.Copysign(x, y)
}

// Sign32 returns -1, 0, or 1 according to the sign of f, matching the GPU
// sign intrinsic (not Copysign, which maps 0 to ±1).
func Sign32(f float32) float32 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func Clamp[T constraints.Integer | constraints.Float](x, lo, hi T) T {
	return min(max(x, lo), hi)
}

func AlignUp(len int, alignment int) int {
	return (len + alignment - 1) & -alignment
}

func AlignUp32(len uint32, alignment uint32) uint32 {
	return (len + alignment - 1) & -alignment
}

// Transform is a 2D affine transform in the same column layout the GPU
// stages use.
type Transform struct {
	_ structs.HostLayout

	Matrix      [4]float32
	Translation [2]float32
}

var Identity = Transform{
	Matrix: [4]float32{1, 0, 0, 1},
}

func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Matrix: [4]float32{
			t.Matrix[0]*other.Matrix[0] + t.Matrix[2]*other.Matrix[1],
			t.Matrix[1]*other.Matrix[0] + t.Matrix[3]*other.Matrix[1],
			t.Matrix[0]*other.Matrix[2] + t.Matrix[2]*other.Matrix[3],
			t.Matrix[1]*other.Matrix[2] + t.Matrix[3]*other.Matrix[3],
		},
		Translation: [2]float32{
			t.Matrix[0]*other.Translation[0] +
				t.Matrix[2]*other.Translation[1] +
				t.Translation[0],
			t.Matrix[1]*other.Translation[0] +
				t.Matrix[3]*other.Translation[1] +
				t.Translation[1],
		},
	}
}

// Apply transforms the point (x, y).
func (t Transform) Apply(x, y float32) (float32, float32) {
	ox := t.Matrix[0]*x + t.Matrix[2]*y + t.Translation[0]
	oy := t.Matrix[1]*x + t.Matrix[3]*y + t.Translation[1]
	return ox, oy
}

func Translate(x, y float32) Transform {
	return Transform{
		Matrix:      [4]float32{1, 0, 0, 1},
		Translation: [2]float32{x, y},
	}
}

func Scale(x, y float32) Transform {
	return Transform{
		Matrix: [4]float32{x, 0, 0, y},
	}
}

func TransformFromKurbo(transform curve.Affine) Transform {
	c := transform.Coefficients()
	return Transform{
		Matrix:      [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])},
		Translation: [2]float32{float32(c[4]), float32(c[5])},
	}
}
