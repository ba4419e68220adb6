// Copyright 2023 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"github.com/chewxy/math32"

	"honnef.co/go/mondrian/jmath"
)

// Shorthands for the kernel hot loops.

func floor32(f float32) float32       { return math32.Floor(f) }
func ceil32(f float32) float32        { return math32.Ceil(f) }
func abs32(f float32) float32         { return math32.Abs(f) }
func round32(f float32) float32       { return math32.Round(f) }
func copysign32(x, y float32) float32 { return math32.Copysign(x, y) }
func sign32(f float32) float32        { return jmath.Sign32(f) }

func clamp32(x, lo, hi float32) float32 {
	return jmath.Clamp(x, lo, hi)
}

func clampi(x, lo, hi int32) int32 {
	return jmath.Clamp(x, lo, hi)
}

type vec2 struct {
	x, y float32
}

func vec2FromArray(arr [2]float32) vec2 {
	return vec2{arr[0], arr[1]}
}

func (v vec2) toArray() [2]float32 {
	return [2]float32{v.x, v.y}
}

func (v vec2) add(o vec2) vec2 {
	return vec2{v.x + o.x, v.y + o.y}
}

func (v vec2) sub(o vec2) vec2 {
	return vec2{v.x - o.x, v.y - o.y}
}

func (v vec2) mul(f float32) vec2 {
	return vec2{v.x * f, v.y * f}
}

func (v vec2) dot(o vec2) float32 {
	return v.x*o.x + v.y*o.y
}

func (v vec2) length() float32 {
	return math32.Hypot(v.x, v.y)
}
