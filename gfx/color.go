// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gfx provides the color plumbing for scene encoding: packing
// straight-alpha colors into the premultiplied RGBA words the pipeline
// consumes.
package gfx

import "honnef.co/go/mondrian/jmath"

// Color is a straight-alpha RGBA color with channels in [0, 1].
type Color struct {
	R, G, B, A float32
}

func RGB(r, g, b float32) Color {
	return Color{r, g, b, 1}
}

func RGBA(r, g, b, a float32) Color {
	return Color{r, g, b, a}
}

func (c Color) WithAlphaFactor(alpha float32) Color {
	c.A *= alpha
	return c
}

// PremulUint32 packs c as premultiplied 8-bit channels into a scene color
// word, R in the most significant byte: 0xRRGGBBAA.
func (c Color) PremulUint32() uint32 {
	r := packChannel(c.R * c.A)
	g := packChannel(c.G * c.A)
	b := packChannel(c.B * c.A)
	a := packChannel(c.A)
	return r<<24 | g<<16 | b<<8 | a
}

func packChannel(v float32) uint32 {
	return uint32(jmath.Round32(jmath.Clamp(v, 0, 1) * 255))
}

// FromPacked unpacks a framebuffer pixel (0xAABBGGRR) into its channels.
// The fine stage stores straight alpha, so the color channels are returned
// as stored. Used for inspecting render output.
func FromPacked(px uint32) Color {
	a := float32(px>>24&0xff) / 255
	b := float32(px>>16&0xff) / 255
	g := float32(px>>8&0xff) / 255
	r := float32(px&0xff) / 255
	return Color{r, g, b, a}
}
