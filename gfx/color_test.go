// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPremulUint32(t *testing.T) {
	assert.Equal(t, uint32(0xFF0000FF), RGB(1, 0, 0).PremulUint32())
	assert.Equal(t, uint32(0x00FF00FF), RGB(0, 1, 0).PremulUint32())
	assert.Equal(t, uint32(0xFFFFFFFF), RGB(1, 1, 1).PremulUint32())
	// Premultiplication scales the color channels by alpha.
	assert.Equal(t, uint32(0x80000080), RGBA(1, 0, 0, 0.5).PremulUint32())
	// Out-of-range channels clamp.
	assert.Equal(t, uint32(0xFF0000FF), RGB(2, -1, 0).PremulUint32())
}

func TestWithAlphaFactor(t *testing.T) {
	c := RGBA(1, 0, 0, 0.8).WithAlphaFactor(0.5)
	assert.InDelta(t, 0.4, c.A, 1e-6)
	assert.EqualValues(t, 1, c.R)
}

func TestFromPacked(t *testing.T) {
	c := FromPacked(0xFF0000FF)
	assert.InDelta(t, 1, c.R, 1e-3)
	assert.InDelta(t, 0, c.G, 1e-3)
	assert.InDelta(t, 0, c.B, 1e-3)
	assert.InDelta(t, 1, c.A, 1e-3)

	// Framebuffer pixels hold straight alpha; channels are not rescaled.
	c = FromPacked(0x80000080)
	assert.InDelta(t, 0.5, c.R, 0.01)
	assert.InDelta(t, 0.5, c.A, 0.01)

	assert.Zero(t, FromPacked(0))
}
