// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mondrian

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honnef.co/go/mondrian/encoding"
	"honnef.co/go/mondrian/gfx"
	"honnef.co/go/mondrian/jmath"
)

func alpha(px uint32) float32 {
	return float32(px>>24&0xff) / 255
}

func TestRenderEmptyScene(t *testing.T) {
	var sc encoding.Scene
	frame, err := Render(&sc, 40, 24)
	require.NoError(t, err)
	assert.EqualValues(t, 40, frame.Width)
	assert.EqualValues(t, 24, frame.Height)
	assert.EqualValues(t, 48, frame.Stride, "stride rounds up to whole tiles")
	for _, px := range frame.Pix {
		require.EqualValues(t, 0, px)
	}
}

func TestRenderSolidRect(t *testing.T) {
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), encoding.Rect(0, 0, 32, 16))
	frame, err := Render(&sc, 32, 16)
	require.NoError(t, err)
	for y := range uint32(16) {
		for x := range uint32(32) {
			require.Equalf(t, uint32(0xFF0000FF), frame.Pixel(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestRenderWindingRowArea(t *testing.T) {
	// An axis-aligned slab with fractional edges: the coverage across a
	// raster row must sum to the slab's geometric width.
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 1, 1), encoding.Rect(2.25, 2, 7.75, 14))
	frame, err := Render(&sc, 16, 16)
	require.NoError(t, err)

	var sum float32
	for x := range uint32(16) {
		sum += alpha(frame.Pixel(x, 8))
	}
	assert.InDelta(t, 5.5, sum, 0.05)

	// Interior pixels are fully opaque, exterior ones untouched.
	assert.Equal(t, uint32(0xFFFFFFFF), frame.Pixel(5, 8))
	assert.EqualValues(t, 0, frame.Pixel(12, 8))
}

func TestRenderDiagonalStroke(t *testing.T) {
	var sc encoding.Scene
	sc.Stroke(1, jmath.Identity, gfx.RGB(1, 1, 1), encoding.Line(0, 0, 16, 16))
	frame, err := Render(&sc, 32, 32)
	require.NoError(t, err)

	for i := uint32(2); i < 14; i++ {
		require.InDeltaf(t, 1.0, alpha(frame.Pixel(i, i)), 0.01, "pixel (%d, %d)", i, i)
		require.InDeltaf(t, 0.2929, alpha(frame.Pixel(i+1, i)), 0.02, "pixel (%d, %d)", i+1, i)
		require.InDeltaf(t, 0.2929, alpha(frame.Pixel(i, i+1)), 0.02, "pixel (%d, %d)", i, i+1)
	}
	assert.EqualValues(t, 0, frame.Pixel(28, 3), "far from the spine")
}

func TestRenderDrawOrder(t *testing.T) {
	// Two overlapping half-transparent squares; compositing must be
	// source-over in draw order (A below B).
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGBA(1, 0, 0, 0.5), encoding.Rect(2, 2, 20, 20))
	sc.Fill(jmath.Identity, gfx.RGBA(0, 0, 1, 0.5), encoding.Rect(10, 10, 28, 28))
	frame, err := Render(&sc, 32, 32)
	require.NoError(t, err)

	overlap := gfx.FromPacked(frame.Pixel(15, 15))
	assert.InDelta(t, 0.75, overlap.A, 0.01)
	assert.InDelta(t, 1.0/3, overlap.R, 0.02, "A shows through B at one third")
	assert.InDelta(t, 2.0/3, overlap.B, 0.02, "B dominates")
	assert.InDelta(t, 0, overlap.G, 0.01)

	aOnly := gfx.FromPacked(frame.Pixel(5, 5))
	assert.InDelta(t, 0.5, aOnly.A, 0.01)
	assert.InDelta(t, 1.0, aOnly.R, 0.01)
}

func TestRenderBinStraddle(t *testing.T) {
	// The bbox straddles the bin boundary at tile x=16; both bins must
	// produce identical coverage.
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(0, 1, 0), encoding.Rect(200, 2, 280, 30))
	frame, err := Render(&sc, 288, 32)
	require.NoError(t, err)
	for x := uint32(208); x < 272; x++ {
		require.Equalf(t, uint32(0xFF00FF00), frame.Pixel(x, 16), "pixel (%d, 16)", x)
	}
}

func TestRenderTransform(t *testing.T) {
	// The same rect, once pre-transformed and once via the transform
	// argument, must rasterize identically.
	var a encoding.Scene
	a.Fill(jmath.Identity, gfx.RGB(1, 0, 1), encoding.Rect(8, 4, 24, 12))
	var b encoding.Scene
	b.Fill(jmath.Translate(8, 4).Mul(jmath.Scale(2, 1)), gfx.RGB(1, 0, 1), encoding.Rect(0, 0, 8, 8))

	fa, err := Render(&a, 32, 16)
	require.NoError(t, err)
	fb, err := Render(&b, 32, 16)
	require.NoError(t, err)
	assert.Equal(t, fa.Pix, fb.Pix)
}

func TestFrameImage(t *testing.T) {
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), encoding.Rect(0, 0, 8, 8))
	frame, err := Render(&sc, 20, 12)
	require.NoError(t, err)

	img := frame.Image()
	assert.Equal(t, 20, img.Rect.Dx())
	assert.Equal(t, 12, img.Rect.Dy())
	r, g, b, a := img.At(4, 4).RGBA()
	assert.EqualValues(t, 0xffff, r)
	assert.EqualValues(t, 0, g)
	assert.EqualValues(t, 0, b)
	assert.EqualValues(t, 0xffff, a)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	var sc encoding.Scene
	_, err := Render(&sc, 16, 16)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "mondrian: dispatching")
	assert.Contains(t, buf.String(), "mondrian: finished")
}
