// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/curve"

	"honnef.co/go/mondrian/gfx"
	"honnef.co/go/mondrian/jmath"
)

func TestFillRect(t *testing.T) {
	var sc Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), Rect(2, 3, 18, 11))
	require.Len(t, sc.Objects, 1)

	obj := sc.Objects[0]
	assert.Equal(t, DrawTagColor, obj.Tag)
	assert.Negative(t, obj.Linewidth)
	assert.Equal(t, []uint32{gfx.RGB(1, 0, 0).PremulUint32()}, obj.Data)
	assert.Len(t, obj.Lines, 4)
	assert.Equal(t, [4]float32{2, 3, 18, 11}, obj.Bbox)

	// The outline is a closed loop.
	assert.Equal(t, obj.Lines[0].P0, obj.Lines[3].P1)
}

func TestFillImplicitClose(t *testing.T) {
	var sc Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 1, 1), slices.Values([]curve.PathElement{
		{Kind: curve.MoveToKind, P0: curve.Point{X: 0, Y: 0}},
		{Kind: curve.LineToKind, P0: curve.Point{X: 10, Y: 0}},
		{Kind: curve.LineToKind, P0: curve.Point{X: 5, Y: 8}},
	}))
	require.Len(t, sc.Objects, 1)
	lines := sc.Objects[0].Lines
	require.Len(t, lines, 3, "open fill subpaths close implicitly")
	assert.Equal(t, lines[0].P0, lines[2].P1)
}

func TestStrokeStaysOpen(t *testing.T) {
	var sc Scene
	sc.Stroke(2, jmath.Identity, gfx.RGB(1, 1, 1), slices.Values([]curve.PathElement{
		{Kind: curve.MoveToKind, P0: curve.Point{X: 0, Y: 0}},
		{Kind: curve.LineToKind, P0: curve.Point{X: 10, Y: 0}},
		{Kind: curve.LineToKind, P0: curve.Point{X: 5, Y: 8}},
	}))
	require.Len(t, sc.Objects, 1)
	obj := sc.Objects[0]
	assert.Len(t, obj.Lines, 2)
	assert.EqualValues(t, 2, obj.Linewidth)

	// Stroke bboxes include the radius and anti-aliasing margin.
	assert.Equal(t, [4]float32{-2, -2, 12, 10}, obj.Bbox)
}

func TestStrokeHairlineMinimum(t *testing.T) {
	var sc Scene
	sc.Stroke(0, jmath.Identity, gfx.RGB(1, 1, 1), Line(0, 0, 8, 0))
	require.Len(t, sc.Objects, 1)
	assert.Positive(t, sc.Objects[0].Linewidth)
}

func TestQuadFlattening(t *testing.T) {
	var sc Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 1, 1), slices.Values([]curve.PathElement{
		{Kind: curve.MoveToKind, P0: curve.Point{X: 0, Y: 0}},
		{Kind: curve.QuadToKind, P0: curve.Point{X: 8, Y: 16}, P1: curve.Point{X: 16, Y: 0}},
	}))
	require.Len(t, sc.Objects, 1)
	lines := sc.Objects[0].Lines
	assert.Greater(t, len(lines), 4, "curves are subdivided")

	// The flattened polyline is continuous and ends where the implicit
	// close returns to the start.
	for i := 1; i < len(lines); i++ {
		assert.Equal(t, lines[i-1].P1, lines[i].P0)
	}
	assert.Equal(t, [2]float32{0, 0}, lines[len(lines)-1].P1)
	// The curve's apex at t=0.5 is the quad midpoint (8, 8).
	var maxY float32
	for _, l := range lines {
		maxY = max(maxY, l.P1[1])
	}
	assert.InDelta(t, 8, maxY, 0.1)
}

func TestDegenerateInputs(t *testing.T) {
	var sc Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 1, 1), slices.Values([]curve.PathElement{
		{Kind: curve.MoveToKind, P0: curve.Point{X: 5, Y: 5}},
		{Kind: curve.LineToKind, P0: curve.Point{X: 5, Y: 5}},
		{Kind: curve.ClosePathKind},
	}))
	assert.Empty(t, sc.Objects, "zero-area paths encode nothing")

	sc.Fill(jmath.Identity, gfx.RGB(1, 1, 1), slices.Values([]curve.PathElement{}))
	assert.Empty(t, sc.Objects)
}

func TestTransformAppliesToControlPoints(t *testing.T) {
	var plain Scene
	plain.Fill(jmath.Identity, gfx.RGB(1, 1, 1), Rect(0, 0, 4, 4))
	var moved Scene
	moved.Fill(jmath.Translate(10, 20), gfx.RGB(1, 1, 1), Rect(0, 0, 4, 4))

	require.Len(t, moved.Objects, 1)
	assert.Equal(t, [4]float32{10, 20, 14, 24}, moved.Objects[0].Bbox)
	for i, l := range moved.Objects[0].Lines {
		want := plain.Objects[0].Lines[i]
		assert.Equal(t, want.P0[0]+10, l.P0[0])
		assert.Equal(t, want.P0[1]+20, l.P0[1])
	}
}

func TestReset(t *testing.T) {
	var sc Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), Rect(0, 0, 8, 8))
	require.NotEmpty(t, sc.Objects)
	sc.Reset()
	assert.Empty(t, sc.Objects)
}
