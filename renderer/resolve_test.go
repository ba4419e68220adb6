// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honnef.co/go/mondrian/encoding"
	"honnef.co/go/mondrian/gfx"
	"honnef.co/go/mondrian/jmath"
)

func testScene() *encoding.Scene {
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), encoding.Rect(0, 0, 32, 32))
	sc.Stroke(4, jmath.Identity, gfx.RGB(0, 1, 0), encoding.Line(0, 0, 64, 48))
	sc.Fill(jmath.Identity, gfx.RGBA(0, 0, 1, 0.5), encoding.Rect(8, 8, 24, 24))
	return &sc
}

func TestResolveLayout(t *testing.T) {
	r := Resolve(testScene())

	assert.EqualValues(t, 3, r.Layout.NumDrawObjects)
	assert.EqualValues(t, 0, r.Layout.DrawTagBase)
	assert.EqualValues(t, 3, r.Layout.DrawDataBase)
	assert.EqualValues(t, 3, r.Layout.BinDataStart, "one info word per color object")

	require.Len(t, r.Scene, 6)
	for i := range 3 {
		assert.EqualValues(t, encoding.DrawTagColor, r.Scene[i])
	}
	assert.Equal(t, gfx.RGB(1, 0, 0).PremulUint32(), r.Scene[3])
	assert.Equal(t, gfx.RGB(0, 1, 0).PremulUint32(), r.Scene[4])
}

func TestResolveMonoids(t *testing.T) {
	r := Resolve(testScene())
	require.Len(t, r.DrawMonoids, 3)
	for i, m := range r.DrawMonoids {
		assert.EqualValues(t, i, m.PathIdx)
		assert.EqualValues(t, i, m.SceneOffset)
		assert.EqualValues(t, i, m.InfoOffset)
		assert.EqualValues(t, 0, m.ClipIdx)
	}
}

func TestResolveInfo(t *testing.T) {
	r := Resolve(testScene())
	require.Len(t, r.Info, 3)
	assert.Negative(t, math.Float32frombits(r.Info[0]))
	assert.EqualValues(t, 4, math.Float32frombits(r.Info[1]))
	assert.Negative(t, math.Float32frombits(r.Info[2]))
}

func TestResolveLines(t *testing.T) {
	r := Resolve(testScene())
	var perObject [3]int
	for _, l := range r.Lines {
		perObject[l.PathIdx]++
	}
	assert.Equal(t, [3]int{4, 1, 4}, perObject)
}

func TestDrawMonoidCombine(t *testing.T) {
	m := NewDrawMonoid(encoding.DrawTagColor)
	assert.EqualValues(t, 1, m.PathIdx)
	assert.EqualValues(t, 1, m.SceneOffset)
	assert.EqualValues(t, 1, m.InfoOffset)

	nop := NewDrawMonoid(encoding.DrawTagNop)
	assert.Zero(t, nop.PathIdx)

	sum := m.Combine(m).Combine(nop)
	assert.EqualValues(t, 2, sum.PathIdx)
	assert.EqualValues(t, 2, sum.SceneOffset)
}

func TestEstimatesClampToViewport(t *testing.T) {
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), encoding.Rect(-1000, -1000, 2000, 2000))
	r := Resolve(&sc)
	est := r.Estimates(64, 64)
	assert.EqualValues(t, 16, est.Tiles, "4×4 viewport tiles")
	assert.EqualValues(t, 1, est.BinData)
}

func TestNewRenderConfig(t *testing.T) {
	var sc encoding.Scene
	sc.Fill(jmath.Identity, gfx.RGB(1, 0, 0), encoding.Rect(0, 0, 40, 40))
	r := Resolve(&sc)
	cfg := NewRenderConfig(&r.Layout, 100, 50, r.Estimates(100, 50))

	assert.EqualValues(t, 7, cfg.Gpu.WidthInTiles)
	assert.EqualValues(t, 4, cfg.Gpu.HeightInTiles)
	assert.EqualValues(t, 100, cfg.Gpu.TargetWidth)
	assert.Equal(t, WorkgroupSize{1, 1, 1}, cfg.WorkgroupCounts.Coarse)
	assert.Equal(t, WorkgroupSize{7, 4, 1}, cfg.WorkgroupCounts.Fine)
	assert.EqualValues(t, cfg.BufferSizes.Ptcl, cfg.Gpu.PtclSize)
	assert.Greater(t, uint32(cfg.BufferSizes.Ptcl), 7*4*uint32(64), "dynamic region present")
}
