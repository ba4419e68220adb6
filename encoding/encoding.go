// Copyright 2022 the Vello Authors
// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package encoding accumulates a scene as a sequence of draw objects.
//
// The encoding is the input contract of the rasterization pipeline: per
// draw object a tag, a packed color word, a linewidth (negative for
// fills), and the path flattened to lines in pixel coordinates. Curves are
// accepted as [curve.PathElement] streams and flattened on the fly.
package encoding

import (
	"iter"

	"honnef.co/go/curve"

	"honnef.co/go/mondrian/gfx"
	"honnef.co/go/mondrian/jmath"
)

// Edge is a flattened path edge in pixel coordinates.
type Edge struct {
	P0 [2]float32
	P1 [2]float32
}

// DrawObject is one element of the scene.
type DrawObject struct {
	Tag DrawTag
	// Draw data words; for DrawTagColor a single packed premultiplied
	// RGBA word.
	Data []uint32
	// Stroke width in pixels, or negative for a fill.
	Linewidth float32
	Lines     []Edge
	// Pixel-space bounding box (x0, y0, x1, y1), including the stroke
	// radius and anti-aliasing margin for strokes.
	Bbox [4]float32
}

// Scene is an ordered list of draw objects. Draw order is paint order:
// later objects composite over earlier ones.
type Scene struct {
	Objects []DrawObject
}

func (sc *Scene) Reset() {
	sc.Objects = sc.Objects[:0]
}

// Fill adds a solid-color fill of the transformed path, using the non-zero
// winding rule. Open subpaths are closed implicitly.
func (sc *Scene) Fill(transform jmath.Transform, c gfx.Color, path iter.Seq[curve.PathElement]) {
	fl := flattener{transform: transform, closeSubpaths: true}
	fl.elements(path)
	sc.push(c, -1, fl.finish())
}

// Stroke adds a stroke of the transformed path with the given width.
// Round caps and joins are inherent to the distance-field stroker; no cap
// or join geometry is generated.
func (sc *Scene) Stroke(width float32, transform jmath.Transform, c gfx.Color, path iter.Seq[curve.PathElement]) {
	fl := flattener{transform: transform}
	fl.elements(path)
	lines := fl.finish()
	sc.push(c, max(width, hairline), lines)
}

// Strokes thinner than a hairline still cover the hairline's footprint.
const hairline = 0.1

func (sc *Scene) push(c gfx.Color, linewidth float32, lines []Edge) {
	if len(lines) == 0 {
		return
	}
	bbox := [4]float32{1e9, 1e9, -1e9, -1e9}
	for _, l := range lines {
		bbox[0] = min(bbox[0], l.P0[0], l.P1[0])
		bbox[1] = min(bbox[1], l.P0[1], l.P1[1])
		bbox[2] = max(bbox[2], l.P0[0], l.P1[0])
		bbox[3] = max(bbox[3], l.P0[1], l.P1[1])
	}
	if linewidth >= 0 {
		// Stroke coverage extends half a width beyond the spine, plus one
		// pixel of anti-aliasing ramp.
		r := 0.5*linewidth + 1
		bbox[0] -= r
		bbox[1] -= r
		bbox[2] += r
		bbox[3] += r
	}
	sc.Objects = append(sc.Objects, DrawObject{
		Tag:       DrawTagColor,
		Data:      []uint32{c.PremulUint32()},
		Linewidth: linewidth,
		Lines:     lines,
		Bbox:      bbox,
	})
}

// flattener converts path elements into transformed lines. Quadratic and
// cubic Béziers are subdivided uniformly in parameter space; since the
// transform is affine it is applied to control points before subdivision.
type flattener struct {
	transform     jmath.Transform
	closeSubpaths bool

	lines      []Edge
	start      [2]float32
	curr       [2]float32
	inSubpath  bool
	hasSegment bool
}

func (fl *flattener) elements(path iter.Seq[curve.PathElement]) {
	for el := range path {
		switch el.Kind {
		case curve.MoveToKind:
			fl.closeIfNeeded()
			fl.start = fl.point(el.P0)
			fl.curr = fl.start
			fl.inSubpath = true
			fl.hasSegment = false
		case curve.LineToKind:
			fl.lineTo(fl.point(el.P0))
		case curve.QuadToKind:
			p0 := fl.curr
			p1 := fl.point(el.P0)
			p2 := fl.point(el.P1)
			n := subdivisions(polylineLength(p0, p1, p2))
			for i := 1; i <= n; i++ {
				t := float32(i) / float32(n)
				fl.lineTo(evalQuad(p0, p1, p2, t))
			}
		case curve.CubicToKind:
			p0 := fl.curr
			p1 := fl.point(el.P0)
			p2 := fl.point(el.P1)
			p3 := fl.point(el.P2)
			n := subdivisions(polylineLength(p0, p1, p2, p3))
			for i := 1; i <= n; i++ {
				t := float32(i) / float32(n)
				fl.lineTo(evalCubic(p0, p1, p2, p3, t))
			}
		case curve.ClosePathKind:
			if fl.inSubpath {
				fl.lineTo(fl.start)
				fl.hasSegment = false
			}
		}
	}
}

func (fl *flattener) finish() []Edge {
	fl.closeIfNeeded()
	return fl.lines
}

func (fl *flattener) closeIfNeeded() {
	if fl.closeSubpaths && fl.inSubpath && fl.hasSegment {
		fl.lineTo(fl.start)
	}
	fl.inSubpath = false
	fl.hasSegment = false
}

func (fl *flattener) lineTo(p [2]float32) {
	if p == fl.curr {
		return
	}
	fl.lines = append(fl.lines, Edge{P0: fl.curr, P1: p})
	fl.curr = p
	fl.hasSegment = true
}

func (fl *flattener) point(p curve.Point) [2]float32 {
	x, y := fl.transform.Apply(float32(p.X), float32(p.Y))
	return [2]float32{x, y}
}

// subdivisions picks a uniform subdivision count for a curve whose control
// polygon has the given length. Uniform sampling error shrinks
// quadratically in the step count, so the count grows with the square
// root of the length over the tolerance.
func subdivisions(length float32) int {
	const tolerance = 0.1
	n := int(jmath.Ceil32(jmath.Sqrt32(length / tolerance)))
	return jmath.Clamp(n, 1, 256)
}

func polylineLength(pts ...[2]float32) float32 {
	var sum float32
	for i := 1; i < len(pts); i++ {
		sum += jmath.Hypot32(pts[i][0]-pts[i-1][0], pts[i][1]-pts[i-1][1])
	}
	return sum
}

func lerp(a, b [2]float32, t float32) [2]float32 {
	return [2]float32{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
	}
}

func evalQuad(p0, p1, p2 [2]float32, t float32) [2]float32 {
	a := lerp(p0, p1, t)
	b := lerp(p1, p2, t)
	return lerp(a, b, t)
}

func evalCubic(p0, p1, p2, p3 [2]float32, t float32) [2]float32 {
	a := lerp(p0, p1, t)
	b := lerp(p1, p2, t)
	c := lerp(p2, p3, t)
	return evalQuad(a, b, c, t)
}
