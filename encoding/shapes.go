// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"iter"
	"slices"

	"honnef.co/go/curve"
)

// Rect returns the path elements of an axis-aligned rectangle, wound
// clockwise in a y-down coordinate system.
func Rect(x0, y0, x1, y1 float64) iter.Seq[curve.PathElement] {
	return slices.Values([]curve.PathElement{
		moveTo(x0, y0),
		lineTo(x1, y0),
		lineTo(x1, y1),
		lineTo(x0, y1),
		closePath(),
	})
}

// Polygon returns the closed path through the given (x, y) vertex pairs.
func Polygon(pts ...[2]float64) iter.Seq[curve.PathElement] {
	els := make([]curve.PathElement, 0, len(pts)+1)
	for i, p := range pts {
		if i == 0 {
			els = append(els, moveTo(p[0], p[1]))
		} else {
			els = append(els, lineTo(p[0], p[1]))
		}
	}
	els = append(els, closePath())
	return slices.Values(els)
}

// Line returns the open path from (x0, y0) to (x1, y1).
func Line(x0, y0, x1, y1 float64) iter.Seq[curve.PathElement] {
	return slices.Values([]curve.PathElement{
		moveTo(x0, y0),
		lineTo(x1, y1),
	})
}

func moveTo(x, y float64) curve.PathElement {
	return curve.PathElement{Kind: curve.MoveToKind, P0: curve.Point{X: x, Y: y}}
}

func lineTo(x, y float64) curve.PathElement {
	return curve.PathElement{Kind: curve.LineToKind, P0: curve.Point{X: x, Y: y}}
}

func closePath() curve.PathElement {
	return curve.PathElement{Kind: curve.ClosePathKind}
}
