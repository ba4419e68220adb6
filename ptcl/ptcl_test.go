// Copyright 2026 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ptcl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTile(t *testing.T) {
	buf := make([]uint32, 2*InitialAlloc)
	// Tile 1: fill, color, stroke, end.
	base := InitialAlloc
	buf[base+0] = uint32(TagFill)
	buf[base+1] = 17
	backdrop := int32(-2)
	buf[base+2] = uint32(backdrop)
	buf[base+3] = uint32(TagColor)
	buf[base+4] = 0xFF00FF00
	buf[base+5] = uint32(TagStroke)
	buf[base+6] = 9
	buf[base+7] = math.Float32bits(1.5)
	buf[base+8] = uint32(TagEnd)

	cmds, err := DecodeTile(buf, 1)
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.Equal(t, Command{Tag: TagFill, Segments: 17, Backdrop: -2}, cmds[0])
	assert.Equal(t, Command{Tag: TagColor, RGBA: 0xFF00FF00}, cmds[1])
	assert.Equal(t, Command{Tag: TagStroke, Segments: 9, HalfWidth: 1.5}, cmds[2])

	// Tile 0 is all zeroes, i.e. an immediate end.
	cmds, err = DecodeTile(buf, 0)
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestDecodeTileFollowsJumps(t *testing.T) {
	buf := make([]uint32, InitialAlloc+2*Increment)
	buf[0] = uint32(TagSolid)
	buf[1] = uint32(TagJump)
	buf[2] = InitialAlloc
	buf[InitialAlloc] = uint32(TagColor)
	buf[InitialAlloc+1] = 42
	buf[InitialAlloc+2] = uint32(TagJump)
	buf[InitialAlloc+3] = InitialAlloc + Increment
	buf[InitialAlloc+Increment] = uint32(TagEnd)

	cmds, err := DecodeTile(buf, 0)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, TagSolid, cmds[0].Tag)
	assert.Equal(t, uint32(42), cmds[1].RGBA)
}

func TestDecodeTileErrors(t *testing.T) {
	t.Run("unknown tag", func(t *testing.T) {
		buf := make([]uint32, InitialAlloc)
		buf[0] = 4
		_, err := DecodeTile(buf, 0)
		assert.ErrorContains(t, err, "unknown tag")
	})
	t.Run("cyclic jumps", func(t *testing.T) {
		buf := make([]uint32, InitialAlloc)
		buf[0] = uint32(TagJump)
		buf[1] = 0
		_, err := DecodeTile(buf, 0)
		assert.ErrorContains(t, err, "does not terminate")
	})
	t.Run("jump off buffer", func(t *testing.T) {
		buf := make([]uint32, InitialAlloc)
		buf[0] = uint32(TagJump)
		buf[1] = 1 << 20
		_, err := DecodeTile(buf, 0)
		assert.ErrorContains(t, err, "ran off the buffer")
	})
	t.Run("truncated payload", func(t *testing.T) {
		buf := make([]uint32, 2)
		buf[0] = uint32(TagFill)
		_, err := DecodeTile(buf, 0)
		assert.ErrorContains(t, err, "truncated")
	})
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "fill", TagFill.String())
	assert.Equal(t, "jump", TagJump.String())
	assert.Equal(t, "Tag(99)", Tag(99).String())
}
