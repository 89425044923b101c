// Package fog implements the fog-of-war reveal bitmap: a fixed-size grid with
// one bit per cell, brush edits that copy on write, and a base64 wire form.
package fog

import (
	"encoding/base64"
)

// DefaultSize is the grid edge length used by deployed sessions.
const DefaultSize = 128

// Grid is a W×H one-bit-per-cell occupancy grid. Cell (x, y) lives at bit
// index y*W+x, least significant bit first within each byte.
type Grid struct {
	w, h int
	bits []byte
}

// ByteLen returns the packed size of a w×h grid.
func ByteLen(w, h int) int {
	return (w*h + 7) / 8
}

// New returns an all-fogged grid.
func New(w, h int) *Grid {
	return &Grid{w: w, h: h, bits: make([]byte, ByteLen(w, h))}
}

// NewRevealed returns a grid with every cell revealed.
func NewRevealed(w, h int) *Grid {
	g := New(w, h)
	for i := range g.bits {
		g.bits[i] = 0xff
	}
	return g
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }

// Bytes returns a copy of the packed bit array.
func (g *Grid) Bytes() []byte {
	return append([]byte(nil), g.bits...)
}

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.w && y >= 0 && y < g.h
}

// IsSet reports whether cell (x, y) is revealed. Out of range is false.
func (g *Grid) IsSet(x, y int) bool {
	if !g.inBounds(x, y) {
		return false
	}
	i := y*g.w + x
	return g.bits[i/8]&(1<<(i%8)) != 0
}

// SetCell writes one cell in place. Out of range is a no-op.
func (g *Grid) SetCell(x, y int, value bool) {
	if !g.inBounds(x, y) {
		return
	}
	i := y*g.w + x
	if value {
		g.bits[i/8] |= 1 << (i % 8)
	} else {
		g.bits[i/8] &^= 1 << (i % 8)
	}
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	return &Grid{w: g.w, h: g.h, bits: g.Bytes()}
}

// Equal reports whether both grids have the same size and bits.
func (g *Grid) Equal(o *Grid) bool {
	if g.w != o.w || g.h != o.h || len(g.bits) != len(o.bits) {
		return false
	}
	for i := range g.bits {
		if g.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// Revealed counts the revealed cells.
func (g *Grid) Revealed() int {
	n := 0
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			if g.IsSet(x, y) {
				n++
			}
		}
	}
	return n
}

// ApplyDiscBrush returns a new grid with every cell inside the disc of the
// given radius around (cx, cy) set to value. g is left untouched.
func ApplyDiscBrush(g *Grid, cx, cy, radius int, value bool) *Grid {
	out := g.Clone()
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				out.SetCell(cx+dx, cy+dy, value)
			}
		}
	}
	return out
}

// ApplySquareBrush is ApplyDiscBrush with a (2r+1)-wide square footprint.
func ApplySquareBrush(g *Grid, cx, cy, radius int, value bool) *Grid {
	out := g.Clone()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			out.SetCell(cx+dx, cy+dy, value)
		}
	}
	return out
}

// Encode returns the standard base64 form of the packed bytes.
func Encode(g *Grid) string {
	return base64.StdEncoding.EncodeToString(g.bits)
}

// Decode parses a base64 payload into a w×h grid. An empty, malformed or
// wrongly sized payload yields an all-fogged grid; it never fails.
func Decode(s string, w, h int) *Grid {
	if s == "" {
		return New(w, h)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != ByteLen(w, h) {
		return New(w, h)
	}
	return &Grid{w: w, h: h, bits: raw}
}

// Normalize re-encodes a payload through Decode so only well-formed grids are
// stored. Nil stays nil.
func Normalize(s *string, w, h int) *string {
	if s == nil {
		return nil
	}
	out := Encode(Decode(*s, w, h))
	return &out
}
