package fog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	g := New(DefaultSize, DefaultSize)
	assert.Equal(t, 2048, len(g.Bytes()))
	assert.Equal(t, 0, g.Revealed())

	r := NewRevealed(DefaultSize, DefaultSize)
	assert.Equal(t, DefaultSize*DefaultSize, r.Revealed())
}

func TestSetCellAndIsSet(t *testing.T) {
	g := New(16, 16)
	g.SetCell(3, 2, true)

	assert.True(t, g.IsSet(3, 2))
	assert.False(t, g.IsSet(2, 3))
	// bit index y*W+x = 35 -> byte 4, bit 3
	assert.Equal(t, byte(1<<3), g.Bytes()[4])

	g.SetCell(3, 2, false)
	assert.False(t, g.IsSet(3, 2))
}

func TestOutOfBoundsIsNoop(t *testing.T) {
	g := New(8, 8)
	g.SetCell(-1, 0, true)
	g.SetCell(8, 0, true)
	g.SetCell(0, 8, true)
	g.SetCell(0, -3, true)

	assert.Equal(t, 0, g.Revealed())
	assert.False(t, g.IsSet(-1, 0))
	assert.False(t, g.IsSet(100, 100))
}

func TestDiscBrushCopiesOnWrite(t *testing.T) {
	g := New(32, 32)
	out := ApplyDiscBrush(g, 10, 10, 2, true)

	assert.Equal(t, 0, g.Revealed(), "source grid must not change")
	// radius 2 disc has 13 cells
	assert.Equal(t, 13, out.Revealed())
	assert.True(t, out.IsSet(10, 8))
	assert.True(t, out.IsSet(12, 10))
	assert.False(t, out.IsSet(12, 12))
}

func TestDiscBrushClipsAtEdges(t *testing.T) {
	g := New(8, 8)
	out := ApplyDiscBrush(g, 0, 0, 1, true)
	assert.Equal(t, 3, out.Revealed())
}

func TestDiscBrushIdempotent(t *testing.T) {
	g := New(DefaultSize, DefaultSize)
	once := ApplyDiscBrush(g, 40, 50, 6, true)
	twice := ApplyDiscBrush(once, 40, 50, 6, true)
	assert.True(t, once.Equal(twice))
}

func TestDiscBrushHides(t *testing.T) {
	g := NewRevealed(16, 16)
	out := ApplyDiscBrush(g, 8, 8, 0, false)
	assert.False(t, out.IsSet(8, 8))
	assert.Equal(t, 16*16-1, out.Revealed())
}

func TestSquareBrush(t *testing.T) {
	out := ApplySquareBrush(New(16, 16), 5, 5, 1, true)
	assert.Equal(t, 9, out.Revealed())
	assert.True(t, out.IsSet(6, 6))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		g := New(DefaultSize, DefaultSize)
		for j := 0; j < 500; j++ {
			g.SetCell(rng.Intn(DefaultSize), rng.Intn(DefaultSize), rng.Intn(2) == 0)
		}
		back := Decode(Encode(g), DefaultSize, DefaultSize)
		require.True(t, g.Equal(back))
		assert.Equal(t, g.Bytes(), back.Bytes())
	}
}

func TestDecodeFailsSoft(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"not base64": "%%%not-base64%%%",
		"wrong size": Encode(New(8, 8)),
		"truncated":  Encode(NewRevealed(16, 16))[:10],
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			g := Decode(in, 16, 16)
			assert.Equal(t, 0, g.Revealed())
			assert.Equal(t, 16, g.Width())
			assert.Equal(t, 16, g.Height())
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil, 16, 16))

	bad := "garbage"
	got := Normalize(&bad, 16, 16)
	require.NotNil(t, got)
	assert.Equal(t, Encode(New(16, 16)), *got)

	good := Encode(ApplyDiscBrush(New(16, 16), 4, 4, 2, true))
	assert.Equal(t, good, *Normalize(&good, 16, 16))
}
