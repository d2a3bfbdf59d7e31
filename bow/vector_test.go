package bow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNormalizes(t *testing.T) {
	v := New(map[uint32]float32{1: 2, 2: 2})
	assert.InDelta(t, 0.5, float64(v[1]), 1e-6)
	assert.InDelta(t, 0.5, float64(v[2]), 1e-6)

	var sum float64
	for _, w := range v {
		sum += float64(w)
	}
	assert.InDelta(t, 1, sum, 1e-6)
}

func TestNewDropsNonPositive(t *testing.T) {
	v := New(map[uint32]float32{1: 1, 2: 0, 3: -4})
	assert.Len(t, v, 1)
	assert.InDelta(t, 1, float64(v[1]), 1e-6)

	empty := New(map[uint32]float32{2: 0})
	assert.Empty(t, empty)
}

func TestScore(t *testing.T) {
	a := New(map[uint32]float32{1: 1, 2: 1})
	b := New(map[uint32]float32{1: 1, 2: 1})
	c := New(map[uint32]float32{3: 1, 4: 1})
	d := New(map[uint32]float32{1: 1, 3: 1})

	assert.InDelta(t, 1, Score(a, b), 1e-6)
	assert.InDelta(t, 0, Score(a, c), 1e-6)
	// a and d share word 1 at weight 0.5 each.
	assert.InDelta(t, 0.5, Score(a, d), 1e-6)
}

func TestScoreSymmetric(t *testing.T) {
	a := New(map[uint32]float32{1: 3, 2: 1})
	b := New(map[uint32]float32{2: 2, 5: 1})
	assert.InDelta(t, Score(a, b), Score(b, a), 1e-9)
}

func TestScoreEmpty(t *testing.T) {
	a := New(map[uint32]float32{1: 1})
	assert.InDelta(t, 0, Score(a, Vector{}), 1e-9)
	assert.InDelta(t, 1, Score(Vector{}, Vector{}), 1e-9)
}
