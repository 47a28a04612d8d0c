package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func draw(s Source, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = s.Index(1000)
	}
	return out
}

func TestDeterministic(t *testing.T) {
	assert.Equal(t, draw(New(7), 32), draw(New(7), 32))
	assert.NotEqual(t, draw(New(7), 32), draw(New(8), 32))
}

func TestForTreeIndependent(t *testing.T) {
	assert.Equal(t, draw(ForTree(1, 3), 16), draw(ForTree(1, 3), 16))
	assert.NotEqual(t, draw(ForTree(1, 0), 16), draw(ForTree(1, 1), 16))
}

func TestIndexRange(t *testing.T) {
	s := New(DefaultSeed)
	for range 1000 {
		v := s.Index(3)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 3)
	}
}
