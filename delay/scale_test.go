package delay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleStartsAtFloor(t *testing.T) {
	s := NewScale(DefaultScaleFloor)
	assert.Equal(t, DefaultScaleFloor, s.Current())

	s.Observe(40)
	assert.Equal(t, DefaultScaleFloor, s.Current())
}

func TestScaleNeverDecreases(t *testing.T) {
	s := NewScale(10)
	prev := s.Current()

	for _, v := range []uint32{5, 12, 0, 300, 299, 1, 301, 0} {
		s.Observe(v)
		assert.GreaterOrEqual(t, s.Current(), prev)
		prev = s.Current()
	}

	assert.Equal(t, uint32(301), s.Current())
}
