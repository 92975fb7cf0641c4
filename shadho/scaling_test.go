package shadho

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScale_KnownNames(t *testing.T) {
	for _, name := range []string{"linear", "ln", "log2", "log10"} {
		s, err := ParseScale(name)
		assert.NoError(t, err)
		assert.Equal(t, Scale(name), s)
	}
}

func TestParseScale_EmptyDefaultsToLinear(t *testing.T) {
	s, err := ParseScale("")
	assert.NoError(t, err)
	assert.Equal(t, ScaleLinear, s)
}

func TestParseScale_UnknownName(t *testing.T) {
	_, err := ParseScale("log7")
	assert.True(t, errors.Is(err, ErrInvalidScale))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestScale_Apply(t *testing.T) {
	assert.Equal(t, 3.5, ScaleLinear.Apply(3.5))
	assert.InDelta(t, math.E, ScaleLn.Apply(1), 1e-12)
	assert.InDelta(t, 8.0, ScaleLog2.Apply(3), 1e-12)
	assert.InDelta(t, 100.0, ScaleLog10.Apply(2), 1e-12)
	assert.InDelta(t, 0.5, ScaleLog2.Apply(-1), 1e-12)
}
