package shadho

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUniform_InvertedBounds(t *testing.T) {
	_, err := NewUniform(5, 5, ScaleLinear)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	_, err = NewUniform(10, 2, ScaleLinear)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestNewNormal_BadSigma(t *testing.T) {
	_, err := NewNormal(0, 0, ScaleLinear)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestNewChoice_EmptySet(t *testing.T) {
	_, err := NewChoice(nil)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestUniform_SampleInRange(t *testing.T) {
	d, err := Uniform(-2, 7)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := d.Sample(rng).(float64)
		assert.GreaterOrEqual(t, v, -2.0)
		assert.Less(t, v, 7.0)
	}
}

func TestUniform_DeterministicForFixedSeed(t *testing.T) {
	d, err := Uniform(0, 1)
	require.NoError(t, err)

	a := rand.New(rand.NewSource(99))
	b := rand.New(rand.NewSource(99))
	for i := 0; i < 100; i++ {
		assert.Equal(t, d.Sample(a), d.Sample(b))
	}
}

func TestLog2Uniform_ScalesDraws(t *testing.T) {
	// GIVEN draws x in [0, 4), the returned values are 2**x in [1, 16)
	d, err := Log2Uniform(0, 4)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		v := d.Sample(rng).(float64)
		assert.GreaterOrEqual(t, v, 1.0)
		assert.Less(t, v, 16.0)
	}
}

func TestRandint_StepConstrainsMembers(t *testing.T) {
	// GIVEN randint over [0, 10) with step 3
	d, err := NewRandint(0, 10, 3, ScaleLinear)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Len()) // 0, 3, 6, 9

	// THEN every draw is a member of the arithmetic subsequence
	rng := rand.New(rand.NewSource(3))
	want := map[int]bool{0: true, 3: true, 6: true, 9: true}
	for i := 0; i < 200; i++ {
		v := d.Sample(rng).(int)
		assert.True(t, want[v], "unexpected member %d", v)
	}
}

func TestLog2Randint_MembersScaledAtConstruction(t *testing.T) {
	d, err := Log2Randint(0, 5, 1)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(11))
	want := map[float64]bool{1: true, 2: true, 4: true, 8: true, 16: true}
	for i := 0; i < 100; i++ {
		v := d.Sample(rng).(float64)
		assert.True(t, want[v], "unexpected member %v", v)
	}
}

func TestRandint_BadArgs(t *testing.T) {
	_, err := NewRandint(5, 5, 1, ScaleLinear)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	_, err = NewRandint(0, 5, 0, ScaleLinear)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestChoice_DrawsAllMembers(t *testing.T) {
	d, err := NewChoice([]any{"adam", "sgd", "rmsprop"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	seen := map[any]bool{}
	for i := 0; i < 300; i++ {
		seen[d.Sample(rng)] = true
	}
	assert.Len(t, seen, 3)
}

func TestConstant_ConsumesNoRandomness(t *testing.T) {
	// GIVEN a constant leaf and an RNG
	c := NewConstant("relu")
	rng := rand.New(rand.NewSource(123))
	before := rng.Int63()

	// WHEN the constant samples, the RNG stream is untouched
	rng = rand.New(rand.NewSource(123))
	for i := 0; i < 10; i++ {
		assert.Equal(t, "relu", c.Sample(rng))
	}
	assert.Equal(t, before, rng.Int63())
}
