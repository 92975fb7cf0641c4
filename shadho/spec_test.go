package shadho

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const svmSpec = `
exclusive: true
linear:
  kernel: linear
  C:
    log10_uniform: [-5, 5]
rbf:
  kernel: rbf
  C:
    log10_uniform: [-5, 5]
  gamma:
    log10_uniform: [-5, 5]
`

func TestParseSpec_SVMExample(t *testing.T) {
	tree, err := ParseSpec([]byte(svmSpec))
	require.NoError(t, err)
	assert.True(t, tree.Exclusive())
	assert.Equal(t, []string{"linear", "rbf"}, tree.Children())

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		params, ok := tree.Sample(rng)
		require.True(t, ok)
		assert.Contains(t, []any{"linear", "rbf"}, params["kernel"])
		assert.Contains(t, params, "C")
		if params["kernel"] == "rbf" {
			assert.Contains(t, params, "gamma")
		} else {
			assert.NotContains(t, params, "gamma")
		}
	}
}

func TestParseSpec_LeafForms(t *testing.T) {
	spec := `
epochs:
  randint: [1, 100, 10]
layers:
  log2_randint: [0, 5]
lr:
  ln_normal: [0, 1]
optimizer:
  choice: [adam, sgd]
activation: relu
dropout:
  optional: true
  rate:
    uniform: [0, 0.5]
`
	tree, err := ParseSpec([]byte(spec))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	params, ok := tree.Sample(rng)
	require.True(t, ok)
	assert.Equal(t, "relu", params["activation"])
	assert.Contains(t, []any{"adam", "sgd"}, params["optimizer"])
	assert.Contains(t, params, "epochs")
	assert.Contains(t, params, "layers")
	assert.Contains(t, params, "lr")
}

func TestParseSpec_OptionalSubtreeParses(t *testing.T) {
	spec := `
dropout:
  optional: true
  rate:
    uniform: [0, 0.5]
`
	tree, err := ParseSpec([]byte(spec))
	require.NoError(t, err)

	node, ok := tree.Child("dropout")
	require.True(t, ok)
	sub, isTree := node.(*SearchTree)
	require.True(t, isTree)
	assert.True(t, sub.Optional())
}

func TestParseSpec_DuplicateKey(t *testing.T) {
	spec := `
x:
  uniform: [0, 1]
x:
  uniform: [2, 3]
`
	_, err := ParseSpec([]byte(spec))
	assert.True(t, errors.Is(err, ErrDuplicateKey))
}

func TestParseSpec_InvalidRangeSurfacesAtParse(t *testing.T) {
	spec := `
x:
  uniform: [5, 5]
`
	_, err := ParseSpec([]byte(spec))
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestParseSpec_BadDistributionArgs(t *testing.T) {
	spec := `
x:
  uniform: [1]
`
	_, err := ParseSpec([]byte(spec))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestParseSpec_EmptyDocument(t *testing.T) {
	_, err := ParseSpec([]byte(""))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestParseSpec_ConstantSequence(t *testing.T) {
	spec := `
hidden: [128, 64, 32]
`
	tree, err := ParseSpec([]byte(spec))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	params, _ := tree.Sample(rng)
	assert.Equal(t, []any{128, 64, 32}, params["hidden"])
}
