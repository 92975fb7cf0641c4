// Scale functions applied to raw draws. A distribution defined over
// [lo, hi] with a log2 scale draws x in [lo, hi] and returns 2**x, so the
// spec describes exponents and the worker sees the scaled value.

package shadho

import (
	"fmt"
	"math"
)

// Scale names a monotone rescaling applied after a raw draw.
type Scale string

const (
	ScaleLinear Scale = "linear"
	ScaleLn     Scale = "ln"
	ScaleLog2   Scale = "log2"
	ScaleLog10  Scale = "log10"
)

// ParseScale resolves a scale name. The empty string defaults to linear.
// Unrecognized names fail with ErrInvalidScale.
func ParseScale(name string) (Scale, error) {
	switch Scale(name) {
	case "", ScaleLinear:
		return ScaleLinear, nil
	case ScaleLn, ScaleLog2, ScaleLog10:
		return Scale(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScale, name)
	}
}

// Apply rescales a raw draw: linear returns x unchanged, ln returns e**x,
// log2 returns 2**x, log10 returns 10**x.
func (s Scale) Apply(x float64) float64 {
	switch s {
	case ScaleLn:
		return math.Exp(x)
	case ScaleLog2:
		return math.Exp2(x)
	case ScaleLog10:
		return math.Pow(10, x)
	default:
		return x
	}
}
