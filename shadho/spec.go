// Declarative YAML search-space specs.
//
// A spec document is a nested mapping. The reserved keys "optional" and
// "exclusive" set the enclosing tree's flags; every other key names a child.
// A child is a constant (any scalar or sequence), a distribution leaf (a
// mapping with a single distribution key), or a nested tree:
//
//	exclusive: true
//	linear:
//	  kernel: linear
//	  C:
//	    log10_uniform: [-5, 5]
//	rbf:
//	  kernel: rbf
//	  C:
//	    log10_uniform: [-5, 5]
//	  gamma:
//	    log10_uniform: [-5, 5]
//
// Distribution keys: uniform, ln_uniform, log2_uniform, log10_uniform,
// normal, ln_normal, log2_normal, log10_normal, randint, ln_randint,
// log2_randint, log10_randint, choice. Continuous forms take [a, b];
// randint forms take [lo, hi] or [lo, hi, step]; choice takes a sequence of
// literals.

package shadho

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var continuousSpecs = map[string]struct {
	kind  DistKind
	scale Scale
}{
	"uniform":       {KindUniform, ScaleLinear},
	"ln_uniform":    {KindUniform, ScaleLn},
	"log2_uniform":  {KindUniform, ScaleLog2},
	"log10_uniform": {KindUniform, ScaleLog10},
	"normal":        {KindNormal, ScaleLinear},
	"ln_normal":     {KindNormal, ScaleLn},
	"log2_normal":   {KindNormal, ScaleLog2},
	"log10_normal":  {KindNormal, ScaleLog10},
}

var randintSpecs = map[string]Scale{
	"randint":       ScaleLinear,
	"ln_randint":    ScaleLn,
	"log2_randint":  ScaleLog2,
	"log10_randint": ScaleLog10,
}

// LoadSpec reads a search-space spec from a YAML file.
func LoadSpec(path string) (*SearchTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec %s: %w", path, err)
	}
	tree, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("spec %s: %w", path, err)
	}
	return tree, nil
}

// ParseSpec parses a YAML search-space document into a SearchTree. All
// validation happens here: malformed specs never reach the sampler.
func ParseSpec(data []byte) (*SearchTree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty spec", ErrConfiguration)
	}
	return parseTree(doc.Content[0])
}

func parseTree(n *yaml.Node) (*SearchTree, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected mapping at line %d", ErrConfiguration, n.Line)
	}
	children := make(map[string]Node)
	var opts []ScopeOption
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if seen[key] {
			return nil, fmt.Errorf("%w: %q at line %d", ErrDuplicateKey, key, n.Content[i].Line)
		}
		seen[key] = true

		switch key {
		case "optional", "exclusive":
			var flag bool
			if err := val.Decode(&flag); err != nil {
				return nil, fmt.Errorf("%w: %s at line %d must be a bool", ErrConfiguration, key, val.Line)
			}
			if flag && key == "optional" {
				opts = append(opts, WithOptional())
			}
			if flag && key == "exclusive" {
				opts = append(opts, WithExclusive())
			}
		default:
			child, err := parseChild(val)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", key, err)
			}
			children[key] = child
		}
	}
	return NewScope(children, opts...)
}

func parseChild(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return NewConstant(v), nil
	case yaml.MappingNode:
		if dist, ok, err := parseDistribution(n); ok || err != nil {
			if err != nil {
				return nil, err
			}
			return NewSearchSpace(dist), nil
		}
		return parseTree(n)
	default:
		return nil, fmt.Errorf("%w: unsupported node at line %d", ErrConfiguration, n.Line)
	}
}

// parseDistribution recognizes a single-key mapping whose key names a
// distribution. Returns ok=false when the mapping is a nested tree instead.
func parseDistribution(n *yaml.Node) (*Distribution, bool, error) {
	if len(n.Content) != 2 {
		return nil, false, nil
	}
	key, val := n.Content[0].Value, n.Content[1]

	if spec, ok := continuousSpecs[key]; ok {
		var args []float64
		if err := val.Decode(&args); err != nil || len(args) != 2 {
			return nil, true, fmt.Errorf("%w: %s takes [a, b]", ErrConfiguration, key)
		}
		var d *Distribution
		var err error
		if spec.kind == KindUniform {
			d, err = NewUniform(args[0], args[1], spec.scale)
		} else {
			d, err = NewNormal(args[0], args[1], spec.scale)
		}
		return d, true, err
	}

	if scale, ok := randintSpecs[key]; ok {
		var args []int
		if err := val.Decode(&args); err != nil || len(args) < 2 || len(args) > 3 {
			return nil, true, fmt.Errorf("%w: %s takes [lo, hi] or [lo, hi, step]", ErrConfiguration, key)
		}
		step := 1
		if len(args) == 3 {
			step = args[2]
		}
		d, err := NewRandint(args[0], args[1], step, scale)
		return d, true, err
	}

	if key == "choice" {
		var values []any
		if err := val.Decode(&values); err != nil {
			return nil, true, fmt.Errorf("%w: choice takes a sequence", ErrConfiguration)
		}
		d, err := NewChoice(values)
		return d, true, err
	}

	return nil, false, nil
}
