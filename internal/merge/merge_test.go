package merge

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/chartform/internal/descriptor"
	"github.com/bnema/chartform/internal/values"
)

func mustDescriptor(t *testing.T, yaml string) *descriptor.Descriptor {
	t.Helper()
	d, err := descriptor.Parse([]byte(yaml))
	require.NoError(t, err)
	return d
}

func TestApplyReadOnlyFieldPreserved(t *testing.T) {
	current := values.Tree{
		"image": map[string]any{"repository": "nginx", "tag": "1.0"},
	}
	update := values.Tree{
		"image": map[string]any{"repository": "custom", "tag": "2.0"},
	}
	d := mustDescriptor(t, "readonly: [image.repository]")

	result, skips := Apply(current, update, d)

	image := result["image"].(map[string]any)
	assert.Equal(t, "nginx", image["repository"])
	assert.Equal(t, "2.0", image["tag"])

	require.Len(t, skips, 1)
	assert.Equal(t, Skip{Path: "image.repository", Reason: ReasonReadOnly}, skips[0])
}

func TestApplyEnumSequencePreserved(t *testing.T) {
	current := values.Tree{"environments": []any{"dev", "staging", "prod"}}
	update := values.Tree{"environments": []any{"hacked"}}
	d := mustDescriptor(t, "enum: [environments]")

	result, skips := Apply(current, update, d)

	assert.Equal(t, []any{"dev", "staging", "prod"}, result["environments"])
	require.Len(t, skips, 1)
	assert.Equal(t, Skip{Path: "environments", Reason: ReasonEnum}, skips[0])
}

func TestApplyEnumRuleNeedsCurrentSequence(t *testing.T) {
	// The enum protection only applies when the current value is a sequence;
	// otherwise the update is ordinary whole-value replacement.
	current := values.Tree{"environments": "dev"}
	update := values.Tree{"environments": "prod"}
	d := mustDescriptor(t, "enum: [environments]")

	result, skips := Apply(current, update, d)
	assert.Equal(t, "prod", result["environments"])
	assert.Empty(t, skips)
}

func TestApplyUntouchedKeysPreserved(t *testing.T) {
	current := values.Tree{
		"image":    map[string]any{"repository": "nginx", "tag": "1.0"},
		"replicas": 3,
		"service":  map[string]any{"port": 80, "type": "ClusterIP"},
	}
	update := values.Tree{
		"service": map[string]any{"port": 8080},
	}

	result, skips := Apply(current, update, descriptor.Empty())
	assert.Empty(t, skips)

	assert.Equal(t, current["image"], result["image"])
	assert.Equal(t, 3, result["replicas"])

	service := result["service"].(map[string]any)
	assert.Equal(t, 8080, service["port"])
	assert.Equal(t, "ClusterIP", service["type"])
}

func TestApplyWholeValueReplacement(t *testing.T) {
	current := values.Tree{
		"ports": []any{80, 443},
		"extra": map[string]any{"a": 1},
	}
	update := values.Tree{
		"ports": []any{8080},
		"extra": "gone flat",
		"fresh": map[string]any{"b": 2},
	}

	result, skips := Apply(current, update, descriptor.Empty())
	assert.Empty(t, skips)
	assert.Equal(t, []any{8080}, result["ports"])
	assert.Equal(t, "gone flat", result["extra"])
	assert.Equal(t, map[string]any{"b": 2}, result["fresh"])
}

func TestApplyDoesNotMutateInputs(t *testing.T) {
	current := values.Tree{"image": map[string]any{"tag": "1.0"}}
	update := values.Tree{"image": map[string]any{"tag": "2.0"}}

	result, _ := Apply(current, update, descriptor.Empty())

	assert.Equal(t, "1.0", current["image"].(map[string]any)["tag"])
	assert.Equal(t, "2.0", result["image"].(map[string]any)["tag"])

	// The result must not alias update's subtrees either.
	result["image"].(map[string]any)["tag"] = "3.0"
	assert.Equal(t, "2.0", update["image"].(map[string]any)["tag"])
}

func TestApplyNilCurrent(t *testing.T) {
	result, skips := Apply(nil, values.Tree{"a": 1}, descriptor.Empty())
	assert.Empty(t, skips)
	assert.Equal(t, values.Tree{"a": 1}, result)
}

func TestTouchedPaths(t *testing.T) {
	update := values.Tree{
		"image":    map[string]any{"tag": "2.0", "pullPolicy": "Always"},
		"replicas": 5,
		"ports":    []any{8080},
		"empty":    map[string]any{},
	}

	assert.Equal(t,
		[]string{"empty", "image.pullPolicy", "image.tag", "ports", "replicas"},
		TouchedPaths(update))
}

// asAny widens a generator's result type to interface{} so heterogeneous
// generators can feed MapOf. Using Gen.Map with an `any` return value is not
// an option: gopter mistakes such a mapper for one returning *GenResult.
func asAny(g gopter.Gen) gopter.Gen {
	anyType := reflect.TypeOf((*any)(nil)).Elem()
	return func(p *gopter.GenParameters) *gopter.GenResult {
		r := g(p)
		origType, origSieve := r.ResultType, r.Sieve
		r.ResultType = anyType
		if origSieve != nil {
			// MapOf applies one element sieve to every value; a typed sieve
			// would panic on values drawn from the other generators.
			r.Sieve = func(v interface{}) bool {
				if v == nil || reflect.TypeOf(v) != origType {
					return true
				}
				return origSieve(v)
			}
		}
		return r
	}
}

func treeGen() gopter.Gen {
	return gen.MapOf(gen.Identifier(), gen.OneGenOf(
		asAny(gen.AnyString()),
		asAny(gen.Int()),
		asAny(gen.Bool()),
	)).Map(func(m map[string]any) values.Tree { return m })
}

func TestApplyPreservationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("keys absent from the update keep their value", prop.ForAll(
		func(current, update values.Tree) bool {
			result, _ := Apply(current, update, descriptor.Empty())
			for k, v := range current {
				if _, touched := update[k]; touched {
					continue
				}
				got, ok := result[k]
				if !ok || got != v {
					return false
				}
			}
			return true
		},
		treeGen(),
		treeGen(),
	))

	properties.TestingRun(t)
}

func TestApplyReadOnlyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	d := mustDescriptor(t, "readonly: [locked]")

	properties.Property("a read-only path never changes", prop.ForAll(
		func(original string, update values.Tree) bool {
			current := values.Tree{"locked": original}
			update["locked"] = "overwritten"
			result, _ := Apply(current, update, d)
			return result["locked"] == original
		},
		gen.AnyString(),
		treeGen(),
	))

	properties.TestingRun(t)
}
