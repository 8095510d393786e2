package canon

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMarshalStableUnderKeyPermutation verifies invariant P7 (spec.md §8):
// "Idempotency keys are stable under commutation of input map keys." Marshal
// sorts object keys before writing, so inserting the same key/value pairs in
// a different order must not change the canonical byte form.
func TestMarshalStableUnderKeyPermutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("map key insertion order does not affect canonical form", prop.ForAll(
		func(keys []string, values []int) bool {
			m := make(map[string]any, len(keys))
			for i, k := range keys {
				m[k] = values[i]
			}
			baseline := string(Marshal(m))

			order := rand.Perm(len(keys))
			reinserted := make(map[string]any, len(keys))
			for _, idx := range order {
				reinserted[keys[idx]] = m[keys[idx]]
			}
			return string(Marshal(reinserted)) == baseline
		},
		gen.SliceOfN(6, gen.AlphaString()),
		gen.SliceOfN(6, gen.IntRange(-1000, 1000)),
	))

	properties.Property("equivalent integer and float representations canonicalize identically", prop.ForAll(
		func(n int) bool {
			return string(Marshal(float64(n))) == string(Marshal(n))
		},
		gen.IntRange(-1_000_000, 1_000_000),
	))

	properties.TestingRun(t)
}
