//go:build property

package watcher

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCoalesceProperties validates the debounce folding rules over
// arbitrary event sequences.
func TestCoalesceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	kindGen := gen.IntRange(0, 2).Map(func(i int) EventKind { return EventKind(i) })

	fold := func(kinds []EventKind) EventKind {
		result := kinds[0]
		for _, k := range kinds[1:] {
			result = coalesce(result, k)
		}
		return result
	}

	// Property: a sequence ending in a remove always flushes as removed.
	properties.Property("trailing remove is never lost", prop.ForAll(
		func(kinds []EventKind) bool {
			if len(kinds) == 0 {
				return true
			}
			kinds = append(kinds, KindRemoved)
			return fold(kinds) == KindRemoved
		},
		gen.SliceOf(kindGen),
	))

	// Property: a sequence ending in a create or write never flushes as
	// removed; the file exists at the end of the window.
	properties.Property("existing file never flushes as removed", prop.ForAll(
		func(kinds []EventKind, last int) bool {
			kinds = append(kinds, EventKind(last))
			return fold(kinds) != KindRemoved
		},
		gen.SliceOf(kindGen),
		gen.IntRange(0, 1),
	))

	properties.TestingRun(t)
}
