package templating

import (
	"math/rand/v2"
	"reflect"
)

// repeat returns a slice of integers from 0 to count-1, capped at MaxRepeat.
func (tm *TemplateManager) repeat(count int) []int {
	count = clamp(count, 0, tm.config.MaxRepeat)
	s := make([]int, count)
	for i := range s {
		s[i] = i
	}
	return s
}

// list returns a slice containing all the arguments passed to it.
func list(args ...any) []any {
	return args
}

// randomChoice selects and returns a single random element from a slice.
// Anything that is not a non-empty slice yields nil.
func randomChoice(slice any) any {
	if slice == nil {
		return nil
	}

	val := reflect.ValueOf(slice)
	if val.Kind() != reflect.Slice || val.Len() == 0 {
		return nil
	}
	return val.Index(rand.IntN(val.Len())).Interface()
}

// randomInt returns a random integer within the range [min, max).
func randomInt(min, max int) int {
	if min >= max {
		return min
	}
	return rand.IntN(max-min) + min
}
