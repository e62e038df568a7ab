package chunk

import "fmt"

// Comparator orders Key prefixes. The core never interprets key bytes
// itself (spec §1 Non-goals) — callers supply the ordering, typically
// backed by a wire-format-aware comparator living outside this module.
type Comparator interface {
	// Compare returns <0, 0, >0 as a < b, a == b, a > b, comparing only the
	// shared prefix length (shorter key is "less" iff it's a strict prefix
	// of the longer one) — the convention spec §4.5's endpoint sweep needs
	// for partial-key teleport and maniac detection.
	Compare(a, b Key) int
}

// ComparatorFunc adapts a plain function to a Comparator.
type ComparatorFunc func(a, b Key) int

func (f ComparatorFunc) Compare(a, b Key) int { return f(a, b) }

// DefaultComparator compares Key elements lexicographically using Go's
// built-in ordering for the subset of types (strings, ints, floats) that
// support <; incomparable element kinds (types that aren't ordered, or a nil
// vs. non-nil mismatch) fall back to comparing via fmt-formatted text so the
// comparator is always total. Real deployments supply their own codec-aware
// Comparator; this one exists purely for tests and the demo CLI.
var DefaultComparator Comparator = ComparatorFunc(compareKeys)

func compareKeys(a, b Key) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareScalar(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareScalar(a, b any) int {
	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := toText(a), toText(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toText(v any) string {
	if v == nil {
		return ""
	}
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
