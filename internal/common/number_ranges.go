package common

import (
	"sort"
	"strconv"
	"strings"
)

// FormatNumberRanges compresses numbers into runs, e.g. "5-9, 12, 15-20".
// The input does not need to be sorted; duplicates are ignored.
func FormatNumberRanges(numbers []int) string {
	if len(numbers) == 0 {
		return "None"
	}

	sorted := make([]int, len(numbers))
	copy(sorted, numbers)
	sort.Ints(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, strconv.Itoa(start)+"-"+strconv.Itoa(prev))
		}
	}

	for _, n := range sorted[1:] {
		switch {
		case n == prev:
			continue
		case n == prev+1:
			prev = n
		default:
			flush()
			start, prev = n, n
		}
	}
	flush()

	return strings.Join(parts, ", ")
}

// ValidateNumberRange checks a guild range against the allowed bounds.
func ValidateNumberRange(min, max, upper int) error {
	if min < 0 || max < 0 {
		return ErrInvalidRange
	}
	if min > max {
		return ErrInvalidRange
	}
	if max > upper {
		return ErrInvalidRange
	}
	return nil
}
