package core

import (
	"sort"
	"strconv"
	"strings"
)

// CompressRanges renders a set of integers as the minimal ascending list of
// runs: "a-b" for consecutive runs, "a" for singletons. Duplicates are
// ignored. Callers join the result with ", " for storage.
//
//	CompressRanges([]int{9, 1, 2, 3, 5, 7, 8}) // ["1-3", "5", "7-9"]
func CompressRanges(numbers []int) []string {
	if len(numbers) == 0 {
		return []string{}
	}

	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)

	var out []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			out = append(out, strconv.Itoa(start))
		} else {
			out = append(out, strconv.Itoa(start)+"-"+strconv.Itoa(prev))
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

	return out
}

// ParseRanges is the inverse of CompressRanges for positive integers. It
// accepts the stored form ("1-3, 5, 7-9"), tolerates en dashes and stray
// whitespace, skips entries it cannot read, and returns the sorted,
// deduplicated set.
func ParseRanges(s string) []int {
	seen := make(map[int]bool)
	var out []int
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ReplaceAll(part, "–", "-"))
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			if n, err := strconv.Atoi(part); err == nil && n > 0 {
				add(n)
			}
			continue
		}

		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil || a <= 0 || b < a {
			continue
		}
		for n := a; n <= b; n++ {
			add(n)
		}
	}

	sort.Ints(out)
	return out
}
