// Package rules decides whether a group of items forms a valid match.
package rules

// Features is the classic card rule: every item has Count features, each
// taking one of Size values, and Size items match when every feature is
// either the same on all of them or different on all of them.
type Features struct {
	Size  int
	Count int
}

// NewFeatures returns the rule for items with count features of size values.
func NewFeatures(size, count int) Features {
	return Features{Size: size, Count: count}
}

// Universe is the number of distinct items.
func (f Features) Universe() int {
	n := 1
	for i := 0; i < f.Count; i++ {
		n *= f.Size
	}
	return n
}

// Values decodes item into its feature values.
func (f Features) Values(item int) []int {
	out := make([]int, f.Count)
	for i := 0; i < f.Count; i++ {
		out[i] = item % f.Size
		item /= f.Size
	}
	return out
}

// IsMatch reports whether items form a valid match.
func (f Features) IsMatch(items []int) bool {
	if len(items) != f.Size || f.Size == 0 {
		return false
	}
	decoded := make([][]int, len(items))
	for i, item := range items {
		if item < 0 || item >= f.Universe() {
			return false
		}
		decoded[i] = f.Values(item)
	}
	for feature := 0; feature < f.Count; feature++ {
		seen := make(map[int]struct{}, f.Size)
		for _, v := range decoded {
			seen[v[feature]] = struct{}{}
		}
		if len(seen) != 1 && len(seen) != f.Size {
			return false
		}
	}
	return true
}

// HasAnyMatch reports whether at least minCount matches can be formed from
// items.
func (f Features) HasAnyMatch(items []int, minCount int) bool {
	return countMatches(items, f.Size, minCount, f.IsMatch)
}

// countMatches walks every k-combination of items until min matches are
// found.
func countMatches(items []int, k, min int, isMatch func([]int) bool) bool {
	if min <= 0 {
		return true
	}
	if k <= 0 || len(items) < k {
		return false
	}
	found := 0
	combo := make([]int, k)
	var walk func(start, depth int) bool
	walk = func(start, depth int) bool {
		if depth == k {
			if isMatch(combo) {
				found++
			}
			return found >= min
		}
		for i := start; i <= len(items)-(k-depth); i++ {
			combo[depth] = items[i]
			if walk(i+1, depth+1) {
				return true
			}
		}
		return false
	}
	return walk(0, 0)
}
