// Package match aligns old and new snapshots of scraped lists.
package match

// Pair is an old entry and the new entry it was matched with.
type Pair[T any] struct {
	Old T
	New T
}

// Result partitions two lists into matched pairs and leftovers.
// Matched and Added follow the order of the new list, Removed the order of the old one.
type Result[T any] struct {
	Matched []Pair[T]
	Added   []T
	Removed []T
}

// List matches newItems against oldItems greedily. For every new entry the
// first unclaimed old entry satisfying same is claimed, so duplicates are
// assigned in their original order and no entry is matched twice.
func List[T any](oldItems, newItems []T, same func(a, b T) bool) Result[T] {
	var res Result[T]
	claimed := make([]bool, len(oldItems))

	for _, n := range newItems {
		found := false
		for j, o := range oldItems {
			if claimed[j] || !same(o, n) {
				continue
			}
			claimed[j] = true
			res.Matched = append(res.Matched, Pair[T]{Old: o, New: n})
			found = true
			break
		}
		if !found {
			res.Added = append(res.Added, n)
		}
	}

	for j, o := range oldItems {
		if !claimed[j] {
			res.Removed = append(res.Removed, o)
		}
	}
	return res
}
