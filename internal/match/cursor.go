package match

// Cursor returns the index of the first item equal to prevTop.
// The second result is false when prevTop is no longer in the feed.
func Cursor[T any](prevTop T, items []T, equal func(a, b T) bool) (int, bool) {
	for i, it := range items {
		if equal(prevTop, it) {
			return i, true
		}
	}
	return 0, false
}

// Fresh returns the items above the cursor ordered oldest first.
// items is newest first, as fetched.
func Fresh[T any](items []T, cursor int) []T {
	if cursor > len(items) {
		cursor = len(items)
	}
	out := make([]T, 0, cursor)
	for i := cursor - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out
}
