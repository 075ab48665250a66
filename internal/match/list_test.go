package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type item struct {
	key string
	tag int
}

func sameKey(a, b item) bool { return a.key == b.key }

func TestList(t *testing.T) {
	testCases := []struct {
		name     string
		old      []item
		new      []item
		expected Result[item]
	}{
		{
			name: "empty",
		},
		{
			name: "all added",
			new:  []item{{"a", 1}, {"b", 1}},
			expected: Result[item]{
				Added: []item{{"a", 1}, {"b", 1}},
			},
		},
		{
			name: "all removed",
			old:  []item{{"a", 1}},
			expected: Result[item]{
				Removed: []item{{"a", 1}},
			},
		},
		{
			name: "mixed",
			old:  []item{{"a", 1}, {"b", 1}, {"c", 1}},
			new:  []item{{"c", 2}, {"d", 2}, {"a", 2}},
			expected: Result[item]{
				Matched: []Pair[item]{
					{Old: item{"c", 1}, New: item{"c", 2}},
					{Old: item{"a", 1}, New: item{"a", 2}},
				},
				Added:   []item{{"d", 2}},
				Removed: []item{{"b", 1}},
			},
		},
		{
			name: "duplicates claim in original order",
			old:  []item{{"a", 1}, {"a", 2}, {"a", 3}},
			new:  []item{{"a", 10}, {"a", 20}},
			expected: Result[item]{
				Matched: []Pair[item]{
					{Old: item{"a", 1}, New: item{"a", 10}},
					{Old: item{"a", 2}, New: item{"a", 20}},
				},
				Removed: []item{{"a", 3}},
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			res := List(test.old, test.new, sameKey)
			diff := cmp.Diff(test.expected, res, cmp.AllowUnexported(item{}))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestListDeterministic(t *testing.T) {
	old := []item{{"x", 1}, {"y", 1}, {"x", 2}, {"z", 1}}
	newItems := []item{{"x", 3}, {"z", 3}, {"w", 3}, {"x", 4}, {"x", 5}}

	first := List(old, newItems, sameKey)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, List(old, newItems, sameKey))
	}
	require.Len(t, first.Matched, 3)
	require.Equal(t, []item{{"w", 3}, {"x", 5}}, first.Added)
	require.Equal(t, []item{{"y", 1}}, first.Removed)
}
