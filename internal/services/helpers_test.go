package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePageSize(t *testing.T) {
	cases := []struct {
		name      string
		requested int
		want      int
	}{
		{name: "missing uses default", requested: 0, want: 5},
		{name: "negative uses default", requested: -3, want: 5},
		{name: "within bounds", requested: 20, want: 20},
		{name: "at cap", requested: 100, want: 100},
		{name: "above cap", requested: 500, want: 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, resolvePageSize(tc.requested, 5, 100))
		})
	}
}

func TestTotalPagesAndWindow(t *testing.T) {
	require.Equal(t, 0, totalPages(0, 5))
	require.Equal(t, 2, totalPages(7, 5))

	items := []int{1, 2, 3, 4, 5, 6, 7}
	require.Equal(t, []int{1, 2, 3, 4, 5}, window(items, 1, 5))
	require.Equal(t, []int{6, 7}, window(items, 2, 5))
	require.Empty(t, window(items, 3, 5))
}
