package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  PageRequest
		want int
	}{
		{name: "page zero", req: PageRequest{Page: 0, Limit: 10}, want: 0},
		{name: "page one", req: PageRequest{Page: 1, Limit: 10}, want: 0},
		{name: "page three", req: PageRequest{Page: 3, Limit: 10}, want: 20},
		{name: "negative page", req: PageRequest{Page: -4, Limit: 10}, want: 0},
		{name: "no limit", req: PageRequest{Page: 5}, want: 0},
		{name: "huge page saturates", req: PageRequest{Page: math.MaxInt/2 + 2, Limit: 2}, want: math.MaxInt},
		{name: "largest exact offset", req: PageRequest{Page: math.MaxInt/4 + 1, Limit: 4}, want: math.MaxInt / 4 * 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.req.Offset())
		})
	}
}

func TestNewPageArithmetic(t *testing.T) {
	t.Parallel()

	for records := 0; records <= 25; records++ {
		for limit := 1; limit <= 7; limit++ {
			page := NewPage([]int{}, records, PageRequest{Page: 1, Limit: limit})
			info := page.Pagination
			require.GreaterOrEqual(t, info.Pages*info.Limit, info.Records, "records=%d limit=%d", records, limit)
			want := records / limit
			if records%limit != 0 {
				want++
			}
			require.Equal(t, want, info.Pages, "records=%d limit=%d", records, limit)
		}
	}
}

func TestNewPageEchoesCurrent(t *testing.T) {
	t.Parallel()

	zero := NewPage([]string{"a"}, 1, PageRequest{Page: 0, Limit: 10})
	one := NewPage([]string{"a"}, 1, PageRequest{Page: 1, Limit: 10})

	assert.Equal(t, 0, zero.Pagination.Current)
	assert.Equal(t, 1, one.Pagination.Current)
	assert.NotNil(t, NewPage[string](nil, 0, PageRequest{Page: 1, Limit: 1}).Data)
}

func TestWindow(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}

	got, total := Window(items, PageRequest{Page: 2, Limit: 2})
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, 5, total)

	got, total = Window(items, PageRequest{Page: 4, Limit: 2})
	assert.Empty(t, got)
	assert.Equal(t, 5, total)

	got, _ = Window(items, PageRequest{Page: 0, Limit: 2})
	assert.Equal(t, []int{1, 2}, got)
}

func TestDeletePolicyFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DeleteSoft, DeletePolicyFor(EntityCartItem))
	assert.Equal(t, DeleteSoft, DeletePolicyFor(EntityCartItemOption))
	assert.Equal(t, DeleteHard, DeletePolicyFor(EntityPayment))
	assert.Equal(t, DeleteHard, DeletePolicyFor(EntityDelivery))
	assert.Equal(t, DeletePolicy(""), DeletePolicyFor(EntityKind("order")))
}

func TestWindowOutOfRange(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name string
		req  PageRequest
		want []int
	}{
		{name: "middle page", req: PageRequest{Page: 2, Limit: 2}, want: []int{3, 4}},
		{name: "short last page", req: PageRequest{Page: 3, Limit: 2}, want: []int{5}},
		{name: "past the end", req: PageRequest{Page: 4, Limit: 2}, want: []int{}},
		{name: "overflowing page", req: PageRequest{Page: math.MaxInt/2 + 2, Limit: 2}, want: []int{}},
		{name: "overflowing limit", req: PageRequest{Page: 2, Limit: math.MaxInt}, want: []int{}},
		{name: "huge limit on first page", req: PageRequest{Page: 1, Limit: math.MaxInt}, want: items},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var (
				got   []int
				total int
			)
			require.NotPanics(t, func() { got, total = Window(items, tc.req) })
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(items), total)
		})
	}
}
