package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *SQLiteStore, n int) []Item {
	t.Helper()
	in := make([]string, n)
	for i := range in {
		in[i] = fmt.Sprintf("item %03d", i)
	}
	items, err := s.AppendItems(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, items, n)
	return items
}

func texts(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func TestAppendItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	items, err := s.AppendItems(ctx, []string{"alpha", "", "beta"})
	require.NoError(t, err)
	require.Len(t, items, 2, "empty texts are skipped")

	assert.Equal(t, "alpha", items[0].Text)
	assert.Less(t, items[0].ID, items[1].ID)
	for _, it := range items {
		_, err := uuid.Parse(it.ItemID)
		assert.NoError(t, err, "item id %q", it.ItemID)
		assert.NotZero(t, it.CreatedAtMs)
	}

	n, err := s.CountItems(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListItems_OrderLimitOffset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, 10)

	all, err := s.ListItems(ctx, ItemQuery{})
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, "item 000", all[0].Text)
	assert.Equal(t, "item 009", all[9].Text)

	some, err := s.ListItems(ctx, ItemQuery{Limit: 3, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"item 004", "item 005", "item 006"}, texts(some))
}

func TestFetchPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, 25)

	tests := []struct {
		page      int
		wantFirst string
		wantLen   int
	}{
		{1, "item 000", 10},
		{2, "item 010", 10},
		{3, "item 020", 5},
		{4, "", 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			p, err := s.FetchPage(ctx, Filter{}, tt.page, 10)
			require.NoError(t, err)
			assert.Equal(t, 25, p.Total)
			require.Len(t, p.Items, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, p.Items[0].Text)
			}
		})
	}
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.FetchPage(context.Background(), Filter{}, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = s.FetchPage(context.Background(), Filter{}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestFetchPage_Filtered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendItems(ctx, []string{
		"Red Apple", "green apple", "red pepper", "apple pie", "Red apple tart",
	})
	require.NoError(t, err)

	p, err := s.FetchPage(ctx, ParseFilter("APPLE red"), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, []string{"Red Apple", "Red apple tart"}, texts(p.Items))

	p, err = s.FetchPage(ctx, ParseFilter(`"apple pie"`), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple pie"}, texts(p.Items))
}

func TestDeleteItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	items := seed(t, s, 5)

	n, err := s.DeleteItems(ctx, []string{items[1].ItemID, items[3].ItemID, "missing"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := s.ListItems(ctx, ItemQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"item 000", "item 002", "item 004"}, texts(left))

	n, err = s.DeleteItems(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
