package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReview(t *testing.T) {
	tests := []struct {
		current  Status
		decision Status
		want     error
	}{
		{StatusPending, StatusApproved, nil},
		{StatusPending, StatusRejected, nil},
		{StatusPending, StatusPending, ErrInvalidDecision},
		{StatusPending, Status("archived"), ErrInvalidDecision},
		{StatusApproved, StatusRejected, ErrNotPending},
		{StatusRejected, StatusApproved, ErrNotPending},
		{StatusApproved, StatusApproved, ErrNotPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.decision), func(t *testing.T) {
			err := CheckReview(tt.current, tt.decision)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDownloadable(t *testing.T) {
	assert.True(t, Downloadable(StatusApproved))
	assert.False(t, Downloadable(StatusPending))
	assert.False(t, Downloadable(StatusRejected))
}

func TestParseStatusAndRole(t *testing.T) {
	s, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)

	_, err = ParseStatus("published")
	assert.Error(t, err)

	r, err := ParseRole("supervisor")
	require.NoError(t, err)
	assert.True(t, r.IsSupervisor())
	assert.False(t, r.IsAdmin())

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{Page: -3, PageSize: 0, Sort: "weird"}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
	assert.Equal(t, SortRecent, q.Sort)
	assert.Equal(t, 0, q.Offset())

	q = ListQuery{Page: 3, PageSize: 10, Sort: SortTrending}.Normalize()
	assert.Equal(t, 20, q.Offset())
	assert.Equal(t, SortTrending, q.Sort)
}

func TestPagePages(t *testing.T) {
	p := &Page{Total: 21, Page: 2, PageSize: 10}
	assert.Equal(t, 3, p.Pages())
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	empty := &Page{Total: 0, Page: 1, PageSize: 10}
	assert.Equal(t, 1, empty.Pages())
	assert.False(t, empty.HasNext())
}
