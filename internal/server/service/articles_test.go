package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"metarticles/internal/core"
	"metarticles/internal/server/database"
	"metarticles/internal/server/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestSubmitAndReviewScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	bob := f.user(t, "bob", core.RoleSupervisor)

	data := buildPDF(2)
	a, err := f.articles.Submit(ctx, alice, SubmitInput{
		Title:    "Graph Algorithms",
		Abstract: "On shortest paths.",
		Keywords: "graphs",
		Category: "computer_science",
	}, bytes.NewReader(data), int64(len(data)), "graphs.pdf")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, a.Status)
	assert.Equal(t, alice.ID, a.AuthorID)
	assert.Equal(t, 2, a.PageCount)
	assert.Equal(t, int64(len(data)), a.FileSize)
	assert.Equal(t, "graphs.pdf", a.OriginalFilename)
	assert.NotContains(t, a.BlobName, "graphs")

	listing, err := f.articles.ListApproved(ctx, core.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, listing.Page.Items, "pending articles are not listed")

	_, err = f.articles.Download(ctx, core.Anonymous(), a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	dash, err := f.articles.Dashboard(ctx, bob)
	require.NoError(t, err)
	require.Len(t, dash.Pending, 1)
	assert.Equal(t, a.ID, dash.Pending[0].ID)

	reviewed, err := f.articles.Review(ctx, bob, a.ID, core.StatusApproved, "Well written")
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewerID)
	assert.Equal(t, bob.ID, *reviewed.ReviewerID)
	assert.NotNil(t, reviewed.ReviewedAt)

	_, err = f.articles.Review(ctx, bob, a.ID, core.StatusRejected, "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	listing, err = f.articles.ListApproved(ctx, core.ListQuery{})
	require.NoError(t, err)
	require.Len(t, listing.Page.Items, 1)
	assert.Equal(t, []string{"computer_science"}, listing.Categories)

	blob, err := f.articles.Download(ctx, core.Anonymous(), a.ID)
	require.NoError(t, err)
	got, err := io.ReadAll(blob.Content)
	require.NoError(t, err)
	require.NoError(t, blob.Content.Close())
	assert.Equal(t, data, got)
	assert.Equal(t, "graphs.pdf", blob.Filename)

	detail, err := f.articles.Get(ctx, core.Anonymous(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.Article.DownloadCount)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "Well written", detail.Comments[0].Body)
	assert.Equal(t, "bob", detail.Comments[0].UserName)

	dash, err = f.articles.Dashboard(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, dash.Pending)
	require.Len(t, dash.Reviewed, 1)
}

func TestSubmitRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	bob := f.user(t, "bob", core.RoleSupervisor)
	valid := SubmitInput{Title: "T", Abstract: "A", Category: "physics"}
	pdf := buildPDF(1)

	tests := []struct {
		name     string
		actor    core.Actor
		in       SubmitInput
		data     []byte
		size     int64
		filename string
		wantErr  error
		field    string
	}{
		{"supervisor may not submit", bob, valid, pdf, int64(len(pdf)), "a.pdf", ErrForbidden, ""},
		{"anonymous may not submit", core.Anonymous(), valid, pdf, int64(len(pdf)), "a.pdf", ErrForbidden, ""},
		{"missing title", alice, SubmitInput{Abstract: "A", Category: "physics"}, pdf, int64(len(pdf)), "a.pdf", nil, "title"},
		{"long title", alice, SubmitInput{Title: strings.Repeat("x", 201), Abstract: "A", Category: "physics"}, pdf, int64(len(pdf)), "a.pdf", nil, "title"},
		{"missing category", alice, SubmitInput{Title: "T", Abstract: "A"}, pdf, int64(len(pdf)), "a.pdf", nil, "category"},
		{"wrong extension", alice, valid, pdf, int64(len(pdf)), "a.docx", nil, "file"},
		{"missing file name", alice, valid, pdf, int64(len(pdf)), "", nil, "file"},
		{"not a pdf", alice, valid, []byte("hello world"), 11, "a.pdf", ErrNotPDF, ""},
		{"declared too large", alice, valid, pdf, testMaxUpload + 1, "a.pdf", ErrFileTooLarge, ""},
		{"actually too large", alice, valid, append([]byte("%PDF-1.4\n"), make([]byte, testMaxUpload)...), 0, "a.pdf", ErrFileTooLarge, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.articles.Submit(ctx, tt.actor, tt.in, bytes.NewReader(tt.data), tt.size, tt.filename)
			if tt.field != "" {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.NotEmpty(t, verr.For(tt.field))
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	own, err := f.articles.ListOwn(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, own)
	assert.Zero(t, blobCount(t, f.dir), "rejected submissions leave no blob")
}

type failingArticleStore struct {
	*database.MemoryStore
}

func (failingArticleStore) CreateArticle(ctx context.Context, a *core.Article) error {
	return errors.New("connection reset")
}

func TestSubmitRemovesBlobWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)

	svc := NewArticleService(failingArticleStore{f.store}, f.store, f.blobs, testMaxUpload)
	data := buildPDF(1)
	_, err := svc.Submit(ctx, alice, SubmitInput{Title: "T", Abstract: "A", Category: "physics"},
		bytes.NewReader(data), int64(len(data)), "a.pdf")
	require.Error(t, err)
	assert.Zero(t, blobCount(t, f.dir))
}

func TestArticleVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	mallory := f.user(t, "mallory", core.RoleAuthor)
	bob := f.user(t, "bob", core.RoleSupervisor)

	pending := f.submit(t, alice, "Pending Work")
	rejected := f.submit(t, alice, "Rejected Work")
	_, err := f.articles.Review(ctx, bob, rejected.ID, core.StatusRejected, "Out of scope")
	require.NoError(t, err)

	for _, a := range []*core.Article{pending, rejected} {
		t.Run(a.Title, func(t *testing.T) {
			_, err := f.articles.Get(ctx, core.Anonymous(), a.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = f.articles.Get(ctx, mallory, a.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = f.articles.Preview(ctx, mallory, a.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = f.articles.Get(ctx, alice, a.ID)
			assert.NoError(t, err, "owner can view")
			_, err = f.articles.Get(ctx, bob, a.ID)
			assert.NoError(t, err, "supervisor can view")

			blob, err := f.articles.Preview(ctx, alice, a.ID)
			require.NoError(t, err)
			blob.Content.Close()

			_, err = f.articles.Download(ctx, alice, a.ID)
			assert.ErrorIs(t, err, ErrNotFound, "download requires approval")
		})
	}

	_, err = f.articles.Get(ctx, bob, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	bob := f.user(t, "bob", core.RoleSupervisor)
	a := f.submit(t, alice, "Work")

	_, err := f.articles.Review(ctx, alice, a.ID, core.StatusApproved, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.articles.Review(ctx, bob, a.ID, core.StatusPending, "")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.For("decision"))

	_, err = f.articles.Review(ctx, bob, a.ID, core.StatusApproved, strings.Repeat("x", 1001))
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.For("comment"))

	_, err = f.articles.Review(ctx, bob, 9999, core.StatusApproved, "")
	assert.ErrorIs(t, err, ErrNotFound)

	reviewed, err := f.articles.Review(ctx, bob, a.ID, core.StatusRejected, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusRejected, reviewed.Status)

	detail, err := f.articles.Get(ctx, bob, a.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Comments, "an empty comment creates no record")
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in   string
		want core.Status
		ok   bool
	}{
		{"approve", core.StatusApproved, true},
		{"Approved", core.StatusApproved, true},
		{"reject", core.StatusRejected, true},
		{" rejected ", core.StatusRejected, true},
		{"pending", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDecision(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestConcurrentDownloadsAreCounted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	bob := f.user(t, "bob", core.RoleSupervisor)
	a := f.submit(t, alice, "Popular")
	_, err := f.articles.Review(ctx, bob, a.ID, core.StatusApproved, "")
	require.NoError(t, err)

	const n = 50
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			blob, err := f.articles.Download(ctx, core.Anonymous(), a.ID)
			if err != nil {
				return err
			}
			_, err = io.Copy(io.Discard, blob.Content)
			blob.Content.Close()
			return err
		})
	}
	require.NoError(t, g.Wait())

	detail, err := f.articles.Get(ctx, core.Anonymous(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), detail.Article.DownloadCount)
}

func TestListingAndHomeStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	bob := f.user(t, "bob", core.RoleSupervisor)

	var ids []int64
	for i := 0; i < 12; i++ {
		a := f.submit(t, alice, "Paper "+string(rune('A'+i)))
		_, err := f.articles.Review(ctx, bob, a.ID, core.StatusApproved, "")
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	f.submit(t, alice, "Still Pending")

	for i := 0; i < 3; i++ {
		blob, err := f.articles.Download(ctx, core.Anonymous(), ids[4])
		require.NoError(t, err)
		blob.Content.Close()
	}

	listing, err := f.articles.ListApproved(ctx, core.ListQuery{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, listing.Page.Page)
	assert.Len(t, listing.Page.Items, core.DefaultPageSize)
	assert.Equal(t, int64(12), listing.Page.Total)
	assert.Equal(t, 2, listing.Page.Pages())
	assert.True(t, listing.Page.HasNext())

	listing, err = f.articles.ListApproved(ctx, core.ListQuery{Page: 2})
	require.NoError(t, err)
	assert.Len(t, listing.Page.Items, 2)
	assert.False(t, listing.Page.HasNext())

	listing, err = f.articles.ListApproved(ctx, core.ListQuery{Search: "paper e"})
	require.NoError(t, err)
	require.Len(t, listing.Page.Items, 1)
	assert.Equal(t, ids[4], listing.Page.Items[0].ID)

	stats, err := f.articles.HomeStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Trending, TrendingLimit)
	assert.Equal(t, ids[4], stats.Trending[0].ID)
	assert.Len(t, stats.Recent, RecentLimit)
	assert.Equal(t, int64(12), stats.TotalArticles)
	assert.Equal(t, int64(1), stats.TotalAuthors)
}

func TestSubmitKeepsDisplayName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", core.RoleAuthor)
	data := buildPDF(1)

	names := map[string]string{
		"drafts/../graphs.pdf":                    "drafts/../graphs.pdf",
		strings.Repeat("é", 300) + ".pdf":         strings.Repeat("é", 251) + ".pdf",
		"C:\\Users\\alice\\Graph Theory (v2).pdf": "C:\\Users\\alice\\Graph Theory (v2).pdf",
	}
	for in, want := range names {
		a, err := f.articles.Submit(ctx, alice, SubmitInput{
			Title: "Named", Abstract: "About names.", Category: "mathematics",
		}, bytes.NewReader(data), int64(len(data)), in)
		require.NoError(t, err)
		assert.Equal(t, want, a.OriginalFilename)
		assert.True(t, utf8.ValidString(a.OriginalFilename))
		assert.True(t, storage.ValidBlobName(a.BlobName), "blob names never derive from the display name")
	}
}
