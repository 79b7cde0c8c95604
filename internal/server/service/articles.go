package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"metarticles/internal/core"
	"metarticles/internal/server/database"
	"metarticles/internal/server/storage"
)

// Home page list sizes.
const (
	TrendingLimit = 5
	RecentLimit   = 3
)

// SubmitInput is the metadata part of the submission form.
type SubmitInput struct {
	Title    string
	Abstract string
	Keywords string
	Category string
}

// Listing is one page of the public article list plus the filter options.
type Listing struct {
	Page       *core.Page
	Query      core.ListQuery
	Categories []string
}

// ArticleDetail is an article with its review comments.
type ArticleDetail struct {
	Article  *core.Article
	Comments []*core.Comment
}

// Blob is an opened article file. The caller closes Content.
type Blob struct {
	Content  io.ReadSeekCloser
	Size     int64
	Filename string
	ModTime  time.Time
}

// Dashboard is the content of the approval dashboard.
type Dashboard struct {
	Pending  []*core.Article
	Reviewed []*core.Article
}

// HomeStats is the content of the home page.
type HomeStats struct {
	Trending      []*core.Article
	Recent        []*core.Article
	TotalArticles int64
	TotalAuthors  int64
}

// ArticleService contains the business logic for article submission,
// review and consumption.
type ArticleService struct {
	articles      ArticleStore
	users         UserStore
	blobs         BlobStorage
	maxUploadSize int64
	now           func() time.Time
}

// NewArticleService creates a new article service.
func NewArticleService(articles ArticleStore, users UserStore, blobs BlobStorage, maxUploadSize int64) *ArticleService {
	return &ArticleService{
		articles:      articles,
		users:         users,
		blobs:         blobs,
		maxUploadSize: maxUploadSize,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the form and file, stores the blob and records a pending
// article owned by the actor. Either both the blob and the record exist
// afterwards, or neither does.
func (s *ArticleService) Submit(ctx context.Context, actor core.Actor, in SubmitInput, file io.Reader, size int64, originalName string) (*core.Article, error) {
	if !core.Allow(actor, core.ActionSubmit) {
		return nil, ErrForbidden
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Abstract = strings.TrimSpace(in.Abstract)
	in.Keywords = strings.TrimSpace(in.Keywords)
	in.Category = strings.TrimSpace(in.Category)

	var v core.Validator
	v.Required("title", in.Title, "Title")
	v.MaxLen("title", in.Title, 200, "Title must be at most 200 characters")
	v.Required("abstract", in.Abstract, "Abstract")
	v.MaxLen("abstract", in.Abstract, 2000, "Abstract must be at most 2000 characters")
	v.MaxLen("keywords", in.Keywords, 500, "Keywords must be at most 500 characters")
	v.Required("category", in.Category, "Category")
	v.MaxLen("category", in.Category, 100, "Category must be at most 100 characters")
	if file == nil || strings.TrimSpace(originalName) == "" {
		v.Add("file", "Please select a PDF file")
	} else if !storage.HasPDFExtension(originalName) {
		v.Add("file", ErrNotPDF.Error())
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if size > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}
	if !storage.HasPDFMagic(data) {
		return nil, ErrNotPDF
	}

	pages := countPages(data)

	blobName, written, err := s.blobs.Store(ctx, bytes.NewReader(data), int64(len(data)), originalName)
	if err != nil {
		if errors.Is(err, storage.ErrNotPDF) || errors.Is(err, storage.ErrInvalidExtension) {
			return nil, ErrNotPDF
		}
		slog.Error("failed to store blob", "user_id", actor.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	a := &core.Article{
		Title:            in.Title,
		Abstract:         in.Abstract,
		Keywords:         in.Keywords,
		Category:         in.Category,
		BlobName:         blobName,
		OriginalFilename: sanitizeFilename(originalName),
		FileSize:         written,
		PageCount:        pages,
		Status:           core.StatusPending,
		AuthorID:         actor.ID,
	}
	if err := s.articles.CreateArticle(ctx, a); err != nil {
		if rmErr := s.blobs.Remove(ctx, blobName); rmErr != nil {
			slog.Error("failed to remove orphaned blob", "blob", blobName, "error", rmErr)
		}
		return nil, fmt.Errorf("failed to create article record: %w", err)
	}

	slog.Info("article submitted",
		"id", a.ID,
		"author_id", actor.ID,
		"size", written,
		"pages", pages,
	)
	return a, nil
}

// ListApproved returns one page of the public list.
func (s *ArticleService) ListApproved(ctx context.Context, q core.ListQuery) (*Listing, error) {
	q = q.Normalize()
	q.Search = strings.TrimSpace(q.Search)

	items, total, err := s.articles.ListApproved(ctx, q)
	if err != nil {
		return nil, err
	}
	categories, err := s.articles.ApprovedCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &Listing{
		Page:       &core.Page{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize},
		Query:      q,
		Categories: categories,
	}, nil
}

// ListOwn returns the actor's own submissions, newest first.
func (s *ArticleService) ListOwn(ctx context.Context, actor core.Actor) ([]*core.Article, error) {
	if !core.Allow(actor, core.ActionViewOwnArticles) {
		return nil, ErrForbidden
	}
	return s.articles.ListByAuthor(ctx, actor.ID)
}

// Get returns an article and its comments. Articles the actor may not see
// are reported as ErrNotFound.
func (s *ArticleService) Get(ctx context.Context, actor core.Actor, id int64) (*ArticleDetail, error) {
	a, err := s.visible(ctx, actor, core.ActionViewArticle, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.articles.CommentsFor(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return &ArticleDetail{Article: a, Comments: comments}, nil
}

// Download opens an approved article's file and counts the download.
func (s *ArticleService) Download(ctx context.Context, actor core.Actor, id int64) (*Blob, error) {
	a, err := s.visible(ctx, actor, core.ActionDownload, id)
	if err != nil {
		return nil, err
	}
	blob, err := s.open(ctx, a)
	if err != nil {
		return nil, err
	}

	if _, err := s.articles.IncrementDownloadCount(ctx, a.ID); err != nil {
		blob.Content.Close()
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return blob, nil
}

// Preview opens an article's file for inline display without counting it.
func (s *ArticleService) Preview(ctx context.Context, actor core.Actor, id int64) (*Blob, error) {
	a, err := s.visible(ctx, actor, core.ActionPreview, id)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, a)
}

// ReviewTarget returns a pending article for the review form.
func (s *ArticleService) ReviewTarget(ctx context.Context, actor core.Actor, id int64) (*ArticleDetail, error) {
	if !core.Allow(actor, core.ActionReview) {
		return nil, ErrForbidden
	}
	return s.Get(ctx, actor, id)
}

// ParseDecision accepts the review form values.
func ParseDecision(s string) (core.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return core.StatusApproved, true
	case "reject", "rejected":
		return core.StatusRejected, true
	}
	return "", false
}

// Review records a supervisor's decision on a pending article, with an
// optional comment, and returns the updated article.
func (s *ArticleService) Review(ctx context.Context, actor core.Actor, id int64, decision core.Status, comment string) (*core.Article, error) {
	if !core.Allow(actor, core.ActionReview) {
		return nil, ErrForbidden
	}

	comment = strings.TrimSpace(comment)
	var v core.Validator
	if !decision.Terminal() {
		v.Add("decision", "Please choose approve or reject")
	}
	v.MaxLen("comment", comment, 1000, "Comment must be at most 1000 characters")
	if err := v.Err(); err != nil {
		return nil, err
	}

	a, err := s.article(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := core.CheckReview(a.Status, decision); err != nil {
		if errors.Is(err, core.ErrNotPending) {
			return nil, ErrAlreadyReviewed
		}
		return nil, core.NewValidationError("decision", "Please choose approve or reject")
	}

	err = s.articles.ApplyReview(ctx, core.Review{
		ArticleID:  a.ID,
		Decision:   decision,
		ReviewerID: actor.ID,
		ReviewedAt: s.now(),
		Comment:    comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotPending):
			return nil, ErrAlreadyReviewed
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}

	slog.Info("article reviewed",
		"id", a.ID,
		"reviewer_id", actor.ID,
		"decision", decision,
	)
	return s.article(ctx, id)
}

// Dashboard lists pending articles (oldest first) and the latest reviews.
func (s *ArticleService) Dashboard(ctx context.Context, actor core.Actor) (*Dashboard, error) {
	if !core.Allow(actor, core.ActionViewDashboard) {
		return nil, ErrForbidden
	}
	pending, err := s.articles.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	reviewed, err := s.articles.ListRecentlyReviewed(ctx, database.RecentlyReviewedLimit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Pending: pending, Reviewed: reviewed}, nil
}

// HomeStats gathers the home page lists and totals.
func (s *ArticleService) HomeStats(ctx context.Context) (*HomeStats, error) {
	trending, _, err := s.articles.ListApproved(ctx, core.ListQuery{Sort: core.SortTrending, PageSize: TrendingLimit})
	if err != nil {
		return nil, err
	}
	recent, _, err := s.articles.ListApproved(ctx, core.ListQuery{Sort: core.SortRecent, PageSize: RecentLimit})
	if err != nil {
		return nil, err
	}
	total, err := s.articles.CountApproved(ctx)
	if err != nil {
		return nil, err
	}
	authors, err := s.users.CountAuthors(ctx)
	if err != nil {
		return nil, err
	}
	return &HomeStats{
		Trending:      trending,
		Recent:        recent,
		TotalArticles: total,
		TotalAuthors:  authors,
	}, nil
}

func (s *ArticleService) article(ctx context.Context, id int64) (*core.Article, error) {
	a, err := s.articles.ArticleByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// visible loads an article and hides it behind ErrNotFound when the actor
// may not perform action on it.
func (s *ArticleService) visible(ctx context.Context, actor core.Actor, action core.Action, id int64) (*core.Article, error) {
	a, err := s.article(ctx, id)
	if err != nil {
		return nil, err
	}
	if !core.CanAccessArticle(actor, action, a) {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *ArticleService) open(ctx context.Context, a *core.Article) (*Blob, error) {
	content, err := s.blobs.Retrieve(ctx, a.BlobName)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) || errors.Is(err, storage.ErrInvalidName) {
			slog.Error("article blob missing", "id", a.ID, "error", err)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &Blob{
		Content:  content,
		Size:     a.FileSize,
		Filename: a.OriginalFilename,
		ModTime:  a.SubmittedAt,
	}, nil
}
