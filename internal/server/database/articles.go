package database

import (
	"context"
	"fmt"
	"strings"

	"metarticles/internal/core"

	"github.com/jackc/pgx/v5"
)

const articleSelect = `
	SELECT a.id, a.title, a.abstract, a.keywords, a.category, a.blob_name,
	       a.original_filename, a.file_size, a.page_count, a.status,
	       a.download_count, a.submitted_at, a.reviewed_at, a.author_id,
	       a.reviewer_id,
	       au.username, au.first_name, au.last_name,
	       rv.username, rv.first_name, rv.last_name
	FROM articles a
	JOIN users au ON au.id = a.author_id
	LEFT JOIN users rv ON rv.id = a.reviewer_id`

// ArticleRepository provides persistence for articles and review comments.
type ArticleRepository struct {
	db *DB
}

// NewArticleRepository creates a new ArticleRepository.
func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func scanArticle(row pgx.Row) (*core.Article, error) {
	a := &core.Article{}
	var (
		status                    string
		authorUser, authorFirst   string
		authorLast                string
		reviewerUser, reviewFirst *string
		reviewLast                *string
	)
	if err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Abstract,
		&a.Keywords,
		&a.Category,
		&a.BlobName,
		&a.OriginalFilename,
		&a.FileSize,
		&a.PageCount,
		&status,
		&a.DownloadCount,
		&a.SubmittedAt,
		&a.ReviewedAt,
		&a.AuthorID,
		&a.ReviewerID,
		&authorUser,
		&authorFirst,
		&authorLast,
		&reviewerUser,
		&reviewFirst,
		&reviewLast,
	); err != nil {
		return nil, err
	}

	st, err := core.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	a.Status = st
	a.AuthorName = fullName(authorUser, authorFirst, authorLast)
	if reviewerUser != nil {
		a.ReviewerName = fullName(*reviewerUser, deref(reviewFirst), deref(reviewLast))
	}
	return a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateArticle inserts a new pending article and fills in ID and timestamps.
func (r *ArticleRepository) CreateArticle(ctx context.Context, a *core.Article) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO articles (
			title, abstract, keywords, category, blob_name, original_filename,
			file_size, page_count, status, author_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
		RETURNING id, submitted_at
	`,
		a.Title,
		a.Abstract,
		a.Keywords,
		a.Category,
		a.BlobName,
		a.OriginalFilename,
		a.FileSize,
		a.PageCount,
		a.AuthorID,
	).Scan(&a.ID, &a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}
	a.Status = core.StatusPending
	return nil
}

// ArticleByID retrieves an article by its ID.
func (r *ArticleRepository) ArticleByID(ctx context.Context, id int64) (*core.Article, error) {
	a, err := scanArticle(r.db.Pool.QueryRow(ctx, articleSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return a, nil
}

// ListApproved returns one page of approved articles matching q, and the
// total number of matches.
func (r *ArticleRepository) ListApproved(ctx context.Context, q core.ListQuery) ([]*core.Article, int64, error) {
	q = q.Normalize()

	where := []string{"a.status = 'approved'"}
	var args []any
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("a.category = $%d", len(args)))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(a.title ILIKE $%d OR a.abstract ILIKE $%d OR a.keywords ILIKE $%d)", n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles a WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	order := "a.submitted_at DESC, a.id DESC"
	if q.Sort == core.SortTrending {
		order = "a.download_count DESC, a.submitted_at DESC, a.id DESC"
	}
	args = append(args, q.PageSize, q.Offset())
	query := fmt.Sprintf("%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		articleSelect, cond, order, len(args)-1, len(args))

	items, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ApprovedCategories returns the distinct categories of approved articles.
func (r *ArticleRepository) ApprovedCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		"SELECT DISTINCT category FROM articles WHERE status = 'approved' AND category <> '' ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListByAuthor returns an author's articles, newest first.
func (r *ArticleRepository) ListByAuthor(ctx context.Context, authorID int64) ([]*core.Article, error) {
	return r.list(ctx, articleSelect+` WHERE a.author_id = $1 ORDER BY a.submitted_at DESC, a.id DESC`, authorID)
}

// ListPending returns pending articles, oldest first.
func (r *ArticleRepository) ListPending(ctx context.Context) ([]*core.Article, error) {
	return r.list(ctx, articleSelect+` WHERE a.status = 'pending' ORDER BY a.submitted_at, a.id`)
}

// ListRecentlyReviewed returns the most recently reviewed articles.
func (r *ArticleRepository) ListRecentlyReviewed(ctx context.Context, limit int) ([]*core.Article, error) {
	return r.list(ctx, articleSelect+`
		WHERE a.status IN ('approved', 'rejected')
		ORDER BY a.reviewed_at DESC, a.id DESC
		LIMIT $1`, limit)
}

// CountApproved returns the number of approved articles.
func (r *ArticleRepository) CountApproved(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles WHERE status = 'approved'").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// ApplyReview moves a pending article to the review decision, recording the
// reviewer and timestamp in the same statement, and stores the optional
// comment in the same transaction.
func (r *ArticleRepository) ApplyReview(ctx context.Context, rv core.Review) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE articles
			SET status = $2, reviewer_id = $3, reviewed_at = $4
			WHERE id = $1 AND status = 'pending'
		`, rv.ArticleID, string(rv.Decision), rv.ReviewerID, rv.ReviewedAt)
		if err != nil {
			return fmt.Errorf("failed to update article status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)", rv.ArticleID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check article: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrNotPending
		}

		if rv.Comment != "" {
			if _, err := tx.Exec(ctx, `
				INSERT INTO article_comments (article_id, user_id, body, created_at)
				VALUES ($1, $2, $3, $4)
			`, rv.ArticleID, rv.ReviewerID, rv.Comment, rv.ReviewedAt); err != nil {
				return fmt.Errorf("failed to create comment: %w", err)
			}
		}
		return nil
	})
}

// IncrementDownloadCount atomically increments the counter of an approved
// article and returns the new value.
func (r *ArticleRepository) IncrementDownloadCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE articles SET download_count = download_count + 1
		WHERE id = $1 AND status = 'approved'
		RETURNING download_count
	`, id).Scan(&count)
	if err != nil {
		if isNoRows(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment download count: %w", err)
	}
	return count, nil
}

// CommentsFor returns an article's comments, oldest first.
func (r *ArticleRepository) CommentsFor(ctx context.Context, articleID int64) ([]*core.Comment, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT c.id, c.article_id, c.user_id, c.body, c.created_at,
		       u.username, u.first_name, u.last_name
		FROM article_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.article_id = $1
		ORDER BY c.created_at, c.id
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []*core.Comment
	for rows.Next() {
		c := &core.Comment{}
		var username, first, last string
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.UserID, &c.Body, &c.CreatedAt, &username, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.UserName = fullName(username, first, last)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *ArticleRepository) list(ctx context.Context, query string, args ...any) ([]*core.Article, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*core.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
