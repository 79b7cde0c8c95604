package service

import (
	"context"
	"io"

	"metarticles/internal/core"
)

// UserStore is the persistence the identity service needs. It is implemented
// by database.UserRepository and database.MemoryStore.
type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	UserByID(ctx context.Context, id int64) (*core.User, error)
	UserByUsername(ctx context.Context, username string) (*core.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	ChangeRole(ctx context.Context, id int64, from []core.Role, to core.Role) error
	ListAuthors(ctx context.Context) ([]*core.User, error)
	ListStaff(ctx context.Context) ([]*core.User, error)
	CountAuthors(ctx context.Context) (int64, error)
}

// ArticleStore is implemented by database.ArticleRepository and
// database.MemoryStore.
type ArticleStore interface {
	CreateArticle(ctx context.Context, a *core.Article) error
	ArticleByID(ctx context.Context, id int64) (*core.Article, error)
	ListApproved(ctx context.Context, q core.ListQuery) ([]*core.Article, int64, error)
	ApprovedCategories(ctx context.Context) ([]string, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]*core.Article, error)
	ListPending(ctx context.Context) ([]*core.Article, error)
	ListRecentlyReviewed(ctx context.Context, limit int) ([]*core.Article, error)
	CountApproved(ctx context.Context) (int64, error)
	ApplyReview(ctx context.Context, rv core.Review) error
	IncrementDownloadCount(ctx context.Context, id int64) (int64, error)
	CommentsFor(ctx context.Context, articleID int64) ([]*core.Comment, error)
}

// BlobStorage is implemented by storage.BlobStore.
type BlobStorage interface {
	Store(ctx context.Context, data io.Reader, size int64, originalName string) (string, int64, error)
	Retrieve(ctx context.Context, name string) (io.ReadSeekCloser, error)
	Remove(ctx context.Context, name string) error
}
