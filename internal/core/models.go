package core

import "time"

// User is a registered account. PasswordHash is never rendered or logged.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	Active       bool
}

// FullName returns "First Last" when both names are set, otherwise the username.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// Article is a submitted PDF with its review state.
type Article struct {
	ID               int64
	Title            string
	Abstract         string
	Keywords         string
	Category         string
	BlobName         string // internal, never shown
	OriginalFilename string // display only
	FileSize         int64
	PageCount        int
	Status           Status
	DownloadCount    int64
	SubmittedAt      time.Time
	ReviewedAt       *time.Time
	AuthorID         int64
	ReviewerID       *int64

	// Populated on reads.
	AuthorName   string
	ReviewerName string
}

// Comment is a review remark attached to an article.
type Comment struct {
	ID        int64
	ArticleID int64
	UserID    int64
	Body      string
	CreatedAt time.Time

	UserName string
}

// Review is the atomic status/reviewer/timestamp triple, plus an optional comment.
type Review struct {
	ArticleID  int64
	Decision   Status
	ReviewerID int64
	ReviewedAt time.Time
	Comment    string
}

// Categories offered by the submission form. Stored categories are not
// restricted to this list.
var Categories = []struct {
	Value string
	Label string
}{
	{"computer_science", "Computer Science"},
	{"engineering", "Engineering"},
	{"mathematics", "Mathematics"},
	{"physics", "Physics"},
	{"chemistry", "Chemistry"},
	{"biology", "Biology"},
	{"medicine", "Medicine"},
	{"social_sciences", "Social Sciences"},
	{"humanities", "Humanities"},
	{"business", "Business"},
	{"other", "Other"},
}

// CategoryLabel returns the human label for a category value.
func CategoryLabel(value string) string {
	for _, c := range Categories {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

// SortOrder selects the ordering of the public article list.
type SortOrder string

const (
	SortRecent   SortOrder = "recent"
	SortTrending SortOrder = "trending"
)

// ListQuery filters the public list of approved articles.
type ListQuery struct {
	Category string
	Search   string
	Sort     SortOrder
	Page     int
	PageSize int
}

const DefaultPageSize = 10

// Normalize fills defaults and clamps out-of-range values.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = DefaultPageSize
	}
	if q.Sort != SortTrending {
		q.Sort = SortRecent
	}
	return q
}

// Offset is the number of rows to skip for the query's page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Page is one page of articles plus the total match count.
type Page struct {
	Items    []*Article
	Total    int64
	Page     int
	PageSize int
}

// Pages returns the number of pages needed for Total items.
func (p *Page) Pages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

func (p *Page) HasPrev() bool { return p.Page > 1 }
func (p *Page) HasNext() bool { return p.Page < p.Pages() }
func (p *Page) PrevPage() int { return p.Page - 1 }
func (p *Page) NextPage() int { return p.Page + 1 }
