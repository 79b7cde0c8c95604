package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"metarticles/internal/core"
)

// MemoryStore is an in-process implementation of the user and article
// repositories. A single mutex serialises all mutations, which gives the same
// atomicity as the conditional UPDATEs of the Postgres repositories.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[int64]*core.User
	articles    map[int64]*core.Article
	comments    []*core.Comment
	nextUser    int64
	nextArticle int64
	nextComment int64
	now         func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*core.User),
		articles: make(map[int64]*core.Article),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func copyUser(u *core.User) *core.User {
	c := *u
	return &c
}

// copyArticle returns a detached copy with display names filled in.
// Caller holds m.mu.
func (m *MemoryStore) copyArticle(a *core.Article) *core.Article {
	c := *a
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		c.ReviewedAt = &t
	}
	if a.ReviewerID != nil {
		id := *a.ReviewerID
		c.ReviewerID = &id
		if u, ok := m.users[id]; ok {
			c.ReviewerName = u.FullName()
		}
	}
	if u, ok := m.users[a.AuthorID]; ok {
		c.AuthorName = u.FullName()
	}
	return &c
}

// --- users ---

func (m *MemoryStore) CreateUser(ctx context.Context, u *core.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrDuplicateUsername
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}

	m.nextUser++
	u.ID = m.nextUser
	u.CreatedAt = m.now()
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *MemoryStore) UserByID(ctx context.Context, id int64) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryStore) UserByUsername(ctx context.Context, username string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.UserByUsername(ctx, username)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryStore) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *MemoryStore) ChangeRole(ctx context.Context, id int64, from []core.Role, to core.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	for _, r := range from {
		if u.Role == r {
			u.Role = to
			return nil
		}
	}
	return ErrRoleMismatch
}

func (m *MemoryStore) ListAuthors(ctx context.Context) ([]*core.User, error) {
	users := m.filterUsers(func(u *core.User) bool { return u.Role == core.RoleAuthor })
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (m *MemoryStore) ListStaff(ctx context.Context) ([]*core.User, error) {
	users := m.filterUsers(func(u *core.User) bool { return u.Role.IsSupervisor() })
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *MemoryStore) CountAuthors(ctx context.Context) (int64, error) {
	users := m.filterUsers(func(u *core.User) bool { return u.Role == core.RoleAuthor })
	return int64(len(users)), nil
}

func (m *MemoryStore) filterUsers(keep func(*core.User) bool) []*core.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*core.User
	for _, u := range m.users {
		if keep(u) {
			out = append(out, copyUser(u))
		}
	}
	return out
}

// --- articles ---

func (m *MemoryStore) CreateArticle(ctx context.Context, a *core.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextArticle++
	a.ID = m.nextArticle
	a.Status = core.StatusPending
	a.DownloadCount = 0
	a.ReviewerID = nil
	a.ReviewedAt = nil
	a.SubmittedAt = m.now()
	stored := *a
	m.articles[a.ID] = &stored
	return nil
}

func (m *MemoryStore) ArticleByID(ctx context.Context, id int64) (*core.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.copyArticle(a), nil
}

func (m *MemoryStore) ListApproved(ctx context.Context, q core.ListQuery) ([]*core.Article, int64, error) {
	q = q.Normalize()
	search := strings.ToLower(strings.TrimSpace(q.Search))

	matches := m.filterArticles(func(a *core.Article) bool {
		if a.Status != core.StatusApproved {
			return false
		}
		if q.Category != "" && a.Category != q.Category {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Abstract), search) &&
			!strings.Contains(strings.ToLower(a.Keywords), search) {
			return false
		}
		return true
	})

	if q.Sort == core.SortTrending {
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].DownloadCount != matches[j].DownloadCount {
				return matches[i].DownloadCount > matches[j].DownloadCount
			}
			return newerFirst(matches[i], matches[j])
		})
	} else {
		sort.SliceStable(matches, func(i, j int) bool { return newerFirst(matches[i], matches[j]) })
	}

	total := int64(len(matches))
	start := q.Offset()
	if start > len(matches) {
		start = len(matches)
	}
	end := start + q.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func newerFirst(a, b *core.Article) bool {
	if a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.ID > b.ID
	}
	return a.SubmittedAt.After(b.SubmittedAt)
}

func (m *MemoryStore) ApprovedCategories(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var categories []string
	for _, a := range m.filterArticles(func(a *core.Article) bool { return a.Status == core.StatusApproved }) {
		if a.Category != "" && !seen[a.Category] {
			seen[a.Category] = true
			categories = append(categories, a.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *MemoryStore) ListByAuthor(ctx context.Context, authorID int64) ([]*core.Article, error) {
	out := m.filterArticles(func(a *core.Article) bool { return a.AuthorID == authorID })
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	return out, nil
}

func (m *MemoryStore) ListPending(ctx context.Context) ([]*core.Article, error) {
	out := m.filterArticles(func(a *core.Article) bool { return a.Status == core.StatusPending })
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[j], out[i]) })
	return out, nil
}

func (m *MemoryStore) ListRecentlyReviewed(ctx context.Context, limit int) ([]*core.Article, error) {
	out := m.filterArticles(func(a *core.Article) bool { return a.Status.Terminal() })
	sort.Slice(out, func(i, j int) bool {
		ti, tj := *out[i].ReviewedAt, *out[j].ReviewedAt
		if ti.Equal(tj) {
			return out[i].ID > out[j].ID
		}
		return ti.After(tj)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountApproved(ctx context.Context) (int64, error) {
	out := m.filterArticles(func(a *core.Article) bool { return a.Status == core.StatusApproved })
	return int64(len(out)), nil
}

func (m *MemoryStore) ApplyReview(ctx context.Context, rv core.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[rv.ArticleID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != core.StatusPending {
		return ErrNotPending
	}

	reviewer := rv.ReviewerID
	at := rv.ReviewedAt
	a.Status = rv.Decision
	a.ReviewerID = &reviewer
	a.ReviewedAt = &at

	if rv.Comment != "" {
		m.nextComment++
		m.comments = append(m.comments, &core.Comment{
			ID:        m.nextComment,
			ArticleID: rv.ArticleID,
			UserID:    rv.ReviewerID,
			Body:      rv.Comment,
			CreatedAt: at,
		})
	}
	return nil
}

func (m *MemoryStore) IncrementDownloadCount(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[id]
	if !ok || a.Status != core.StatusApproved {
		return 0, ErrNotFound
	}
	a.DownloadCount++
	return a.DownloadCount, nil
}

func (m *MemoryStore) CommentsFor(ctx context.Context, articleID int64) ([]*core.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*core.Comment
	for _, c := range m.comments {
		if c.ArticleID != articleID {
			continue
		}
		cp := *c
		if u, ok := m.users[c.UserID]; ok {
			cp.UserName = u.FullName()
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) filterArticles(keep func(*core.Article) bool) []*core.Article {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*core.Article
	for _, a := range m.articles {
		if keep(a) {
			out = append(out, m.copyArticle(a))
		}
	}
	return out
}
