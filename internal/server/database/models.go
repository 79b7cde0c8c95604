package database

import (
	"errors"
	"strings"
)

// Repository-level errors. Callers map them to service errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrNotPending        = errors.New("article is not pending review")
	ErrRoleMismatch      = errors.New("user role changed concurrently")
)

// Limits for the recently reviewed list and similar short lists.
const (
	RecentlyReviewedLimit = 10
)

// escapeLike escapes LIKE wildcards so search text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func fullName(username, first, last string) string {
	if first != "" && last != "" {
		return first + " " + last
	}
	return username
}
