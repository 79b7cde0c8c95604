package core

import (
	"errors"
	"fmt"
)

// Status is the review state of an article.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrInvalidDecision = errors.New("review decision must be approved or rejected")
	ErrNotPending      = errors.New("article has already been reviewed")
)

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further transition leaves this status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a review may move an article from s to next.
// pending is the only state with outgoing edges.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// CheckReview validates a review decision against the article's current status.
func CheckReview(current, decision Status) error {
	if !decision.Terminal() {
		return ErrInvalidDecision
	}
	if !current.CanTransition(decision) {
		return ErrNotPending
	}
	return nil
}

// Downloadable reports whether the blob of an article in status s may be
// downloaded (and counted).
func Downloadable(s Status) bool {
	return s == StatusApproved
}

func (s Status) String() string {
	return string(s)
}
