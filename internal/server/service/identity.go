package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"metarticles/internal/core"
	"metarticles/internal/server/database"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt refuses longer input.
	maxPasswordBytes = 72

	msgPasswordTooLong = "Password must be at most 72 bytes"
)

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// UserLists is the content of the user management page.
type UserLists struct {
	Authors []*core.User
	Staff   []*core.User
}

// IdentityService registers users, checks credentials and changes roles.
type IdentityService struct {
	users UserStore

	// HashCost is the bcrypt cost used for new password hashes.
	HashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewIdentityService creates a new identity service.
func NewIdentityService(users UserStore) *IdentityService {
	return &IdentityService{
		users:    users,
		HashCost: bcrypt.DefaultCost,
	}
}

// Register validates the form and creates an author account.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*core.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	var v core.Validator
	v.Required("username", in.Username, "Username")
	v.MinLen("username", in.Username, 4, "Username must be between 4 and 20 characters")
	v.MaxLen("username", in.Username, 20, "Username must be between 4 and 20 characters")
	v.Required("email", in.Email, "Email")
	v.Email("email", in.Email)
	v.MaxLen("email", in.Email, 120, "Email must be at most 120 characters")
	v.Required("password", in.Password, "Password")
	v.MinLen("password", in.Password, minPasswordLength, "Password must be at least 6 characters long")
	v.MaxBytes("password", in.Password, maxPasswordBytes, msgPasswordTooLong)
	v.Required("confirm_password", in.ConfirmPassword, "Password confirmation")
	v.Equal("confirm_password", in.Password, in.ConfirmPassword, "Passwords must match")
	v.MaxLen("first_name", in.FirstName, 50, "First name must be at most 50 characters")
	v.MaxLen("last_name", in.LastName, 50, "Last name must be at most 50 characters")
	if err := v.Err(); err != nil {
		return nil, err
	}

	exists, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &ConflictError{Field: "username", Message: "Username already exists. Please choose a different one."}
	}
	exists, err = s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &ConflictError{Field: "email", Message: "Email already registered. Please use a different email."}
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &core.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         core.RoleAuthor,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateUsername):
			return nil, &ConflictError{Field: "username", Message: "Username already exists. Please choose a different one."}
		case errors.Is(err, database.ErrDuplicateEmail):
			return nil, &ConflictError{Field: "email", Message: "Email already registered. Please use a different email."}
		}
		return nil, err
	}

	slog.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks a username and password. Unknown users, wrong
// passwords and deactivated accounts all yield ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*core.User, error) {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Spend the same bcrypt work as for a known user.
			bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the actor's password after verifying the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, actor core.Actor, current, next, confirm string) error {
	if !core.Allow(actor, core.ActionChangePassword) {
		return ErrForbidden
	}

	var v core.Validator
	v.Required("current_password", current, "Current password")
	v.Required("new_password", next, "New password")
	v.MinLen("new_password", next, minPasswordLength, "Password must be at least 6 characters long")
	v.MaxBytes("new_password", next, maxPasswordBytes, msgPasswordTooLong)
	v.Equal("confirm_password", next, confirm, "Passwords must match")
	if err := v.Err(); err != nil {
		return err
	}

	u, err := s.userByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return core.NewValidationError("current_password", "Current password is incorrect")
	}
	if current == next {
		return core.NewValidationError("new_password", "New password must be different from the current password")
	}

	if err := s.setHash(ctx, u.ID, next); err != nil {
		return err
	}
	slog.Info("password changed", "user_id", u.ID)
	return nil
}

// SetPassword resets a user's password without knowing the old one.
// It is meant for operators, not for the web surface.
func (s *IdentityService) SetPassword(ctx context.Context, username, password string) error {
	var v core.Validator
	v.MinLen("password", password, minPasswordLength, "Password must be at least 6 characters long")
	v.MaxBytes("password", password, maxPasswordBytes, msgPasswordTooLong)
	if err := v.Err(); err != nil {
		return err
	}

	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.setHash(ctx, u.ID, password); err != nil {
		return err
	}
	slog.Info("password reset", "user_id", u.ID, "username", u.Username)
	return nil
}

// Promote makes an author a supervisor.
func (s *IdentityService) Promote(ctx context.Context, actor core.Actor, targetID int64) (*core.User, error) {
	return s.changeRole(ctx, actor, targetID, core.ActionPromote, []core.Role{core.RoleAuthor}, core.RoleSupervisor)
}

// Demote makes a supervisor or admin an author again.
func (s *IdentityService) Demote(ctx context.Context, actor core.Actor, targetID int64) (*core.User, error) {
	return s.changeRole(ctx, actor, targetID, core.ActionDemote, []core.Role{core.RoleSupervisor, core.RoleAdmin}, core.RoleAuthor)
}

func (s *IdentityService) changeRole(ctx context.Context, actor core.Actor, targetID int64, action core.Action, from []core.Role, to core.Role) (*core.User, error) {
	if !core.Allow(actor, action) {
		return nil, ErrForbidden
	}

	target, err := s.userByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	switch err := core.CheckRoleChange(actor, action, target); {
	case errors.Is(err, core.ErrSelfDemotion):
		return nil, ErrSelfDemotion
	case errors.Is(err, core.ErrTargetRole):
		return nil, ErrInvalidRoleChange
	case err != nil:
		return nil, ErrForbidden
	}

	if err := s.users.ChangeRole(ctx, target.ID, from, to); err != nil {
		switch {
		case errors.Is(err, database.ErrRoleMismatch):
			return nil, ErrInvalidRoleChange
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}

	slog.Info("user role changed",
		"actor_id", actor.ID,
		"target_id", target.ID,
		"from", target.Role,
		"to", to,
	)
	target.Role = to
	return target, nil
}

// UserByID loads a user for session restoration.
func (s *IdentityService) UserByID(ctx context.Context, id int64) (*core.User, error) {
	return s.userByID(ctx, id)
}

// ListForManagement returns authors (newest first) and staff (by username).
func (s *IdentityService) ListForManagement(ctx context.Context, actor core.Actor) (*UserLists, error) {
	if !core.Allow(actor, core.ActionManageUsers) {
		return nil, ErrForbidden
	}
	authors, err := s.users.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	staff, err := s.users.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	return &UserLists{Authors: authors, Staff: staff}, nil
}

func (s *IdentityService) userByID(ctx context.Context, id int64) (*core.User, error) {
	u, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// dummy returns a hash at the configured cost that no password matches.
func (s *IdentityService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("metarticles unknown user"), s.HashCost)
	})
	return s.dummyHash
}

func (s *IdentityService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *IdentityService) setHash(ctx context.Context, id int64, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
