package core

import "fmt"

// Role is the closed set of user roles.
type Role string

const (
	RoleAuthor     Role = "author"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAuthor, RoleSupervisor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// IsSupervisor reports whether the role carries review privileges.
// Admins are supervisors too.
func (r Role) IsSupervisor() bool {
	return r == RoleSupervisor || r == RoleAdmin
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanAuthor reports whether the role may submit and list its own articles.
func (r Role) CanAuthor() bool {
	return r == RoleAuthor || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
