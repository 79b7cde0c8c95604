package core

import "errors"

// Actor is the identity performing a request. The zero value is anonymous.
type Actor struct {
	ID   int64
	Role Role
	Name string
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{}
}

// ActorFor builds the actor of an authenticated user.
func ActorFor(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Name: u.Username}
}

func (a Actor) Authenticated() bool {
	return a.ID != 0 && a.Role.Valid()
}

// Action is an operation gated by the policy.
type Action int

const (
	ActionSubmit Action = iota
	ActionViewOwnArticles
	ActionReview
	ActionViewDashboard
	ActionManageUsers
	ActionPromote
	ActionDemote
	ActionChangePassword
	ActionViewArticle
	ActionDownload
	ActionPreview
)

var actionNames = map[Action]string{
	ActionSubmit:          "submit",
	ActionViewOwnArticles: "viewOwnArticles",
	ActionReview:          "review",
	ActionViewDashboard:   "viewDashboard",
	ActionManageUsers:     "manageUsers",
	ActionPromote:         "promote",
	ActionDemote:          "demote",
	ActionChangePassword:  "changePassword",
	ActionViewArticle:     "viewArticleDetail",
	ActionDownload:        "download",
	ActionPreview:         "preview",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

var (
	ErrDenied       = errors.New("permission denied")
	ErrSelfDemotion = errors.New("cannot demote yourself")
	ErrTargetRole   = errors.New("target role does not permit this change")
)

// Allow decides role-gated actions. Article visibility actions are decided by
// CanAccessArticle and always return false here.
func Allow(actor Actor, action Action) bool {
	if !actor.Authenticated() {
		return false
	}
	switch action {
	case ActionSubmit, ActionViewOwnArticles:
		return actor.Role.CanAuthor()
	case ActionReview, ActionViewDashboard, ActionManageUsers, ActionPromote:
		return actor.Role.IsSupervisor()
	case ActionDemote:
		return actor.Role.IsAdmin()
	case ActionChangePassword:
		return true
	}
	return false
}

// CheckRoleChange decides promote and demote against the target's current role.
func CheckRoleChange(actor Actor, action Action, target *User) error {
	switch action {
	case ActionPromote, ActionDemote:
	default:
		return ErrDenied
	}
	if !Allow(actor, action) {
		return ErrDenied
	}
	if action == ActionDemote && target.ID == actor.ID {
		return ErrSelfDemotion
	}
	if action == ActionPromote && target.Role != RoleAuthor {
		return ErrTargetRole
	}
	if action == ActionDemote && !target.Role.IsSupervisor() {
		return ErrTargetRole
	}
	return nil
}

// CanAccessArticle decides visibility of an article's page and blob.
// Approved articles are public. Otherwise supervisors and the owning author
// may view and preview; download always requires approval.
func CanAccessArticle(actor Actor, action Action, a *Article) bool {
	switch action {
	case ActionDownload:
		return Downloadable(a.Status)
	case ActionViewArticle, ActionPreview:
		if a.Status == StatusApproved {
			return true
		}
		if !actor.Authenticated() {
			return false
		}
		return actor.Role.IsSupervisor() || actor.ID == a.AuthorID
	}
	return false
}
