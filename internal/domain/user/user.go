package user

import (
	"errors"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleStaff   Role = "Staff"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already in use")
	ErrUsernameTaken    = errors.New("username already in use")
	ErrAdminProtected   = errors.New("admin accounts cannot be changed here")
	ErrCannotDeleteSelf = errors.New("you cannot delete your own account")
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleStaff:
		return Role(s), true
	default:
		return "", false
	}
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Role         Role      `json:"role"`
	IsSuperuser  bool      `json:"isSuperuser"`
	IsStaff      bool      `json:"isStaff"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Ref is the slice of a user that other entities carry around: enough to
// address a notification channel and an email.
type Ref struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u User) Ref() Ref {
	return Ref{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Normalize reconciles the access flags with the role. It must run before
// every write of a user row.
//
//	is_superuser => role Admin, is_staff
//	role Admin   => is_superuser, is_staff
func (u *User) Normalize() {
	if u.Role == "" {
		u.Role = RoleStaff
	}

	if u.IsSuperuser {
		u.Role = RoleAdmin
		u.IsStaff = true
		return
	}

	if u.Role == RoleAdmin {
		u.IsSuperuser = true
		u.IsStaff = true
	}
}

// ToggleRole flips a Manager to Staff and back, clearing the derived flags.
// Admins are never toggled.
func (u *User) ToggleRole() error {
	switch u.Role {
	case RoleManager:
		u.Role = RoleStaff
	case RoleStaff:
		u.Role = RoleManager
	default:
		return ErrAdminProtected
	}

	u.IsSuperuser = false
	u.IsStaff = false
	u.Normalize()

	return nil
}

// CanBeDeletedBy checks the business rules for removing target on behalf of actorID.
func (u User) CanBeDeletedBy(actorID string) error {
	if u.ID == actorID {
		return ErrCannotDeleteSelf
	}
	if u.Role == RoleAdmin || u.IsSuperuser {
		return ErrAdminProtected
	}
	return nil
}

type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required,min=3,max=150"`
	Email    string `json:"email" binding:"required,email,max=254"`
}
