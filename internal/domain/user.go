package domain

// UserRole classifies what a user is allowed to do in the contest
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleEditor       UserRole = "EDITOR"
	RolePhotographer UserRole = "PHOTOGRAPHER"
	RoleGuest        UserRole = "GUEST"
)

// ValidRole reports whether r is one of the four known roles
func ValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleEditor, RolePhotographer, RoleGuest:
		return true
	}
	return false
}

// User represents an account in the system. Only PHOTOGRAPHER accounts carry
// a meaningful approval gate; the other roles are created approved.
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Role       UserRole `json:"role"`
	IsApproved bool     `json:"isApproved"`
}

// Capability names an action a user may or may not perform
type Capability string

const (
	CapCreateChallenge Capability = "create_challenge"
	CapManageUsers     Capability = "manage_users"
	CapUploadPhoto     Capability = "upload_photo"
)

// HasCapability is the single place role-based authorization rules live.
// A nil user has no capabilities.
func HasCapability(u *User, c Capability) bool {
	if u == nil {
		return false
	}
	switch c {
	case CapCreateChallenge:
		return u.Role == RoleAdmin || u.Role == RoleEditor
	case CapManageUsers:
		return u.Role == RoleAdmin
	case CapUploadPhoto:
		return u.Role == RolePhotographer || u.Role == RoleEditor || u.Role == RoleAdmin
	}
	return false
}
