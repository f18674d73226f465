package auth

import "time"

// Role is the side of the marketplace a session is operating under. It is a
// view toggle, not part of identity: the users table has no role column and
// the same account can act as tenant and landlord.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

// User is the domain representation of an account. It mirrors the users
// table and carries no JSON annotations so it can be reused by different
// presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	Bio          *string
	AvatarURL    *string
	Rating       float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest contains login credentials plus the role the session starts
// under. Role defaults to tenant and can be switched per request later.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
