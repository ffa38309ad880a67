package jwt

import "github.com/golang-jwt/jwt"

// RoleAdmin marks a token that may claim the administrator username.
const RoleAdmin = "admin"

// Payload defines the JWT claims understood by the relay.
type Payload struct {
	jwt.StandardClaims `json:"standard_claims"`

	// Username is the display name the token holder is entitled to.
	Username string `json:"username"`

	// Role is the privilege of the holder; only RoleAdmin is meaningful today.
	Role string `json:"role"`
}

// IsAdmin reports whether the payload grants administrator rights.
func (p *Payload) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
