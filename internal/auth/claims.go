package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// A token is only as good as its session: SessionID must still exist in the
// session store for the token to be accepted.
type Claims struct {
	jwt.RegisteredClaims

	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	Role      string `json:"role"`
}
