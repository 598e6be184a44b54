package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated operator identity issued by the
// platform's identity service. This API only validates tokens; it never
// issues them.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
