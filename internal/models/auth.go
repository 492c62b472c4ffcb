package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the identity minted by the main application. This
// service only verifies tokens; it never issues them.
type JWTClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
