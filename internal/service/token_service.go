package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/norish-recipes/norish-caldav/internal/models"
	"github.com/norish-recipes/norish-caldav/pkg/config"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
)

// TokenService verifies bearer tokens issued by the main Norish backend.
// This engine never issues tokens, it only validates them.
type TokenService struct {
	config config.JWTConfig
}

// NewTokenService constructs the verifier.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{config: cfg}
}

// ValidateToken parses and verifies an HS256 token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	var options []jwt.ParserOption
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, options...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject user")
	}
	if len(s.config.Audience) > 0 && !audienceAllowed(claims.Audience, s.config.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token audience not accepted")
	}

	return claims, nil
}

// audienceAllowed accepts a token whose aud claim names any configured
// audience.
func audienceAllowed(claimed jwt.ClaimStrings, accepted []string) bool {
	for _, aud := range claimed {
		for _, want := range accepted {
			if aud == want {
				return true
			}
		}
	}
	return false
}
