package authflow

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenUseAccess marks a short-lived token presented on protected operations.
	TokenUseAccess = "access"
	// TokenUseRefresh marks the long-lived token exchanged for new access tokens.
	TokenUseRefresh = "refresh"
)

// JWTClaims is the claim set carried by session tokens.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	TokenUse string `json:"token_use,omitempty"`
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *JWTClaims) IsRefresh() bool {
	return c.TokenUse == TokenUseRefresh
}

// SubjectFromClaims builds the client-held subject record out of validated claims.
func SubjectFromClaims(claims *JWTClaims) *SessionSubject {
	if claims == nil {
		return nil
	}

	role, valid := ParseRole(claims.UserRole)
	if !valid {
		role = RoleGuest
	}

	return &SessionSubject{
		ID:   claims.UID,
		Role: role,
	}
}
