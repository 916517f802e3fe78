package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the principal type carried in access tokens.
type Role string

const (
	RoleSystemAdmin      Role = "system_admin"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleUser             Role = "user"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Role              Role   `json:"role"`
	InstitutionDomain string `json:"institution_domain,omitempty"`
}

// TokenClaims are the JWT claims for access and refresh tokens.
type TokenClaims struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Role              Role   `json:"role"`
	InstitutionDomain string `json:"institution_domain,omitempty"`
	Type              string `json:"type"` // "access" or "refresh"
	Exp               int64  `json:"exp"`
	Iat               int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims.
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims.
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims.
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims.
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims.
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims.
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// Principal converts validated claims into the request principal.
func (c *TokenClaims) Principal() *Principal {
	return &Principal{
		ID:                c.UserID,
		Email:             c.Email,
		Role:              c.Role,
		InstitutionDomain: c.InstitutionDomain,
	}
}
