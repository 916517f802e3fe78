package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gradlink-backend/pkg/models"
)

// JWTService signs and validates access/refresh tokens carrying the
// caller's role and institution scope.
type JWTService struct {
	secretKey []byte
}

// NewJWTService creates a JWT service with an HMAC secret.
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{secretKey: []byte(secretKey)}
}

// GenerateAccessToken issues a 15-minute access token for the principal.
func (j *JWTService) GenerateAccessToken(p *models.Principal) (string, int64, error) {
	now := time.Now()
	expiry := now.Add(15 * time.Minute)

	claims := &models.TokenClaims{
		UserID:            p.ID,
		Email:             p.Email,
		Role:              p.Role,
		InstitutionDomain: p.InstitutionDomain,
		Type:              "access",
		Exp:               expiry.Unix(),
		Iat:               now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, expiry.Unix(), nil
}

// GenerateRefreshToken issues a 7-day refresh token for the principal.
func (j *JWTService) GenerateRefreshToken(p *models.Principal) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		UserID:            p.ID,
		Email:             p.Email,
		Role:              p.Role,
		InstitutionDomain: p.InstitutionDomain,
		Type:              "refresh",
		Exp:               now.Add(7 * 24 * time.Hour).Unix(),
		Iat:               now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses a token and returns its claims.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}
