package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/pkg/domain"
)

// AccessClaims is the JWT payload for dashboard sessions. The subject is
// the user id and BusinessID scopes every subsequent request.
type AccessClaims struct {
	BusinessID string `json:"business_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

type SessionService struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

func NewSessionService(secret, issuer string, lifetime time.Duration) *SessionService {
	return &SessionService{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
	}
}

// IssueToken mints an access token for a user operating on their business.
func (s *SessionService) IssueToken(user *domain.User, businessID uuid.UUID) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.lifetime)

	claims := AccessClaims{
		BusinessID: businessID.String(),
		Email:      user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and verifies an access token, returning its claims.
func (s *SessionService) ValidateToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidCredentials
	}
	return claims, nil
}
