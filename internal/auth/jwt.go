package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

const issuer = "marketplace-api"

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the authenticated identity; the subject is the user id.
type Claims struct {
	Email      string          `json:"email"`
	Role       domain.UserRole `json:"role"`
	IsVerified bool            `json:"verified"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HMAC-signed access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(u domain.AuthenticatedUser) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)

	claims := Claims{
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates a token string and returns the identity it carries.
func (t *Tokens) Parse(tokenStr string) (domain.AuthenticatedUser, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return domain.AuthenticatedUser{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return domain.AuthenticatedUser{}, ErrInvalidToken
	}

	return domain.AuthenticatedUser{
		ID:         claims.Subject,
		Email:      claims.Email,
		Role:       claims.Role,
		IsVerified: claims.IsVerified,
	}, nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(h, " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
