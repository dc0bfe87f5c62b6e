package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

// Identity is the resolved caller attached to every authenticated request.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenService issues and verifies self-contained signed tokens. Verification
// never touches a store.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	domains  []string
}

func NewTokenService(secret []byte, lifetime time.Duration, allowedDomains []string) *TokenService {
	return &TokenService{secret: secret, lifetime: lifetime, domains: allowedDomains}
}

// AllowedDomain reports whether the email belongs to an allow-listed domain.
func (s *TokenService) AllowedDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range s.domains {
		if domain == strings.ToLower(d) {
			return true
		}
	}
	return false
}

// Issue signs a token for the identity. The role is derived from the email
// pattern here and embedded in the claims.
func (s *TokenService) Issue(identity Identity) (string, time.Time, error) {
	if !s.AllowedDomain(identity.Email) {
		return "", time.Time{}, types.E(types.KindValidation, "email domain not allowed: %s", identity.Email)
	}
	if identity.Role == "" {
		identity.Role = DeriveRole(identity.Email)
	}
	now := time.Now()
	expires := now.Add(s.lifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   identity.UserID,
		"email": identity.Email,
		"role":  identity.Role,
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and checks the signature and expiry, returning the embedded
// identity. Expired tokens surface as session_expired, everything else as
// invalid_token.
func (s *TokenService) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, types.Wrap(types.KindSessionExpired, err, "token expired")
		}
		return Identity{}, types.Wrap(types.KindInvalidToken, err, "token rejected")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, types.E(types.KindInvalidToken, "malformed claims")
	}
	id := Identity{}
	id.UserID, _ = claims["sub"].(string)
	id.Email, _ = claims["email"].(string)
	id.Role, _ = claims["role"].(string)
	if id.UserID == "" || id.Email == "" || id.Role == "" {
		return Identity{}, types.E(types.KindInvalidToken, "incomplete claims")
	}
	return id, nil
}

// Refresh verifies the old token and issues a fresh one with renewed expiry.
func (s *TokenService) Refresh(tokenStr string) (string, time.Time, error) {
	identity, err := s.Verify(tokenStr)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.Issue(identity)
}
