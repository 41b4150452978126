package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager mints the session cookie token. The token only names the
// wallet account it was issued for; the wallet adapter stays the source of
// truth for whether that account is still connected.
type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
	now      func() time.Time
}

type Claims struct {
	Account   string `json:"acct"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewJWTManager(issuer, audience, signingKey string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(signingKey),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Mint returns a signed token and its session id.
func (m *JWTManager) Mint(account string, ttl time.Duration) (string, string, error) {
	if strings.TrimSpace(account) == "" {
		return "", "", errors.New("missing account")
	}
	now := m.now()
	sessionID := uuid.NewString()
	claims := Claims{
		Account:   account,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   account,
			Issuer:    m.issuer,
			Audience:  []string{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", "", err
	}
	return signed, sessionID, nil
}

func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Issuer != m.issuer {
		return nil, errors.New("invalid issuer")
	}
	ok := false
	for _, aud := range claims.Audience {
		if aud == m.audience {
			ok = true
			break
		}
	}
	if !ok {
		return nil, errors.New("invalid audience")
	}
	if strings.TrimSpace(claims.Account) == "" {
		return nil, errors.New("missing account claim")
	}
	return claims, nil
}
