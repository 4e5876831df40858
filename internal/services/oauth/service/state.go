package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "clockrelay"

type stateClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

// stateSigner issues and checks the short lived OAuth state parameter
type stateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func (s stateSigner) sign(tenant string) (string, error) {
	now := s.now()
	c := stateClaims{
		Tenant: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// verify returns the tenant the state was issued for
func (s stateSigner) verify(raw string) (string, error) {
	var c stateClaims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if !tok.Valid || strings.TrimSpace(c.Tenant) == "" {
		return "", fmt.Errorf("state carries no tenant")
	}
	return c.Tenant, nil
}
