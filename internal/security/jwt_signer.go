package security

// This signer is not for prod, only dev tooling to mint tokens for jwt auth checks

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"p2pstats/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

type RS256Signer struct {
	Priv *rsa.PrivateKey
	Iss  string
	Aud  string
}

// Load a PEM-encoded RSA private key PKCS1 or PKCS8
func NewRS256Signer(cfg *config.JWTConfig) (*RS256Signer, error) {
	if cfg.PrivateKeyPath == "" {
		return nil, errors.New("private key path is empty")
	}

	b, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	priv, err := parseRSAPrivateKeyFromPem(b)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &RS256Signer{
		Priv: priv,
		Iss:  cfg.Issuer,
		Aud:  cfg.Audience,
	}, nil
}

// Mint creates a signed JWT with RegisteredClaims.
// Required subject (sub) and ttl, optional id (jti) and extra custom claims
func (s *RS256Signer) Mint(sub string, ttl time.Duration, id string, extra map[string]any) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"sub": sub,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}
	if s.Iss != "" {
		claims["iss"] = s.Iss
	}
	if s.Aud != "" {
		claims["aud"] = s.Aud
	}
	if id != "" {
		claims["jti"] = id
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.Priv)
}
