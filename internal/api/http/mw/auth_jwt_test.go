package mw

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"p2pstats/internal/security"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T) (*security.RS256Verifier, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return &security.RS256Verifier{
		PubKey: &key.PublicKey,
		Aud:    "test-aud",
		Iss:    "test-iss",
		Leeway: time.Minute,
	}, key
}

func mintTestToken(t *testing.T, key *rsa.PrivateKey, sub string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Audience:  jwt.ClaimStrings{"test-aud"},
		Issuer:    "test-iss",
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTMiddleware_ValidTokenPassesSubject(t *testing.T) {
	verifier, key := newTestVerifier(t)
	m := NewJWTMiddleware(verifier)

	var gotSub string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/reports/x", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, key, "operator-7", time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator-7", gotSub)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	verifier, _ := newTestVerifier(t)
	m := NewJWTMiddleware(verifier)

	h := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/reports/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	verifier, key := newTestVerifier(t)
	verifier.Leeway = time.Millisecond
	m := NewJWTMiddleware(verifier)

	h := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/reports/x", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, key, "operator-7", -time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_ForeignKeyToken(t *testing.T) {
	verifier, _ := newTestVerifier(t)
	_, otherKey := newTestVerifier(t)
	m := NewJWTMiddleware(verifier)

	h := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/reports/x", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, otherKey, "operator-7", time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubject_EmptyWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Subject(req.Context()))
}
