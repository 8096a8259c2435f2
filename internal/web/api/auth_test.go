package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestNewTokenAndVerify(t *testing.T) {
	token, err := NewToken(testSecret, "ci", time.Hour)
	require.NoError(t, err)

	subject, err := VerifyToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "ci", subject)

	_, err = VerifyToken([]byte("other"), token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = NewToken(nil, "ci", time.Hour)
	assert.EqualError(t, err, "secret must not be empty")
}

func TestVerifyToken_Rejects(t *testing.T) {
	expired, err := NewToken(testSecret, "ci", -time.Minute)
	require.NoError(t, err)
	_, err = VerifyToken(testSecret, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: Issuer}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = VerifyToken(testSecret, noExpiry)
	assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)

	otherIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = VerifyToken(testSecret, otherIssuer)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.RegisteredClaims{
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = VerifyToken(testSecret, hs384)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestBearerAuth(t *testing.T) {
	var seen string
	h := BearerAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSubject(r.Context())
	}))
	token, err := NewToken(testSecret, "ci", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing", "", http.StatusUnauthorized, "authorization required"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "invalid authorization format"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "invalid authorization format"},
		{"bad token", "Bearer not-a-token", http.StatusUnauthorized, "token is malformed"},
		{"valid", "Bearer " + token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ci", seen)
				return
			}
			assert.Empty(t, seen)
			got := decode[ErrorResponse](t, rec)
			assert.Equal(t, "unauthorized", got.Error)
			assert.Contains(t, got.Message, tt.message)
		})
	}
}

func TestNewHandler_WithAuth(t *testing.T) {
	h := NewHandler(freeze(t, shopModel), nil, WithAuth(testSecret))

	rec := get(t, h, "/entities")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="ormmeta"`, rec.Header().Get("WWW-Authenticate"))

	token, err := NewToken(testSecret, "ci", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/entities", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
