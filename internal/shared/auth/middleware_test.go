package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authz "github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/shared/config"
)

const secret = "test-secret"

func signed(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func echoActor(t *testing.T, got *authz.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		require.True(t, ok)
		*got = actor
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	var got authz.Actor
	h := Middleware(config.AuthConfig{JWTSecret: secret})(echoActor(t, &got))

	tok := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "ASISTENTE",
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-42", got.ID.String())
	assert.Equal(t, authz.RoleAsistente, got.Role)
}

func TestMiddlewareRejects(t *testing.T) {
	h := Middleware(config.AuthConfig{JWTSecret: secret, Issuer: "idp"})(http.NotFoundHandler())

	expired := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "idp", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		Role:             "ADMINISTRADOR",
	})
	wrongIssuer := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "other"},
		Role:             "ADMINISTRADOR",
	})
	badRole := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "idp"},
		Role:             "ROOT",
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"unknown role", "Bearer " + badRole, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDevMiddleware(t *testing.T) {
	var got authz.Actor
	h := DevMiddleware(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, "sw-1")
	req.Header.Set(HeaderActorRole, "trabajador_social")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, authz.RoleTrabajadorSocial, got.Role)

	rec = httptest.NewRecorder()
	DevMiddleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
