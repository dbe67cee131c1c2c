package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	authz "github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/shared/config"
	"github.com/oncoayuda/casework/internal/shared/types"
)

type contextKey string

const (
	ActorContextKey contextKey = "actor"
)

// Headers read by DevMiddleware.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Claims extends JWT claims with the casework role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Middleware creates JWT authentication middleware. Tokens are issued by the
// identity collaborator; this only verifies them and extracts the actor.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			}, opts...)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			role := authz.Role(claims.Role)
			if !role.Valid() {
				writeError(w, http.StatusForbidden, "unknown role")
				return
			}

			actor := authz.Actor{ID: types.ID(claims.Subject), Role: role}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// DevMiddleware trusts the X-Actor-ID and X-Actor-Role headers. Development only.
func DevMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderActorID+" header")
			return
		}
		role := authz.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderActorRole))))
		if !role.Valid() {
			writeError(w, http.StatusForbidden, "unknown role")
			return
		}

		actor := authz.Actor{ID: types.ID(id), Role: role}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// GetActor extracts the actor from request context.
func GetActor(ctx context.Context) (authz.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(authz.Actor)
	return actor, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
