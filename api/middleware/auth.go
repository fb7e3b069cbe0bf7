package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tablebird/tablebird-backend/api/responses"
	pkgAuth "github.com/tablebird/tablebird-backend/pkg/auth"
	"github.com/tablebird/tablebird-backend/pkg/config"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/logger"
)

const sessionKeyHeader = "X-Session-Key"

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := claimsContext(r.Context(), claims, logg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity resolves the caller's identity without requiring one. A bearer
// token wins when present; otherwise a guest session key header is accepted.
// Cart routes serve both signed-in customers and anonymous guests.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := bearerToken(r); token != "" {
				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				next.ServeHTTP(w, r.WithContext(claimsContext(ctx, claims, logg)))
				return
			}

			if key := strings.TrimSpace(r.Header.Get(sessionKeyHeader)); key != "" {
				ctx = WithSessionKey(ctx, key)
				if logg != nil {
					ctx = logg.WithField(ctx, "session_key", key)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not in the allow list. It must
// run after Auth.
func RequireRoles(logg *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if _, ok := allowed[role]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func claimsContext(ctx context.Context, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, claims.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
	if claims.TenantID != nil {
		ctx = context.WithValue(ctx, ctxTenantID, claims.TenantID.String())
	}
	if claims.RestaurantID != nil {
		ctx = context.WithValue(ctx, ctxRestaurantID, claims.RestaurantID.String())
	}

	if logg != nil {
		fields := map[string]any{
			"user_id":    claims.UserID.String(),
			"actor_role": string(claims.Role),
		}
		if claims.RestaurantID != nil {
			fields["restaurant_id"] = claims.RestaurantID.String()
		}
		ctx = logg.WithFields(ctx, fields)
	}

	return ctx
}
