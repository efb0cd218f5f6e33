package chi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	logpkg "github.com/kailas-cloud/memorag/internal/logger"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware resolves the tenant scope from a Bearer token and stores it in
// the request context. With no keys configured every request gets the fallback scope.
func BearerAuthMiddleware(keys map[string]domain.Scope, fallback domain.Scope) func(http.Handler) http.Handler {
	validKeys := make(map[string]domain.Scope, len(keys))
	for k, scope := range keys {
		if k != "" {
			validKeys[k] = scope
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			// auth disabled
			if len(validKeys) == 0 {
				next.ServeHTTP(w, withScope(r, fallback))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			scope, ok := validKeys[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, withScope(r, scope))
		})
	}
}

func withScope(r *http.Request, scope domain.Scope) *http.Request {
	ctx := domain.ContextWithScope(r.Context(), scope)
	ctx = logpkg.With(ctx,
		zap.String("org_id", scope.OrgID),
		zap.String("project_id", scope.ProjectID),
	)
	return r.WithContext(ctx)
}
