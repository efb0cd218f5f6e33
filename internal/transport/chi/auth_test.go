package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/memorag/internal/domain"
)

var (
	tenantA  = domain.Scope{OrgID: "org-a", ProjectID: "proj-a", Plan: "free"}
	fallback = domain.Scope{OrgID: "local", ProjectID: "default"}
)

// scopeEcho writes the resolved org id, or 204 if no scope reached the handler.
func scopeEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := domain.ScopeFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(scope.OrgID))
	})
}

func serveAuth(keys map[string]domain.Scope, path, header string) *httptest.ResponseRecorder {
	handler := BearerAuthMiddleware(keys, fallback)(scopeEcho())
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware_NoKeys_FallbackScope(t *testing.T) {
	rr := serveAuth(nil, "/api/v1/search", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "local" {
		t.Errorf("scope = %q, want local", rr.Body.String())
	}
}

func TestAuthMiddleware_EmptyStringKey_Ignored(t *testing.T) {
	rr := serveAuth(map[string]domain.Scope{"": tenantA}, "/api/v1/search", "")
	if rr.Body.String() != "local" {
		t.Errorf("scope = %q, want local", rr.Body.String())
	}
}

func TestAuthMiddleware_ValidKey_ResolvesScope(t *testing.T) {
	rr := serveAuth(map[string]domain.Scope{"secret": tenantA}, "/api/v1/chat", "Bearer secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "org-a" {
		t.Errorf("scope = %q, want org-a", rr.Body.String())
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	keys := map[string]domain.Scope{"secret": tenantA}
	tests := []struct {
		name   string
		header string
		msg    string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic scheme", "Basic c2VjcmV0", "authorization header must use Bearer scheme"},
		{"wrong key", "Bearer nope", "invalid api key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveAuth(keys, "/api/v1/search", tt.header)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != codeUnauthorized || resp.Message != tt.msg {
				t.Errorf("got %+v", resp)
			}
		})
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	keys := map[string]domain.Scope{"secret": tenantA}
	for _, path := range []string{"/health", "/metrics"} {
		rr := serveAuth(keys, path, "")
		if rr.Code != http.StatusNoContent {
			t.Errorf("%s: status = %d, want 204 (no scope, not rejected)", path, rr.Code)
		}
	}
}
