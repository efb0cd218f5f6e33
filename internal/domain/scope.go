package domain

import (
	"context"
	"errors"
)

// Scope identifies the tenant every storage query is confined to.
type Scope struct {
	OrgID     string
	ProjectID string
	Plan      string
}

// Validate checks that both tenant identifiers are present.
func (s Scope) Validate() error {
	if s.OrgID == "" || s.ProjectID == "" {
		return errors.New("scope requires org and project")
	}
	return nil
}

type scopeKey struct{}

// ContextWithScope stores the resolved tenant scope in ctx.
func ContextWithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the tenant scope and whether one was set.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
