package domain

import (
	"context"
	"errors"
	"testing"
)

func TestVectorSearchError_MatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewVectorSearchError("query chunks", cause)

	if !errors.Is(err, ErrVectorSearch) {
		t.Error("expected errors.Is(err, ErrVectorSearch)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	var vse *VectorSearchError
	if !errors.As(err, &vse) || vse.Op != "query chunks" {
		t.Errorf("expected VectorSearchError with op, got %v", err)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("Limit must be less than or equal to %d", 50)
	if err.Error() != "Limit must be less than or equal to 50" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Error("expected validation error to match ErrInvalidRequest")
	}
}

func TestScopeContext(t *testing.T) {
	if _, ok := ScopeFromContext(context.Background()); ok {
		t.Fatal("expected no scope on bare context")
	}
	want := Scope{OrgID: "org-1", ProjectID: "proj-1", Plan: "pro"}
	got, ok := ScopeFromContext(ContextWithScope(context.Background(), want))
	if !ok || got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if err := (Scope{OrgID: "org-1"}).Validate(); err == nil {
		t.Error("expected error for scope without project")
	}
}
