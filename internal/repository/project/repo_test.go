package project

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kailas-cloud/memorag/internal/domain"
)

func TestRewriteEnabled(t *testing.T) {
	scope := domain.Scope{OrgID: "org-1", ProjectID: "proj-1"}

	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		want      bool
		wantErr   error
	}{
		{
			name: "enabled",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT query_rewrite_enabled FROM projects").
					WithArgs("org-1", "proj-1").
					WillReturnRows(sqlmock.NewRows([]string{"query_rewrite_enabled"}).AddRow(true))
			},
			want: true,
		},
		{
			name: "null means disabled",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT query_rewrite_enabled FROM projects").
					WillReturnRows(sqlmock.NewRows([]string{"query_rewrite_enabled"}).AddRow(nil))
			},
			want: false,
		},
		{
			name: "missing project",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT query_rewrite_enabled FROM projects").
					WillReturnRows(sqlmock.NewRows([]string{"query_rewrite_enabled"}))
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock db: %v", err)
			}
			defer conn.Close()
			tt.setupMock(mock)

			got, err := New(conn).RewriteEnabled(context.Background(), scope)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
