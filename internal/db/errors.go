package db

import (
	"errors"

	"github.com/kailas-cloud/memorag/internal/domain"
)

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op constants name the failing command or statement for error context.
const (
	OpPing   = "PING"
	OpGet    = "GET"
	OpMGet   = "MGET"
	OpSet    = "SET"
	OpIncrBy = "INCRBY"
	OpExpire = "EXPIRE"
	OpQuery  = "QUERY"
	OpExec   = "EXEC"
	OpScan   = "SCAN"
)

// Error wraps an underlying error with the operation name for diagnostics.
// It matches domain.ErrStorageUnavailable.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() []error { return []error{domain.ErrStorageUnavailable, e.Err} }
