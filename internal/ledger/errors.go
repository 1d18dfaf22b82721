package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// Error kinds. Each wraps the platform sentinel the HTTP layer maps to a status.
var (
	ErrValidation = fmt.Errorf("ledger: %w", httpx.ErrValidation)
	ErrStorage    = fmt.Errorf("ledger: %w", httpx.ErrUnavailable)
	ErrNotFound   = fmt.Errorf("ledger: bill %w", httpx.ErrNotFound)
)

// ValidationError describes one rejected field of a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidationErrors collects every field problem found in one request.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return "ledger: validation failed: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) Unwrap() error { return ErrValidation }

// FieldErrors returns the problems keyed by field path.
func (e ValidationErrors) FieldErrors() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if _, exists := out[fe.Field]; !exists {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// StorageError reports a persistence failure. Any write it describes was rolled back.
type StorageError struct {
	Op    string
	Write bool
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger: storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// ProblemTitle tells callers whether the failure cost them a write.
func (e *StorageError) ProblemTitle() string {
	if e.Write {
		return "Bill Not Recorded"
	}
	return "Storage Unavailable"
}

// Constraint returns the violated constraint name when the store rejected the data
// for integrity reasons (SQLSTATE class 23).
func (e *StorageError) Constraint() (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(e.Err, &pgErr) || !strings.HasPrefix(pgErr.Code, "23") {
		return "", false
	}
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName, true
	}
	return pgErr.Code, true
}

func storageError(op string, write bool, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Write: write, Err: err}
}

// errorKind labels failures for logs and metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		var se *StorageError
		if errors.As(err, &se) {
			if _, ok := se.Constraint(); ok {
				return "constraint"
			}
		}
		return "storage"
	}
}
