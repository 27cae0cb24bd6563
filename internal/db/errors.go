package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
var (
	// ErrAlreadyExists indicates a CREATE hit an existing record or a
	// unique index.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when multiple concurrent operations attempt to modify the same records.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// Messages thrown by our own transactions.
const (
	throwNotProcessing = "lab job is not processing"
	throwTerminal      = "lab job is terminal"
)

// wrapQueryError maps SurrealDB errors to sentinel errors. A failed
// statement inside a transaction also fails its siblings, so the whole
// message chain is inspected, not only the first QueryError.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg = queryErr.Message + "; " + msg
	}

	switch {
	case strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
	case strings.Contains(msg, "Transaction conflict"):
		return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
	}
	return err
}

// isThrown reports whether err carries a THROW message of ours.
func isThrown(err error, message string) bool {
	return err != nil && strings.Contains(err.Error(), message)
}
