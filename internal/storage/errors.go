package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// The error taxonomy every repository operation resolves into. Callers
// branch on these with errors.Is; the driver error stays in the chain.
var (
	// ErrNotFound reports that a unique-key lookup, update or delete
	// resolved to nothing. Distinct from every failure mode so callers
	// can treat "absent" differently from "broken".
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey reports a uniqueness violation on write.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrForeignKey reports a referential-integrity violation.
	ErrForeignKey = errors.New("foreign key violation")

	// ErrConnection reports a transport or connect failure. This class
	// is typically retryable.
	ErrConnection = errors.New("database connection failure")

	// ErrTxAborted reports that a transaction was rolled back.
	ErrTxAborted = errors.New("transaction aborted")
)

// Translate classifies a driver or gorm error into the taxonomy above,
// wrapping so the original stays inspectable. nil passes through.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", ErrForeignKey, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: %w", ErrForeignKey, err)
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception class
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return err
}
