package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	domainerrors "hostel-hub.backend/internal/domain/errors"
)

const (
	pgUniqueViolation = "23505"

	emailIndex       = "idx_users_email_lower"
	singleAdminIndex = "idx_users_single_admin"
)

// translateUniqueViolation maps unique-index violations on the users table to
// domain errors. Other errors are returned unchanged.
func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case emailIndex:
			return domainerrors.ErrEmailInUse
		case singleAdminIndex:
			return domainerrors.ErrAdminAlreadyExists
		}
		return err
	}

	// SQLite reports the index name for expression indexes and table.column otherwise.
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	switch {
	case strings.Contains(msg, emailIndex), strings.Contains(msg, "users.email"):
		return domainerrors.ErrEmailInUse
	case strings.Contains(msg, singleAdminIndex), strings.Contains(msg, "users.role"):
		return domainerrors.ErrAdminAlreadyExists
	}
	return err
}
