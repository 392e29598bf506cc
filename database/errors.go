package database

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	"github.com/lib/pq"

	"github.com/ken-eddy/simplesales/apperr"
)

// Postgres SQLSTATE codes.
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqCheckViolation       = "23514"
	pqLockNotAvailable     = "55P03"
	pqDeadlockDetected     = "40P01"
	pqSerializationFailure = "40001"
	pqQueryCanceled        = "57014"
)

// MySQL server error numbers.
const (
	myDuplicateEntry   = 1062
	myRowIsReferenced  = 1451
	myNoReferencedRow  = 1452
	myLockWaitTimeout  = 1205
	myDeadlock         = 1213
	myCheckViolated    = 3819
	myQueryInterrupted = 1317
)

// Classify maps a driver error onto the apperr taxonomy. Errors that are
// already classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	err = firstError(err)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Record not found")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Persistence("Request cancelled", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: "Resource already exists", Err: err}
		case pqForeignKeyViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: "Resource is still referenced", Err: err}
		case pqCheckViolation:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "Value violates a constraint", Err: err}
		case pqLockNotAvailable, pqDeadlockDetected, pqSerializationFailure, pqQueryCanceled:
			return apperr.RetryableConflict("Resource is busy, retry the request", err)
		}
		return apperr.Persistence("Internal server error", err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return &apperr.Error{Kind: apperr.KindConflict, Message: "Resource already exists", Err: err}
		case myRowIsReferenced, myNoReferencedRow:
			return &apperr.Error{Kind: apperr.KindConflict, Message: "Resource is still referenced", Err: err}
		case myCheckViolated:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "Value violates a constraint", Err: err}
		case myLockWaitTimeout, myDeadlock, myQueryInterrupted:
			return apperr.RetryableConflict("Resource is busy, retry the request", err)
		}
		return apperr.Persistence("Internal server error", err)
	}

	return apperr.Persistence("Internal server error", err)
}

// IsUniqueViolation reports whether err is a duplicate-key error on the named
// unique index.
func IsUniqueViolation(err error, constraint string) bool {
	err = firstError(err)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation && pqErr.Constraint == constraint
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == myDuplicateEntry && strings.Contains(myErr.Message, constraint)
	}
	return false
}

// IsForeignKeyViolation reports whether err is a referential-integrity error.
func IsForeignKeyViolation(err error) bool {
	err = firstError(err)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqForeignKeyViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == myRowIsReferenced || myErr.Number == myNoReferencedRow
	}
	return false
}

// firstError unpacks gorm.Errors, which gorm returns when several callbacks
// fail in one statement.
func firstError(err error) error {
	var errs gorm.Errors
	if errors.As(err, &errs) && len(errs) > 0 {
		for _, e := range errs.GetErrors() {
			if e != nil {
				return e
			}
		}
	}
	return err
}
