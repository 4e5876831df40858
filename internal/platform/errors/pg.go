package errors

import (
	stderrs "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes with a mapping of their own
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
	pgInvalidText         = "22P02"
	pgLockNotAvailable    = "55P03"
	pgReadOnlyTx          = "25006"
	pgCannotConnectNow    = "57P03"
	pgAdminShutdown       = "57P01"
)

func pgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}

// IsLockNotAvailable reports a lock_timeout or NOWAIT failure
func IsLockNotAvailable(err error) bool {
	c, ok := pgCode(err)
	return ok && c == pgLockNotAvailable
}

// DBErrorCode maps a Postgres error to an ErrorCode
// ok is false when err carries no PgError
func DBErrorCode(err error) (ErrorCode, bool) {
	c, ok := pgCode(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch c {
	case pgUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgForeignKeyViolation, pgStringTooLong, pgInvalidText:
		return ErrorCodeInvalidArgument, true
	case pgNotNullViolation, pgCheckViolation:
		return ErrorCodeValidation, true
	case pgReadOnlyTx, pgCannotConnectNow, pgAdminShutdown:
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err with the code DBErrorCode picks, nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, _ := DBErrorCode(err)
	if code == ErrorCodeUnknown {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}
