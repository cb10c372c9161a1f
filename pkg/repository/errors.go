package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// DBX: Database Error
	ErrGeneric error = errors.New("DBX: Internal server error")

	// DBXO: Bad operation
	// DBXQ: Bad query
	ErrDuplicate        error = errors.New("DBXO: Duplicate")
	ErrNotFound         error = errors.New("DBXQ: Not found")
	ErrRelationNotExist error = errors.New("DBXO: Relation not exists")
)

var (
	// Class 23 — Integrity Constraint Violation
	// https://github.com/jackc/pgerrcode/blob/master/errcode.go
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case UniqueViolation:
			return ErrDuplicate
		case ForeignKeyViolation:
			return ErrRelationNotExist
		}
	}

	return err
}
