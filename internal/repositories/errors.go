package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var lockingUpdate = clause.Locking{Strength: "UPDATE"}

var (
	// ErrNotFound is returned when the addressed row does not exist or is not visible to the caller
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a unique relation (follow, block, username) already exists
	ErrAlreadyExists = errors.New("record already exists")
)

// translate maps gorm errors onto the package sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	}
	return err
}

// forUpdate adds a row lock on dialects that support it
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(lockingUpdate)
	}
	return tx
}
