package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// translateGORM maps gorm errors onto the package errors. The DB must be
// opened with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func translateGORM(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
