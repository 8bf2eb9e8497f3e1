package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrRecordNotFound is wrapped by every repository lookup that finds nothing.
var ErrRecordNotFound = errors.New("record not found")

// ErrReferenced is wrapped when a delete is blocked by rows that still point at the record.
var ErrReferenced = errors.New("record is still referenced")

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
