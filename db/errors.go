package db

import (
	"strings"

	"github.com/teranos/legisync/errors"
)

// ErrDatabaseClosed is returned when the ledger is used after Close
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks for ErrDatabaseClosed or the driver's own
// "database is closed" error, which cannot be wrapped at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// isMissingTable reports sqlite's "no such table" error
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
