// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a referenced table, order or line item
// does not exist.  Handlers should translate this into an HTTP 404
// response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete a table that orders still reference, or creating a table
// whose number is taken. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// errStaleVersion is returned by the compare-and-set updates when the
// row version moved underneath the caller.  Callers lock rows before
// writing, so this only surfaces when that contract is broken.
var errStaleVersion = errors.New("stale row version")

// IsStaleVersion reports whether err came from a failed compare-and-set.
func IsStaleVersion(err error) bool { return errors.Is(err, errStaleVersion) }

const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique-key violation from
// either supported driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
