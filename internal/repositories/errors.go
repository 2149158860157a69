// Package repositories holds helpers shared by the catalog repositories.
package repositories

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/database"
)

// WriteError converts a failed statement into an HTTP error. Integrity
// violations become 409 so callers can tell them apart from outages.
func WriteError(err error, format string, args ...any) error {
	action := fmt.Sprintf(format, args...)
	if database.IsConstraintViolation(err) {
		return httperror.NewHTTPErrorf(http.StatusConflict, "%s: constraint violation: %s", action, database.ConstraintName(err))
	}
	return httperror.NewHTTPErrorf(http.StatusInternalServerError, "%s: %v", action, err)
}
