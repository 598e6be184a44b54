package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

// notFoundOrInternal maps sql.ErrNoRows to a not-found error and anything
// else to an internal one.
func notFoundOrInternal(err error, notFoundMsg, internalMsg string) *appErrors.Error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}
