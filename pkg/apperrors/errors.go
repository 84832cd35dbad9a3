package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrRefreshInProgress = errors.New("refresh already in progress for this store")
	ErrTooManyQueries    = errors.New("too many queries in request")
)
