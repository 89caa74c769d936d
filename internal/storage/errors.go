package storage

import "errors"

var (
	ErrStorageClosed = errors.New("storage closed")
	ErrInvalidKey    = errors.New("invalid key")
	ErrFileOperation = errors.New("file operation failed")
)
