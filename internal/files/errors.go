package files

import "errors"

var (
	// ErrInvalidAction indicates an action tag outside the closed enum.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidPayload indicates an upload body that could not be decoded.
	ErrInvalidPayload = errors.New("malformed file payload")
	// ErrPersistence indicates the metadata store rejected a read or write.
	ErrPersistence = errors.New("file metadata persistence failure")
)
