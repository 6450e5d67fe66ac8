// Package apperrors holds the error conditions shared across the client.
package apperrors

import "errors"

var (
	// ErrTransport means a request could not complete or ended in a non-success status
	ErrTransport = errors.New("transport failure")
	// ErrNotFound means a requested record or named schema element does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput means a caller argument was rejected before any I/O
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownType marks a source type the type mapper does not recognise
	ErrUnknownType = errors.New("unknown source type")
	// ErrNameCollision means two distinct names would produce the same generated identifier
	ErrNameCollision = errors.New("generated name collision")
	// ErrAmbiguous means a single-record read matched more than one record
	ErrAmbiguous = errors.New("ambiguous result")
)
