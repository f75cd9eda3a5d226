package store

import "errors"

var (
	// ErrNotInitialized is returned when a store is used before Initialize
	// or after Close.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrCountMismatch is returned when SaveDocument is called with
	// different chunk and vector counts. Nothing is written in that case.
	ErrCountMismatch = errors.New("chunk and vector counts differ")
)
