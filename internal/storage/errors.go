// Package storage defines persistence contracts for collected snapshots and
// derived metrics. Snapshot stores are append-only: rows are never updated.
package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by insert-only writes when the key is taken.
	// Earnings snapshots are a single immutable fact per collection instant.
	ErrDuplicateKey = errors.New("duplicate key: snapshot already recorded")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
