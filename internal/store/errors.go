package store

import "errors"

var (
	// ErrNotFound is returned when a request record does not exist.
	ErrNotFound = errors.New("request record not found")
	// ErrConsistency indicates a storage-layer defect: a just-written
	// record could not be re-read.
	ErrConsistency = errors.New("request store consistency violation")
)
