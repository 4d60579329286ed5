package main

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConfiguration    = errors.New("invalid scanner configuration")
)
