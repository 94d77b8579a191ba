package config

import "errors"

var (
	// ErrInvalidValue marks a setting that fails validation.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrFileNotFound is returned when an explicitly named config file is missing.
	ErrFileNotFound = errors.New("config file not found")
)
