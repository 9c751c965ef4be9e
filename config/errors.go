package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into Config.
	ErrParsingConfig = errors.New("config: failed to parse environment variables")

	// ErrLoadingDotenv is returned when an explicitly named .env file cannot be read.
	ErrLoadingDotenv = errors.New("config: failed to load .env file")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)
