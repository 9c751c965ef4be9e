package secret

import "errors"

var (
	// ErrMissingEnv indicates ${VAR} referenced an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrInvalidRef indicates a malformed secretref.
	ErrInvalidRef = errors.New("secret: invalid secret reference")

	// ErrProviderNotRegistered indicates a reference named an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrProviderExists indicates a duplicate provider registration.
	ErrProviderExists = errors.New("secret: provider already registered")

	// ErrInvalidRegistration indicates an empty name or nil factory.
	ErrInvalidRegistration = errors.New("secret: invalid provider registration")

	// ErrEmptySecret indicates a strict resolver received an empty value.
	ErrEmptySecret = errors.New("secret: provider returned empty value")

	// ErrNotFound indicates a provider has no value for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrIncompleteCredentials indicates only one of the access key pair is set.
	ErrIncompleteCredentials = errors.New("secret: access key id and secret access key must be set together")
)
