package awscache

import "errors"

var (
	// ErrUnknownService indicates no factory is registered for a service.
	ErrUnknownService = errors.New("awscache: unknown service")

	// ErrInvalidParam indicates a construction parameter has the wrong type
	// or is not accepted by the service factory.
	ErrInvalidParam = errors.New("awscache: invalid parameter")

	// ErrFactoryExists indicates a duplicate factory registration.
	ErrFactoryExists = errors.New("awscache: factory already registered")

	// ErrInvalidFactory indicates an empty service name or nil factory.
	ErrInvalidFactory = errors.New("awscache: invalid factory registration")

	// ErrNotClient indicates a value is not an AWS SDK v2 service client.
	ErrNotClient = errors.New("awscache: value is not a service client")

	// ErrNotResource indicates a value is not a *ServiceResource.
	ErrNotResource = errors.New("awscache: value is not a service resource")

	// ErrUnexpectedType indicates a cached handle is not of the requested type.
	ErrUnexpectedType = errors.New("awscache: unexpected handle type")

	// ErrLoadConfig indicates the AWS configuration could not be loaded.
	ErrLoadConfig = errors.New("awscache: failed to load aws config")

	// ErrInvalidKind indicates a handle kind other than client or resource.
	ErrInvalidKind = errors.New("awscache: invalid handle kind")
)
