package cache

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for cache operations.
var (
	// ErrInvalidKeyInput indicates the parameters given to key derivation
	// are malformed, e.g. the discriminator is missing.
	ErrInvalidKeyInput = errors.New("cache: invalid key input")

	// ErrInvalidKeyType indicates an operation received something other than
	// a Key built for this cache.
	ErrInvalidKeyType = errors.New("cache: invalid key type")

	// ErrInvalidValueType indicates a value failed the cache's validator.
	ErrInvalidValueType = errors.New("cache: invalid value type")

	// ErrAlreadyExists indicates Set targeted a key that is already cached.
	ErrAlreadyExists = errors.New("cache: key already exists")

	// ErrNotFound indicates the requested key is not cached.
	ErrNotFound = errors.New("cache: key not found")
)

// Configuration errors.
var (
	// ErrInvalidPolicy indicates an unknown eviction policy name.
	ErrInvalidPolicy = errors.New("cache: invalid eviction policy")

	// ErrInvalidCapacity indicates a capacity that is not a positive integer.
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")
)

// Error describes a failed cache operation.
//
// Err is always one of the package sentinels, so callers classify failures
// with errors.Is. Key holds the redacted label of the key involved and is
// safe to log.
type Error struct {
	Op     string // operation, e.g. "set", "get", "new_key"
	Cache  string // cache name, may be empty
	Key    string // redacted key label, may be empty
	Param  string // offending parameter name, may be empty
	Detail string // extra context, may be empty
	Err    error
}

func (e *Error) Error() string {
	base := "cache: error"
	if e.Err != nil {
		base = e.Err.Error()
	}

	var extras []string
	if e.Op != "" {
		extras = append(extras, "op="+e.Op)
	}
	if e.Cache != "" {
		extras = append(extras, "cache="+e.Cache)
	}
	if e.Key != "" {
		extras = append(extras, "key="+e.Key)
	}
	if e.Param != "" {
		extras = append(extras, fmt.Sprintf("param=%q", e.Param))
	}
	if e.Detail != "" {
		extras = append(extras, "detail="+e.Detail)
	}
	if len(extras) == 0 {
		return base
	}
	return base + " (" + strings.Join(extras, ", ") + ")"
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (c *Cache[V]) errorf(op string, key Key, kind error, detail string) error {
	return &Error{
		Op:     op,
		Cache:  c.name,
		Key:    key.String(),
		Detail: detail,
		Err:    kind,
	}
}
