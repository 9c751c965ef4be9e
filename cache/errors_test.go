package cache

import (
	"errors"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bare sentinel",
			err:  &Error{Err: ErrNotFound},
			want: "cache: key not found",
		},
		{
			name: "all fields",
			err: &Error{
				Op:     "set",
				Cache:  "clients",
				Key:    `client(service_name="s3")`,
				Param:  "service_name",
				Detail: "boom",
				Err:    ErrAlreadyExists,
			},
			want: `cache: key already exists (op=set, cache=clients, key=client(service_name="s3"), param="service_name", detail=boom)`,
		},
		{
			name: "nil cause",
			err:  &Error{Op: "get"},
			want: "cache: error (op=get)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Classification(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 1)
	key := serviceKey(t, "s3")
	_ = c.Set(key, &testHandle{})

	err := c.Set(key, &testHandle{})

	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("errors.Is(err, ErrAlreadyExists) = false for %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("error should not match ErrNotFound")
	}

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("errors.As(*Error) = false for %T", err)
	}
	if cerr.Op != "set" || cerr.Cache != "test" || cerr.Key != key.String() {
		t.Errorf("unexpected fields: %+v", cerr)
	}
}
