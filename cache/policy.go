package cache

import (
	"fmt"
	"strings"
)

// EvictionPolicy tracks usage of cached keys and picks eviction victims.
//
// Contract:
//   - Concurrency: implementations are not safe for concurrent use; the
//     owning Cache serializes every call under its lock.
//   - Membership: the policy tracks exactly the keys the Cache holds.
//     Inserted is never called for a tracked key, and Accessed/Remove are
//     only called for tracked keys.
type EvictionPolicy interface {
	// Inserted starts tracking a newly cached key.
	Inserted(key Digest)

	// Accessed records a successful read of key.
	Accessed(key Digest)

	// Victim returns the key that should be evicted next without removing
	// it. Returns false if nothing is tracked.
	Victim() (Digest, bool)

	// Remove stops tracking key.
	Remove(key Digest)

	// Len returns the number of tracked keys.
	Len() int

	// Keys returns the tracked keys in eviction order, next victim first.
	Keys() []Digest
}

// PolicyType names an eviction policy.
type PolicyType string

const (
	// PolicyLRU evicts the least recently used key.
	PolicyLRU PolicyType = "LRU"

	// PolicyLFU evicts the least frequently used key. Among keys with equal
	// access counts, the earliest inserted is evicted first.
	PolicyLFU PolicyType = "LFU"
)

// DefaultPolicy is the policy used when none is configured.
const DefaultPolicy = PolicyLRU

// PolicyTypes lists the supported policies.
var PolicyTypes = []PolicyType{PolicyLRU, PolicyLFU}

// ParsePolicyType parses a policy name, ignoring case.
// An empty name yields DefaultPolicy.
func ParsePolicyType(s string) (PolicyType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DefaultPolicy, nil
	case string(PolicyLRU):
		return PolicyLRU, nil
	case string(PolicyLFU):
		return PolicyLFU, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// NewPolicy creates an empty eviction policy of the given type.
func NewPolicy(t PolicyType) (EvictionPolicy, error) {
	switch t {
	case PolicyLRU, "":
		return newLRUPolicy(), nil
	case PolicyLFU:
		return newLFUPolicy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, string(t))
	}
}
