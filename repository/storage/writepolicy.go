// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"strings"
)

// WritePolicy controls whether assets may be created or replaced.
type WritePolicy string

const (
	// WriteAllow permits creating and replacing assets.
	WriteAllow WritePolicy = "ALLOW"
	// WriteAllowOnce permits creating assets, but not replacing them.
	WriteAllowOnce WritePolicy = "ALLOW_ONCE"
	// WriteDeny forbids every write.
	WriteDeny WritePolicy = "DENY"
)

// ParseWritePolicy parses a write policy, ignoring case.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch policy := WritePolicy(strings.ToUpper(strings.TrimSpace(s))); policy {
	case WriteAllow, WriteAllowOnce, WriteDeny:
		return policy, nil
	}
	return "", ErrInvalidRequest.New("unknown write policy %q", s)
}

// String implements fmt.Stringer.
func (policy WritePolicy) String() string { return string(policy) }

// Check returns ErrPolicyViolation when the policy forbids writing an asset.
// exists reports whether the asset is already stored.
func (policy WritePolicy) Check(exists bool) error {
	switch policy {
	case WriteAllow:
		return nil
	case WriteAllowOnce:
		if exists {
			return ErrPolicyViolation.New("repository does not allow updating assets")
		}
		return nil
	case WriteDeny:
		return ErrPolicyViolation.New("repository is read-only")
	}
	return ErrPolicyViolation.New("unknown write policy %q", string(policy))
}

// AllowsUpdate returns whether existing assets may be replaced.
func (policy WritePolicy) AllowsUpdate() bool { return policy == WriteAllow }
