// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven

import (
	"strings"

	"storj.io/repostore/repository/storage"
)

// VersionPolicy restricts the versions a repository accepts.
type VersionPolicy string

const (
	// VersionRelease accepts only release versions.
	VersionRelease VersionPolicy = "RELEASE"
	// VersionSnapshot accepts only snapshot versions.
	VersionSnapshot VersionPolicy = "SNAPSHOT"
	// VersionMixed accepts any version.
	VersionMixed VersionPolicy = "MIXED"
)

// ParseVersionPolicy parses a version policy, ignoring case.
func ParseVersionPolicy(s string) (VersionPolicy, error) {
	switch policy := VersionPolicy(strings.ToUpper(s)); policy {
	case VersionRelease, VersionSnapshot, VersionMixed:
		return policy, nil
	}
	return "", Error.New("unknown version policy %q", s)
}

// Check returns ErrPolicyViolation when coordinates are not accepted.
func (policy VersionPolicy) Check(coordinates *Coordinates) error {
	if coordinates == nil {
		return nil
	}
	switch {
	case policy == VersionRelease && coordinates.Snapshot:
		return storage.ErrPolicyViolation.New("repository does not accept snapshot version %q", coordinates.Version)
	case policy == VersionSnapshot && !coordinates.Snapshot:
		return storage.ErrPolicyViolation.New("repository does not accept release version %q", coordinates.Version)
	}
	return nil
}

// LayoutPolicy restricts the paths a repository accepts.
type LayoutPolicy string

const (
	// LayoutStrict accepts only artifact and repository metadata paths.
	LayoutStrict LayoutPolicy = "STRICT"
	// LayoutPermissive accepts any path.
	LayoutPermissive LayoutPolicy = "PERMISSIVE"
)

// ParseLayoutPolicy parses a layout policy, ignoring case.
func ParseLayoutPolicy(s string) (LayoutPolicy, error) {
	switch policy := LayoutPolicy(strings.ToUpper(s)); policy {
	case LayoutStrict, LayoutPermissive:
		return policy, nil
	}
	return "", Error.New("unknown layout policy %q", s)
}

// DescriptorMerge controls how descriptor fields update a component.
type DescriptorMerge string

const (
	// MergeOverwrite replaces every descriptor attribute on each successful parse.
	MergeOverwrite DescriptorMerge = "overwrite"
	// MergeNonEmpty keeps previous name and description when the new
	// descriptor leaves them empty.
	MergeNonEmpty DescriptorMerge = "nonempty"
)

// ParseDescriptorMerge parses a descriptor merge mode.
func ParseDescriptorMerge(s string) (DescriptorMerge, error) {
	switch merge := DescriptorMerge(strings.ToLower(s)); merge {
	case MergeOverwrite, MergeNonEmpty:
		return merge, nil
	}
	return "", Error.New("unknown descriptor merge %q", s)
}

// WritePolicySelector chooses the effective write policy of a path.
type WritePolicySelector interface {
	Select(path *Path, configured storage.WritePolicy) storage.WritePolicy
}

// DefaultWritePolicySelector allows repository metadata and snapshots to be
// replaced in repositories that otherwise allow writing only once.
type DefaultWritePolicySelector struct {
	Parser Parser
}

// Select implements WritePolicySelector.
func (selector DefaultWritePolicySelector) Select(path *Path, configured storage.WritePolicy) storage.WritePolicy {
	if configured != storage.WriteAllowOnce {
		return configured
	}
	if selector.Parser.IsRepositoryMetadata(path) {
		return storage.WriteAllow
	}
	if coordinates := path.Coordinates(); coordinates != nil && coordinates.Snapshot {
		return storage.WriteAllow
	}
	return configured
}

// PolicyFor checks whether path may be written. exists reports whether an
// asset is already stored at path.
func PolicyFor(selector WritePolicySelector, path *Path, configured storage.WritePolicy, exists bool) error {
	return selector.Select(path, configured).Check(exists)
}

// Config configures a maven2 repository.
type Config struct {
	VersionPolicy   string `help:"versions accepted by the repository: RELEASE, SNAPSHOT or MIXED" default:"MIXED"`
	LayoutPolicy    string `help:"paths accepted by the repository: STRICT or PERMISSIVE" default:"PERMISSIVE"`
	WritePolicy     string `help:"write policy of the repository: ALLOW, ALLOW_ONCE or DENY" default:"ALLOW_ONCE"`
	HashAssets      bool   `help:"store hash files next to every uploaded file" default:"false"`
	DescriptorMerge string `help:"how descriptor fields update components: overwrite or nonempty" default:"overwrite"`
}

// DefaultConfig is the default repository configuration.
var DefaultConfig = Config{
	VersionPolicy:   string(VersionMixed),
	LayoutPolicy:    string(LayoutPermissive),
	WritePolicy:     string(storage.WriteAllowOnce),
	DescriptorMerge: string(MergeOverwrite),
}

type policies struct {
	version    VersionPolicy
	layout     LayoutPolicy
	write      storage.WritePolicy
	merge      DescriptorMerge
	hashAssets bool
}

func (config Config) parse() (_ policies, err error) {
	var p policies
	if p.version, err = ParseVersionPolicy(config.VersionPolicy); err != nil {
		return p, err
	}
	if p.layout, err = ParseLayoutPolicy(config.LayoutPolicy); err != nil {
		return p, err
	}
	if p.write, err = storage.ParseWritePolicy(config.WritePolicy); err != nil {
		return p, Error.Wrap(err)
	}
	if p.merge, err = ParseDescriptorMerge(config.DescriptorMerge); err != nil {
		return p, err
	}
	p.hashAssets = config.HashAssets
	return p, nil
}
