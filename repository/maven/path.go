// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven

import (
	"time"

	"storj.io/repostore/repository/hashes"
)

// SignatureType is the suffix of a detached signature.
type SignatureType string

// SignatureGPG is an ASCII armored GPG signature.
const SignatureGPG SignatureType = "asc"

// HashAlgorithms are the digests computed for every maven2 asset.
var HashAlgorithms = hashes.All

// Coordinates identify an artifact file within the maven2 layout.
type Coordinates struct {
	GroupID     string
	ArtifactID  string
	Version     string
	BaseVersion string
	Classifier  string
	Extension   string

	Snapshot    bool
	Timestamp   time.Time
	BuildNumber int

	// Hash and Signature are set for subordinate files.
	Hash      hashes.Algorithm
	Signature SignatureType
}

// Path is a parsed repository path.
type Path struct {
	parser Parser

	path      string
	fileName  string
	main      string
	unhashed  string
	hash      hashes.Algorithm
	signature SignatureType

	coordinates *Coordinates
}

// Path returns the path without a leading slash.
func (path *Path) Path() string { return path.path }

// String implements fmt.Stringer.
func (path *Path) String() string { return path.path }

// FileName returns the last segment of the path.
func (path *Path) FileName() string { return path.fileName }

// Coordinates returns the artifact coordinates or nil for paths outside of
// the artifact layout.
func (path *Path) Coordinates() *Coordinates { return path.coordinates }

// HashType returns the digest algorithm of a hash file.
func (path *Path) HashType() hashes.Algorithm { return path.hash }

// SignatureType returns the signature type of a signature file.
func (path *Path) SignatureType() SignatureType { return path.signature }

// IsHash returns whether the path is a hash of another path.
func (path *Path) IsHash() bool { return path.hash != "" }

// IsSignature returns whether the path is a signature of another path.
func (path *Path) IsSignature() bool { return path.signature != "" }

// IsSubordinate returns whether the path is a hash or signature of another path.
func (path *Path) IsSubordinate() bool { return path.IsHash() || path.IsSignature() }

// IsPom returns whether the path is the descriptor of its component.
func (path *Path) IsPom() bool {
	return path.coordinates != nil && !path.IsSubordinate() &&
		path.coordinates.Classifier == "" && path.coordinates.Extension == "pom"
}

// Main returns the path this path is subordinate to, or path itself.
func (path *Path) Main() *Path {
	if !path.IsSubordinate() {
		return path
	}
	return path.parser.Parse(path.main)
}

// Hash returns the path of the alg hash of this path.
func (path *Path) Hash(alg hashes.Algorithm) *Path {
	return path.parser.Parse(path.unhashed + "." + string(alg))
}

// Signature returns the path of the signature of this path.
func (path *Path) Signature() *Path {
	return path.parser.Parse(path.main + "." + string(SignatureGPG))
}
