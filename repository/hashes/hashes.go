// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package hashes computes the content digests stored with every asset.
package hashes

import (
	"crypto/md5"  //nolint:gosec // required by the maven2 layout
	"crypto/sha1" //nolint:gosec // required by the maven2 layout
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"

	"github.com/zeebo/errs"
)

// Error is the default hashes error class.
var Error = errs.Class("hashes")

// Algorithm is a digest algorithm, named by its file suffix.
type Algorithm string

const (
	// SHA1 digest.
	SHA1 Algorithm = "sha1"
	// MD5 digest.
	MD5 Algorithm = "md5"
	// SHA256 digest.
	SHA256 Algorithm = "sha256"
	// SHA512 digest.
	SHA512 Algorithm = "sha512"
)

// All lists every supported algorithm.
var All = []Algorithm{SHA1, MD5, SHA256, SHA512}

// Parse returns the algorithm named s.
func Parse(s string) (Algorithm, error) {
	for _, alg := range All {
		if string(alg) == s {
			return alg, nil
		}
	}
	return "", Error.New("unknown algorithm %q", s)
}

// New returns a hash.Hash for alg.
func (alg Algorithm) New() (hash.Hash, error) {
	switch alg {
	case SHA1:
		return sha1.New(), nil //nolint:gosec
	case MD5:
		return md5.New(), nil //nolint:gosec
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, Error.New("unknown algorithm %q", string(alg))
	}
}

// String implements fmt.Stringer.
func (alg Algorithm) String() string { return string(alg) }

// Digests maps algorithms to hex encoded digests.
type Digests map[Algorithm]string

// Verify checks that every digest in expected matches.
func (digests Digests) Verify(expected Digests) error {
	for alg, want := range expected {
		got, ok := digests[alg]
		if !ok {
			return Error.New("%s digest was not computed", alg)
		}
		if got != want {
			return Error.New("%s digest mismatch: expected %s, got %s", alg, want, got)
		}
	}
	return nil
}

// MultiHasher computes several digests in one pass.
type MultiHasher struct {
	algs   []Algorithm
	hashes []hash.Hash
	writer io.Writer
}

// NewMultiHasher returns a hasher for algs.
func NewMultiHasher(algs ...Algorithm) (*MultiHasher, error) {
	hasher := &MultiHasher{}
	writers := make([]io.Writer, 0, len(algs))
	for _, alg := range algs {
		h, err := alg.New()
		if err != nil {
			return nil, err
		}
		hasher.algs = append(hasher.algs, alg)
		hasher.hashes = append(hasher.hashes, h)
		writers = append(writers, h)
	}
	hasher.writer = io.MultiWriter(writers...)
	return hasher, nil
}

// Write implements io.Writer.
func (hasher *MultiHasher) Write(p []byte) (int, error) {
	return hasher.writer.Write(p)
}

// Digests returns the digests of everything written so far.
func (hasher *MultiHasher) Digests() Digests {
	digests := make(Digests, len(hasher.algs))
	for i, alg := range hasher.algs {
		digests[alg] = hex.EncodeToString(hasher.hashes[i].Sum(nil))
	}
	return digests
}

// Compute reads r to the end and returns its digests.
func Compute(r io.Reader, algs ...Algorithm) (Digests, int64, error) {
	hasher, err := NewMultiHasher(algs...)
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(hasher, r)
	if err != nil {
		return nil, n, Error.Wrap(err)
	}
	return hasher.Digests(), n, nil
}
