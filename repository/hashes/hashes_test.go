// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package hashes_test

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testrand"
	"storj.io/repostore/repository/hashes"
)

func TestCompute(t *testing.T) {
	data := testrand.BytesInt(100000)

	digests, n, err := hashes.Compute(bytes.NewReader(data), hashes.All...)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)

	sha1sum := sha1.Sum(data)
	md5sum := md5.Sum(data)
	sha256sum := sha256.Sum256(data)
	sha512sum := sha512.Sum512(data)

	require.Equal(t, hashes.Digests{
		hashes.SHA1:   hex.EncodeToString(sha1sum[:]),
		hashes.MD5:    hex.EncodeToString(md5sum[:]),
		hashes.SHA256: hex.EncodeToString(sha256sum[:]),
		hashes.SHA512: hex.EncodeToString(sha512sum[:]),
	}, digests)

	require.NoError(t, digests.Verify(hashes.Digests{hashes.SHA1: hex.EncodeToString(sha1sum[:])}))
	require.Error(t, digests.Verify(hashes.Digests{hashes.SHA1: "00"}))
}

func TestParse(t *testing.T) {
	for _, alg := range hashes.All {
		parsed, err := hashes.Parse(alg.String())
		require.NoError(t, err)
		require.Equal(t, alg, parsed)
	}

	_, err := hashes.Parse("crc32")
	require.True(t, hashes.Error.Has(err))

	_, err = hashes.NewMultiHasher(hashes.SHA1, "crc32")
	require.Error(t, err)
}

func TestStreaming(t *testing.T) {
	data := testrand.BytesInt(10000)

	hasher, err := hashes.NewMultiHasher(hashes.SHA256)
	require.NoError(t, err)
	for i := 0; i < len(data); i += 1000 {
		_, err := hasher.Write(data[i : i+1000])
		require.NoError(t, err)
	}

	sum := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(sum[:]), hasher.Digests()[hashes.SHA256])
}
