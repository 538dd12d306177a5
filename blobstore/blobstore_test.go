// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package blobstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testrand"
	"storj.io/repostore/blobstore"
)

func TestHasher(t *testing.T) {
	data := testrand.BytesInt(10000)

	hasher := blobstore.NewHasher()
	_, err := hasher.Write(data[:5000])
	require.NoError(t, err)
	_, err = hasher.Write(data[5000:])
	require.NoError(t, err)

	require.Equal(t, int64(len(data)), hasher.Size())
	require.Equal(t, blobstore.RefOf(data), hasher.Ref())
	require.NotEqual(t, blobstore.RefOf(data[1:]), hasher.Ref())
}

func TestParseBlobRef(t *testing.T) {
	ref := blobstore.RefOf([]byte("hello"))

	parsed, err := blobstore.ParseBlobRef(ref.String())
	require.NoError(t, err)
	require.Equal(t, ref, parsed)
	require.Equal(t, ref.String()[:2], parsed.Prefix())

	for _, invalid := range []string{"", "zz", "abcd", ref.String() + "00"} {
		_, err := blobstore.ParseBlobRef(invalid)
		require.True(t, blobstore.ErrInvalidRef.Has(err), invalid)
	}
}
