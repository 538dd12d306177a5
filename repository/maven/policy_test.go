// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/repostore/repository/maven"
	"storj.io/repostore/repository/storage"
)

func TestWritePolicySelector(t *testing.T) {
	parser := maven.Maven2Parser{}
	selector := maven.DefaultWritePolicySelector{Parser: parser}

	release := parser.Parse("com/acme/lib/1.0/lib-1.0.jar")
	snapshot := parser.Parse("com/acme/lib/1.0-SNAPSHOT/lib-1.0-20260102.030405-1.jar")
	metadata := parser.Parse("com/acme/lib/maven-metadata.xml")
	other := parser.Parse("readme.txt")

	for _, tt := range []struct {
		path       *maven.Path
		configured storage.WritePolicy
		expected   storage.WritePolicy
	}{
		{release, storage.WriteAllowOnce, storage.WriteAllowOnce},
		{release.Hash("sha1"), storage.WriteAllowOnce, storage.WriteAllowOnce},
		{snapshot, storage.WriteAllowOnce, storage.WriteAllow},
		{snapshot.Hash("md5"), storage.WriteAllowOnce, storage.WriteAllow},
		{metadata, storage.WriteAllowOnce, storage.WriteAllow},
		{metadata.Hash("sha1"), storage.WriteAllowOnce, storage.WriteAllow},
		{other, storage.WriteAllowOnce, storage.WriteAllowOnce},
		{release, storage.WriteAllow, storage.WriteAllow},
		{snapshot, storage.WriteDeny, storage.WriteDeny},
		{metadata, storage.WriteDeny, storage.WriteDeny},
	} {
		require.Equal(t, tt.expected, selector.Select(tt.path, tt.configured), "%s %s", tt.path, tt.configured)
	}

	require.NoError(t, maven.PolicyFor(selector, snapshot, storage.WriteAllowOnce, true))
	require.NoError(t, maven.PolicyFor(selector, release, storage.WriteAllowOnce, false))
	require.True(t, storage.ErrPolicyViolation.Has(maven.PolicyFor(selector, release, storage.WriteAllowOnce, true)))
	require.True(t, storage.ErrPolicyViolation.Has(maven.PolicyFor(selector, metadata, storage.WriteDeny, false)))
}

func TestVersionPolicy(t *testing.T) {
	parser := maven.Maven2Parser{}
	release := parser.Parse("com/acme/lib/1.0/lib-1.0.jar").Coordinates()
	snapshot := parser.Parse("com/acme/lib/1.0-SNAPSHOT/lib-1.0-SNAPSHOT.jar").Coordinates()

	require.NoError(t, maven.VersionMixed.Check(release))
	require.NoError(t, maven.VersionMixed.Check(snapshot))
	require.NoError(t, maven.VersionRelease.Check(release))
	require.NoError(t, maven.VersionSnapshot.Check(snapshot))
	require.NoError(t, maven.VersionRelease.Check(nil))
	require.True(t, storage.ErrPolicyViolation.Has(maven.VersionRelease.Check(snapshot)))
	require.True(t, storage.ErrPolicyViolation.Has(maven.VersionSnapshot.Check(release)))
}

func TestParsePolicies(t *testing.T) {
	policy, err := maven.ParseVersionPolicy("release")
	require.NoError(t, err)
	require.Equal(t, maven.VersionRelease, policy)

	layout, err := maven.ParseLayoutPolicy("Strict")
	require.NoError(t, err)
	require.Equal(t, maven.LayoutStrict, layout)

	merge, err := maven.ParseDescriptorMerge("NONEMPTY")
	require.NoError(t, err)
	require.Equal(t, maven.MergeNonEmpty, merge)

	_, err = maven.ParseVersionPolicy("nightly")
	require.Error(t, err)
	_, err = maven.ParseLayoutPolicy("loose")
	require.Error(t, err)
	_, err = maven.ParseDescriptorMerge("append")
	require.Error(t, err)
}
