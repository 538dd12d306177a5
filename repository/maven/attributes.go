// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven

// Format attributes of components and assets.
const (
	AttrGroupID        = "groupId"
	AttrArtifactID     = "artifactId"
	AttrVersion        = "version"
	AttrBaseVersion    = "baseVersion"
	AttrClassifier     = "classifier"
	AttrExtension      = "extension"
	AttrPackaging      = "packaging"
	AttrPomName        = "pom_name"
	AttrPomDescription = "pom_description"
)
