// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"sort"
	"time"

	"storj.io/repostore/blobstore"
	"storj.io/repostore/repository"
	"storj.io/repostore/repository/hashes"
)

// AssetKind classifies assets.
type AssetKind string

const (
	// KindArtifact is the main file of an artifact.
	KindArtifact AssetKind = "ARTIFACT"
	// KindArtifactSubordinate is a hash or signature of an artifact file.
	KindArtifactSubordinate AssetKind = "ARTIFACT_SUBORDINATE"
	// KindRepositoryMetadata is a repository level index document.
	KindRepositoryMetadata AssetKind = "REPOSITORY_METADATA"
	// KindOther is any other file.
	KindOther AssetKind = "OTHER"
)

// ComponentKey identifies a component within a repository.
type ComponentKey struct {
	Group   string `cbor:"group"`
	Name    string `cbor:"name"`
	Version string `cbor:"version"`
}

// Verify checks that the key is complete.
func (key ComponentKey) Verify() error {
	switch {
	case key.Name == "":
		return ErrInvalidRequest.New("component name missing")
	case key.Version == "":
		return ErrInvalidRequest.New("component version missing")
	}
	return nil
}

// String returns group:name:version.
func (key ComponentKey) String() string {
	return key.Group + ":" + key.Name + ":" + key.Version
}

// Component is a deduplicated logical artifact.
type Component struct {
	Repository string            `cbor:"repository"`
	Format     string            `cbor:"format"`
	Key        ComponentKey      `cbor:"key"`
	Attributes map[string]string `cbor:"attributes,omitempty"`

	// Assets are the sorted names of the assets owned by the component. They
	// are maintained by Tx.SaveAsset and Tx.DeleteAsset.
	Assets []string `cbor:"assets,omitempty"`

	Created     time.Time `cbor:"created"`
	LastUpdated time.Time `cbor:"last_updated"`
}

// Attribute returns the format attribute named name.
func (component *Component) Attribute(name string) string {
	return component.Attributes[name]
}

// SetAttribute sets a format attribute. An empty value removes it.
func (component *Component) SetAttribute(name, value string) {
	setAttribute(&component.Attributes, name, value)
}

func (component *Component) addAsset(name string) bool {
	i := sort.SearchStrings(component.Assets, name)
	if i < len(component.Assets) && component.Assets[i] == name {
		return false
	}
	component.Assets = append(component.Assets, "")
	copy(component.Assets[i+1:], component.Assets[i:])
	component.Assets[i] = name
	return true
}

func (component *Component) removeAsset(name string) bool {
	i := sort.SearchStrings(component.Assets, name)
	if i >= len(component.Assets) || component.Assets[i] != name {
		return false
	}
	component.Assets = append(component.Assets[:i], component.Assets[i+1:]...)
	return true
}

// AssetBlob is a stored blob ready to be attached to an asset.
type AssetBlob struct {
	Ref         blobstore.BlobRef
	Size        int64
	ContentType string
	Hashes      hashes.Digests
}

// Asset is a single stored path.
type Asset struct {
	Repository string            `cbor:"repository"`
	Format     string            `cbor:"format"`
	Name       string            `cbor:"name"`
	Kind       AssetKind         `cbor:"kind"`
	Component  *ComponentKey     `cbor:"component,omitempty"`
	Attributes map[string]string `cbor:"attributes,omitempty"`

	ContentType string                       `cbor:"content_type,omitempty"`
	Size        int64                        `cbor:"size"`
	Blob        blobstore.BlobRef            `cbor:"blob,omitempty"`
	Hashes      hashes.Digests               `cbor:"hashes,omitempty"`
	Content     repository.ContentAttributes `cbor:"content"`

	Created      time.Time `cbor:"created"`
	LastUpdated  time.Time `cbor:"last_updated"`
	LastAccessed time.Time `cbor:"last_accessed"`
}

// Attribute returns the format attribute named name.
func (asset *Asset) Attribute(name string) string {
	return asset.Attributes[name]
}

// SetAttribute sets a format attribute. An empty value removes it.
func (asset *Asset) SetAttribute(name, value string) {
	setAttribute(&asset.Attributes, name, value)
}

// HasBlob returns whether a blob is attached.
func (asset *Asset) HasBlob() bool { return !asset.Blob.IsZero() }

// MarkAccessed updates the last access time when the recorded one is older
// than interval. It returns whether the asset changed.
func (asset *Asset) MarkAccessed(now time.Time, interval time.Duration) bool {
	if !asset.LastAccessed.IsZero() && now.Sub(asset.LastAccessed) < interval {
		return false
	}
	asset.LastAccessed = now
	return true
}

func setAttribute(attributes *map[string]string, name, value string) {
	if value == "" {
		delete(*attributes, name)
		return
	}
	if *attributes == nil {
		*attributes = map[string]string{}
	}
	(*attributes)[name] = value
}
