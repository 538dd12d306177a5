// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/repostore/repository"
	"storj.io/repostore/repository/storage"
)

// Facet stores maven2 artifacts and metadata of a single repository.
//
// Artifacts are stored as components keyed by groupId:artifactId:version
// owning one asset per path. Metadata and other files are stored as assets
// without a component.
type Facet struct {
	log      *zap.Logger
	repo     repository.Repository
	db       *storage.DB
	parser   Parser
	selector WritePolicySelector
	policies policies

	closed atomic.Bool
}

// NewFacet creates the facet of repo. The path parser is resolved from the
// repository format.
func NewFacet(log *zap.Logger, repo repository.Repository, db *storage.DB, config Config) (*Facet, error) {
	if err := repo.Verify(); err != nil {
		return nil, Error.Wrap(err)
	}
	parser, ok := Parsers[repo.Format]
	if !ok {
		return nil, Error.New("unsupported format %q", repo.Format)
	}
	policies, err := config.parse()
	if err != nil {
		return nil, err
	}

	log.Debug("initialized",
		zap.String("repository", repo.Name),
		zap.String("version policy", string(policies.version)),
		zap.String("layout policy", string(policies.layout)),
		zap.Stringer("write policy", policies.write))

	return &Facet{
		log:      log,
		repo:     repo,
		db:       db,
		parser:   parser,
		selector: DefaultWritePolicySelector{Parser: parser},
		policies: policies,
	}, nil
}

// Repository returns the repository of the facet.
func (facet *Facet) Repository() repository.Repository { return facet.repo }

// Parser returns the path parser of the repository format.
func (facet *Facet) Parser() Parser { return facet.parser }

// Close releases the facet. The stores passed to NewFacet are owned by the
// caller and stay open.
func (facet *Facet) Close() error {
	if !facet.closed.CompareAndSwap(false, true) {
		return Error.New("already closed")
	}
	return nil
}

func (facet *Facet) checkOpen() error {
	if facet.closed.Load() {
		return Error.New("facet closed")
	}
	return nil
}

// Get returns the content stored at path or nil when there is none.
func (facet *Facet) Get(ctx context.Context, requested string) (_ *repository.Content, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := facet.checkOpen(); err != nil {
		return nil, err
	}

	path := facet.parser.Parse(requested)
	facet.log.Debug("GET", zap.String("repository", facet.repo.Name), zap.String("path", path.Path()))
	if path.Path() == "" {
		return nil, nil
	}

	tx := facet.db.Begin(ctx, facet.repo)
	defer tx.Rollback()

	asset, err := tx.FindAsset(ctx, path.Path())
	if err != nil || asset == nil {
		return nil, err
	}

	if asset.MarkAccessed(tx.Now(), facet.db.Config().AccessedUpdateInterval) {
		err := tx.TouchAsset(ctx, asset)
		if err == nil {
			err = tx.Commit(ctx)
		}
		switch {
		case storage.ErrWriteConflict.Has(err):
			facet.log.Debug("skipped last accessed update", zap.String("path", path.Path()), zap.Error(err))
		case err != nil:
			return nil, err
		}
	}

	return facet.toContent(asset), nil
}

// Put stores the contents of r at path.
func (facet *Facet) Put(ctx context.Context, requested string, r io.Reader, contentType string, attributes *repository.ContentAttributes) (_ *repository.Content, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := facet.checkOpen(); err != nil {
		return nil, err
	}

	path, err := facet.resolve(requested)
	if err != nil {
		return nil, err
	}
	facet.log.Debug("PUT", zap.String("repository", facet.repo.Name), zap.String("path", path.Path()))

	if contentType == "" {
		contentType = ContentTypeOf(path.Path())
	}

	blob, err := facet.db.CreateBlob(ctx, r, contentType, HashAlgorithms...)
	if err != nil {
		return nil, err
	}
	return facet.put(ctx, path, blob, attributes)
}

// PutFile stores the contents of sourceFile at path.
func (facet *Facet) PutFile(ctx context.Context, requested, sourceFile, contentType string, attributes *repository.ContentAttributes) (_ *repository.Content, err error) {
	defer mon.Task()(&ctx)(&err)

	file, err := os.Open(sourceFile)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(file.Close())) }()

	if attributes == nil || attributes.LastModified.IsZero() {
		if stat, err := file.Stat(); err == nil {
			merged := repository.ContentAttributes{LastModified: stat.ModTime().UTC()}.Merge(attributes)
			attributes = &merged
		}
	}

	return facet.Put(ctx, requested, file, contentType, attributes)
}

// resolve parses the path and checks the repository policies that do not
// depend on stored state.
func (facet *Facet) resolve(requested string) (*Path, error) {
	path := facet.parser.Parse(requested)
	if path.Path() == "" || strings.HasSuffix(path.Path(), "/") {
		return nil, ErrInvalidPath.New("%q", requested)
	}

	metadata := facet.parser.IsRepositoryMetadata(path)
	if facet.policies.layout == LayoutStrict && path.Coordinates() == nil && !metadata {
		return nil, ErrInvalidPath.New("%q does not match the repository layout", requested)
	}
	if err := facet.policies.version.Check(path.Coordinates()); err != nil {
		return nil, err
	}
	if facet.selector.Select(path, facet.policies.write) == storage.WriteDeny {
		return nil, storage.ErrPolicyViolation.New("repository %q is read-only", facet.repo.Name)
	}
	return path, nil
}

// descriptor reads the descriptor of a blob once, however often the
// transaction is retried.
type descriptor struct {
	read bool
	info *DescriptorInfo
}

func (facet *Facet) put(ctx context.Context, path *Path, blob *storage.AssetBlob, attributes *repository.ContentAttributes) (_ *repository.Content, err error) {
	type sibling struct {
		path *Path
		blob *storage.AssetBlob
	}

	var siblings []sibling
	if facet.policies.hashAssets && !path.IsSubordinate() {
		for _, alg := range HashAlgorithms {
			digest, ok := blob.Hashes[alg]
			if !ok {
				continue
			}
			hashPath := path.Hash(alg)
			hashBlob, err := facet.db.CreateBlob(ctx, strings.NewReader(digest), ContentTypeOf(hashPath.Path()))
			if err != nil {
				return nil, err
			}
			siblings = append(siblings, sibling{path: hashPath, blob: hashBlob})
		}
	}

	var model descriptor
	var asset *storage.Asset
	err = facet.db.WithTx(ctx, facet.repo, func(ctx context.Context, tx *storage.Tx) (err error) {
		asset, err = facet.putAsset(ctx, tx, path, blob, attributes, &model, true)
		if err != nil {
			return err
		}
		for _, sibling := range siblings {
			if _, err := facet.putAsset(ctx, tx, sibling.path, sibling.blob, nil, nil, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mon.Meter("put_bytes").Mark64(blob.Size)
	return facet.toContent(asset), nil
}

func (facet *Facet) putAsset(ctx context.Context, tx *storage.Tx, path *Path, blob *storage.AssetBlob, attributes *repository.ContentAttributes, model *descriptor, checkPolicy bool) (*storage.Asset, error) {
	asset, err := tx.FindAsset(ctx, path.Path())
	if err != nil {
		return nil, err
	}
	if checkPolicy {
		if err := PolicyFor(facet.selector, path, facet.policies.write, asset != nil); err != nil {
			// storing the same content again leaves the asset as it is
			if unchanged(facet.selector.Select(path, facet.policies.write), asset, blob) {
				return asset, nil
			}
			return nil, err
		}
	}

	if path.Coordinates() != nil {
		asset, err = facet.putArtifact(ctx, tx, path, asset, blob, model)
	} else {
		asset = facet.putFile(path, asset)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.AttachBlob(asset, blob, attributes); err != nil {
		return nil, err
	}
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// unchanged reports whether a write that policy forbids would store the
// blob the asset already references.
func unchanged(policy storage.WritePolicy, asset *storage.Asset, blob *storage.AssetBlob) bool {
	return policy == storage.WriteAllowOnce && asset != nil && asset.Blob == blob.Ref
}

func (facet *Facet) putArtifact(ctx context.Context, tx *storage.Tx, path *Path, asset *storage.Asset, blob *storage.AssetBlob, model *descriptor) (*storage.Asset, error) {
	coordinates := path.Coordinates()
	key := componentKeyOf(coordinates)

	component, err := tx.FindComponent(ctx, key)
	if err != nil {
		return nil, err
	}

	if component == nil {
		component = &storage.Component{Key: key}
		component.SetAttribute(AttrGroupID, coordinates.GroupID)
		component.SetAttribute(AttrArtifactID, coordinates.ArtifactID)
		component.SetAttribute(AttrVersion, coordinates.Version)
		component.SetAttribute(AttrBaseVersion, coordinates.BaseVersion)
		if path.IsPom() {
			facet.fillInFromModel(ctx, path, blob, model, component)
		}
		if err := tx.CreateComponent(ctx, component); err != nil {
			return nil, err
		}
	} else if path.IsPom() {
		facet.fillInFromModel(ctx, path, blob, model, component)
		if err := tx.SaveComponent(ctx, component); err != nil {
			return nil, err
		}
	}

	if asset == nil {
		kind := storage.KindArtifact
		if path.IsSubordinate() {
			kind = storage.KindArtifactSubordinate
		}
		asset = &storage.Asset{Name: path.Path(), Kind: kind}
		asset.SetAttribute(AttrGroupID, coordinates.GroupID)
		asset.SetAttribute(AttrArtifactID, coordinates.ArtifactID)
		asset.SetAttribute(AttrVersion, coordinates.Version)
		asset.SetAttribute(AttrBaseVersion, coordinates.BaseVersion)
		asset.SetAttribute(AttrClassifier, coordinates.Classifier)
		asset.SetAttribute(AttrExtension, coordinates.Extension)
	}
	asset.Component = &key
	return asset, nil
}

func (facet *Facet) putFile(path *Path, asset *storage.Asset) *storage.Asset {
	if asset != nil {
		return asset
	}
	kind := storage.KindOther
	if facet.parser.IsRepositoryMetadata(path) {
		kind = storage.KindRepositoryMetadata
	}
	return &storage.Asset{Name: path.Path(), Kind: kind}
}

// fillInFromModel sets the descriptor attributes of component. Unreadable
// descriptors leave the component unchanged.
func (facet *Facet) fillInFromModel(ctx context.Context, path *Path, blob *storage.AssetBlob, model *descriptor, component *storage.Component) {
	if model == nil {
		return
	}
	if !model.read {
		model.read = true
		info, err := facet.readModel(ctx, blob)
		if err != nil {
			facet.log.Warn("could not parse descriptor",
				zap.String("repository", facet.repo.Name),
				zap.String("path", path.Path()),
				zap.Error(err))
			mon.Event("descriptor_parse_failed")
		}
		model.info = info
	}
	if model.info == nil {
		return
	}

	component.SetAttribute(AttrPackaging, model.info.Packaging)
	if facet.policies.merge == MergeOverwrite || model.info.Name != "" {
		component.SetAttribute(AttrPomName, model.info.Name)
	}
	if facet.policies.merge == MergeOverwrite || model.info.Description != "" {
		component.SetAttribute(AttrPomDescription, model.info.Description)
	}
}

func (facet *Facet) readModel(ctx context.Context, blob *storage.AssetBlob) (_ *DescriptorInfo, err error) {
	reader, err := facet.db.Blobs().Open(ctx, blob.Ref)
	if err != nil {
		return nil, ErrDescriptorParse.Wrap(err)
	}
	defer func() { err = errs.Combine(err, reader.Close()) }()

	return ReadModel(reader)
}

// Delete deletes the assets stored at paths. Every path is deleted in its own
// transaction. It returns whether anything was deleted.
func (facet *Facet) Delete(ctx context.Context, paths ...string) (deleted bool, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := facet.checkOpen(); err != nil {
		return false, err
	}

	for _, requested := range paths {
		path := facet.parser.Parse(requested)
		facet.log.Debug("DELETE", zap.String("repository", facet.repo.Name), zap.String("path", path.Path()))
		if path.Path() == "" {
			continue
		}

		var ok bool
		err := facet.db.WithTx(ctx, facet.repo, func(ctx context.Context, tx *storage.Tx) (err error) {
			ok, err = tx.DeleteAsset(ctx, path.Path())
			return err
		})
		if err != nil {
			return deleted, err
		}
		deleted = deleted || ok
	}
	return deleted, nil
}

// DeleteWithHashes deletes the assets stored at paths together with their
// hash files.
func (facet *Facet) DeleteWithHashes(ctx context.Context, paths ...string) (bool, error) {
	all := make([]string, 0, len(paths)*(len(HashAlgorithms)+1))
	for _, requested := range paths {
		path := facet.parser.Parse(requested)
		all = append(all, path.Path())
		if path.Path() == "" || path.IsHash() {
			continue
		}
		for _, alg := range HashAlgorithms {
			all = append(all, path.Hash(alg).Path())
		}
	}
	return facet.Delete(ctx, all...)
}

// Browse lists the components and assets of the repository.
func (facet *Facet) Browse(ctx context.Context) (_ *storage.Listing, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := facet.checkOpen(); err != nil {
		return nil, err
	}
	return facet.db.Browse(ctx, facet.repo)
}

// Description is the stored state of a path.
type Description struct {
	Path      *Path
	Asset     *storage.Asset
	Component *storage.Component
}

// Describe returns the asset stored at path and its component. The asset is
// nil when nothing is stored at path.
func (facet *Facet) Describe(ctx context.Context, requested string) (_ *Description, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := facet.checkOpen(); err != nil {
		return nil, err
	}

	description := &Description{Path: facet.parser.Parse(requested)}
	if description.Path.Path() == "" {
		return description, nil
	}

	tx := facet.db.Begin(ctx, facet.repo)
	defer tx.Rollback()

	description.Asset, err = tx.FindAsset(ctx, description.Path.Path())
	if err != nil || description.Asset == nil || description.Asset.Component == nil {
		return description, err
	}
	description.Component, err = tx.FindComponent(ctx, *description.Asset.Component)
	return description, err
}

func (facet *Facet) toContent(asset *storage.Asset) *repository.Content {
	content := repository.NewContent(facet.db.Blobs())
	content.Path = asset.Name
	content.ContentType = asset.ContentType
	content.Size = asset.Size
	content.Blob = asset.Blob
	content.Hashes = asset.Hashes
	content.Attributes = asset.Content
	content.LastUpdated = asset.LastUpdated
	return content
}

func componentKeyOf(coordinates *Coordinates) storage.ComponentKey {
	return storage.ComponentKey{
		Group:   coordinates.GroupID,
		Name:    coordinates.ArtifactID,
		Version: coordinates.Version,
	}
}

var contentTypes = map[string]string{
	".pom":    "application/xml",
	".xml":    "application/xml",
	".jar":    "application/java-archive",
	".war":    "application/java-archive",
	".ear":    "application/java-archive",
	".asc":    "application/pgp-signature",
	".sha1":   "text/plain",
	".md5":    "text/plain",
	".sha256": "text/plain",
	".sha512": "text/plain",
}

// ContentTypeOf guesses the content type of a file from its extension.
func ContentTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if contentType, ok := contentTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
