// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"storj.io/repostore/repository"
	"storj.io/repostore/repository/hashes"
)

// Parser parses repository paths of a layout.
type Parser interface {
	// Parse parses path. Paths outside of the artifact layout are returned
	// without coordinates.
	Parse(path string) *Path
	// ParseCoordinates returns the coordinates of path or ErrMalformedPath.
	ParseCoordinates(path string) (*Coordinates, error)
	// IsRepositoryMetadata returns whether path is a repository level index.
	IsRepositoryMetadata(path *Path) bool
}

// Parsers lists the path parsers by repository format.
var Parsers = map[string]Parser{
	repository.FormatMaven2: Maven2Parser{},
}

const snapshotSuffix = "-SNAPSHOT"

var (
	metadataPrefixes = []string{"maven-metadata.xml", "archetype-catalog.xml"}

	snapshotTimestamp = regexp.MustCompile(`^(\d{8}\.\d{6})-(\d+)`)
)

const timestampLayout = "20060102.150405"

// Maven2Parser parses paths of the maven2 layout:
//
//	group/segments/artifactId/baseVersion/artifactId-version[-classifier].extension
type Maven2Parser struct{}

// Parse implements Parser.
func (parser Maven2Parser) Parse(path string) *Path {
	path = strings.TrimPrefix(path, "/")

	result := &Path{
		parser:   parser,
		path:     path,
		unhashed: path,
		main:     path,
	}

	for _, alg := range hashes.All {
		if strings.HasSuffix(result.main, "."+string(alg)) {
			result.hash = alg
			result.main = strings.TrimSuffix(result.main, "."+string(alg))
			result.unhashed = result.main
			break
		}
	}
	if strings.HasSuffix(result.main, "."+string(SignatureGPG)) {
		result.signature = SignatureGPG
		result.main = strings.TrimSuffix(result.main, "."+string(SignatureGPG))
	}

	result.fileName = path[strings.LastIndexByte(path, '/')+1:]
	if parser.isMetadataFile(result.main) {
		return result
	}

	coordinates, err := parser.parseMain(result.main)
	if err != nil {
		return result
	}
	coordinates.Hash = result.hash
	coordinates.Signature = result.signature
	result.coordinates = coordinates
	return result
}

// ParseCoordinates implements Parser.
func (parser Maven2Parser) ParseCoordinates(path string) (*Coordinates, error) {
	parsed := parser.Parse(path)
	if parsed.coordinates == nil {
		return nil, ErrMalformedPath.New("%q", path)
	}
	return parsed.coordinates, nil
}

// IsRepositoryMetadata implements Parser.
func (parser Maven2Parser) IsRepositoryMetadata(path *Path) bool {
	return parser.isMetadataFile(path.main)
}

func (Maven2Parser) isMetadataFile(main string) bool {
	fileName := main[strings.LastIndexByte(main, '/')+1:]
	for _, prefix := range metadataPrefixes {
		if strings.HasPrefix(fileName, prefix) {
			return true
		}
	}
	return false
}

// parseMain parses a path without hash and signature suffixes.
func (Maven2Parser) parseMain(path string) (*Coordinates, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 4 {
		return nil, ErrMalformedPath.New("%q: too few segments", path)
	}
	for _, segment := range segments {
		if segment == "" {
			return nil, ErrMalformedPath.New("%q: empty segment", path)
		}
	}

	n := len(segments)
	coordinates := &Coordinates{
		GroupID:     strings.Join(segments[:n-3], "."),
		ArtifactID:  segments[n-3],
		BaseVersion: segments[n-2],
	}
	fileName := segments[n-1]

	tail, ok := strings.CutPrefix(fileName, coordinates.ArtifactID+"-")
	if !ok {
		return nil, ErrMalformedPath.New("%q: file name does not start with artifact id", path)
	}

	switch {
	case strings.HasPrefix(tail, coordinates.BaseVersion):
		coordinates.Version = coordinates.BaseVersion
		coordinates.Snapshot = strings.HasSuffix(coordinates.BaseVersion, snapshotSuffix)
		tail = tail[len(coordinates.BaseVersion):]

	case strings.HasSuffix(coordinates.BaseVersion, snapshotSuffix):
		prefix := strings.TrimSuffix(coordinates.BaseVersion, snapshotSuffix) + "-"
		rest, ok := strings.CutPrefix(tail, prefix)
		if !ok {
			return nil, ErrMalformedPath.New("%q: version does not match %q", path, coordinates.BaseVersion)
		}
		match := snapshotTimestamp.FindStringSubmatch(rest)
		if match == nil {
			return nil, ErrMalformedPath.New("%q: invalid snapshot version", path)
		}

		timestamp, err := time.Parse(timestampLayout, match[1])
		if err != nil {
			return nil, ErrMalformedPath.New("%q: invalid snapshot timestamp: %v", path, err)
		}
		buildNumber, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, ErrMalformedPath.New("%q: invalid build number: %v", path, err)
		}

		coordinates.Version = prefix + match[0]
		coordinates.Snapshot = true
		coordinates.Timestamp = timestamp
		coordinates.BuildNumber = buildNumber
		tail = rest[len(match[0]):]

	default:
		return nil, ErrMalformedPath.New("%q: version does not match %q", path, coordinates.BaseVersion)
	}

	if classified, ok := strings.CutPrefix(tail, "-"); ok {
		dot := strings.IndexByte(classified, '.')
		if dot <= 0 {
			return nil, ErrMalformedPath.New("%q: invalid classifier", path)
		}
		coordinates.Classifier = classified[:dot]
		tail = classified[dot:]
	}

	extension, ok := strings.CutPrefix(tail, ".")
	if !ok || extension == "" {
		return nil, ErrMalformedPath.New("%q: missing extension", path)
	}
	coordinates.Extension = extension
	return coordinates, nil
}
