// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package maven

import (
	"encoding/xml"
	"io"
	"strings"

	"storj.io/common/memory"
)

// maxDescriptorSize limits how much of a descriptor is read.
const maxDescriptorSize = 16 * memory.MiB

// DefaultPackaging is the packaging of descriptors that do not declare one.
const DefaultPackaging = "jar"

// DescriptorInfo is the part of a project descriptor stored on components.
type DescriptorInfo struct {
	Packaging   string
	Name        string
	Description string
}

type project struct {
	XMLName     xml.Name
	Packaging   string `xml:"packaging"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

// ReadModel reads the packaging, name and description of a project
// descriptor.
func ReadModel(r io.Reader) (*DescriptorInfo, error) {
	var model project

	decoder := xml.NewDecoder(io.LimitReader(r, maxDescriptorSize.Int64()))
	if err := decoder.Decode(&model); err != nil {
		return nil, ErrDescriptorParse.Wrap(err)
	}
	if model.XMLName.Local != "project" {
		return nil, ErrDescriptorParse.New("unexpected root element %q", model.XMLName.Local)
	}

	info := &DescriptorInfo{
		Packaging:   strings.TrimSpace(model.Packaging),
		Name:        strings.TrimSpace(model.Name),
		Description: strings.TrimSpace(model.Description),
	}
	if info.Packaging == "" {
		info.Packaging = DefaultPackaging
	}
	return info, nil
}
