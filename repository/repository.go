// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package repository contains the identity of a repository and the content
// it returns to callers.
package repository

import (
	"github.com/zeebo/errs"
)

// Error is the default repository error class.
var Error = errs.Class("repository")

// FormatMaven2 is the format identifier of maven2 layout repositories.
const FormatMaven2 = "maven2"

// Type is the kind of a repository.
type Type string

const (
	// Hosted repositories store artifacts deployed to them.
	Hosted Type = "hosted"
	// Proxy repositories cache artifacts of a remote repository.
	Proxy Type = "proxy"
	// Group repositories aggregate other repositories.
	Group Type = "group"
)

// ParseType parses the configuration value of a repository type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Hosted, Proxy, Group:
		return t, nil
	default:
		return "", Error.New("unknown repository type %q", s)
	}
}

// Repository identifies a named storage namespace. It does not change for
// the lifetime of the process.
type Repository struct {
	Name   string
	Format string
	Type   Type
}

// Verify checks that the repository identity is complete.
func (repo Repository) Verify() error {
	switch {
	case repo.Name == "":
		return Error.New("name missing")
	case repo.Format == "":
		return Error.New("format missing")
	}
	if _, err := ParseType(string(repo.Type)); err != nil {
		return err
	}
	return nil
}

// String returns the repository name.
func (repo Repository) String() string { return repo.Name }
