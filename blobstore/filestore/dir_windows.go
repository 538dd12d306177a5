// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

//go:build windows

package filestore

import (
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Adds `\\?` prefix to ensure that API recognizes it as a long path.
// see https://msdn.microsoft.com/en-us/library/windows/desktop/aa365247(v=vs.85).aspx#maxpath
func tryFixLongPath(path string) string {
	abspath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return `\\?\` + abspath
}

// rename implements atomic file rename on windows.
func rename(oldpath, newpath string) error {
	oldpathp, err := windows.UTF16PtrFromString(tryFixLongPath(oldpath))
	if err != nil {
		return &os.LinkError{Op: "replace", Old: oldpath, New: newpath, Err: err}
	}
	newpathp, err := windows.UTF16PtrFromString(tryFixLongPath(newpath))
	if err != nil {
		return &os.LinkError{Op: "replace", Old: oldpath, New: newpath, Err: err}
	}

	err = windows.MoveFileEx(oldpathp, newpathp, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
	if err != nil {
		return &os.LinkError{Op: "replace", Old: oldpath, New: newpath, Err: err}
	}

	return nil
}

// openFileReadOnly opens the file with read only.
// Custom implementation, because os.Open doesn't support specifying FILE_SHARE_DELETE.
func openFileReadOnly(path string, perm os.FileMode) (*os.File, error) {
	pathp, err := windows.UTF16PtrFromString(tryFixLongPath(path))
	if err != nil {
		return nil, err
	}

	access := uint32(windows.GENERIC_READ)
	sharemode := uint32(windows.FILE_SHARE_READ | windows.FILE_SHARE_WRITE | windows.FILE_SHARE_DELETE)

	var sa windows.SecurityAttributes
	sa.Length = uint32(unsafe.Sizeof(sa))
	sa.InheritHandle = 1

	createmode := uint32(windows.OPEN_EXISTING)

	handle, err := windows.CreateFile(pathp, access, sharemode, &sa, createmode, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	return os.NewFile(uintptr(handle), path), nil
}
