// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import "errors"

var (
	// ErrNotArchive is returned when no end of central directory
	// record can be located, meaning the source is not a ZIP archive
	// at all.
	ErrNotArchive = errors.New("zipseek: not a zip archive")

	// ErrFormat is returned when the source carries ZIP structure but
	// a record contradicts it, such as a truncated central directory
	// or a local header that disagrees with the central directory.
	ErrFormat = errors.New("zipseek: malformed zip archive")

	// ErrUnsupported is returned for archives that use ZIP features
	// outside the stored, unencrypted, single-disk subset this
	// package reads.
	ErrUnsupported = errors.New("zipseek: unsupported zip feature")

	// ErrEntryNotFound is returned when a requested name has no entry
	// in the archive directory.
	ErrEntryNotFound = errors.New("zipseek: entry not found")

	// ErrClosed is returned when an archive or entry reader is used
	// after being closed.
	ErrClosed = errors.New("zipseek: closed")
)
