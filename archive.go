// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zipseek reads ZIP archives whose entries are stored without
// compression, giving random access to entry data through seekable
// readers.
//
// It is built for the container use of ZIP: many independent data
// blobs kept in one file, read piecemeal and out of order. Readers for
// several entries of the same archive can be open at once over a
// single file descriptor, and each reader supports Seek, so consumers
// can jump inside large entries without reading them through.
//
// The package handles Zip64 archives, archive comments up to the
// format's 64 KiB limit, and archives appended to other data, such as
// self-extracting executables. Compressed or encrypted entries are
// detected and refused with [ErrUnsupported].
//
// # Basic Usage
//
// Reading one entry out of an archive on disk:
//
//	archive, _ := zipseek.Open("data.zip")
//	defer archive.Close()
//
//	r, _ := archive.OpenEntry("blocks/0042.bin")
//	defer r.Close()
//	r.Seek(4096, io.SeekStart)
//	io.ReadFull(r, buf)
//
// The archive can also be accessed as a read-only filesystem using the
// [fs.FS] interface:
//
//	fsys := archive.FS()
//	data, _ := fs.ReadFile(fsys, "meta.json")
//
// Nothing in this package locks: an Archive and its readers belong to
// one goroutine at a time.
package zipseek

import (
	"fmt"
	"io"
	"os"

	"github.com/lemon4ksan/zipseek/internal"
)

// Archive is an open ZIP archive. It keeps the parsed central
// directory in memory and hands out entry readers that share the
// archive's file descriptor.
type Archive struct {
	file    *sharedFile
	dir     *directory
	comment string
	closed  bool
}

// Open opens the named file as a ZIP archive. The returned Archive
// owns the descriptor and closes it when the archive and all readers
// opened from it are closed.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a, err := newArchive(f, true)
	if err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

// New reads a ZIP archive from src, which stays open and under the
// caller's control: Close never closes it. The archive seeks src
// freely, so the caller must not use src directly while the archive or
// any of its readers is alive.
func New(src io.ReadSeeker) (*Archive, error) {
	return newArchive(src, false)
}

func newArchive(src io.ReadSeeker, owned bool) (*Archive, error) {
	dir, end, err := readDirectory(src)
	if err != nil {
		return nil, err
	}
	return &Archive{
		file:    newSharedFile(src, owned),
		dir:     dir,
		comment: end.comment,
	}, nil
}

// Comment returns the archive comment.
func (a *Archive) Comment() string { return a.comment }

// Names returns the entry names in directory order. When a name
// appears more than once in the directory it is listed once, at its
// first position.
func (a *Archive) Names() []string {
	names := make([]string, len(a.dir.order))
	for i, e := range a.dir.order {
		names[i] = e.Name
	}
	return names
}

// Entries returns the archive's entries in directory order.
func (a *Archive) Entries() []*Entry {
	entries := make([]*Entry, len(a.dir.order))
	copy(entries, a.dir.order)
	return entries
}

// Entry returns the entry for name, or ErrEntryNotFound. When the
// directory recorded the name more than once, the last record wins.
func (a *Archive) Entry(name string) (*Entry, error) {
	e, ok := a.dir.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	return e, nil
}

// OpenEntry opens the named entry for reading.
func (a *Archive) OpenEntry(name string) (*Reader, error) {
	if a.closed {
		return nil, ErrClosed
	}
	e, err := a.Entry(name)
	if err != nil {
		return nil, err
	}
	return a.OpenInfo(e)
}

// OpenInfo opens an entry previously obtained from this archive. The
// entry's local header is read and checked against the directory
// before any data is returned, so a directory that lies about its
// entries fails here rather than during reads.
func (a *Archive) OpenInfo(e *Entry) (*Reader, error) {
	if a.closed {
		return nil, ErrClosed
	}
	v := a.file.open(e.headerOffset)
	r, err := a.openEntry(e, v)
	if err != nil {
		v.Close()
		return nil, err
	}
	return r, nil
}

func (a *Archive) openEntry(e *Entry, v *fileView) (*Reader, error) {
	var hdr [internal.LocalFileHeaderLen]byte
	if _, err := io.ReadFull(v, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: read local header of %q: %v", ErrFormat, e.Name, err)
	}
	lfh, ok := internal.DecodeLocalFileHeader(hdr[:])
	if !ok {
		return nil, fmt.Errorf("%w: bad local header signature for %q", ErrFormat, e.Name)
	}

	rawName := make([]byte, lfh.FilenameLength)
	if _, err := io.ReadFull(v, rawName); err != nil {
		return nil, fmt.Errorf("%w: read local header of %q: %v", ErrFormat, e.Name, err)
	}
	if lfh.ExtraFieldLength > 0 {
		if _, err := v.Seek(int64(lfh.ExtraFieldLength), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("%w: read local header of %q: %v", ErrFormat, e.Name, err)
		}
	}

	if lfh.GeneralPurposeBitFlag&flagCompressedPatch != 0 {
		return nil, fmt.Errorf("%w: compressed patched data in %q", ErrUnsupported, e.Name)
	}
	if lfh.GeneralPurposeBitFlag&flagStrongEncryption != 0 {
		return nil, fmt.Errorf("%w: strong encryption in %q", ErrUnsupported, e.Name)
	}
	name, err := decodeName(string(rawName), lfh.GeneralPurposeBitFlag)
	if err != nil {
		return nil, fmt.Errorf("%w: decode local header name: %v", ErrFormat, err)
	}
	if name != e.Name {
		return nil, fmt.Errorf("%w: local header name %q does not match directory name %q", ErrFormat, name, e.Name)
	}
	if lfh.GeneralPurposeBitFlag&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: encrypted entry %q", ErrUnsupported, e.Name)
	}
	if e.Method != MethodStored {
		return nil, fmt.Errorf("%w: entry %q uses %s", ErrUnsupported, e.Name, methodName(e.Method))
	}

	dataStart := e.headerOffset + internal.LocalFileHeaderLen +
		int64(lfh.FilenameLength) + int64(lfh.ExtraFieldLength)
	return &Reader{
		entry:    e,
		src:      v,
		start:    dataStart,
		size:     e.UncompressedSize,
		left:     e.UncompressedSize,
		compLeft: e.CompressedSize,
	}, nil
}

// ReadFile reads the named entry whole.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	r, err := a.OpenEntry(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	return data, nil
}

// Close releases the archive's hold on its source. Readers already
// open stay usable; the descriptor is closed when the last of them is
// closed. Closing twice is a no-op.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.file.release()
}
