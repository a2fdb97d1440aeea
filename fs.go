// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

var (
	_ fs.FS        = (*archiveFS)(nil)
	_ fs.StatFS    = (*archiveFS)(nil)
	_ fs.ReadDirFS = (*archiveFS)(nil)
)

// FS returns a read-only filesystem view of the archive. Directory
// entries recorded in the archive appear as directories, and parents
// that exist only as name prefixes are synthesized.
func (a *Archive) FS() fs.FS {
	return &archiveFS{a: a}
}

type archiveFS struct {
	a *Archive
}

// fsNode resolves an fs path to either a real archive entry or a
// synthetic directory.
type fsNode struct {
	entry *Entry // nil for synthetic directories
	name  string // slash-clean path, no trailing slash
	isDir bool
}

// Open implements fs.FS.
func (afs *archiveFS) Open(name string) (fs.File, error) {
	node, err := afs.getNode(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if node.isDir {
		return &fsDir{node: node, a: afs.a}, nil
	}

	r, err := afs.a.OpenInfo(node.entry)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &fsFile{node: node, r: r}, nil
}

// Stat implements fs.StatFS.
func (afs *archiveFS) Stat(name string) (fs.FileInfo, error) {
	node, err := afs.getNode(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return fileInfoAdapter{node}, nil
}

// ReadDir implements fs.ReadDirFS.
func (afs *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := afs.Open(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	defer file.Close()

	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dir.ReadDir(-1)
}

// getNode resolves name against the archive directory. It handles the
// root, explicit files and directories, and implicit directories that
// exist only as prefixes of entry names.
func (afs *archiveFS) getNode(name string) (fsNode, error) {
	if !fs.ValidPath(name) {
		return fsNode{}, fs.ErrInvalid
	}

	if name == "." {
		return fsNode{name: ".", isDir: true}, nil
	}

	if e, ok := afs.a.dir.get(name); ok {
		return fsNode{entry: e, name: name}, nil
	}
	if e, ok := afs.a.dir.get(name + "/"); ok {
		return fsNode{entry: e, name: name, isDir: true}, nil
	}

	if afs.hasImplicitDir(name) {
		return fsNode{name: name, isDir: true}, nil
	}

	return fsNode{}, fs.ErrNotExist
}

func (afs *archiveFS) hasImplicitDir(name string) bool {
	prefix := name + "/"
	for _, e := range afs.a.dir.order {
		if strings.HasPrefix(e.Name, prefix) {
			return true
		}
	}
	return false
}

// fsFile wraps an open entry reader to satisfy fs.File.
type fsFile struct {
	node fsNode
	r    *Reader
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return fileInfoAdapter{f.node}, nil }
func (f *fsFile) Read(b []byte) (int, error) { return f.r.Read(b) }

func (f *fsFile) Seek(offset int64, whence int) (int64, error) {
	return f.r.Seek(offset, whence)
}

func (f *fsFile) Close() error { return f.r.Close() }

// fsDir wraps a directory node to satisfy fs.ReadDirFile.
type fsDir struct {
	node fsNode
	a    *Archive

	// Children are listed once on the first ReadDir call; read keeps
	// the position between batched calls.
	entries []fs.DirEntry
	read    int
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return fileInfoAdapter{d.node}, nil }
func (d *fsDir) Close() error               { return nil }
func (d *fsDir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.node.name, Err: fs.ErrInvalid}
}

// ReadDir searches the entry list for the directory's children.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		d.entries = d.list()
	}

	if n <= 0 {
		entries := d.entries[d.read:]
		d.read = len(d.entries)
		return entries, nil
	}

	if d.read >= len(d.entries) {
		return nil, io.EOF
	}
	if d.read+n > len(d.entries) {
		n = len(d.entries) - d.read
	}
	entries := d.entries[d.read : d.read+n]
	d.read += n
	return entries, nil
}

// list collects the directory's immediate children in name order.
func (d *fsDir) list() []fs.DirEntry {
	dirPath := d.node.name
	if dirPath == "." {
		dirPath = ""
	} else if !strings.HasSuffix(dirPath, "/") {
		dirPath += "/"
	}

	seen := make(map[string]bool)
	var entries []fs.DirEntry

	for _, e := range d.a.dir.order {
		if !strings.HasPrefix(e.Name, dirPath) {
			continue
		}

		rel := strings.TrimPrefix(e.Name, dirPath)
		rel = strings.TrimSuffix(rel, "/")
		if rel == "" {
			continue
		}

		parts := strings.SplitN(rel, "/", 2)
		childName := parts[0]

		if seen[childName] {
			continue
		}
		seen[childName] = true

		isDir := len(parts) > 1 || e.IsDir()
		child := fsNode{name: path.Join(dirPath, childName), isDir: isDir}
		if len(parts) == 1 {
			child.entry = e
		}
		entries = append(entries, fsDirEntryAdapter{
			name:  childName,
			isDir: isDir,
			info:  fileInfoAdapter{child},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries
}

type fileInfoAdapter struct{ node fsNode }

func (i fileInfoAdapter) Name() string { return path.Base(i.node.name) }

func (i fileInfoAdapter) Size() int64 {
	if i.node.entry == nil {
		return 0
	}
	return i.node.entry.UncompressedSize
}

func (i fileInfoAdapter) Mode() fs.FileMode {
	if i.node.entry == nil {
		return fs.ModeDir | 0755
	}
	return i.node.entry.Mode()
}

func (i fileInfoAdapter) ModTime() time.Time {
	if i.node.entry == nil {
		return time.Time{}
	}
	return i.node.entry.Modified
}

func (i fileInfoAdapter) IsDir() bool      { return i.node.isDir }
func (i fileInfoAdapter) Sys() interface{} { return nil }

type fsDirEntryAdapter struct {
	name  string
	isDir bool
	info  fs.FileInfo
}

func (e fsDirEntryAdapter) Name() string               { return e.name }
func (e fsDirEntryAdapter) IsDir() bool                { return e.isDir }
func (e fsDirEntryAdapter) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e fsDirEntryAdapter) Info() (fs.FileInfo, error) { return e.info, nil }
