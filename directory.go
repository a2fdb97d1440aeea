// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lemon4ksan/zipseek/internal"
)

// The end of central directory record sits within this distance of the
// end of the file: a full 64 KiB comment window plus the fixed record.
const maxDirectoryEndScan = 1<<16 + internal.EndOfCentralDirLen

var endOfCentralDirMagic = binary.LittleEndian.AppendUint32(nil, internal.EndOfCentralDirSignature)

// directoryEnd is the resolved end of central directory state: the
// classic record's values, overridden by the zip64 record when one is
// present and coherent.
type directoryEnd struct {
	pos     int64 // file offset of the record's signature
	entries uint64
	size    int64 // central directory size in bytes
	offset  int64 // central directory offset as recorded
	comment string
	isZip64 bool
}

// findDirectoryEnd locates the end of central directory record. Most
// archives have no comment, so the record's fixed 22 bytes are the
// last bytes of the file; that case is checked first with a single
// read. Otherwise the tail of the file is scanned backwards for the
// last occurrence of the record signature, which skips signature
// look-alikes embedded in the comment's leading bytes.
func findDirectoryEnd(src io.ReadSeeker) (directoryEnd, error) {
	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return directoryEnd{}, fmt.Errorf("seek source end: %w", err)
	}

	if size >= internal.EndOfCentralDirLen {
		var tail [internal.EndOfCentralDirLen]byte
		if _, err := src.Seek(size-internal.EndOfCentralDirLen, io.SeekStart); err != nil {
			return directoryEnd{}, fmt.Errorf("seek source: %w", err)
		}
		if _, err := io.ReadFull(src, tail[:]); err != nil {
			return directoryEnd{}, fmt.Errorf("read source: %w", err)
		}
		if rec, ok := internal.DecodeEndOfCentralDir(tail[:]); ok && rec.CommentLength == 0 {
			end := directoryEnd{
				pos:     size - internal.EndOfCentralDirLen,
				entries: uint64(rec.TotalNumberOfEntries),
				size:    int64(rec.CentralDirSize),
				offset:  int64(rec.CentralDirOffset),
			}
			return updateZip64(src, end)
		}
	}

	scanStart := max(size-maxDirectoryEndScan, 0)
	if _, err := src.Seek(scanStart, io.SeekStart); err != nil {
		return directoryEnd{}, fmt.Errorf("seek source: %w", err)
	}
	buf := make([]byte, size-scanStart)
	if _, err := io.ReadFull(src, buf); err != nil {
		return directoryEnd{}, fmt.Errorf("read source: %w", err)
	}

	idx := bytes.LastIndex(buf, endOfCentralDirMagic)
	if idx < 0 {
		return directoryEnd{}, ErrNotArchive
	}
	rec, ok := internal.DecodeEndOfCentralDir(buf[idx:])
	if !ok {
		// Signature bytes too close to the end of the file to
		// complete a record.
		return directoryEnd{}, ErrNotArchive
	}
	end := directoryEnd{
		pos:     scanStart + int64(idx),
		entries: uint64(rec.TotalNumberOfEntries),
		size:    int64(rec.CentralDirSize),
		offset:  int64(rec.CentralDirOffset),
		comment: rec.Comment,
	}
	return updateZip64(src, end)
}

// updateZip64 probes for a zip64 end of central directory locator just
// before the classic record and, when one is found, replaces the
// record's counters with the 64-bit ones. Any probe miss leaves the
// classic values in place: ordinary archives routinely have unrelated
// bytes there. The one hard failure is a locator that points across
// multiple disks.
func updateZip64(src io.ReadSeeker, end directoryEnd) (directoryEnd, error) {
	locPos := end.pos - internal.Zip64LocatorLen
	if locPos < 0 {
		return end, nil
	}
	if _, err := src.Seek(locPos, io.SeekStart); err != nil {
		return end, nil
	}
	var locBuf [internal.Zip64LocatorLen]byte
	if _, err := io.ReadFull(src, locBuf[:]); err != nil {
		return end, nil
	}
	loc, ok := internal.DecodeZip64Locator(locBuf[:])
	if !ok {
		return end, nil
	}
	if loc.EndOfCentralDirStartDiskNum != 0 || loc.TotalNumberOfDisks > 1 {
		return directoryEnd{}, fmt.Errorf("%w: archives spanning multiple disks", ErrUnsupported)
	}

	if _, err := src.Seek(int64(loc.Zip64EndOfCentralDirOffset), io.SeekStart); err != nil {
		return end, nil
	}
	var recBuf [internal.Zip64EndOfCentralDirLen]byte
	if _, err := io.ReadFull(src, recBuf[:]); err != nil {
		return end, nil
	}
	rec, ok := internal.DecodeZip64EndOfCentralDir(recBuf[:])
	if !ok {
		return end, nil
	}

	end.entries = rec.TotalNumberOfEntries
	end.size = int64(rec.CentralDirSize)
	end.offset = int64(rec.CentralDirOffset)
	end.isZip64 = true
	return end, nil
}

// directory is the parsed central directory: entries in first
// appearance order with duplicate names collapsed so that the last
// record for a name wins while keeping the name's original position.
type directory struct {
	order []*Entry
	index map[string]int
}

func (d *directory) add(e *Entry) {
	if i, ok := d.index[e.Name]; ok {
		d.order[i] = e
		return
	}
	d.index[e.Name] = len(d.order)
	d.order = append(d.order, e)
}

func (d *directory) get(name string) (*Entry, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.order[i], true
}

// readDirectory locates and parses the whole central directory.
//
// Offsets recorded in the archive are relative to where the ZIP data
// begins, which is not the start of the file when the archive was
// appended to another file, such as a self-extracting executable. The
// difference between where the end record was actually found and where
// the recorded size and offset say it should be gives the correction
// to apply to every recorded offset.
func readDirectory(src io.ReadSeeker) (*directory, directoryEnd, error) {
	end, err := findDirectoryEnd(src)
	if err != nil {
		return nil, directoryEnd{}, err
	}

	base := end.pos - end.size - end.offset
	if end.isZip64 {
		base -= internal.Zip64EndOfCentralDirLen + internal.Zip64LocatorLen
	}
	startDir := end.offset + base
	if startDir < 0 {
		return nil, directoryEnd{}, fmt.Errorf("%w: bad central directory offset", ErrFormat)
	}

	if _, err := src.Seek(startDir, io.SeekStart); err != nil {
		return nil, directoryEnd{}, fmt.Errorf("seek central directory: %w", err)
	}

	// The recorded entry count is a sizing hint only, capped by what
	// the directory bytes could actually hold.
	hint := min(end.entries, uint64(end.size/internal.CentralDirectoryLen))
	dir := &directory{
		order: make([]*Entry, 0, hint),
		index: make(map[string]int, hint),
	}
	r := bufio.NewReader(io.LimitReader(src, end.size))
	for read := int64(0); read < end.size; {
		var sig [4]byte
		if _, err := io.ReadFull(r, sig[:]); err != nil {
			return nil, directoryEnd{}, fmt.Errorf("%w: truncated central directory: %v", ErrFormat, err)
		}
		if binary.LittleEndian.Uint32(sig[:]) != internal.CentralDirectorySignature {
			return nil, directoryEnd{}, fmt.Errorf("%w: bad central directory record signature", ErrFormat)
		}
		cd, err := internal.ReadCentralDirEntry(r)
		if err != nil {
			return nil, directoryEnd{}, fmt.Errorf("%w: truncated central directory: %v", ErrFormat, err)
		}
		e, err := newEntry(cd)
		if err != nil {
			return nil, directoryEnd{}, err
		}
		e.headerOffset += base
		dir.add(e)

		read += internal.CentralDirectoryLen +
			int64(cd.FilenameLength) + int64(cd.ExtraFieldLength) + int64(cd.FileCommentLength)
	}

	return dir, end, nil
}
