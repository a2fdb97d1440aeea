// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/lemon4ksan/zipseek/internal"
)

// MethodStored identifies entries whose data is stored without
// compression. It is the only compression method this package reads.
const MethodStored uint16 = 0

// General purpose bit flag values.
const (
	flagEncrypted        uint16 = 1 << 0
	flagCompressedPatch  uint16 = 1 << 5
	flagStrongEncryption uint16 = 1 << 6
	flagUTF8             uint16 = 1 << 11
)

// methodNames gives readable names for the compression methods defined
// by the format, used in errors about entries this package cannot read.
var methodNames = map[uint16]string{
	0:  "store",
	1:  "shrink",
	2:  "reduce",
	3:  "reduce",
	4:  "reduce",
	5:  "reduce",
	6:  "implode",
	7:  "tokenize",
	8:  "deflate",
	9:  "deflate64",
	12: "bzip2",
	14: "lzma",
	93: "zstd",
	97: "xz",
	98: "ppmd",
}

func methodName(method uint16) string {
	if name, ok := methodNames[method]; ok {
		return name
	}
	return fmt.Sprintf("method %d", method)
}

// Entry describes one file recorded in the archive's central
// directory. Entries are immutable once the directory is parsed.
type Entry struct {
	// Name is the decoded entry path, using forward slashes.
	// Directory entries end with a slash.
	Name string

	// Comment is the per-entry comment from the central directory.
	Comment string

	// Method is the compression method recorded for the entry. Only
	// MethodStored entries can be opened.
	Method uint16

	// Flags is the entry's general purpose bit flag field.
	Flags uint16

	// CRC32 of the uncompressed data, as recorded in the directory.
	CRC32 uint32

	// CompressedSize and UncompressedSize are the entry's data sizes
	// in bytes, with zip64 values already substituted.
	CompressedSize   int64
	UncompressedSize int64

	// Modified is the entry's modification time, at the format's two
	// second resolution, in UTC.
	Modified time.Time

	headerOffset  int64
	versionMadeBy uint16
	externalAttrs uint32
}

// newEntry converts a central directory record into an Entry,
// decoding the stored filename and substituting 64-bit sizes and
// offsets from the zip64 extra field where the record's 32-bit fields
// overflow.
func newEntry(cd internal.CentralDirectory) (*Entry, error) {
	name, err := decodeName(cd.Filename, cd.GeneralPurposeBitFlag)
	if err != nil {
		return nil, fmt.Errorf("%w: decode name: %w", ErrFormat, err)
	}

	e := &Entry{
		Name:             name,
		Comment:          cd.Comment,
		Method:           cd.CompressionMethod,
		Flags:            cd.GeneralPurposeBitFlag,
		CRC32:            cd.CRC32,
		CompressedSize:   int64(cd.CompressedSize),
		UncompressedSize: int64(cd.UncompressedSize),
		Modified:         msDosTimeToTime(cd.LastModFileDate, cd.LastModFileTime),
		headerOffset:     int64(cd.LocalHeaderOffset),
		versionMadeBy:    cd.VersionMadeBy,
		externalAttrs:    cd.ExternalFileAttributes,
	}

	// A 32-bit field pinned at its maximum defers to the zip64 extra
	// field, which carries the real values as consecutive 64-bit
	// words in this fixed order.
	if fields, ok := cd.ExtraField[internal.Zip64ExtraTag]; ok {
		for _, shortField := range []*int64{&e.UncompressedSize, &e.CompressedSize, &e.headerOffset} {
			if *shortField != 0xffffffff {
				continue
			}
			if len(fields) < 8 {
				return nil, fmt.Errorf("%w: truncated zip64 extra field for %q", ErrFormat, e.Name)
			}
			*shortField = int64(binary.LittleEndian.Uint64(fields))
			fields = fields[8:]
		}
	}

	return e, nil
}

// IsDir reports whether the entry is a directory marker.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Mode returns the entry's file mode as recorded by the archiver. The
// external attributes are interpreted per the creator system noted in
// the version-made-by field; unknown systems get conventional
// defaults.
func (e *Entry) Mode() fs.FileMode {
	var mode fs.FileMode
	switch e.versionMadeBy >> 8 {
	case 3, 19: // Unix, Mac OS X
		mode = unixModeToFileMode(e.externalAttrs >> 16)
	case 0, 11, 14: // DOS, NTFS, VFAT
		mode = msdosModeToFileMode(e.externalAttrs)
	default:
		if e.IsDir() {
			mode = 0o755
		} else {
			mode = 0o644
		}
	}
	if e.IsDir() {
		mode |= fs.ModeDir
	}
	return mode
}

// decodeName interprets the raw filename bytes: UTF-8 when the entry's
// flag bit says so, code page 437 otherwise.
func decodeName(raw string, flags uint16) (string, error) {
	if flags&flagUTF8 != 0 {
		return raw, nil
	}
	return charmap.CodePage437.NewDecoder().String(raw)
}

// msDosTimeToTime converts an MS-DOS date and time pair into a
// time.Time. The resolution is 2s.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}

const (
	// Unix constants. The ZIP appnote doesn't mention them,
	// but these seem to be the values agreed on by tools.
	s_IFMT   = 0xf000
	s_IFSOCK = 0xc000
	s_IFLNK  = 0xa000
	s_IFREG  = 0x8000
	s_IFBLK  = 0x6000
	s_IFDIR  = 0x4000
	s_IFCHR  = 0x2000
	s_IFIFO  = 0x1000
	s_ISUID  = 0x800
	s_ISGID  = 0x400
	s_ISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

func msdosModeToFileMode(m uint32) (mode fs.FileMode) {
	if m&msdosDir != 0 {
		mode = fs.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

func unixModeToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0777)
	switch m & s_IFMT {
	case s_IFBLK:
		mode |= fs.ModeDevice
	case s_IFCHR:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case s_IFDIR:
		mode |= fs.ModeDir
	case s_IFIFO:
		mode |= fs.ModeNamedPipe
	case s_IFLNK:
		mode |= fs.ModeSymlink
	case s_IFREG:
		// nothing to do
	case s_IFSOCK:
		mode |= fs.ModeSocket
	}
	if m&s_ISGID != 0 {
		mode |= fs.ModeSetgid
	}
	if m&s_ISUID != 0 {
		mode |= fs.ModeSetuid
	}
	if m&s_ISVTX != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}
