// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import (
	"bytes"
	"hash/crc32"
	"strings"
	"testing"
	"time"

	"github.com/lemon4ksan/zipseek/internal"
)

var testModTime = time.Date(2024, time.May, 17, 10, 30, 0, 0, time.UTC)

const (
	testDosDate = uint16((2024-1980)<<9 | 5<<5 | 17)
	testDosTime = uint16(10<<11 | 30<<5)
)

// testFile describes one entry of a built fixture archive. The zero
// method is stored, the only method the package reads.
type testFile struct {
	name   string
	data   []byte
	method uint16
	flags  uint16

	// localName overrides the name written into the local file
	// header, to fabricate archives whose headers disagree.
	localName string

	// shortBy shrinks the uncompressed size recorded in the central
	// directory below the stored byte count.
	shortBy int

	// growBy inflates both sizes recorded in the central directory
	// beyond the stored byte count.
	growBy int
}

type archiveOptions struct {
	comment string

	// prefix is prepended to the archive without adjusting any
	// recorded offset, the way self-extracting executables are made.
	prefix []byte

	// zip64 appends a zip64 end of central directory record and
	// locator before the classic end record.
	zip64 bool
}

// buildArchive serializes a ZIP archive from descriptions, using the
// same codecs the parser is built on.
func buildArchive(t *testing.T, files []testFile, opt archiveOptions) []byte {
	t.Helper()

	var body bytes.Buffer
	offsets := make([]int64, len(files))
	for i, f := range files {
		localName := f.localName
		if localName == "" {
			localName = f.name
		}
		offsets[i] = int64(body.Len())
		lfh := internal.LocalFileHeader{
			VersionNeededToExtract: 20,
			GeneralPurposeBitFlag:  f.flags,
			CompressionMethod:      f.method,
			LastModFileTime:        testDosTime,
			LastModFileDate:        testDosDate,
			CRC32:                  crc32.ChecksumIEEE(f.data),
			CompressedSize:         uint32(len(f.data)),
			UncompressedSize:       uint32(len(f.data)),
			Filename:               localName,
		}
		body.Write(lfh.Encode())
		body.Write(f.data)
	}

	cdOffset := int64(body.Len())
	for i, f := range files {
		var unixMode uint32 = s_IFREG | 0o644
		if strings.HasSuffix(f.name, "/") {
			unixMode = s_IFDIR | 0o755
		}
		cd := internal.CentralDirectory{
			VersionMadeBy:          3<<8 | 20, // Unix
			VersionNeededToExtract: 20,
			GeneralPurposeBitFlag:  f.flags,
			CompressionMethod:      f.method,
			LastModFileTime:        testDosTime,
			LastModFileDate:        testDosDate,
			CRC32:                  crc32.ChecksumIEEE(f.data),
			CompressedSize:         uint32(len(f.data) + f.growBy),
			UncompressedSize:       uint32(len(f.data) + f.growBy - f.shortBy),
			ExternalFileAttributes: unixMode << 16,
			LocalHeaderOffset:      uint32(offsets[i]),
			Filename:               f.name,
		}
		body.Write(cd.Encode())
	}
	cdSize := int64(body.Len()) - cdOffset

	if opt.zip64 {
		zip64Offset := uint64(body.Len())
		body.Write(internal.EncodeZip64EndOfCentralDirRecord(uint64(len(files)), uint64(cdSize), uint64(cdOffset)))
		body.Write(internal.EncodeZip64EndOfCentralDirLocator(zip64Offset))
	}
	body.Write(internal.EncodeEndOfCentralDirRecord(len(files), uint64(cdSize), uint64(cdOffset), opt.comment))

	out := make([]byte, 0, len(opt.prefix)+body.Len())
	out = append(out, opt.prefix...)
	return append(out, body.Bytes()...)
}

func openArchive(t *testing.T, data []byte) *Archive {
	t.Helper()
	a, err := New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// pattern returns n bytes of deterministic, non-repeating-looking data.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i>>8)
	}
	return data
}
