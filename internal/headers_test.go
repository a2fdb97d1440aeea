// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestLocalFileHeaderRoundTrip(t *testing.T) {
	h := LocalFileHeader{
		VersionNeededToExtract: 20,
		GeneralPurposeBitFlag:  1 << 11,
		CompressionMethod:      0,
		LastModFileTime:        0x5432,
		LastModFileDate:        0x58b1,
		CRC32:                  0xdeadbeef,
		CompressedSize:         1234,
		UncompressedSize:       1234,
		Filename:               "dir/file.bin",
		ExtraField:             []byte{0x55, 0x54, 0x02, 0x00, 0x03, 0x04},
	}
	buf := h.Encode()

	if len(buf) != LocalFileHeaderLen+len(h.Filename)+len(h.ExtraField) {
		t.Fatalf("Encode() length = %d", len(buf))
	}

	got, ok := DecodeLocalFileHeader(buf)
	if !ok {
		t.Fatal("DecodeLocalFileHeader() rejected encoded header")
	}
	if got.CompressionMethod != h.CompressionMethod ||
		got.GeneralPurposeBitFlag != h.GeneralPurposeBitFlag ||
		got.CRC32 != h.CRC32 ||
		got.CompressedSize != h.CompressedSize ||
		got.FilenameLength != uint16(len(h.Filename)) ||
		got.ExtraFieldLength != uint16(len(h.ExtraField)) {
		t.Errorf("DecodeLocalFileHeader() = %+v", got)
	}

	if _, ok := DecodeLocalFileHeader(buf[:29]); ok {
		t.Error("DecodeLocalFileHeader() accepted short buffer")
	}
	buf[0] = 'Q'
	if _, ok := DecodeLocalFileHeader(buf); ok {
		t.Error("DecodeLocalFileHeader() accepted bad signature")
	}
}

func TestCentralDirEntryRoundTrip(t *testing.T) {
	d := CentralDirectory{
		VersionMadeBy:          3<<8 | 20,
		VersionNeededToExtract: 20,
		CompressionMethod:      0,
		CRC32:                  0x01020304,
		CompressedSize:         999,
		UncompressedSize:       999,
		ExternalFileAttributes: 0o644 << 16,
		LocalHeaderOffset:      4242,
		Filename:               "file.bin",
		ExtraField: map[uint16][]byte{
			0x0001: binary.LittleEndian.AppendUint64(nil, 77),
			0x5455: {0x03, 0x01, 0x02, 0x03, 0x04},
		},
		Comment: "per-entry comment",
	}
	buf := d.Encode()

	if binary.LittleEndian.Uint32(buf[0:4]) != CentralDirectorySignature {
		t.Fatal("Encode() wrote wrong signature")
	}

	got, err := ReadCentralDirEntry(bytes.NewReader(buf[4:]))
	if err != nil {
		t.Fatalf("ReadCentralDirEntry() error = %v", err)
	}
	if got.Filename != d.Filename || got.Comment != d.Comment ||
		got.LocalHeaderOffset != d.LocalHeaderOffset ||
		got.CompressedSize != d.CompressedSize {
		t.Errorf("ReadCentralDirEntry() = %+v", got)
	}
	if !bytes.Equal(got.ExtraField[0x0001], d.ExtraField[0x0001]) {
		t.Errorf("zip64 extra = % x, want % x", got.ExtraField[0x0001], d.ExtraField[0x0001])
	}
	if !bytes.Equal(got.ExtraField[0x5455], d.ExtraField[0x5455]) {
		t.Errorf("timestamp extra = % x, want % x", got.ExtraField[0x5455], d.ExtraField[0x5455])
	}

	if _, err := ReadCentralDirEntry(bytes.NewReader(buf[4:20])); err == nil {
		t.Error("ReadCentralDirEntry() accepted truncated record")
	}
}

func TestEndOfCentralDir(t *testing.T) {
	buf := EncodeEndOfCentralDirRecord(3, 150, 700, "trailing comment")

	got, ok := DecodeEndOfCentralDir(buf)
	if !ok {
		t.Fatal("DecodeEndOfCentralDir() rejected encoded record")
	}
	if got.TotalNumberOfEntries != 3 || got.CentralDirSize != 150 ||
		got.CentralDirOffset != 700 || got.Comment != "trailing comment" {
		t.Errorf("DecodeEndOfCentralDir() = %+v", got)
	}

	t.Run("CommentTruncatedByBuffer", func(t *testing.T) {
		got, ok := DecodeEndOfCentralDir(buf[:EndOfCentralDirLen+4])
		if !ok {
			t.Fatal("DecodeEndOfCentralDir() rejected record with cut comment")
		}
		if got.Comment != "trai" {
			t.Errorf("Comment = %q, want %q", got.Comment, "trai")
		}
	})

	t.Run("ShortBuffer", func(t *testing.T) {
		if _, ok := DecodeEndOfCentralDir(buf[:21]); ok {
			t.Error("DecodeEndOfCentralDir() accepted short buffer")
		}
	})

	t.Run("BadSignature", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[3]++
		if _, ok := DecodeEndOfCentralDir(bad); ok {
			t.Error("DecodeEndOfCentralDir() accepted bad signature")
		}
	})
}

func TestZip64Records(t *testing.T) {
	rec := EncodeZip64EndOfCentralDirRecord(70000, 1<<33, 1<<34)
	got, ok := DecodeZip64EndOfCentralDir(rec)
	if !ok {
		t.Fatal("DecodeZip64EndOfCentralDir() rejected encoded record")
	}
	if got.TotalNumberOfEntries != 70000 || got.CentralDirSize != 1<<33 || got.CentralDirOffset != 1<<34 {
		t.Errorf("DecodeZip64EndOfCentralDir() = %+v", got)
	}

	loc := EncodeZip64EndOfCentralDirLocator(1 << 35)
	gotLoc, ok := DecodeZip64Locator(loc)
	if !ok {
		t.Fatal("DecodeZip64Locator() rejected encoded locator")
	}
	if gotLoc.Zip64EndOfCentralDirOffset != 1<<35 || gotLoc.TotalNumberOfDisks != 1 {
		t.Errorf("DecodeZip64Locator() = %+v", gotLoc)
	}

	if _, ok := DecodeZip64EndOfCentralDir(loc); ok {
		t.Error("DecodeZip64EndOfCentralDir() accepted a locator")
	}
	if _, ok := DecodeZip64Locator(rec); ok {
		t.Error("DecodeZip64Locator() accepted an end record")
	}
}

func TestParseExtraField(t *testing.T) {
	var raw []byte
	raw = binary.LittleEndian.AppendUint16(raw, 0x0001)
	raw = binary.LittleEndian.AppendUint16(raw, 8)
	raw = binary.LittleEndian.AppendUint64(raw, 42)
	// Truncated trailing field, dropped by the parser.
	raw = binary.LittleEndian.AppendUint16(raw, 0x9999)
	raw = binary.LittleEndian.AppendUint16(raw, 100)
	raw = append(raw, 0x01)

	m := parseExtraField(raw)
	if len(m) != 1 {
		t.Fatalf("parseExtraField() kept %d fields, want 1", len(m))
	}
	if binary.LittleEndian.Uint64(m[0x0001]) != 42 {
		t.Errorf("field 0x0001 = % x", m[0x0001])
	}
}
