// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
)

// Each record type must be identified using a header signature that identifies the record type.
// Signature values begin with the two byte constant marker of 0x4b50, representing the characters "PK".
const (
	CentralDirectorySignature            uint32 = 0x02014b50
	LocalFileHeaderSignature             uint32 = 0x04034b50
	EndOfCentralDirSignature             uint32 = 0x06054b50
	Zip64EndOfCentralDirSignature        uint32 = 0x06064b50
	Zip64EndOfCentralDirLocatorSignature uint32 = 0x07064b50
)

// Fixed record sizes, signature included.
const (
	LocalFileHeaderLen      = 30
	CentralDirectoryLen     = 46
	EndOfCentralDirLen      = 22
	Zip64EndOfCentralDirLen = 56
	Zip64LocatorLen         = 20

	// MaxCommentLen bounds the archive comment, whose length
	// field is 16 bits wide.
	MaxCommentLen = math.MaxUint16
)

// Zip64ExtraTag identifies the extra field carrying 64-bit size and
// offset values for entries that overflow their 32-bit header fields.
const Zip64ExtraTag uint16 = 0x0001

type LocalFileHeader struct {
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
	Filename               string
	ExtraField             []byte
}

// DecodeLocalFileHeader parses the fixed portion of a local file
// header. It reports false when buf is too short or does not start
// with the local file header signature. The filename and extra field
// follow the fixed portion and must be read by the caller.
func DecodeLocalFileHeader(buf []byte) (LocalFileHeader, bool) {
	if len(buf) < LocalFileHeaderLen {
		return LocalFileHeader{}, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != LocalFileHeaderSignature {
		return LocalFileHeader{}, false
	}
	return LocalFileHeader{
		VersionNeededToExtract: binary.LittleEndian.Uint16(buf[4:6]),
		GeneralPurposeBitFlag:  binary.LittleEndian.Uint16(buf[6:8]),
		CompressionMethod:      binary.LittleEndian.Uint16(buf[8:10]),
		LastModFileTime:        binary.LittleEndian.Uint16(buf[10:12]),
		LastModFileDate:        binary.LittleEndian.Uint16(buf[12:14]),
		CRC32:                  binary.LittleEndian.Uint32(buf[14:18]),
		CompressedSize:         binary.LittleEndian.Uint32(buf[18:22]),
		UncompressedSize:       binary.LittleEndian.Uint32(buf[22:26]),
		FilenameLength:         binary.LittleEndian.Uint16(buf[26:28]),
		ExtraFieldLength:       binary.LittleEndian.Uint16(buf[28:30]),
	}, true
}

func (h LocalFileHeader) Encode() []byte {
	// Fixed size (30 bytes) + variable filename length
	size := LocalFileHeaderLen + len(h.Filename) + len(h.ExtraField)
	buf := make([]byte, size)

	binary.LittleEndian.PutUint32(buf[0:4], LocalFileHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionNeededToExtract)
	binary.LittleEndian.PutUint16(buf[6:8], h.GeneralPurposeBitFlag)
	binary.LittleEndian.PutUint16(buf[8:10], h.CompressionMethod)
	binary.LittleEndian.PutUint16(buf[10:12], h.LastModFileTime)
	binary.LittleEndian.PutUint16(buf[12:14], h.LastModFileDate)
	binary.LittleEndian.PutUint32(buf[14:18], h.CRC32)
	binary.LittleEndian.PutUint32(buf[18:22], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[22:26], h.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(h.Filename)))
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(h.ExtraField)))

	copy(buf[30:], h.Filename)
	copy(buf[30+len(h.Filename):], h.ExtraField)

	return buf
}

type CentralDirectory struct {
	VersionMadeBy          uint16
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
	FileCommentLength      uint16
	DiskNumberStart        uint16
	InternalFileAttributes uint16
	ExternalFileAttributes uint32
	LocalHeaderOffset      uint32
	Filename               string
	ExtraField             map[uint16][]byte
	Comment                string
}

// ReadCentralDirEntry reads one central directory record from src. The
// caller has already consumed and verified the 4-byte signature.
func ReadCentralDirEntry(src io.Reader) (CentralDirectory, error) {
	var buf [42]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return CentralDirectory{}, fmt.Errorf("read source: %w", err)
	}

	entry := CentralDirectory{
		VersionMadeBy:          binary.LittleEndian.Uint16(buf[0:2]),
		VersionNeededToExtract: binary.LittleEndian.Uint16(buf[2:4]),
		GeneralPurposeBitFlag:  binary.LittleEndian.Uint16(buf[4:6]),
		CompressionMethod:      binary.LittleEndian.Uint16(buf[6:8]),
		LastModFileTime:        binary.LittleEndian.Uint16(buf[8:10]),
		LastModFileDate:        binary.LittleEndian.Uint16(buf[10:12]),
		CRC32:                  binary.LittleEndian.Uint32(buf[12:16]),
		CompressedSize:         binary.LittleEndian.Uint32(buf[16:20]),
		UncompressedSize:       binary.LittleEndian.Uint32(buf[20:24]),
		FilenameLength:         binary.LittleEndian.Uint16(buf[24:26]),
		ExtraFieldLength:       binary.LittleEndian.Uint16(buf[26:28]),
		FileCommentLength:      binary.LittleEndian.Uint16(buf[28:30]),
		DiskNumberStart:        binary.LittleEndian.Uint16(buf[30:32]),
		InternalFileAttributes: binary.LittleEndian.Uint16(buf[32:34]),
		ExternalFileAttributes: binary.LittleEndian.Uint32(buf[34:38]),
		LocalHeaderOffset:      binary.LittleEndian.Uint32(buf[38:42]),
	}

	if entry.FilenameLength > 0 {
		filename := make([]byte, entry.FilenameLength)
		if _, err := io.ReadFull(src, filename); err != nil {
			return CentralDirectory{}, fmt.Errorf("read filename: %w", err)
		}
		entry.Filename = string(filename)
	}

	if entry.ExtraFieldLength > 0 {
		extraField := make([]byte, entry.ExtraFieldLength)
		if _, err := io.ReadFull(src, extraField); err != nil {
			return CentralDirectory{}, fmt.Errorf("read extra field: %w", err)
		}
		entry.ExtraField = parseExtraField(extraField)
	}

	if entry.FileCommentLength > 0 {
		comment := make([]byte, entry.FileCommentLength)
		if _, err := io.ReadFull(src, comment); err != nil {
			return CentralDirectory{}, fmt.Errorf("read comment: %w", err)
		}
		entry.Comment = string(comment)
	}

	return entry, nil
}

func (d CentralDirectory) Encode() []byte {
	extra := encodeExtraField(d.ExtraField)
	totalSize := CentralDirectoryLen + len(d.Filename) + len(extra) + len(d.Comment)
	buf := make([]byte, totalSize)

	binary.LittleEndian.PutUint32(buf[0:4], CentralDirectorySignature)
	binary.LittleEndian.PutUint16(buf[4:6], d.VersionMadeBy)
	binary.LittleEndian.PutUint16(buf[6:8], d.VersionNeededToExtract)
	binary.LittleEndian.PutUint16(buf[8:10], d.GeneralPurposeBitFlag)
	binary.LittleEndian.PutUint16(buf[10:12], d.CompressionMethod)
	binary.LittleEndian.PutUint16(buf[12:14], d.LastModFileTime)
	binary.LittleEndian.PutUint16(buf[14:16], d.LastModFileDate)
	binary.LittleEndian.PutUint32(buf[16:20], d.CRC32)
	binary.LittleEndian.PutUint32(buf[20:24], d.CompressedSize)
	binary.LittleEndian.PutUint32(buf[24:28], d.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(d.Filename)))
	binary.LittleEndian.PutUint16(buf[30:32], uint16(len(extra)))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(len(d.Comment)))
	binary.LittleEndian.PutUint16(buf[34:36], d.DiskNumberStart)
	binary.LittleEndian.PutUint16(buf[36:38], d.InternalFileAttributes)
	binary.LittleEndian.PutUint32(buf[38:42], d.ExternalFileAttributes)
	binary.LittleEndian.PutUint32(buf[42:46], d.LocalHeaderOffset)

	offset := CentralDirectoryLen

	offset += copy(buf[offset:], d.Filename)
	offset += copy(buf[offset:], extra)
	copy(buf[offset:], d.Comment)

	return buf
}

type EndOfCentralDirectory struct {
	ThisDiskNum                     uint16
	DiskNumWithTheStartOfCentralDir uint16
	TotalNumberOfEntriesOnThisDisk  uint16
	TotalNumberOfEntries            uint16
	CentralDirSize                  uint32
	CentralDirOffset                uint32
	CommentLength                   uint16
	Comment                         string
}

// DecodeEndOfCentralDir parses an end of central directory record
// starting at buf[0]. It reports false when buf is too short or does
// not start with the record's signature. The comment is taken from the
// bytes following the record, truncated to what buf actually holds.
func DecodeEndOfCentralDir(buf []byte) (EndOfCentralDirectory, bool) {
	if len(buf) < EndOfCentralDirLen {
		return EndOfCentralDirectory{}, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != EndOfCentralDirSignature {
		return EndOfCentralDirectory{}, false
	}
	end := EndOfCentralDirectory{
		ThisDiskNum:                     binary.LittleEndian.Uint16(buf[4:6]),
		DiskNumWithTheStartOfCentralDir: binary.LittleEndian.Uint16(buf[6:8]),
		TotalNumberOfEntriesOnThisDisk:  binary.LittleEndian.Uint16(buf[8:10]),
		TotalNumberOfEntries:            binary.LittleEndian.Uint16(buf[10:12]),
		CentralDirSize:                  binary.LittleEndian.Uint32(buf[12:16]),
		CentralDirOffset:                binary.LittleEndian.Uint32(buf[16:20]),
		CommentLength:                   binary.LittleEndian.Uint16(buf[20:22]),
	}
	if end.CommentLength > 0 {
		commentEnd := min(len(buf), EndOfCentralDirLen+int(end.CommentLength))
		end.Comment = string(buf[EndOfCentralDirLen:commentEnd])
	}
	return end, true
}

func EncodeEndOfCentralDirRecord(entriesNum int, centralDirSize uint64, centralDirOffset uint64, comment string) []byte {
	commentLen := min(len(comment), math.MaxUint16)
	buf := make([]byte, EndOfCentralDirLen+commentLen)

	binary.LittleEndian.PutUint32(buf[0:4], EndOfCentralDirSignature)
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(min(math.MaxUint16, entriesNum)))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(min(math.MaxUint16, entriesNum)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(min(math.MaxUint32, centralDirSize)))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(min(math.MaxUint32, centralDirOffset)))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(commentLen))

	copy(buf[22:], comment[:commentLen])

	return buf
}

type Zip64EndOfCentralDirectory struct {
	Size                            uint64
	VersionMadeBy                   uint16
	VersionNeededToExtract          uint16
	ThisDiskNum                     uint32
	DiskNumWithTheStartOfCentralDir uint32
	TotalNumberOfEntriesOnThisDisk  uint64
	TotalNumberOfEntries            uint64
	CentralDirSize                  uint64
	CentralDirOffset                uint64
}

// DecodeZip64EndOfCentralDir parses a zip64 end of central directory
// record starting at buf[0], reporting false on a short buffer or a
// signature mismatch.
func DecodeZip64EndOfCentralDir(buf []byte) (Zip64EndOfCentralDirectory, bool) {
	if len(buf) < Zip64EndOfCentralDirLen {
		return Zip64EndOfCentralDirectory{}, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Zip64EndOfCentralDirSignature {
		return Zip64EndOfCentralDirectory{}, false
	}
	return Zip64EndOfCentralDirectory{
		Size:                            binary.LittleEndian.Uint64(buf[4:12]),
		VersionMadeBy:                   binary.LittleEndian.Uint16(buf[12:14]),
		VersionNeededToExtract:          binary.LittleEndian.Uint16(buf[14:16]),
		ThisDiskNum:                     binary.LittleEndian.Uint32(buf[16:20]),
		DiskNumWithTheStartOfCentralDir: binary.LittleEndian.Uint32(buf[20:24]),
		TotalNumberOfEntriesOnThisDisk:  binary.LittleEndian.Uint64(buf[24:32]),
		TotalNumberOfEntries:            binary.LittleEndian.Uint64(buf[32:40]),
		CentralDirSize:                  binary.LittleEndian.Uint64(buf[40:48]),
		CentralDirOffset:                binary.LittleEndian.Uint64(buf[48:56]),
	}, true
}

func EncodeZip64EndOfCentralDirRecord(entriesNum uint64, centralDirSize uint64, centralDirOffset uint64) []byte {
	buf := make([]byte, Zip64EndOfCentralDirLen)

	binary.LittleEndian.PutUint32(buf[0:4], Zip64EndOfCentralDirSignature)
	binary.LittleEndian.PutUint64(buf[4:12], 44)
	binary.LittleEndian.PutUint16(buf[12:14], 45)
	binary.LittleEndian.PutUint16(buf[14:16], 45)
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	binary.LittleEndian.PutUint64(buf[24:32], entriesNum)
	binary.LittleEndian.PutUint64(buf[32:40], entriesNum)
	binary.LittleEndian.PutUint64(buf[40:48], centralDirSize)
	binary.LittleEndian.PutUint64(buf[48:56], centralDirOffset)

	return buf
}

type Zip64EndOfCentralDirectoryLocator struct {
	EndOfCentralDirStartDiskNum uint32
	Zip64EndOfCentralDirOffset  uint64
	TotalNumberOfDisks          uint32
}

// DecodeZip64Locator parses a zip64 end of central directory locator
// starting at buf[0], reporting false on a short buffer or a signature
// mismatch.
func DecodeZip64Locator(buf []byte) (Zip64EndOfCentralDirectoryLocator, bool) {
	if len(buf) < Zip64LocatorLen {
		return Zip64EndOfCentralDirectoryLocator{}, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Zip64EndOfCentralDirLocatorSignature {
		return Zip64EndOfCentralDirectoryLocator{}, false
	}
	return Zip64EndOfCentralDirectoryLocator{
		EndOfCentralDirStartDiskNum: binary.LittleEndian.Uint32(buf[4:8]),
		Zip64EndOfCentralDirOffset:  binary.LittleEndian.Uint64(buf[8:16]),
		TotalNumberOfDisks:          binary.LittleEndian.Uint32(buf[16:20]),
	}, true
}

func EncodeZip64EndOfCentralDirLocator(endOfCentralDirOffset uint64) []byte {
	buf := make([]byte, Zip64LocatorLen)

	binary.LittleEndian.PutUint32(buf[0:4], Zip64EndOfCentralDirLocatorSignature)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint64(buf[8:16], endOfCentralDirOffset)
	binary.LittleEndian.PutUint32(buf[16:20], 1)

	return buf
}

// encodeExtraField serializes extra fields in ascending tag order for
// deterministic writes. Map values hold the data portion only; the tag
// and length header is emitted here.
func encodeExtraField(extraField map[uint16][]byte) []byte {
	if len(extraField) == 0 {
		return nil
	}
	keys := make([]uint16, 0, len(extraField))
	for key := range extraField {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var buf []byte
	for _, key := range keys {
		data := extraField[key]
		buf = binary.LittleEndian.AppendUint16(buf, key)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(data)))
		buf = append(buf, data...)
	}
	return buf
}

// parseExtraField converts raw extra field bytes into a map keyed by
// tag IDs. Values hold the data portion only, header stripped.
func parseExtraField(extraField []byte) map[uint16][]byte {
	m := make(map[uint16][]byte)

	for offset := 0; offset < len(extraField); {
		if offset+4 > len(extraField) {
			break
		}

		tag := binary.LittleEndian.Uint16(extraField[offset : offset+2])
		size := int(binary.LittleEndian.Uint16(extraField[offset+2 : offset+4]))

		offset += 4
		if offset+size > len(extraField) {
			break
		}

		m[tag] = extraField[offset : offset+size]
		offset += size
	}
	return m
}
