// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import (
	"fmt"
	"io"
)

const (
	// minReadSize is the smallest fetch made against the underlying
	// source, so that tiny reads do not translate into tiny I/O.
	minReadSize = 4096

	// maxSeekRead caps how much data a single forward-seek step will
	// pull through the buffer while discarding.
	maxSeekRead = 1 << 24

	// maxPeek caps how many bytes Peek returns.
	maxPeek = 512
)

// Reader streams one stored entry's data. It satisfies io.Reader,
// io.Seeker and io.Closer.
//
// Reads go through an internal buffer refilled from the shared source,
// so a Reader tolerates other readers of the same archive being used
// between its calls. Seeking backward rewinds to the start of the
// entry data and re-reads forward, so backward seeks on large entries
// are linear in the distance from the start.
type Reader struct {
	entry    *Entry
	src      *fileView
	start    int64 // position of the entry's data in the source
	size     int64 // declared uncompressed size, the length readers see
	left     int64 // bytes not yet delivered to the caller
	compLeft int64 // physical bytes not yet fetched from the source
	buf      []byte
	off      int // consumed prefix of buf
	closed   bool
}

// Entry returns the directory entry this reader was opened from.
func (r *Reader) Entry() *Entry { return r.entry }

// Size returns the entry's declared uncompressed length in bytes. This
// is the length Read honors even when the directory records more
// physical bytes for the entry.
func (r *Reader) Size() int64 { return r.size }

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if r.off >= len(r.buf) {
		if r.left <= 0 || r.compLeft <= 0 {
			return 0, io.EOF
		}
		if err := r.fill(len(p)); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf[r.off:])
	r.off += n
	return n, nil
}

// fill replaces the buffer with the next chunk of entry data, sized to
// the caller's appetite but never below minReadSize nor beyond the
// physical bytes the entry has left. The fetched chunk is then cut to
// the bytes still owed, so a directory that declares more physical
// bytes than uncompressed ones cannot make the entry read long.
func (r *Reader) fill(want int) error {
	n := min(r.compLeft, int64(max(want, minReadSize)))
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return fmt.Errorf("%w: truncated data of %q: %v", ErrFormat, r.entry.Name, err)
	}
	r.compLeft -= n
	if int64(len(buf)) > r.left {
		buf = buf[:r.left]
	}
	r.buf, r.off = buf, 0
	r.left -= int64(len(buf))
	return nil
}

// pos returns the current logical position within the entry data.
func (r *Reader) pos() int64 {
	fetched := r.size - r.left
	return fetched - int64(len(r.buf)-r.off)
}

// Seek repositions the reader within the entry data. Positions are
// clamped to [0, Size]; seeking never fails with an out-of-range
// error. A target inside the current buffer is a pointer move, a
// target ahead discards intervening data in bounded steps, and a
// target behind the buffer rewinds to the entry start and discards
// forward from there.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrClosed
	}

	curr := r.pos()
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = curr + offset
	case io.SeekEnd:
		target = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	target = max(0, min(target, r.size))

	bufStart := curr - int64(r.off)
	if bufStart <= target && target <= bufStart+int64(len(r.buf)) {
		r.off = int(target - bufStart)
		return target, nil
	}

	if target < curr {
		if err := r.rewind(); err != nil {
			return 0, err
		}
		curr = 0
	}

	for toSkip := target - curr; toSkip > 0; {
		step := min(toSkip, int64(maxSeekRead))
		if _, err := io.CopyN(io.Discard, r, step); err != nil {
			return 0, err
		}
		toSkip -= step
	}
	return target, nil
}

// rewind resets the reader to the start of the entry data. There is no
// cheaper way back: a backward seek replays the entry from here, which
// makes it as expensive as a fresh open.
func (r *Reader) rewind() error {
	if _, err := r.src.Seek(r.start, io.SeekStart); err != nil {
		return err
	}
	r.left = r.size
	r.compLeft = r.entry.CompressedSize
	r.buf, r.off = nil, 0
	return nil
}

// Peek returns the next bytes of entry data without advancing the
// reader, at most maxPeek of them and fewer near the end of the entry.
// The returned slice aliases the internal buffer and is valid until
// the next Read or Seek.
func (r *Reader) Peek(n int) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if n > len(r.buf)-r.off {
		chunk, err := r.readUpTo(n)
		if err != nil {
			return nil, err
		}
		if len(chunk) > r.off {
			r.buf = append(chunk, r.buf[r.off:]...)
			r.off = 0
		} else {
			r.off -= len(chunk)
		}
	}
	return r.buf[r.off:min(r.off+maxPeek, len(r.buf))], nil
}

// readUpTo reads at most n bytes, stopping early only at the end of
// the entry data.
func (r *Reader) readUpTo(n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		p := make([]byte, n-len(buf))
		m, err := r.Read(p)
		buf = append(buf, p[:m]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Close releases the reader's hold on the archive source. Closing an
// already closed reader is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.buf = nil
	return r.src.Close()
}
