// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipseek

import (
	"fmt"
	"io"
)

// sharedFile multiplexes one seekable source between the archive and
// any number of open entry readers. The archive holds the initial
// reference; each view taken with open adds one, and the source is
// closed only when the last reference is released, and only if the
// archive opened it itself.
//
// Nothing here locks. Views cooperate by re-seeking the source before
// every read, so interleaved use from a single goroutine is safe;
// concurrent use is not.
type sharedFile struct {
	src   io.ReadSeeker
	refs  int
	owned bool
}

func newSharedFile(src io.ReadSeeker, owned bool) *sharedFile {
	return &sharedFile{src: src, refs: 1, owned: owned}
}

// open returns a new view positioned at pos and takes a reference.
func (f *sharedFile) open(pos int64) *fileView {
	f.refs++
	return &fileView{shared: f, pos: pos}
}

// release drops one reference. Releasing the last reference closes the
// underlying source when the archive owns it.
func (f *sharedFile) release() error {
	if f.refs <= 0 {
		return fmt.Errorf("%w: release of unreferenced source", ErrClosed)
	}
	f.refs--
	if f.refs > 0 || !f.owned {
		return nil
	}
	if c, ok := f.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// fileView is one consumer's window onto a sharedFile. It keeps its
// own cursor and moves the source there before every read, so views
// never disturb each other between calls.
type fileView struct {
	shared *sharedFile
	pos    int64
	closed bool
}

func (v *fileView) Read(p []byte) (int, error) {
	if v.closed {
		return 0, ErrClosed
	}
	if _, err := v.shared.src.Seek(v.pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek source: %w", err)
	}
	n, err := v.shared.src.Read(p)
	v.pos += int64(n)
	return n, err
}

func (v *fileView) Seek(offset int64, whence int) (int64, error) {
	if v.closed {
		return 0, ErrClosed
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += v.pos
	case io.SeekEnd:
		end, err := v.shared.src.Seek(offset, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("seek source: %w", err)
		}
		v.pos = end
		return end, nil
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative position %d", offset)
	}
	v.pos = offset
	return offset, nil
}

// Close releases the view's reference. Closing twice is a no-op.
func (v *fileView) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	return v.shared.release()
}
