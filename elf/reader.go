package elf

import (
	"fmt"
	"io"
)

// reader performs bounds checked, exact-length reads against a seekable
// source.  Ranges are validated against the source size before any buffer
// is allocated, so corrupted size fields cannot trigger huge allocations.
type reader struct {
	source io.ReadSeeker
	size   uint64
}

func newReader(source io.ReadSeeker) (*reader, error) {
	end, err := source.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to determine file size: %w", err)
	}

	return &reader{
		source: source,
		size:   uint64(end),
	}, nil
}

// inBounds reports whether [offset, offset+size) lies within the source.
func (r *reader) inBounds(offset uint64, size uint64) bool {
	return offset <= r.size && size <= r.size-offset
}

func (r *reader) readAt(offset uint64, size uint64) ([]byte, error) {
	if !r.inBounds(offset, size) {
		return nil, fmt.Errorf(
			"out of bound read [%d:%d+%d] (file size %d): %w",
			offset,
			offset,
			size,
			r.size,
			io.ErrUnexpectedEOF)
	}

	_, err := r.source.Seek(int64(offset), io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to seek to %d: %w", offset, err)
	}

	content := make([]byte, size)
	n, err := io.ReadFull(r.source, content)
	if err != nil {
		return nil, fmt.Errorf(
			"short read (%d of %d bytes at %d): %w",
			n,
			size,
			offset,
			err)
	}

	return content, nil
}
