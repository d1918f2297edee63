// Package fsstore is the default embedded KVStore backend: an append-only
// segment file with an in-memory digest index rebuilt at open. No pure-Go
// embedded ordered-store library was available to ground this on, so it is
// hand-rolled against the standard library only (see DESIGN.md).
package fsstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/kvstore"
)

// record layout on disk: [32-byte digest][4-byte big-endian length][value bytes]
const digestLen = 32

// Backend is a single append-only file holding every Put as a record; Get
// is served from an in-memory offset index built by scanning the file once
// at Open.
type Backend struct {
	mu    sync.Mutex
	file  *os.File
	index map[kvstore.Digest]int64 // digest -> record start offset
}

// Open opens (creating if absent) the segment file at path and rebuilds the
// digest index by scanning it front to back; later records for the same
// digest shadow earlier ones, so a key's most recent Put always wins.
func Open(path string) (*Backend, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "open fsstore", err)
	}
	b := &Backend{file: f, index: make(map[kvstore.Digest]int64)}
	if err := b.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) rebuildIndex() error {
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "seek fsstore", err)
	}
	r := bufio.NewReader(b.file)
	var offset int64
	for {
		start := offset
		var digest kvstore.Digest
		if _, err := io.ReadFull(r, digest[:]); err != nil {
			if err == io.EOF {
				break
			}
			return domain.Wrap(domain.KindBackendFailure, "rebuild index", err)
		}
		offset += digestLen

		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return domain.Wrap(domain.KindBackendFailure, "rebuild index", err)
		}
		offset += 4
		n := binary.BigEndian.Uint32(lenBuf[:])

		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return domain.Wrap(domain.KindBackendFailure, "rebuild index", err)
		}
		offset += int64(n)

		b.index[digest] = start
	}
	return nil
}

// Get returns the value last written at digest, or domain.ErrNotFound.
func (b *Backend) Get(ctx context.Context, digest kvstore.Digest) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, ok := b.index[digest]
	if !ok {
		return nil, domain.Wrap(domain.KindNotFound, "digest absent", nil)
	}

	if _, err := b.file.Seek(start+digestLen, io.SeekStart); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "seek record", err)
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(b.file, lenBuf[:]); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "read record length", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	value := make([]byte, n)
	if _, err := io.ReadFull(b.file, value); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "read record value", err)
	}
	return value, nil
}

// Put appends a new record and updates the index; it never rewrites
// earlier records, trading disk space for a crash-safe append-only format.
func (b *Backend) Put(ctx context.Context, digest kvstore.Digest, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset, err := b.file.Seek(0, io.SeekEnd)
	if err != nil {
		return domain.Wrap(domain.KindBackendFailure, "seek end", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))

	w := bufio.NewWriter(b.file)
	if _, err := w.Write(digest[:]); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "write digest", err)
	}
	if _, err := w.Write(lenBuf[:]); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "write length", err)
	}
	if _, err := w.Write(value); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "write value", err)
	}
	if err := w.Flush(); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "flush", err)
	}
	if err := b.file.Sync(); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "sync", err)
	}

	b.index[digest] = offset
	return nil
}

// Close releases the underlying file handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
