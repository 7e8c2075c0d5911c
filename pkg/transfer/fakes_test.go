package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var errNetwork = fmt.Errorf("connection reset: %w", ErrTransient)

// ============================================================================
// Catalog
// ============================================================================

type fakeCatalog struct {
	mu sync.Mutex

	exists    bool
	existsErr error
	createOK  bool
	createErr error
	deleteOK  bool
	deleteErr error

	livenessChecks int
	parts          map[string]StoredPart
	deleted        []StoredPart
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{exists: true, createOK: true, deleteOK: true, parts: map[string]StoredPart{}}
}

func (c *fakeCatalog) FileExists(_ context.Context, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessChecks++
	return c.exists, c.existsErr
}

func (c *fakeCatalog) CreatePart(_ context.Context, _ string, part StoredPart) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return false, c.createErr
	}
	if c.createOK {
		c.parts[part.PartID] = part
	}
	return c.createOK, nil
}

func (c *fakeCatalog) DeletePart(_ context.Context, part StoredPart) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, part)
	if c.deleteErr != nil {
		return false, c.deleteErr
	}
	if c.deleteOK {
		delete(c.parts, part.PartID)
	}
	return c.deleteOK, nil
}

// ============================================================================
// Allocator
// ============================================================================

type release struct {
	account string
	size    uint64
}

type fakeAllocator struct {
	mu         sync.Mutex
	reserveErr error
	releaseErr error
	reserved   []uint64
	releases   []release
}

func (a *fakeAllocator) Reserve(_ context.Context, size uint64) (Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reserveErr != nil {
		return Account{}, a.reserveErr
	}
	a.reserved = append(a.reserved, size)
	return Account{ID: "acc-1", FreeCapacity: 1 << 30}, nil
}

func (a *fakeAllocator) Release(_ context.Context, accountID string, size uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releases = append(a.releases, release{accountID, size})
	return a.releaseErr
}

// ============================================================================
// Source
// ============================================================================

type fakeSource struct {
	mu sync.Mutex

	data       []byte
	openErr    error
	failAt     int // inject readErr once this many bytes were served; <0 disables
	readErr    error
	truncate   int // serve only this many bytes; <0 disables
	cleanupErr error

	opened  int
	cleaned []string
}

func newFakeSource(data []byte) *fakeSource {
	return &fakeSource{data: data, failAt: -1, truncate: -1}
}

func (s *fakeSource) Open(_ context.Context, _ string, offset, size uint64) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	if s.openErr != nil {
		return nil, s.openErr
	}
	end := offset + size
	if end > uint64(len(s.data)) {
		end = uint64(len(s.data))
	}
	data := s.data[offset:end]
	if s.truncate >= 0 && s.truncate < len(data) {
		data = data[:s.truncate]
	}
	return &failingReader{r: bytes.NewReader(data), failAt: s.failAt, err: s.readErr}, nil
}

func (s *fakeSource) Cleanup(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleaned = append(s.cleaned, taskID)
	return s.cleanupErr
}

type failingReader struct {
	r      io.Reader
	served int
	failAt int
	err    error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.failAt >= 0 {
		if f.served >= f.failAt {
			return 0, f.err
		}
		if room := f.failAt - f.served; len(p) > room {
			p = p[:room]
		}
	}
	n, err := f.r.Read(p)
	f.served += n
	return n, err
}

func (f *failingReader) Close() error { return nil }

// ============================================================================
// Destination
// ============================================================================

type fakeDestination struct {
	mu sync.Mutex

	failAfter int // fail once this many bytes were received; <0 disables
	failErr   error
	onChunk   func(received int)

	objects   map[string][]byte
	abandoned int
	seq       int
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{failAfter: -1, objects: map[string][]byte{}}
}

func (d *fakeDestination) Upload(ctx context.Context, accountID string, _ uint64, chunks <-chan []byte) (UploadResult, error) {
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			d.abandon()
			return UploadResult{}, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if ctx.Err() != nil {
					d.abandon()
					return UploadResult{}, ctx.Err()
				}
				return d.commit(accountID, buf.Bytes()), nil
			}
			buf.Write(chunk)
			if d.onChunk != nil {
				d.onChunk(buf.Len())
			}
			if d.failAfter >= 0 && buf.Len() >= d.failAfter {
				d.abandon()
				return UploadResult{}, d.failErr
			}
		}
	}
}

func (d *fakeDestination) commit(accountID string, data []byte) UploadResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	id := fmt.Sprintf("part-%d", d.seq)
	d.objects[id] = append([]byte(nil), data...)
	return UploadResult{PartID: id, CanonicalName: accountID + "/" + id}
}

func (d *fakeDestination) abandon() {
	d.mu.Lock()
	d.abandoned++
	d.mu.Unlock()
}

// catalogBackedDestination removes objects when the catalog deletes their
// part, so tests can check that catalog and destination agree.
type catalogBackedDestination struct {
	*fakeCatalog
	dest *fakeDestination
}

func (c *catalogBackedDestination) DeletePart(ctx context.Context, part StoredPart) (bool, error) {
	ok, err := c.fakeCatalog.DeletePart(ctx, part)
	if err == nil && ok {
		c.dest.mu.Lock()
		delete(c.dest.objects, part.PartID)
		c.dest.mu.Unlock()
	}
	return ok, err
}

// ============================================================================
// Helpers
// ============================================================================

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

var errBoom = errors.New("boom")
