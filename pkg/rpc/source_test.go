package rpc

import (
	"bytes"
	"context"
	"io"
)

type staticSource struct {
	data []byte
}

func (s *staticSource) Open(_ context.Context, _ string, offset, size uint64) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data[offset : offset+size])), nil
}

func (s *staticSource) Cleanup(context.Context, string) error { return nil }
