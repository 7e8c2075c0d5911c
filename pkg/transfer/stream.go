package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// StreamConfig bounds the memory one transfer may hold.
type StreamConfig struct {
	// ChunkSize is the largest chunk handed to the uploader.
	ChunkSize int

	// BufferChunks is how many chunks may wait between the source reader and
	// the uploader. Zero makes every hand-off synchronous.
	BufferChunks int
}

const DefaultChunkSize = 64 * 1024

// errUndrained is reported when the uploader returned success before
// receiving the whole part.
var errUndrained = errors.New("destination returned before consuming the part")

func (c StreamConfig) withDefaults() StreamConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.BufferChunks < 0 {
		c.BufferChunks = 0
	}
	return c
}

// pump forwards exactly size bytes of src to up through a bounded channel.
// The reader blocks whenever the channel is full, so the uploader sets the
// pace. A read failure cancels the upload context before the channel is
// closed, which tells the uploader to abandon the write.
//
// Source failures come back wrapped in *sourceError so the caller can tell
// them apart from destination failures.
func pump(ctx context.Context, cfg StreamConfig, src io.Reader, size uint64, accountID string, up DestinationUploader) (UploadResult, uint64, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan []byte, cfg.BufferChunks)

	// unblock a reader stuck in a source read once the transfer is over
	if c, ok := src.(io.Closer); ok {
		stop := context.AfterFunc(gctx, func() { _ = c.Close() })
		defer stop()
	}

	var (
		sent   atomic.Uint64
		srcErr error
		result UploadResult
	)

	g.Go(func() error {
		defer close(chunks)

		remaining := size
		for remaining > 0 {
			n := uint64(cfg.ChunkSize)
			if remaining < n {
				n = remaining
			}
			buf := make([]byte, n)
			read, err := io.ReadFull(src, buf)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				if gctx.Err() != nil {
					// the uploader failed first; its error decides the outcome
					return context.Cause(gctx)
				}
				srcErr = &sourceError{err: fmt.Errorf("read at %d of %d bytes: %w", size-remaining+uint64(read), size, err)}
				cancel(srcErr)
				return srcErr
			}

			select {
			case chunks <- buf:
				sent.Add(n)
				remaining -= n
			case <-gctx.Done():
				return context.Cause(gctx)
			}
		}
		return nil
	})

	g.Go(func() error {
		var err error
		result, err = up.Upload(gctx, accountID, size, chunks)
		if err == nil {
			// releases a reader still waiting on an uploader that returned
			// without draining chunks
			cancel(errUndrained)
		}
		return err
	})

	err := g.Wait()
	if srcErr != nil {
		return UploadResult{}, sent.Load(), srcErr
	}
	if err != nil {
		return UploadResult{}, sent.Load(), err
	}
	return result, sent.Load(), nil
}

// isSourceError reports whether err came from the source side of pump.
func isSourceError(err error) bool {
	var se *sourceError
	return errors.As(err, &se)
}
