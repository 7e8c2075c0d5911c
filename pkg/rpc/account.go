package rpc

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
	"github.com/marmos91/ferry/pkg/transfer"
	"github.com/marmos91/ferry/pkg/wire"
)

const (
	methodPickBySize   = "/account.AccountService/PickBySize"
	methodIncreaseSize = "/account.AccountService/IncreaseSize"
	methodUpload       = "/account.AccountService/Upload"

	// AccountMetadataKey carries the destination account of an Upload stream.
	AccountMetadataKey = "account"
)

var uploadStreamDesc = grpc.StreamDesc{
	StreamName:    "Upload",
	ClientStreams: true,
}

// AccountClient talks to account.AccountService. It implements
// transfer.CapacityAllocator and transfer.DestinationUploader.
type AccountClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewAccountClient creates an AccountClient on conn. timeout bounds unary
// calls; Upload streams are bounded only by their context.
func NewAccountClient(conn grpc.ClientConnInterface, timeout time.Duration) *AccountClient {
	return &AccountClient{conn: conn, timeout: timeout}
}

// Reserve picks an account with room for size bytes.
func (c *AccountClient) Reserve(ctx context.Context, size uint64) (transfer.Account, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var resp wire.Account
	if err := c.conn.Invoke(ctx, methodPickBySize, &wire.SizeRequest{Value: wire.FormatUint(size)}, &resp); err != nil {
		return transfer.Account{}, classify("PickBySize", err)
	}
	if resp.ID == "" {
		return transfer.Account{}, errors.New("PickBySize: empty account id")
	}

	free, err := wire.ParseUint("free", resp.Free)
	if err != nil {
		// free capacity is informational only
		logger.Debug("Ignoring unparsable free capacity", logger.KeyAccountID, resp.ID, logger.KeyError, err)
	}
	return transfer.Account{ID: resp.ID, FreeCapacity: free}, nil
}

// Release returns size bytes to accountID.
func (c *AccountClient) Release(ctx context.Context, accountID string, size uint64) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := &wire.IncreaseSizeRequest{ID: accountID, Size: wire.FormatUint(size)}
	if err := c.conn.Invoke(ctx, methodIncreaseSize, req, &wire.Empty{}); err != nil {
		return classify("IncreaseSize", err)
	}
	return nil
}

// Upload streams chunks to the destination under accountID. The stream is
// closed and the result read only once chunks is closed with ctx still
// live; otherwise the RPC is cancelled and the server discards the write.
func (c *AccountClient) Upload(ctx context.Context, accountID string, size uint64, chunks <-chan []byte) (transfer.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return transfer.UploadResult{}, err
	}

	ctx, span := telemetry.StartClientSpan(ctx, telemetry.SpanUpload,
		telemetry.AccountID(accountID), telemetry.Size(size))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx = metadata.AppendToOutgoingContext(ctx, AccountMetadataKey, accountID)
	stream, err := c.conn.NewStream(ctx, &uploadStreamDesc, methodUpload)
	if err != nil {
		return transfer.UploadResult{}, classify("Upload", err)
	}

	var resp wire.UploadResponse
	for {
		select {
		case <-ctx.Done():
			return transfer.UploadResult{}, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return transfer.UploadResult{}, err
				}
				if err := stream.CloseSend(); err != nil {
					return transfer.UploadResult{}, classify("Upload", err)
				}
				if err := stream.RecvMsg(&resp); err != nil {
					return transfer.UploadResult{}, classify("Upload", err)
				}
				if resp.Value == "" {
					return transfer.UploadResult{}, errors.New("Upload: empty part id")
				}
				return transfer.UploadResult{PartID: resp.Value, CanonicalName: resp.Name}, nil
			}

			if err := stream.SendMsg(&wire.UploadRequest{Buffer: chunk}); err != nil {
				if errors.Is(err, io.EOF) {
					// the server ended the stream; its status is on RecvMsg
					err = stream.RecvMsg(&resp)
					if err == nil {
						err = errors.New("server closed stream early")
					}
				}
				telemetry.RecordError(ctx, err)
				return transfer.UploadResult{}, classify("Upload", err)
			}
		}
	}
}
