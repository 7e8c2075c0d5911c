// Package rpc implements the gRPC clients for the account and file services.
// Both services are reached over one connection, with messages from package
// wire carried by its codec.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/marmos91/ferry/pkg/transfer"
	"github.com/marmos91/ferry/pkg/wire"
)

// Config holds connection settings for the file service.
type Config struct {
	// Address is the gRPC target, e.g. "file-ms:50051".
	Address string

	// Timeout bounds each unary call. Zero disables the per-call deadline.
	Timeout time.Duration

	// KeepAlive is the interval of client keepalive pings. Zero disables them.
	KeepAlive time.Duration
}

// Dial creates a lazily connecting client for cfg.Address.
func Dial(cfg Config, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if cfg.Address == "" {
		return nil, errors.New("file service address is required")
	}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wire.Codec{})),
	}
	if cfg.KeepAlive > 0 {
		base = append(base, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepAlive,
			PermitWithoutStream: true,
		}))
	}

	conn, err := grpc.NewClient(cfg.Address, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Address, err)
	}
	return conn, nil
}

// classify maps a gRPC status onto the transfer error classes, keeping the
// original status reachable through errors.As.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %w", op, transfer.ErrNotFound, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%s: %w: %w", op, transfer.ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
