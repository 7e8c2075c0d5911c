package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/marmos91/ferry/pkg/transfer"
	"github.com/marmos91/ferry/pkg/wire"
)

const (
	methodGetFiles              = "/file.FileService/GetFiles"
	methodCreateFilePart        = "/file.FileService/CreateFilePart"
	methodDeleteFileFromStorage = "/file.FileService/DeleteFileFromStorage"
)

// FileClient talks to file.FileService. It implements transfer.PartCatalog.
type FileClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewFileClient creates a FileClient on conn.
func NewFileClient(conn grpc.ClientConnInterface, timeout time.Duration) *FileClient {
	return &FileClient{conn: conn, timeout: timeout}
}

// FileExists looks the file up by id with a limit of one.
func (c *FileClient) FileExists(ctx context.Context, taskID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := &wire.GetFilesRequest{Filter: &wire.FileFilter{ID: taskID}, Limit: 1}
	var resp wire.GetFilesResponse
	if err := c.conn.Invoke(ctx, methodGetFiles, req, &resp); err != nil {
		return false, classify("GetFiles", err)
	}
	return len(resp.Files) > 0, nil
}

// CreatePart records part under the file taskID.
func (c *FileClient) CreatePart(ctx context.Context, taskID string, part transfer.StoredPart) (bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := &wire.CreateFilePartRequest{
		ID: taskID,
		Part: &wire.FilePart{
			ID:     part.PartID,
			Name:   part.LogicalName,
			Offset: wire.FormatUint(part.Offset),
			Size:   wire.FormatUint(part.Size),
			Owner:  part.OwnerID,
		},
	}
	var resp wire.BoolResponse
	if err := c.conn.Invoke(ctx, methodCreateFilePart, req, &resp); err != nil {
		return false, classify("CreateFilePart", err)
	}
	return resp.OK, nil
}

// DeletePart removes the part from storage and the catalog.
func (c *FileClient) DeletePart(ctx context.Context, part transfer.StoredPart) (bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := &wire.DeleteFileFromStorageRequest{
		ID:     part.PartID,
		Name:   part.LogicalName,
		Offset: wire.FormatUint(part.Offset),
		Owner:  part.OwnerID,
		Size:   wire.FormatUint(part.Size),
	}
	var resp wire.BoolResponse
	if err := c.conn.Invoke(ctx, methodDeleteFileFromStorage, req, &resp); err != nil {
		return false, classify("DeleteFileFromStorage", err)
	}
	return resp.OK, nil
}

var (
	_ transfer.PartCatalog         = (*FileClient)(nil)
	_ transfer.CapacityAllocator   = (*AccountClient)(nil)
	_ transfer.DestinationUploader = (*AccountClient)(nil)
)
