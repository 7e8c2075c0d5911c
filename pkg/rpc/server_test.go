package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/marmos91/ferry/pkg/wire"
)

// fakeFileService serves account.AccountService and file.FileService in
// process. Tests switch failures on through its fields.
type fakeFileService struct {
	mu sync.Mutex

	pickErr     error
	increaseErr error
	uploadErr   error // returned after the first chunk
	getFilesErr error
	createOK    bool
	deleteOK    bool
	knownFiles  map[string]bool

	picked     []string
	increased  []wire.IncreaseSizeRequest
	uploads    map[string][]byte
	uploadAcct []string
	created    []wire.CreateFilePartRequest
	deleted    []wire.DeleteFileFromStorageRequest
	seq        int
}

func newFakeFileService() *fakeFileService {
	return &fakeFileService{
		createOK:   true,
		deleteOK:   true,
		knownFiles: map[string]bool{},
		uploads:    map[string][]byte{},
	}
}

func unary[Req any, PReq interface {
	*Req
	wire.Message
}](fn func(*fakeFileService, context.Context, PReq) (wire.Message, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		req := PReq(new(Req))
		if err := dec(req); err != nil {
			return nil, err
		}
		return fn(srv.(*fakeFileService), ctx, req)
	}
}

var accountServiceDesc = grpc.ServiceDesc{
	ServiceName: "account.AccountService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PickBySize", Handler: unary(func(s *fakeFileService, _ context.Context, req *wire.SizeRequest) (wire.Message, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.pickErr != nil {
				return nil, s.pickErr
			}
			s.picked = append(s.picked, req.Value)
			return &wire.Account{ID: "acc-1", Free: "5000"}, nil
		})},
		{MethodName: "IncreaseSize", Handler: unary(func(s *fakeFileService, _ context.Context, req *wire.IncreaseSizeRequest) (wire.Message, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.increaseErr != nil {
				return nil, s.increaseErr
			}
			s.increased = append(s.increased, *req)
			return &wire.Empty{}, nil
		})},
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Upload",
		ClientStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			s := srv.(*fakeFileService)
			md, _ := metadata.FromIncomingContext(stream.Context())
			account := md.Get(AccountMetadataKey)

			var data []byte
			for {
				var req wire.UploadRequest
				err := stream.RecvMsg(&req)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				data = append(data, req.Buffer...)
				if s.uploadErr != nil {
					return s.uploadErr
				}
			}

			s.mu.Lock()
			s.seq++
			id := fmt.Sprintf("part-%d", s.seq)
			s.uploads[id] = data
			s.uploadAcct = append(s.uploadAcct, account...)
			s.mu.Unlock()
			return stream.SendMsg(&wire.UploadResponse{Value: id, Name: "blobs/" + id})
		},
	}},
}

var fileServiceDesc = grpc.ServiceDesc{
	ServiceName: "file.FileService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFiles", Handler: unary(func(s *fakeFileService, _ context.Context, req *wire.GetFilesRequest) (wire.Message, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.getFilesErr != nil {
				return nil, s.getFilesErr
			}
			resp := &wire.GetFilesResponse{}
			if req.Filter != nil && s.knownFiles[req.Filter.ID] && req.Limit >= 1 {
				resp.Files = append(resp.Files, wire.File{ID: req.Filter.ID})
			}
			return resp, nil
		})},
		{MethodName: "CreateFilePart", Handler: unary(func(s *fakeFileService, _ context.Context, req *wire.CreateFilePartRequest) (wire.Message, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.created = append(s.created, *req)
			return &wire.BoolResponse{OK: s.createOK}, nil
		})},
		{MethodName: "DeleteFileFromStorage", Handler: unary(func(s *fakeFileService, _ context.Context, req *wire.DeleteFileFromStorageRequest) (wire.Message, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.deleted = append(s.deleted, *req)
			return &wire.BoolResponse{OK: s.deleteOK}, nil
		})},
	},
}

// startFakeServer serves svc over an in-memory listener and returns a client
// connection configured like production.
func startFakeServer(t *testing.T, svc *fakeFileService) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	srv.RegisterService(&accountServiceDesc, svc)
	srv.RegisterService(&fileServiceDesc, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := Dial(Config{Address: "passthrough:///bufnet"},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func unavailable(msg string) error {
	return status.Error(codes.Unavailable, msg)
}
