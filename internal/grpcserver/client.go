package grpcserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/storage"
	pb "github.com/mtiwari1/gopherlock/proto"
)

// RemoteLocker performs lock calls against a LockService. It satisfies
// batch.Locker.
type RemoteLocker struct {
	client pb.LockServiceClient
	conn   *grpc.ClientConn
}

// Dial connects to a LockService at target.
func Dial(target string, opts ...grpc.DialOption) (*RemoteLocker, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.Dial(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &RemoteLocker{client: pb.NewLockServiceClient(conn), conn: conn}, nil
}

// Lock forwards req and maps status codes back to the local sentinels.
func (r *RemoteLocker) Lock(ctx context.Context, req locker.Request) (*locker.Response, error) {
	resp, err := r.client.Lock(ctx, &pb.LockRequest{
		StoragePath:        req.StoragePath,
		OpenPassword:       req.OpenPassword,
		PermissionPassword: req.PermissionPassword,
		Restrictions:       req.Restrictions,
		EncryptionMethod:   req.EncryptionMethod,
		FileName:           req.FileName,
	})
	if err != nil {
		return nil, unmapError(err)
	}
	return &locker.Response{
		SignedURL:   resp.SignedUrl,
		FileName:    resp.FileName,
		StoragePath: resp.StoragePath,
	}, nil
}

// Close releases the connection.
func (r *RemoteLocker) Close() error {
	return r.conn.Close()
}

func unmapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", locker.ErrInvalidRequest, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", storage.ErrNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", locker.ErrInvalidDocument, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}
	return fmt.Errorf("remote lock: %s", st.Message())
}
