// Package grpcserver implements the GopherLock gRPC service and a client
// adapter that lets a batch lock through a remote service.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/repository"
	"github.com/mtiwari1/gopherlock/internal/storage"
	pb "github.com/mtiwari1/gopherlock/proto"
)

// Server implements the LockServiceServer gRPC interface.
// Dependencies are injected via the constructor.
type Server struct {
	locker batch.Locker
	repo   repository.Repository
	logger *slog.Logger
}

// NewServer creates a gRPC server backed by the given lock call and repository.
func NewServer(l batch.Locker, repo repository.Repository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{locker: l, repo: repo, logger: logger}
}

// Lock locks one stored document.
func (s *Server) Lock(ctx context.Context, req *pb.LockRequest) (*pb.LockResponse, error) {
	s.logger.Info("grpc Lock",
		slog.String("storage_path", req.StoragePath),
		slog.String("method", req.EncryptionMethod),
	)

	resp, err := s.locker.Lock(ctx, requestFromProto(req))
	if err != nil {
		return nil, mapLockError(err, "Lock")
	}
	return &pb.LockResponse{
		SignedUrl:   resp.SignedURL,
		FileName:    resp.FileName,
		StoragePath: resp.StoragePath,
	}, nil
}

// GetFile returns a persisted file record.
func (s *Server) GetFile(ctx context.Context, req *pb.GetFileRequest) (*pb.FileResponse, error) {
	s.logger.Info("grpc GetFile", slog.String("file_id", req.Id))

	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "GetFile: id is required")
	}
	rec, err := s.repo.Get(ctx, req.Id)
	if err != nil {
		return nil, mapLockError(err, "GetFile")
	}
	return &pb.FileResponse{
		Id:             rec.ID,
		BatchId:        rec.BatchID,
		Name:           rec.Name,
		RelativePath:   rec.RelativePath,
		Size:           rec.Size,
		Status:         string(rec.Status),
		ErrorMessage:   rec.ErrorMessage,
		SignedUrl:      rec.ResultURL,
		ResultPath:     rec.ResultKey,
		LockedFileName: rec.OutputName,
		UpdatedAtUnix:  rec.UpdatedAt.Unix(),
	}, nil
}

func requestFromProto(req *pb.LockRequest) locker.Request {
	return locker.Request{
		StoragePath:        req.StoragePath,
		OpenPassword:       req.OpenPassword,
		PermissionPassword: req.PermissionPassword,
		Restrictions:       req.Restrictions,
		EncryptionMethod:   req.EncryptionMethod,
		FileName:           req.FileName,
	}
}

// mapLockError converts domain errors to proper gRPC status codes.
func mapLockError(err error, method string) error {
	switch {
	case errors.Is(err, locker.ErrMissingStoragePath),
		errors.Is(err, locker.ErrNoPasswordProvided),
		errors.Is(err, locker.ErrInvalidRequest):
		return status.Errorf(codes.InvalidArgument, "%s: %v", method, err)
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", method, err)
	case errors.Is(err, locker.ErrInvalidDocument):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", method, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: timeout", method)
	}
	return status.Errorf(codes.Internal, "%s: %v", method, err)
}
