package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/mtiwari1/gopherlock/internal/hasher"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

var errTooLarge = errors.New("file too large")

// lockStatus maps lock call errors to HTTP status codes.
func lockStatus(err error) int {
	switch {
	case errors.Is(err, locker.ErrMissingStoragePath),
		errors.Is(err, locker.ErrNoPasswordProvided),
		errors.Is(err, locker.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusNotFound
	case errors.Is(err, locker.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ---------- POST /api/lock ----------

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	var req locker.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.Locker.Lock(r.Context(), req)
	if err != nil {
		code := lockStatus(err)
		if code >= http.StatusInternalServerError {
			logger.Error("lock failed", slog.String("storage_path", req.StoragePath), slog.String("error", err.Error()))
			writeError(w, code, "lock failed")
			return
		}
		logger.Warn("lock rejected", slog.String("storage_path", req.StoragePath), slog.String("error", err.Error()))
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------- POST /api/uploads ----------

type uploadResponse struct {
	StoragePath string `json:"storagePath"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: missing file")
		return
	}
	defer file.Close()

	data, err := h.readPart(file)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	meta, err := hasher.InspectPDF(data, header.Filename)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	key, err := storage.Upload(r.Context(), h.Store, data, header.Filename)
	if err != nil {
		logger.Error("store upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	logger.Info("file uploaded",
		slog.String("storage_path", key),
		slog.String("size", humanize.Bytes(uint64(meta.Size))),
		slog.String("hash", meta.Hash),
	)
	writeJSON(w, http.StatusCreated, uploadResponse{
		StoragePath: key,
		Name:        header.Filename,
		Size:        meta.Size,
		SHA256:      meta.Hash,
	})
}

// readPart reads one multipart file, enforcing the per-file limit.
func (h *Handler) readPart(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.MaxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %s", errTooLarge, humanize.Bytes(uint64(h.MaxUploadBytes)))
	}
	return data, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, hasher.ErrNotPDF):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		writeError(w, http.StatusBadRequest, "failed to read upload")
	}
}
