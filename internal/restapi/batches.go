package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mtiwari1/gopherlock/internal/archive"
	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/permission"
	"github.com/mtiwari1/gopherlock/internal/worker"
)

// batchStatus maps batch errors to HTTP status codes.
func batchStatus(err error) int {
	switch {
	case errors.Is(err, batch.ErrBatchNotFound), errors.Is(err, batch.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrRunActive):
		return http.StatusConflict
	case errors.Is(err, batch.ErrNothingToDo):
		return http.StatusUnprocessableEntity
	case errors.Is(err, batch.ErrNoPasswordProvided), errors.Is(err, batch.ErrInvalidOptions):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) batchFor(w http.ResponseWriter, r *http.Request) (*batch.Batch, bool) {
	b, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return b, true
}

// ---------- POST /api/batches ----------

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	b := h.Registry.Create()
	h.requestLogger(r).Info("batch created", slog.String("batch_id", b.ID()))
	w.Header().Set("Location", "/api/batches/"+b.ID())
	writeJSON(w, http.StatusCreated, map[string]string{"id": b.ID()})
}

// ---------- GET /api/batches/{id} ----------

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

// ---------- DELETE /api/batches/{id} ----------

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Delete(r.PathValue("id")); err != nil {
		writeError(w, batchStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- POST /api/batches/{id}/files ----------

type addedFile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	RelativePath string       `json:"relativePath"`
	Status       batch.Status `json:"status"`
}

// addBatchFiles accepts repeated "file" parts with optional "path" values
// paired by position. Records are created in uploading state and the bytes
// are handed to the upload pool.
func (h *Handler) addBatchFiles(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes*maxFilesPerRequest)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files supplied")
		return
	}
	if len(headers) > maxFilesPerRequest {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d files per request", maxFilesPerRequest))
		return
	}
	paths := r.MultipartForm.Value["path"]

	type part struct {
		name, rel string
		data      []byte
	}
	parts := make([]part, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		data, err := h.readPart(f)
		f.Close()
		if err != nil {
			writeUploadError(w, err)
			return
		}
		rel := fh.Filename
		if i < len(paths) && paths[i] != "" {
			rel = paths[i]
		}
		parts = append(parts, part{name: fh.Filename, rel: rel, data: data})
	}

	if b.Running() {
		writeError(w, http.StatusConflict, batch.ErrRunActive.Error())
		return
	}

	added := make([]addedFile, 0, len(parts))
	for _, p := range parts {
		rec, err := b.Add(p.name, p.rel, int64(len(p.data)))
		if err != nil {
			writePartialError(w, batchStatus(err), err.Error(), added)
			return
		}

		// The upload outlives this request; the pool's own lifetime bounds it.
		if !h.Pool.Submit(worker.Job{
			Ctx:     context.WithoutCancel(r.Context()),
			BatchID: b.ID(),
			FileID:  rec.ID,
			Name:    p.name,
			Data:    p.data,
		}) {
			_ = b.MarkUploadFailed(rec.ID, errors.New("server shutting down"))
			added = append(added, addedFile{ID: rec.ID, Name: rec.Name, RelativePath: rec.RelativePath, Status: batch.StatusFailed})
			writePartialError(w, http.StatusServiceUnavailable, "server shutting down", added)
			return
		}
		added = append(added, addedFile{ID: rec.ID, Name: rec.Name, RelativePath: rec.RelativePath, Status: rec.Status})
	}

	logger.Info("files queued for upload", slog.String("batch_id", b.ID()), slog.Int("count", len(added)))
	writeJSON(w, http.StatusAccepted, map[string]any{"files": added})
}

// writePartialError reports a failure after some files were already added,
// so the client can still track or remove them.
func writePartialError(w http.ResponseWriter, status int, msg string, added []addedFile) {
	writeJSON(w, status, map[string]any{"error": msg, "files": added})
}

// ApplyUploadResults moves records to ready or failed as the pool reports
// back. It returns when results is closed.
func (h *Handler) ApplyUploadResults(results <-chan worker.Result) {
	for res := range results {
		b, err := h.Registry.Get(res.BatchID)
		if err != nil {
			h.Logger.Warn("upload result for unknown batch",
				slog.String("batch_id", res.BatchID),
				slog.String("file_id", res.FileID),
			)
			continue
		}
		if res.Err != nil {
			err = b.MarkUploadFailed(res.FileID, res.Err)
		} else {
			err = b.MarkUploaded(res.FileID, res.StorageKey)
		}
		if err != nil {
			h.Logger.Warn("apply upload result",
				slog.String("batch_id", res.BatchID),
				slog.String("file_id", res.FileID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ---------- DELETE /api/batches/{id}/files/{fileID} ----------

func (h *Handler) removeBatchFile(w http.ResponseWriter, r *http.Request) {
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}
	if err := b.Remove(r.PathValue("fileID")); err != nil {
		writeError(w, batchStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- POST /api/batches/{id}/lock ----------

// lockOptions is the request body of a batch lock. Omitting restrictions
// restricts everything; an explicit empty list restricts nothing.
type lockOptions struct {
	OpenPassword       string    `json:"openPassword"`
	PermissionPassword string    `json:"permissionPassword"`
	Restrictions       *[]string `json:"restrictions"`
	EncryptionMethod   string    `json:"encryptionMethod"`
}

func (o lockOptions) toOptions() (locker.Options, error) {
	opts := locker.DefaultOptions()
	opts.OpenPassword = o.OpenPassword
	opts.PermissionPassword = o.PermissionPassword

	method, err := locker.ParseMethod(o.EncryptionMethod)
	if err != nil {
		return opts, err
	}
	opts.Method = method

	if o.Restrictions != nil {
		rs, err := permission.ParseRestrictions(*o.Restrictions)
		if err != nil {
			return opts, err
		}
		opts.Restrictions = rs
	}
	return opts, nil
}

func (h *Handler) lockBatch(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}

	var body lockOptions
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.EncryptionMethod == "" {
		body.EncryptionMethod = string(h.DefaultMethod)
	}
	opts, err := body.toOptions()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	done, err := b.Start(h.RunContext, opts)
	if err != nil {
		writeError(w, batchStatus(err), err.Error())
		return
	}
	go func() {
		sum := <-done
		logger.Info("batch run finished",
			slog.String("batch_id", b.ID()),
			slog.Int("succeeded", sum.Stats.Succeeded),
			slog.Int("failed", sum.Stats.Failed),
			slog.Bool("cancelled", sum.Cancelled),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"stats": b.Stats(), "running": true})
}

// ---------- POST /api/batches/{id}/stop ----------

func (h *Handler) stopBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}
	if !b.Stop() {
		writeError(w, http.StatusConflict, "no active run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"stopping": true})
}

// ---------- GET /api/batches/{id}/events ----------

// batchEvents streams batch events as server-sent events. The stream opens
// with a "snapshot" event so clients never start from stale state.
func (h *Handler) batchEvents(w http.ResponseWriter, r *http.Request) {
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := b.Subscribe(64)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", b.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, string(ev.Kind), ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// ---------- GET /api/batches/{id}/download ----------

func (h *Handler) downloadBatch(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	b, ok := h.batchFor(w, r)
	if !ok {
		return
	}

	out, err := h.Packager.Package(r.Context(), b.Succeeded())
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrNoResults):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, archive.ErrNothingRetrieved):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			logger.Error("package batch", slog.String("batch_id", b.ID()), slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "failed to retrieve locked files")
		}
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(out.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	_, _ = w.Write(out.Data)
}
