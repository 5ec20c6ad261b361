// Package restapi implements the REST gateway: single-file lock calls,
// batch management with live progress, downloads and signed object access.
package restapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/mtiwari1/gopherlock/internal/archive"
	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/repository"
	"github.com/mtiwari1/gopherlock/internal/storage"
	"github.com/mtiwari1/gopherlock/internal/worker"
)

// DefaultMaxUploadBytes bounds a single uploaded document.
const DefaultMaxUploadBytes = 50 << 20

// maxFilesPerRequest bounds the multipart body of a batch upload.
const maxFilesPerRequest = 50

// URLVerifier checks signed object URLs. storage.FSStore implements it.
type URLVerifier interface {
	Verify(key, expires, sig string) error
}

// Deps are the collaborators of the gateway.
type Deps struct {
	Locker   batch.Locker
	Store    storage.Store
	Repo     repository.Repository
	Registry *batch.Registry
	Pool     *worker.Pool
	Packager *archive.Packager
	Sweeper  *storage.Sweeper

	// Verifier enables GET /objects/{key...}. Nil disables the route.
	Verifier URLVerifier

	MaxUploadBytes int64
	CleanupSecret  string

	// DefaultMethod applies to batch runs that do not name a method.
	DefaultMethod locker.Method

	// RunContext parents batch runs so they outlive the request that
	// started them. Cancelling it stops every run at its next boundary.
	RunContext context.Context

	Logger *slog.Logger
}

// Handler holds dependencies for REST endpoints.
type Handler struct {
	Deps
}

// NewHandler creates a new REST handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if d.DefaultMethod == "" {
		d.DefaultMethod = locker.DefaultMethod
	}
	if d.RunContext == nil {
		d.RunContext = context.Background()
	}
	return &Handler{Deps: d}
}

// RegisterRoutes attaches all REST routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/uploads", h.upload)
	mux.HandleFunc("POST /api/lock", h.lock)

	mux.HandleFunc("POST /api/batches", h.createBatch)
	mux.HandleFunc("GET /api/batches/{id}", h.getBatch)
	mux.HandleFunc("DELETE /api/batches/{id}", h.deleteBatch)
	mux.HandleFunc("POST /api/batches/{id}/files", h.addBatchFiles)
	mux.HandleFunc("DELETE /api/batches/{id}/files/{fileID}", h.removeBatchFile)
	mux.HandleFunc("POST /api/batches/{id}/lock", h.lockBatch)
	mux.HandleFunc("POST /api/batches/{id}/stop", h.stopBatch)
	mux.HandleFunc("GET /api/batches/{id}/events", h.batchEvents)
	mux.HandleFunc("GET /api/batches/{id}/download", h.downloadBatch)

	mux.HandleFunc("GET /api/files/{id}", h.getFile)
	mux.HandleFunc("POST /api/cleanup", h.cleanup)
	mux.HandleFunc("GET /healthz", h.healthz)

	if h.Verifier != nil {
		mux.HandleFunc("GET /objects/{key...}", h.serveObject)
	}
}

// requestLogger tags the request with a fresh request_id.
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.Logger.With(
		slog.String("request_id", uuid.New().String()),
		slog.String("route", r.Method+" "+r.URL.Path),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------- GET /api/files/{id} ----------

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	rec, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		logger.Error("get file", slog.String("file_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ---------- GET /objects/{key...} ----------

func (h *Handler) serveObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	q := r.URL.Query()

	if err := h.Verifier.Verify(key, q.Get("expires"), q.Get("sig")); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	data, err := h.Store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusNotFound, "object not found")
			return
		}
		h.requestLogger(r).Error("serve object", slog.String("key", key), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	name := key[strings.LastIndex(key, "/")+1:]
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Disposition", contentDisposition(name))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(data)
}

// ---------- POST /api/cleanup ----------

type cleanupResult struct {
	DeletedObjects int `json:"deletedObjects"`
	DeletedRecords int `json:"deletedRecords"`
	DroppedBatches int `json:"droppedBatches"`
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	if h.CleanupSecret != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.CleanupSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	if h.Sweeper == nil {
		writeError(w, http.StatusNotImplemented, "retention is not configured")
		return
	}

	var res cleanupResult
	n, err := h.Sweeper.Sweep(r.Context())
	res.DeletedObjects = n
	if err != nil {
		logger.Error("cleanup sweep", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	cutoff := time.Now().Add(-h.Sweeper.MaxAge)
	if h.Repo != nil {
		if res.DeletedRecords, err = h.Repo.DeleteOlderThan(r.Context(), cutoff); err != nil {
			logger.Error("cleanup records", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "cleanup failed")
			return
		}
	}
	if h.Registry != nil {
		res.DroppedBatches = h.Registry.Sweep(h.Sweeper.MaxAge)
	}

	logger.Info("cleanup finished",
		slog.Int("deleted_objects", res.DeletedObjects),
		slog.Int("deleted_records", res.DeletedRecords),
		slog.Int("dropped_batches", res.DroppedBatches),
	)
	writeJSON(w, http.StatusOK, res)
}

// ---------- GET /healthz ----------

// healthz verifies connectivity to the repository and the object store.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result := map[string]string{"status": "ok"}
	httpStatus := http.StatusOK

	if err := h.Repo.Ping(ctx); err != nil {
		result["status"] = "degraded"
		result["repository"] = "unreachable: " + err.Error()
		httpStatus = http.StatusServiceUnavailable
	} else {
		result["repository"] = "connected"
	}

	if _, err := h.Store.List(ctx, storage.LockedPrefix); err != nil {
		result["status"] = "degraded"
		result["storage"] = "unreachable: " + err.Error()
		httpStatus = http.StatusServiceUnavailable
	} else {
		result["storage"] = "ok"
	}

	writeJSON(w, httpStatus, result)
}

func contentDisposition(name string) string {
	name = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(name)
	return `attachment; filename="` + name + `"`
}
