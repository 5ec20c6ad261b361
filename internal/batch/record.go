package batch

import "time"

// Status is the lifecycle state of a FileRecord.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Eligible reports whether a record in this status can be picked up by a run.
func (s Status) Eligible() bool {
	return s == StatusReady || s == StatusFailed
}

// MessageStopped is attached to records skipped because the run was stopped.
const MessageStopped = "Stopped by user"

// FileRecord is one submitted file. Values handed out by the batch are
// copies; only the batch mutates its own records.
type FileRecord struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batchId"`
	Name         string    `json:"name"`
	RelativePath string    `json:"relativePath"`
	Size         int64     `json:"size"`
	StorageKey   string    `json:"storagePath,omitempty"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ResultURL    string    `json:"signedUrl,omitempty"`
	ResultKey    string    `json:"resultPath,omitempty"`
	OutputName   string    `json:"lockedFileName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Stats is the running aggregate of a lock run.
type Stats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Snapshot is a consistent copy of a batch.
type Snapshot struct {
	ID        string       `json:"id"`
	Records   []FileRecord `json:"files"`
	Stats     Stats        `json:"stats"`
	Running   bool         `json:"running"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Summary is the outcome of a finished run.
type Summary struct {
	Stats     Stats `json:"stats"`
	Cancelled bool  `json:"cancelled"`
}
