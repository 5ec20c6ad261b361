package proto

// LockRequest asks the service to lock one stored document.
type LockRequest struct {
	StoragePath        string   `json:"storagePath"`
	OpenPassword       string   `json:"openPassword,omitempty"`
	PermissionPassword string   `json:"permissionPassword,omitempty"`
	Restrictions       []string `json:"restrictions"`
	EncryptionMethod   string   `json:"encryptionMethod,omitempty"`
	FileName           string   `json:"fileName"`
}

// LockResponse carries the retrieval handle of the locked document.
type LockResponse struct {
	SignedUrl   string `json:"signedUrl"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
}

// GetFileRequest looks up a persisted file record.
type GetFileRequest struct {
	Id string `json:"id"`
}

// FileResponse is a persisted file record.
type FileResponse struct {
	Id             string `json:"id"`
	BatchId        string `json:"batchId"`
	Name           string `json:"name"`
	RelativePath   string `json:"relativePath"`
	Size           int64  `json:"size"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	SignedUrl      string `json:"signedUrl,omitempty"`
	ResultPath     string `json:"resultPath,omitempty"`
	LockedFileName string `json:"lockedFileName,omitempty"`
	UpdatedAtUnix  int64  `json:"updatedAtUnix"`
}
