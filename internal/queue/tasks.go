package queue

const (
	TypeIngestDirectory = "ingest:directory"
	TypeIngestFile      = "ingest:file"
)

// IngestDirectoryPayload asks the worker to scan a server-local
// directory and enqueue one file task per supported file.
type IngestDirectoryPayload struct {
	TenantID string `json:"tenant_id"`
	SourceID string `json:"source_id"`
	Dir      string `json:"dir"`
}

type IngestFilePayload struct {
	TenantID string `json:"tenant_id"`
	SourceID string `json:"source_id"`
	Path     string `json:"path"`
}
