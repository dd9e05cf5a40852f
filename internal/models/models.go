package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation boundary. IDs are caller-supplied
// opaque strings, not generated.
type Tenant struct {
	ID        string    `json:"tenant_id" db:"tenant_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Source is a named grouping of documents within a tenant. Names need
// not be unique; the generated ID is the handle.
type Source struct {
	ID        uuid.UUID `json:"source_id" db:"source_id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"source_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Document struct {
	ID          uuid.UUID `json:"document_id" db:"document_id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	SourceID    uuid.UUID `json:"source_id" db:"source_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Turn is one message in a session. Turns are append-only and immutable
// once written.
type Turn struct {
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Citations []string  `json:"citations,omitempty" db:"citations"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
