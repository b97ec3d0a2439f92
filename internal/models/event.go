package models

import "time"

// AttachmentImportedEvent is published after a remote URL becomes an attachment
type AttachmentImportedEvent struct {
	AttachmentID uint64    `json:"attachment_id"`
	ParentID     uint64    `json:"parent_id,omitempty"`
	Featured     bool      `json:"featured"`
	SourceURL    string    `json:"source_url"`
	GUID         string    `json:"guid"`
	MimeType     string    `json:"mime_type"`
	ImportedAt   time.Time `json:"imported_at"`
}
