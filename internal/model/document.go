package model

import "time"

// Document represents one stored file in the system.
// This is a pure domain model with no persistence-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
//
// All fields are write-once: a record is created by a successful upload and is
// never mutated afterwards.
type Document struct {
	// ID is the stable public identifier, assigned at creation and never reused.
	ID string `json:"id"`
	// Title is the original filename supplied by the client. It may contain
	// unsafe path characters and is used only for display and download naming,
	// never for addressing storage.
	Title string `json:"title"`
	// StorageName is the generated blob key, the sole key into the blob store.
	// Decoupled from Title.
	StorageName string `json:"storageName"`
	// Size is the verified byte length on disk, captured after the write
	// completed. Not the client-declared length.
	Size int64 `json:"size"`
	// MimeType is the client-declared content type, advisory only.
	MimeType string `json:"mimeType"`
	// UploadDate is the creation timestamp and the default sort key.
	UploadDate time.Time `json:"uploadDate"`
}
