package repository

import (
	"context"
	"errors"

	"docstore/internal/model"
)

// Package repository contains the metadata store abstraction.
// Implementations live in subpackages (e.g., jsonfile) inside this directory.

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("document not found")

// DocumentRepository defines access to the document record set. The record
// set is the sole durable truth about which documents exist; the blob store
// holds only their bytes.
//
// Implementations must serialize all mutations with each other: two appends,
// or an append and a removal, racing over the same store must both take
// effect (no lost updates). Reads may run concurrently but must observe
// either the pre- or post-mutation snapshot, never a partial one.
type DocumentRepository interface {
	// LoadAll returns the full record set in insertion order.
	LoadAll(ctx context.Context) ([]model.Document, error)

	// AppendAll atomically appends all given records in one mutation.
	AppendAll(ctx context.Context, docs []model.Document) error

	// FindByID returns the record with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// RemoveByID removes and returns the record with the given id,
	// or ErrNotFound. Removal is the authoritative deletion step.
	RemoveByID(ctx context.Context, id string) (*model.Document, error)

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error
}
