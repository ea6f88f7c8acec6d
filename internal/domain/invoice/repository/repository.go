// Package repository provides data access for invoice uploads and line items.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/freightwatch/threepl-audit/internal/domain/invoice/fieldmap"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/normalizer"
)

// InvoiceUpload represents one uploaded invoice file batch.
type InvoiceUpload struct {
	ID          uuid.UUID         `db:"id"`
	Filename    string            `db:"filename"`
	Headers     []string          `db:"headers"`
	FieldMap    fieldmap.FieldMap `db:"field_map"`
	RowsTotal   int               `db:"rows_total"`
	RowsValid   int               `db:"rows_valid"`
	RowsInvalid int               `db:"rows_invalid"`
	CreatedAt   time.Time         `db:"created_at"`
}

// InvoiceLineItem is a persisted line item. Line items belong to exactly one
// upload and are deleted only with it.
type InvoiceLineItem struct {
	ID       uuid.UUID `db:"id"`
	UploadID uuid.UUID `db:"upload_id"`
	normalizer.LineItem
}

// LineItemFilter narrows and pages a line-item listing.
type LineItemFilter struct {
	Valid    *bool
	Category *string
	Limit    int
	Offset   int
}

// CategoryUpdate sets (or clears) the normalized category of one line item.
type CategoryUpdate struct {
	ID       uuid.UUID
	Category *string
}

// InvoiceRepository defines data access for the ingestion and audit pipeline.
// Identifiers stay stable across a normalize -> classify -> audit sequence.
type InvoiceRepository interface {
	CreateUpload(ctx context.Context, upload *InvoiceUpload) error
	GetUploadByID(ctx context.Context, id uuid.UUID) (*InvoiceUpload, error)
	UpdateUploadCounts(ctx context.Context, id uuid.UUID, total, valid, invalid int) error
	SetFieldMap(ctx context.Context, id uuid.UUID, fm fieldmap.FieldMap) error

	BulkInsertLineItems(ctx context.Context, uploadID uuid.UUID, items []*normalizer.LineItem) (int, error)
	ListLineItems(ctx context.Context, uploadID uuid.UUID, filter LineItemFilter) ([]*InvoiceLineItem, error)
	UpdateLineItemCategories(ctx context.Context, updates []CategoryUpdate) error
}
