package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freightwatch/threepl-audit/internal/domain/invoice/fieldmap"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/normalizer"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresInvoiceRepository implements InvoiceRepository on PostgreSQL.
type PostgresInvoiceRepository struct {
	pgpool PgxPool
}

// NewPostgresInvoiceRepository creates a PostgreSQL-backed invoice repository.
func NewPostgresInvoiceRepository(pgpool PgxPool) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{pgpool: pgpool}
}

const createUploadQuery = `
	INSERT INTO invoice_uploads (id, filename, headers, field_map, rows_total, rows_valid, rows_invalid)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at
`

// CreateUpload inserts a new upload record.
func (r *PostgresInvoiceRepository) CreateUpload(ctx context.Context, upload *InvoiceUpload) error {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}

	err := r.pgpool.QueryRow(ctx, createUploadQuery,
		upload.ID, upload.Filename, upload.Headers, upload.FieldMap,
		upload.RowsTotal, upload.RowsValid, upload.RowsInvalid,
	).Scan(&upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invoice upload: %w", err)
	}
	return nil
}

const getUploadQuery = `
	SELECT id, filename, headers, field_map, rows_total, rows_valid, rows_invalid, created_at
	FROM invoice_uploads WHERE id = $1
`

// GetUploadByID retrieves an upload by id. Returns (nil, nil) when absent.
func (r *PostgresInvoiceRepository) GetUploadByID(ctx context.Context, id uuid.UUID) (*InvoiceUpload, error) {
	var upload InvoiceUpload
	err := r.pgpool.QueryRow(ctx, getUploadQuery, id).Scan(
		&upload.ID, &upload.Filename, &upload.Headers, &upload.FieldMap,
		&upload.RowsTotal, &upload.RowsValid, &upload.RowsInvalid, &upload.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice upload: %w", err)
	}
	return &upload, nil
}

const updateUploadCountsQuery = `
	UPDATE invoice_uploads SET rows_total = $2, rows_valid = $3, rows_invalid = $4 WHERE id = $1
`

// UpdateUploadCounts stores the final row counters of an ingest run.
func (r *PostgresInvoiceRepository) UpdateUploadCounts(ctx context.Context, id uuid.UUID, total, valid, invalid int) error {
	_, err := r.pgpool.Exec(ctx, updateUploadCountsQuery, id, total, valid, invalid)
	if err != nil {
		return fmt.Errorf("failed to update upload counts: %w", err)
	}
	return nil
}

const setFieldMapQuery = `
	UPDATE invoice_uploads SET field_map = $2 WHERE id = $1
`

// SetFieldMap overwrites the stored field map, e.g. after an explicit
// correction by the caller.
func (r *PostgresInvoiceRepository) SetFieldMap(ctx context.Context, id uuid.UUID, fm fieldmap.FieldMap) error {
	_, err := r.pgpool.Exec(ctx, setFieldMapQuery, id, fm)
	if err != nil {
		return fmt.Errorf("failed to set field map: %w", err)
	}
	return nil
}

// BulkInsertLineItems inserts a batch of normalized items via COPY.
func (r *PostgresInvoiceRepository) BulkInsertLineItems(ctx context.Context, uploadID uuid.UUID, items []*normalizer.LineItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	columns := []string{
		"id", "upload_id", "row_number", "fee_type_raw", "amount_raw", "amount_cents",
		"order_ref", "tracking_ref", "fee_type_norm", "is_valid", "error_code", "error_detail", "raw_row",
	}

	copyCount, err := r.pgpool.CopyFrom(ctx,
		pgx.Identifier{"invoice_line_items"},
		columns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			item := items[i]
			return []any{
				uuid.New(),
				uploadID,
				item.RowNumber,
				item.FeeTypeRaw,
				item.AmountRaw,
				item.AmountCents,
				item.OrderRef,
				item.TrackingRef,
				item.FeeTypeNorm,
				item.IsValid,
				nullableString(item.ErrorCode),
				nullableString(item.ErrorDetail),
				item.RawRow,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert line items: %w", err)
	}
	return int(copyCount), nil
}

const listLineItemsQuery = `
	SELECT id, upload_id, row_number, fee_type_raw, amount_raw, amount_cents,
	       order_ref, tracking_ref, fee_type_norm, is_valid, error_code, error_detail, raw_row
	FROM invoice_line_items
	WHERE upload_id = $1
`

// ListLineItems returns line items of one upload ordered by row number,
// optionally filtered by validity and normalized category, with paging.
func (r *PostgresInvoiceRepository) ListLineItems(ctx context.Context, uploadID uuid.UUID, filter LineItemFilter) ([]*InvoiceLineItem, error) {
	query := listLineItemsQuery
	args := []any{uploadID}

	if filter.Valid != nil {
		args = append(args, *filter.Valid)
		query += " AND is_valid = $" + strconv.Itoa(len(args))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += " AND fee_type_norm = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY row_number ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []*InvoiceLineItem
	for rows.Next() {
		var item InvoiceLineItem
		var errorCode, errorDetail *string
		err := rows.Scan(
			&item.ID, &item.UploadID, &item.RowNumber, &item.FeeTypeRaw, &item.AmountRaw,
			&item.AmountCents, &item.OrderRef, &item.TrackingRef, &item.FeeTypeNorm,
			&item.IsValid, &errorCode, &errorDetail, &item.RawRow,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if errorCode != nil {
			item.ErrorCode = *errorCode
		}
		if errorDetail != nil {
			item.ErrorDetail = *errorDetail
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line items: %w", err)
	}
	return items, nil
}

const updateLineItemCategoryQuery = `
	UPDATE invoice_line_items SET fee_type_norm = $2 WHERE id = $1
`

// UpdateLineItemCategories applies a batch of category updates from a
// classification pass in one round trip.
func (r *PostgresInvoiceRepository) UpdateLineItemCategories(ctx context.Context, updates []CategoryUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(updateLineItemCategoryQuery, u.ID, u.Category)
	}

	br := r.pgpool.SendBatch(ctx, batch)
	defer br.Close()

	for range updates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to update line item category: %w", err)
		}
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
