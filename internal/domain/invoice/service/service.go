// Package service provides the invoice ingest orchestration logic.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/freightwatch/threepl-audit/internal/domain/common"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/fieldmap"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/normalizer"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/repository"
	"github.com/freightwatch/threepl-audit/pkg/observability"
)

// ErrEmptyFile is returned when the uploaded CSV has no header row.
var ErrEmptyFile = errors.New("file has no header row")

const (
	ingestBatchSize = 500
	previewRowLimit = 10
)

// PreviewRow mirrors the first valid rows back to the uploader.
type PreviewRow struct {
	FeeTypeRaw  string  `json:"fee_type_raw"`
	Amount      string  `json:"amount"`
	OrderRef    *string `json:"order_ref"`
	TrackingRef *string `json:"tracking_ref"`
}

// IngestResult summarizes one completed ingest run.
type IngestResult struct {
	UploadID    uuid.UUID         `json:"invoice_id"`
	Filename    string            `json:"filename"`
	Headers     []string          `json:"headers"`
	FieldMap    fieldmap.FieldMap `json:"field_map"`
	RowsTotal   int               `json:"rows_total"`
	RowsValid   int               `json:"rows_valid"`
	RowsInvalid int               `json:"rows_invalid"`
	Preview     []PreviewRow      `json:"preview"`
}

// IngestService orchestrates header resolution, row normalization and
// persistence for uploaded invoice files.
type IngestService struct {
	repo   repository.InvoiceRepository
	logger *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(repo repository.InvoiceRepository, logger *slog.Logger) *IngestService {
	return &IngestService{repo: repo, logger: logger}
}

type rowJob struct {
	rowNumber int
	row       map[string]string
}

// Ingest processes one uploaded CSV file. Structural failures (unresolvable
// or incomplete field map, missing header) halt the batch before any row is
// touched; per-row failures are stored as invalid items and never abort.
func (s *IngestService) Ingest(ctx context.Context, filename string, fileData []byte, explicit map[string]string) (*IngestResult, error) {
	ctx, span := otel.Tracer("threepl-audit/invoice").Start(ctx, "invoice.ingest")
	defer span.End()

	reader := csv.NewReader(bytes.NewReader(fileData))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	fm, err := fieldmap.Resolve(headers, explicit)
	if err != nil {
		return nil, err
	}
	if err := fieldmap.Validate(fm); err != nil {
		return nil, err
	}

	upload := &repository.InvoiceUpload{
		Filename: filename,
		Headers:  headers,
		FieldMap: fm,
	}
	if err := s.repo.CreateUpload(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to create upload record: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := s.normalizeStream(streamCtx, reader, headers, fm)

	var (
		rowsValid   int
		rowsInvalid int
		preview     []*normalizer.LineItem
		insertErr   error
	)
	batch := make([]*normalizer.LineItem, 0, ingestBatchSize)

	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := s.repo.BulkInsertLineItems(ctx, upload.ID, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for item := range results {
		if insertErr != nil {
			continue
		}
		if item.IsValid {
			rowsValid++
			preview = keepPreview(preview, item)
		} else {
			rowsInvalid++
		}
		observability.RowsIngested.WithLabelValues(resultLabel(item.IsValid)).Inc()

		batch = append(batch, item)
		if len(batch) >= ingestBatchSize {
			if err := flushBatch(); err != nil {
				insertErr = err
				cancel()
			}
		}
	}
	if insertErr == nil {
		insertErr = flushBatch()
	}
	if insertErr != nil {
		return nil, fmt.Errorf("failed to insert line items: %w", insertErr)
	}

	total := rowsValid + rowsInvalid
	if err := s.repo.UpdateUploadCounts(ctx, upload.ID, total, rowsValid, rowsInvalid); err != nil {
		s.logger.Warn("failed to update upload counts", "upload_id", upload.ID, "error", err)
	}

	s.logger.Info("invoice ingested",
		"upload_id", upload.ID, "filename", filename,
		"rows_total", total, "rows_valid", rowsValid, "rows_invalid", rowsInvalid)

	return &IngestResult{
		UploadID:    upload.ID,
		Filename:    filename,
		Headers:     headers,
		FieldMap:    fm,
		RowsTotal:   total,
		RowsValid:   rowsValid,
		RowsInvalid: rowsInvalid,
		Preview:     previewRows(preview),
	}, nil
}

// CorrectFieldMap replaces the stored field map of an upload after validating
// the explicit correction against the upload's original headers.
func (s *IngestService) CorrectFieldMap(ctx context.Context, uploadID uuid.UUID, explicit map[string]string) (fieldmap.FieldMap, error) {
	upload, err := s.repo.GetUploadByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, common.ErrNotFound
	}

	fm, err := fieldmap.Resolve(upload.Headers, explicit)
	if err != nil {
		return nil, err
	}
	if err := fieldmap.Validate(fm); err != nil {
		return nil, err
	}

	if err := s.repo.SetFieldMap(ctx, uploadID, fm); err != nil {
		return nil, err
	}
	s.logger.Info("field map corrected", "upload_id", uploadID)
	return fm, nil
}

// normalizeStream fans raw rows out to a worker pool and returns the
// unordered stream of normalized items. Row numbers are assigned by the
// reader before fan-out, starting at 2 (the header is logical row 1), so
// numbering stays stable and monotonic regardless of worker scheduling.
func (s *IngestService) normalizeStream(ctx context.Context, reader *csv.Reader, headers []string, fm fieldmap.FieldMap) <-chan *normalizer.LineItem {
	workerCount := runtime.GOMAXPROCS(0)
	if workerCount < 1 {
		workerCount = 1
	}

	jobs := make(chan rowJob, workerCount*4)
	results := make(chan *normalizer.LineItem, workerCount*4)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				select {
				case results <- normalizer.Normalize(job.row, fm, job.rowNumber):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		rowNumber := 2
		for {
			if ctx.Err() != nil {
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				// Unreadable CSV record: stored as an invalid row, the batch
				// continues.
				select {
				case results <- normalizer.Invalid(rowNumber, fmt.Sprintf("unreadable record: %v", err)):
				case <-ctx.Done():
					return
				}
				rowNumber++
				continue
			}
			select {
			case jobs <- rowJob{rowNumber: rowNumber, row: zipRow(headers, record)}:
			case <-ctx.Done():
				return
			}
			rowNumber++
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// zipRow pairs header names with record values. Short records leave trailing
// columns empty; extra values beyond the header width are dropped.
func zipRow(headers []string, record []string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(record) {
			row[h] = record[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

// keepPreview keeps the lowest-numbered valid rows seen so far. Results
// arrive unordered from the pool, so the slice is kept sorted and capped.
func keepPreview(preview []*normalizer.LineItem, item *normalizer.LineItem) []*normalizer.LineItem {
	if len(preview) >= previewRowLimit && item.RowNumber >= preview[len(preview)-1].RowNumber {
		return preview
	}
	preview = append(preview, item)
	sort.SliceStable(preview, func(i, j int) bool {
		return preview[i].RowNumber < preview[j].RowNumber
	})
	if len(preview) > previewRowLimit {
		preview = preview[:previewRowLimit]
	}
	return preview
}

func previewRows(items []*normalizer.LineItem) []PreviewRow {
	rows := make([]PreviewRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, PreviewRow{
			FeeTypeRaw:  item.FeeTypeRaw,
			Amount:      item.AmountRaw,
			OrderRef:    item.OrderRef,
			TrackingRef: item.TrackingRef,
		})
	}
	return rows
}

func resultLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}
