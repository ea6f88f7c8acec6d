// Package handler exposes the invoice pipeline over JSON HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/freightwatch/threepl-audit/internal/domain/audit"
	classifysvc "github.com/freightwatch/threepl-audit/internal/domain/classify/service"
	"github.com/freightwatch/threepl-audit/internal/domain/common"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/fieldmap"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/repository"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/service"
)

const defaultPageLimit = 100

// InvoiceHandler serves uploads, line-item listings and pipeline passes.
type InvoiceHandler struct {
	ingest         *service.IngestService
	classify       *classifysvc.Service
	audits         *audit.Service
	repo           repository.InvoiceRepository
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(
	ingest *service.IngestService,
	classify *classifysvc.Service,
	audits *audit.Service,
	repo repository.InvoiceRepository,
	logger *slog.Logger,
	maxUploadBytes int64,
) *InvoiceHandler {
	return &InvoiceHandler{
		ingest:         ingest,
		classify:       classify,
		audits:         audits,
		repo:           repo,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /upload: a multipart CSV file plus an optional
// field_map JSON part mapping canonical fields to header names.
func (h *InvoiceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		common.WriteError(w, http.StatusBadRequest, "INVALID_MULTIPART", "could not parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "MISSING_FILE", `multipart part "file" is required`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "UNREADABLE_FILE", "could not read uploaded file")
		return
	}

	var explicit map[string]string
	if raw := r.FormValue("field_map"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &explicit); err != nil {
			common.WriteError(w, http.StatusBadRequest, "INVALID_FIELD_MAP", "field_map must be a JSON object of strings")
			return
		}
	}

	filename := header.Filename
	if filename == "" {
		filename = "uploaded.csv"
	}

	result, err := h.ingest.Ingest(r.Context(), filename, data, explicit)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, result)
}

// CorrectFieldMap handles PUT /invoices/{id}/field-map.
func (h *InvoiceHandler) CorrectFieldMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uploadID(w, r)
	if !ok {
		return
	}

	var explicit map[string]string
	if err := json.NewDecoder(r.Body).Decode(&explicit); err != nil {
		common.WriteError(w, http.StatusBadRequest, "INVALID_FIELD_MAP", "body must be a JSON object of strings")
		return
	}

	fm, err := h.ingest.CorrectFieldMap(r.Context(), id, explicit)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"invoice_id": id, "field_map": fm})
}

// GetInvoice handles GET /invoices/{id}.
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uploadID(w, r)
	if !ok {
		return
	}

	upload, err := h.repo.GetUploadByID(r.Context(), id)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if upload == nil {
		common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]any{
		"invoice_id":   upload.ID,
		"filename":     upload.Filename,
		"headers":      upload.Headers,
		"field_map":    upload.FieldMap,
		"rows_total":   upload.RowsTotal,
		"rows_valid":   upload.RowsValid,
		"rows_invalid": upload.RowsInvalid,
		"created_at":   upload.CreatedAt,
	})
}

// ListLineItems handles GET /invoices/{id}/line-items with optional valid,
// category, limit and offset query parameters.
func (h *InvoiceHandler) ListLineItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uploadID(w, r)
	if !ok {
		return
	}

	upload, err := h.repo.GetUploadByID(r.Context(), id)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if upload == nil {
		common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
		return
	}

	filter := repository.LineItemFilter{Limit: defaultPageLimit}
	q := r.URL.Query()
	if v := q.Get("valid"); v != "" {
		valid, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", "valid must be a boolean")
			return
		}
		filter.Valid = &valid
	}
	if v := q.Get("category"); v != "" {
		filter.Category = &v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			common.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			common.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	items, err := h.repo.ListLineItems(r.Context(), id, filter)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if items == nil {
		items = []*repository.InvoiceLineItem{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"invoice_id": id, "line_items": items})
}

// Classify handles POST /invoices/{id}/classify.
func (h *InvoiceHandler) Classify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uploadID(w, r)
	if !ok {
		return
	}

	result, err := h.classify.ClassifyUpload(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
			return
		}
		h.internalError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

// Audit handles GET /invoices/{id}/audit.
func (h *InvoiceHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uploadID(w, r)
	if !ok {
		return
	}

	findings, err := h.audits.AuditUpload(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
			return
		}
		h.internalError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, findings)
}

func (h *InvoiceHandler) uploadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invoice id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeIngestError maps pipeline errors to HTTP responses. Structural errors
// carry their own code; everything else is a 500.
func (h *InvoiceHandler) writeIngestError(w http.ResponseWriter, err error) {
	var vErr *fieldmap.ValidationError
	switch {
	case errors.As(err, &vErr):
		common.WriteError(w, http.StatusBadRequest, vErr.Code, vErr.Detail)
	case errors.Is(err, service.ErrEmptyFile):
		common.WriteError(w, http.StatusBadRequest, "EMPTY_FILE", "CSV has no header row")
	case errors.Is(err, common.ErrNotFound):
		common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
	default:
		h.internalError(w, err)
	}
}

func (h *InvoiceHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	common.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
