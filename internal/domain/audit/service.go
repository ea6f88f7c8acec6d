package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/freightwatch/threepl-audit/internal/domain/common"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/normalizer"
	invoicerepo "github.com/freightwatch/threepl-audit/internal/domain/invoice/repository"
)

const auditPageSize = 500

// Service loads the valid line items of an upload and runs the detector.
type Service struct {
	invoices invoicerepo.InvoiceRepository
	logger   *slog.Logger
}

// NewService creates a new audit service.
func NewService(invoices invoicerepo.InvoiceRepository, logger *slog.Logger) *Service {
	return &Service{invoices: invoices, logger: logger}
}

// AuditUpload recomputes the findings for one upload from its current line
// items. Findings are derived, never authoritative.
func (s *Service) AuditUpload(ctx context.Context, uploadID uuid.UUID) (*Findings, error) {
	ctx, span := otel.Tracer("threepl-audit/audit").Start(ctx, "audit.pass")
	defer span.End()

	upload, err := s.invoices.GetUploadByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, common.ErrNotFound
	}

	var items []*normalizer.LineItem
	valid := true
	offset := 0
	for {
		page, err := s.invoices.ListLineItems(ctx, uploadID, invoicerepo.LineItemFilter{
			Valid:  &valid,
			Limit:  auditPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list line items: %w", err)
		}
		for _, it := range page {
			items = append(items, &it.LineItem)
		}
		if len(page) < auditPageSize {
			break
		}
		offset += len(page)
	}

	findings := Run(items)
	s.logger.Info("audit pass completed",
		"upload_id", uploadID, "items", len(items),
		"unknown_fee_type_rows", findings.UnknownFeeTypeRows,
		"duplicate_rows", findings.DuplicateRows)
	return &findings, nil
}
