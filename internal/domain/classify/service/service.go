// Package service runs batch classification passes over stored line items.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/freightwatch/threepl-audit/internal/domain/classify"
	rulesrepo "github.com/freightwatch/threepl-audit/internal/domain/classify/repository"
	"github.com/freightwatch/threepl-audit/internal/domain/common"
	invoicerepo "github.com/freightwatch/threepl-audit/internal/domain/invoice/repository"
	"github.com/freightwatch/threepl-audit/pkg/observability"
)

const classifyPageSize = 500

// PassResult summarizes one classification pass over an upload.
type PassResult struct {
	RowsClassified   int `json:"rows_classified"`
	RowsUnclassified int `json:"rows_unclassified"`
}

// Service re-evaluates the normalized category of every valid line item of an
// upload against a snapshot of the enabled rule set.
type Service struct {
	rules    rulesrepo.RulesRepository
	invoices invoicerepo.InvoiceRepository
	logger   *slog.Logger
}

// NewService creates a new classification service.
func NewService(rules rulesrepo.RulesRepository, invoices invoicerepo.InvoiceRepository, logger *slog.Logger) *Service {
	return &Service{rules: rules, invoices: invoices, logger: logger}
}

// ClassifyUpload runs one batch pass. The ordered, enabled rule list is
// snapshotted once at the start, so rule mutations during the pass cannot
// interleave with it. Every valid item is re-evaluated independently; running
// the pass twice against an unchanged rule set yields identical categories.
func (s *Service) ClassifyUpload(ctx context.Context, uploadID uuid.UUID) (*PassResult, error) {
	ctx, span := otel.Tracer("threepl-audit/classify").Start(ctx, "classify.pass")
	defer span.End()

	upload, err := s.invoices.GetUploadByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, common.ErrNotFound
	}

	rules, err := s.rules.ListEnabledRulesOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	set, skipped := classify.NewRuleSet(rules)
	for _, r := range skipped {
		s.logger.Warn("rule has invalid regex and will never match",
			"rule_id", r.ID, "pattern", r.Pattern)
	}

	result := &PassResult{}
	valid := true
	offset := 0
	for {
		items, err := s.invoices.ListLineItems(ctx, uploadID, invoicerepo.LineItemFilter{
			Valid:  &valid,
			Limit:  classifyPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list line items: %w", err)
		}
		if len(items) == 0 {
			break
		}

		updates := make([]invoicerepo.CategoryUpdate, 0, len(items))
		for _, item := range items {
			category := set.Classify(item.FeeTypeRaw)
			if category != nil {
				result.RowsClassified++
			} else {
				result.RowsUnclassified++
			}
			updates = append(updates, invoicerepo.CategoryUpdate{ID: item.ID, Category: category})
		}
		if err := s.invoices.UpdateLineItemCategories(ctx, updates); err != nil {
			return nil, fmt.Errorf("failed to store categories: %w", err)
		}

		if len(items) < classifyPageSize {
			break
		}
		offset += len(items)
	}

	observability.ClassifyPasses.Inc()
	s.logger.Info("classification pass completed",
		"upload_id", uploadID, "rules", set.Len(),
		"rows_classified", result.RowsClassified, "rows_unclassified", result.RowsUnclassified)
	return result, nil
}
