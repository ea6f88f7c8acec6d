// Package repository provides data access for classification rules.
package repository

import (
	"context"

	"github.com/freightwatch/threepl-audit/internal/domain/classify"
)

// RulesRepository defines data access for the shared classification rule set.
type RulesRepository interface {
	CreateRule(ctx context.Context, rule *classify.Rule) error
	GetRuleByID(ctx context.Context, id int64) (*classify.Rule, error)
	ListRules(ctx context.Context) ([]classify.Rule, error)
	UpdateRule(ctx context.Context, rule *classify.Rule) error

	// ListEnabledRulesOrdered returns the enabled rules already in evaluation
	// order: priority descending, ties by ascending id. A classification pass
	// snapshots this list once and never re-reads mid-pass.
	ListEnabledRulesOrdered(ctx context.Context) ([]classify.Rule, error)
}
