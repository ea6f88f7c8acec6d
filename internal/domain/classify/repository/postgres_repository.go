package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freightwatch/threepl-audit/internal/domain/classify"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresRulesRepository implements RulesRepository on PostgreSQL.
type PostgresRulesRepository struct {
	pgpool PgxPool
}

// NewPostgresRulesRepository creates a PostgreSQL-backed rules repository.
func NewPostgresRulesRepository(pgpool PgxPool) *PostgresRulesRepository {
	return &PostgresRulesRepository{pgpool: pgpool}
}

const createRuleQuery = `
	INSERT INTO classification_rules (pattern, match_type, category, priority, enabled)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at, updated_at
`

// CreateRule inserts a new rule. The serial id establishes creation order,
// which is the classifier's tie-break for equal priorities.
func (r *PostgresRulesRepository) CreateRule(ctx context.Context, rule *classify.Rule) error {
	err := r.pgpool.QueryRow(ctx, createRuleQuery,
		rule.Pattern, string(rule.MatchType), rule.Category, rule.Priority, rule.Enabled,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create classification rule: %w", err)
	}
	return nil
}

const getRuleQuery = `
	SELECT id, pattern, match_type, category, priority, enabled, created_at, updated_at
	FROM classification_rules WHERE id = $1
`

// GetRuleByID retrieves a rule by id. Returns (nil, nil) when absent.
func (r *PostgresRulesRepository) GetRuleByID(ctx context.Context, id int64) (*classify.Rule, error) {
	var rule classify.Rule
	err := r.pgpool.QueryRow(ctx, getRuleQuery, id).Scan(
		&rule.ID, &rule.Pattern, &rule.MatchType, &rule.Category,
		&rule.Priority, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification rule: %w", err)
	}
	return &rule, nil
}

const listRulesQuery = `
	SELECT id, pattern, match_type, category, priority, enabled, created_at, updated_at
	FROM classification_rules
	ORDER BY priority DESC, id ASC
`

// ListRules returns all rules, enabled or not, in evaluation order.
func (r *PostgresRulesRepository) ListRules(ctx context.Context) ([]classify.Rule, error) {
	return r.listRules(ctx, listRulesQuery)
}

const listEnabledRulesQuery = `
	SELECT id, pattern, match_type, category, priority, enabled, created_at, updated_at
	FROM classification_rules
	WHERE enabled
	ORDER BY priority DESC, id ASC
`

// ListEnabledRulesOrdered returns the enabled rules in evaluation order.
func (r *PostgresRulesRepository) ListEnabledRulesOrdered(ctx context.Context) ([]classify.Rule, error) {
	return r.listRules(ctx, listEnabledRulesQuery)
}

func (r *PostgresRulesRepository) listRules(ctx context.Context, query string) ([]classify.Rule, error) {
	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list classification rules: %w", err)
	}
	defer rows.Close()

	var rules []classify.Rule
	for rows.Next() {
		var rule classify.Rule
		err := rows.Scan(
			&rule.ID, &rule.Pattern, &rule.MatchType, &rule.Category,
			&rule.Priority, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classification rules: %w", err)
	}
	return rules, nil
}

const updateRuleQuery = `
	UPDATE classification_rules SET
		pattern = $2, match_type = $3, category = $4, priority = $5, enabled = $6,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
`

// UpdateRule rewrites an existing rule.
func (r *PostgresRulesRepository) UpdateRule(ctx context.Context, rule *classify.Rule) error {
	err := r.pgpool.QueryRow(ctx, updateRuleQuery,
		rule.ID, rule.Pattern, string(rule.MatchType), rule.Category, rule.Priority, rule.Enabled,
	).Scan(&rule.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("classification rule %d not found", rule.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update classification rule: %w", err)
	}
	return nil
}
