package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/shared"
)

// FormatRuleRepository reads and loads [models.FormatRule] rows.
type FormatRuleRepository struct {
	db *sql.DB
}

// NewFormatRuleRepository creates a new FormatRuleRepository with the given database connection
func NewFormatRuleRepository(db *sql.DB) *FormatRuleRepository {
	return &FormatRuleRepository{db: db}
}

// Get returns the rule for endpoint, or [shared.ErrRuleNotFound].
func (r *FormatRuleRepository) Get(ctx context.Context, endpoint string) (models.FormatRule, error) {
	var rule models.FormatRule
	err := r.db.QueryRowContext(ctx,
		`SELECT endpoint, category, key_format FROM format_rules WHERE endpoint = ?`, endpoint,
	).Scan(&rule.Endpoint, &rule.Category, &rule.KeyFormat)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FormatRule{}, fmt.Errorf("%w: %s", shared.ErrRuleNotFound, endpoint)
	}
	if err != nil {
		return models.FormatRule{}, fmt.Errorf("failed to get format rule: %w", err)
	}
	return rule, nil
}

// Put inserts rule unless a rule for the same endpoint already exists. It reports whether a row was inserted.
func (r *FormatRuleRepository) Put(ctx context.Context, rule models.FormatRule) (bool, error) {
	if err := rule.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO format_rules (endpoint, category, key_format) VALUES (?, ?, ?)
		 ON CONFLICT(endpoint) DO NOTHING`,
		rule.Endpoint, rule.Category, rule.KeyFormat,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert format rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert format rule: %w", err)
	}
	return n == 1, nil
}

// List returns every rule ordered by endpoint.
func (r *FormatRuleRepository) List(ctx context.Context) ([]models.FormatRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT endpoint, category, key_format FROM format_rules ORDER BY endpoint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list format rules: %w", err)
	}
	defer rows.Close()

	var rules []models.FormatRule
	for rows.Next() {
		var rule models.FormatRule
		if err := rows.Scan(&rule.Endpoint, &rule.Category, &rule.KeyFormat); err != nil {
			return nil, fmt.Errorf("failed to scan format rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DataContractRepository reads and loads [models.DataContract] rows.
type DataContractRepository struct {
	db *sql.DB
}

// NewDataContractRepository creates a new DataContractRepository with the given database connection
func NewDataContractRepository(db *sql.DB) *DataContractRepository {
	return &DataContractRepository{db: db}
}

// Get returns the contract for keyName, or [shared.ErrContractNotFound].
func (r *DataContractRepository) Get(ctx context.Context, keyName string) (models.DataContract, error) {
	var (
		dc   models.DataContract
		body string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT key_name, description, body FROM data_contracts WHERE key_name = ?`, keyName,
	).Scan(&dc.KeyName, &dc.Description, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DataContract{}, fmt.Errorf("%w: %s", shared.ErrContractNotFound, keyName)
	}
	if err != nil {
		return models.DataContract{}, fmt.Errorf("failed to get data contract: %w", err)
	}
	dc.Body = []byte(body)
	return dc, nil
}

// Put creates or replaces the contract for dc.KeyName.
func (r *DataContractRepository) Put(ctx context.Context, dc models.DataContract) error {
	if dc.KeyName == "" {
		return fmt.Errorf("validation failed: %w: empty key_name", shared.ErrInvalidInput)
	}
	body := string(dc.Body)
	if body == "" {
		body = "{}"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO data_contracts (key_name, description, body) VALUES (?, ?, ?)
		 ON CONFLICT(key_name) DO UPDATE SET
		   description = excluded.description,
		   body = excluded.body,
		   updated_at = CURRENT_TIMESTAMP`,
		dc.KeyName, dc.Description, body,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert data contract: %w", err)
	}
	return nil
}

// List returns every contract ordered by key name.
func (r *DataContractRepository) List(ctx context.Context) ([]models.DataContract, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key_name, description, body FROM data_contracts ORDER BY key_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data contracts: %w", err)
	}
	defer rows.Close()

	var contracts []models.DataContract
	for rows.Next() {
		var (
			dc   models.DataContract
			body string
		)
		if err := rows.Scan(&dc.KeyName, &dc.Description, &body); err != nil {
			return nil, fmt.Errorf("failed to scan data contract: %w", err)
		}
		dc.Body = []byte(body)
		contracts = append(contracts, dc)
	}
	return contracts, rows.Err()
}
