package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// GetStatementConfig returns the level_3 scope of a statement. A statement
// never configured has an empty scope, not an error.
func (s *SQLiteStorage) GetStatementConfig(ctx context.Context, propertyID int64, statement model.Statement) (*model.StatementConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatement(statement); err != nil {
		return nil, err
	}

	cfg := &model.StatementConfig{PropertyID: propertyID, Statement: statement}
	var values string
	err := s.db.QueryRowContext(ctx,
		`SELECT level_3_values FROM statement_configs WHERE property_id = ? AND statement = ?`,
		propertyID, string(statement)).Scan(&values)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement config: %w", err)
	}

	if cfg.Level3Values, err = decodeValues(values); err != nil {
		return nil, fmt.Errorf("statement config %s: %w", statement, err)
	}
	return cfg, nil
}

// SaveStatementConfig replaces the level_3 scope of a statement.
func (s *SQLiteStorage) SaveStatementConfig(ctx context.Context, cfg *model.StatementConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("%w: config", ErrNilParameter)
	}
	if err := validateID(cfg.PropertyID, "property_id"); err != nil {
		return err
	}
	if err := validateStatement(cfg.Statement); err != nil {
		return err
	}
	for _, v := range cfg.Level3Values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty level_3 value", common.ErrValidation)
		}
	}

	values, err := encodeValues(dedupe(cfg.Level3Values))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO statement_configs (property_id, statement, level_3_values)
		VALUES (?, ?, ?)
		ON CONFLICT (property_id, statement) DO UPDATE SET level_3_values = excluded.level_3_values`,
		cfg.PropertyID, string(cfg.Statement), values)
	if err != nil {
		return fmt.Errorf("failed to save statement config: %w", err)
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
