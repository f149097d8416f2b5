package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// CreateProperty registers a new property.
func (s *SQLiteStorage) CreateProperty(ctx context.Context, name string) (*model.Property, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	if _, err := s.GetPropertyByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: property %q", common.ErrDuplicateEntry, name)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `INSERT INTO properties (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get property id: %w", err)
	}

	slog.Info("created property", "id", id, "name", name)
	return s.GetProperty(ctx, id)
}

// GetProperty returns a property by id.
func (s *SQLiteStorage) GetProperty(ctx context.Context, id int64) (*model.Property, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return scanProperty(s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM properties WHERE id = ?`, id), fmt.Sprintf("id %d", id))
}

// GetPropertyByName returns a property by its unique name.
func (s *SQLiteStorage) GetPropertyByName(ctx context.Context, name string) (*model.Property, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return scanProperty(s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM properties WHERE name = ?`, name), fmt.Sprintf("%q", name))
}

// ListProperties returns every property ordered by id.
func (s *SQLiteStorage) ListProperties(ctx context.Context) ([]model.Property, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM properties ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var properties []model.Property
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}
	return properties, nil
}

func scanProperty(row *sql.Row, what string) (*model.Property, error) {
	var p model.Property
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: property %s", common.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &p, nil
}
