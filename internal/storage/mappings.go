package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

const mappingColumns = `id, property_id, statement, category_name, type, sub_category, level_1_values, is_special, special_source`

// ListMappings returns the mappings of a statement in creation order.
func (s *SQLiteStorage) ListMappings(ctx context.Context, propertyID int64, statement model.Statement) ([]model.CategoryMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatement(statement); err != nil {
		return nil, err
	}
	return listMappings(ctx, s.db, propertyID, statement)
}

// GetMapping returns a mapping by id.
func (s *SQLiteStorage) GetMapping(ctx context.Context, id int64) (*model.CategoryMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getMapping(ctx, s.db, id)
}

// CreateMapping validates and stores a new mapping. It fails with
// common.ErrLevel1Conflict when a level_1 value is already claimed.
func (s *SQLiteStorage) CreateMapping(ctx context.Context, m *model.CategoryMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if err := validateID(m.PropertyID, "property_id"); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := listMappings(ctx, tx, m.PropertyID, m.Statement)
		if err != nil {
			return err
		}
		if err := checkMapping(*m, existing); err != nil {
			return err
		}

		values, err := encodeValues(m.Level1Values)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO category_mappings (
				property_id, statement, category_name, type, sub_category,
				level_1_values, is_special, special_source
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.PropertyID, string(m.Statement), m.CategoryName, string(m.Type), string(m.SubCategory),
			values, m.IsSpecial, string(m.SpecialSource))
		if err != nil {
			return fmt.Errorf("failed to create mapping: %w", err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get mapping id: %w", err)
		}

		slog.Info("created mapping", "id", m.ID, "category", m.CategoryName, "statement", m.Statement)
		return nil
	})
}

// UpdateMapping replaces a stored mapping, with the same checks as create.
func (s *SQLiteStorage) UpdateMapping(ctx context.Context, m *model.CategoryMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if err := validateID(m.ID, "id"); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getMapping(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		// property and statement are fixed at creation
		m.PropertyID = current.PropertyID
		if m.Statement != current.Statement {
			return fmt.Errorf("%w: a mapping cannot move to another statement", common.ErrValidation)
		}

		existing, err := listMappings(ctx, tx, m.PropertyID, m.Statement)
		if err != nil {
			return err
		}
		if err := checkMapping(*m, existing); err != nil {
			return err
		}
		return writeMapping(ctx, tx, m)
	})
}

// DeleteMapping removes a mapping. Transactions are not affected.
func (s *SQLiteStorage) DeleteMapping(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM category_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: mapping %d", common.ErrNotFound, id)
	}
	return nil
}

// AssignLevel1 moves a level_1 value to the given mapping, removing it from
// whichever mapping of the same statement held it. The move is atomic.
func (s *SQLiteStorage) AssignLevel1(ctx context.Context, mappingID int64, level1 string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	level1 = strings.TrimSpace(level1)
	if err := validateString(level1, "level1"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := getMapping(ctx, tx, mappingID)
		if err != nil {
			return err
		}
		if target.IsSpecial {
			return fmt.Errorf("%w: special category %q takes no level_1 values", common.ErrValidation, target.CategoryName)
		}

		existing, err := listMappings(ctx, tx, target.PropertyID, target.Statement)
		if err != nil {
			return err
		}
		for i := range existing {
			other := &existing[i]
			if other.ID == target.ID || !other.Claims(level1) {
				continue
			}
			other.Level1Values = without(other.Level1Values, level1)
			if err := writeMapping(ctx, tx, other); err != nil {
				return err
			}
			slog.Info("moved level_1 value", "level_1", level1, "from", other.CategoryName, "to", target.CategoryName)
		}

		if target.Claims(level1) {
			return nil
		}
		target.Level1Values = append(target.Level1Values, level1)
		return writeMapping(ctx, tx, target)
	})
}

// ResetMappings deletes every mapping of a statement in one transaction.
func (s *SQLiteStorage) ResetMappings(ctx context.Context, propertyID int64, statement model.Statement) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateStatement(statement); err != nil {
		return 0, err
	}

	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM category_mappings WHERE property_id = ? AND statement = ?`,
			propertyID, string(statement))
		if err != nil {
			return fmt.Errorf("failed to reset mappings: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("reset mappings", "property_id", propertyID, "statement", statement, "deleted", deleted)
	return int(deleted), nil
}

// checkMapping enforces unique category names and exclusive level_1 values
// within a statement.
func checkMapping(m model.CategoryMapping, existing []model.CategoryMapping) error {
	for _, e := range existing {
		if e.ID != m.ID && strings.EqualFold(e.CategoryName, m.CategoryName) {
			return fmt.Errorf("%w: category %q already exists", common.ErrDuplicateEntry, m.CategoryName)
		}
	}

	conflicts := mapping.Conflicts(m, existing)
	if len(conflicts) == 0 {
		return nil
	}
	parts := make([]string, 0, len(conflicts))
	for v, owner := range conflicts {
		parts = append(parts, fmt.Sprintf("%q (claimed by %q)", v, owner))
	}
	sort.Strings(parts)
	return fmt.Errorf("%w: %s", common.ErrLevel1Conflict, strings.Join(parts, ", "))
}

func writeMapping(ctx context.Context, q queryable, m *model.CategoryMapping) error {
	values, err := encodeValues(m.Level1Values)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE category_mappings
		SET category_name = ?, type = ?, sub_category = ?, level_1_values = ?, is_special = ?, special_source = ?
		WHERE id = ?`,
		m.CategoryName, string(m.Type), string(m.SubCategory), values, m.IsSpecial, string(m.SpecialSource), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update mapping %d: %w", m.ID, err)
	}
	return nil
}

func getMapping(ctx context.Context, q queryable, id int64) (*model.CategoryMapping, error) {
	mappings, err := queryMappings(ctx, q, `SELECT `+mappingColumns+` FROM category_mappings WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: mapping %d", common.ErrNotFound, id)
	}
	return &mappings[0], nil
}

func listMappings(ctx context.Context, q queryable, propertyID int64, statement model.Statement) ([]model.CategoryMapping, error) {
	return queryMappings(ctx, q,
		`SELECT `+mappingColumns+` FROM category_mappings WHERE property_id = ? AND statement = ? ORDER BY id`,
		propertyID, string(statement))
}

func queryMappings(ctx context.Context, q queryable, query string, args ...any) ([]model.CategoryMapping, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.CategoryMapping
	for rows.Next() {
		var m model.CategoryMapping
		var statement, mappingType, subCategory, values, source string
		if err := rows.Scan(&m.ID, &m.PropertyID, &statement, &m.CategoryName, &mappingType,
			&subCategory, &values, &m.IsSpecial, &source); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.Statement = model.Statement(statement)
		m.Type = model.MappingType(mappingType)
		m.SubCategory = model.SubCategory(subCategory)
		m.SpecialSource = model.SpecialSource(source)
		if m.Level1Values, err = decodeValues(values); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", m.ID, err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return mappings, nil
}

// encodeValues stores a tag set as a JSON string array.
func encodeValues(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode values: %w", err)
	}
	return string(data), nil
}

func decodeValues(data string) ([]string, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to decode values %q", data), err)
	}
	return values, nil
}

func without(values []string, v string) []string {
	out := make([]string, 0, len(values))
	for _, x := range values {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
