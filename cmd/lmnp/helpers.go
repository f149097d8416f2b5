package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/config"
	"github.com/Veraticus/lmnp-ledger/internal/forecast"
	"github.com/Veraticus/lmnp-ledger/internal/ledger"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
	"github.com/Veraticus/lmnp-ledger/internal/storage"
)

const dateLayout = "2006-01-02"

// initStorage opens the configured database and brings its schema up to
// date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newLedger builds the statement service from the loan and forecast
// settings.
func newLedger(store service.Storage) (*ledger.Service, error) {
	cfg := ledger.DefaultConfig()

	if tags := viper.GetStringSlice("loans.level1_tags"); len(tags) > 0 {
		cfg.LoanTags = tags
	}
	strategy, err := forecast.StrategyByName(viper.GetString("forecast.prorata"))
	if err != nil {
		return nil, err
	}
	cfg.ProRata = strategy

	return ledger.NewWithConfig(store, nil, cfg), nil
}

// session bundles what most commands need.
type session struct {
	store    *storage.SQLiteStorage
	ledger   *ledger.Service
	property *model.Property
}

func (s *session) Close() {
	s.ledger.Close()
	_ = s.store.Close()
}

// openSession opens storage and the ledger and resolves --property.
func openSession(ctx context.Context) (*session, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := newLedger(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	prop, err := resolveProperty(ctx, store, viper.GetString("property"))
	if err != nil {
		svc.Close()
		_ = store.Close()
		return nil, err
	}

	return &session{store: store, ledger: svc, property: prop}, nil
}

// resolveProperty finds a property by id or name. Without a selector the
// only existing property is used.
func resolveProperty(ctx context.Context, store service.PropertyStore, selector string) (*model.Property, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		props, err := store.ListProperties(ctx)
		if err != nil {
			return nil, err
		}
		switch len(props) {
		case 0:
			return nil, common.NewUserError("aucun bien enregistré, créez-en un avec: lmnp properties add <nom>", nil)
		case 1:
			return &props[0], nil
		}
		return nil, common.NewUserError("plusieurs biens enregistrés, précisez --property", nil)
	}

	if id, err := strconv.ParseInt(selector, 10, 64); err == nil {
		prop, err := store.GetProperty(ctx, id)
		if err == nil {
			return prop, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	prop, err := store.GetPropertyByName(ctx, selector)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(fmt.Sprintf("bien %q introuvable", selector), err)
	}
	return prop, err
}

// parseYears accepts "2021", "2021,2023" and "2020-2023". Empty means all
// years with data.
func parseYears(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if from, to, ok := strings.Cut(part, "-"); ok {
			start, err := parseYear(from)
			if err != nil {
				return nil, err
			}
			end, err := parseYear(to)
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("%w: empty year range %q", common.ErrValidation, part)
			}
			for y := start; y <= end; y++ {
				years = append(years, y)
			}
			continue
		}
		y, err := parseYear(part)
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1900 || y > 2200 {
		return 0, fmt.Errorf("%w: invalid year %q", common.ErrValidation, s)
	}
	return y, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", common.ErrValidation, s)
	}
	return d, nil
}

// parseAmount accepts a dot or a French decimal comma and ignores spaces
// and a trailing euro sign.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	clean = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(clean)
	if !strings.Contains(clean, ".") {
		clean = strings.Replace(clean, ",", ".", 1)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", common.ErrValidation, s)
	}
	return d, nil
}

// parseRate reads a growth rate: "5%" and "0.05" are both five percent.
func parseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		d, err := parseAmount(pct)
		if err != nil {
			return decimal.Zero, err
		}
		return d.Div(decimal.NewFromInt(100)), nil
	}
	return parseAmount(s)
}

func parseStatementFlag(s string) (model.Statement, error) {
	st, err := model.ParseStatement(s)
	if err != nil {
		return "", common.NewUserError("statement must be compte_resultat (income) or bilan (balance)", err)
	}
	return st, nil
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "—"
	}
	return t.Format(dateLayout)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", common.ErrValidation, s)
	}
	return id, nil
}
