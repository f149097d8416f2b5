package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/testutil"
)

func TestParseYears(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{name: "empty means all", input: "", want: nil},
		{name: "single", input: "2021", want: []int{2021}},
		{name: "list", input: "2021, 2023", want: []int{2021, 2023}},
		{name: "range", input: "2020-2022", want: []int{2020, 2021, 2022}},
		{name: "mixed", input: "2019,2021-2022", want: []int{2019, 2021, 2022}},
		{name: "reversed range", input: "2023-2020", wantErr: true},
		{name: "garbage", input: "last", wantErr: true},
		{name: "out of bounds", input: "21", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseYears(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1234.5", "1234.50"},
		{"1234,5", "1234.50"},
		{"1 234,56 €", "1234.56"},
		{"1 234,56", "1234.56"},
		{"-80", "-80.00"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}

	_, err := parseAmount("douze")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestParseRate(t *testing.T) {
	for input, want := range map[string]string{
		"5%":   "0.05",
		"2,5%": "0.025",
		"0.03": "0.03",
		"0":    "0",
	} {
		got, err := parseRate(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got.String(), input)
	}
}

func TestParseDateAndID(t *testing.T) {
	d, err := parseDate("2021-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("15/03/2021")
	assert.ErrorIs(t, err, common.ErrValidation)

	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseID("0")
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Equal(t, "—", formatDate(nil))
	assert.Equal(t, "2021-03-15", formatDate(&d))
}

func TestParseMappingType(t *testing.T) {
	typ, err := parseMappingType(model.StatementIncome, "produits")
	require.NoError(t, err)
	assert.Equal(t, model.TypeProduits, typ)

	typ, err = parseMappingType(model.StatementBalance, "PASSIF")
	require.NoError(t, err)
	assert.Equal(t, model.TypePassif, typ)

	_, err = parseMappingType(model.StatementIncome, "actif")
	assert.ErrorIs(t, err, common.ErrValidation)

	sub, err := parseSubCategory(model.TypePassif, "dettes")
	require.NoError(t, err)
	assert.Equal(t, model.SubDettesFinancieres, sub)

	_, err = parseSubCategory(model.TypePassif, "immobilise")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestResolveProperty(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := db.Storage

	var userErr *common.UserError

	_, err := resolveProperty(ctx, store, "")
	require.ErrorAs(t, err, &userErr)

	studio := db.Property("Studio Lyon")

	got, err := resolveProperty(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, studio.ID, got.ID, "the only property is the default")

	db.Property("T2 Nantes")

	_, err = resolveProperty(ctx, store, "")
	require.ErrorAs(t, err, &userErr, "ambiguous without a selector")

	got, err = resolveProperty(ctx, store, "T2 Nantes")
	require.NoError(t, err)
	assert.Equal(t, "T2 Nantes", got.Name)

	got, err = resolveProperty(ctx, store, " 1 ")
	require.NoError(t, err)
	assert.Equal(t, studio.ID, got.ID)

	_, err = resolveProperty(ctx, store, "Maison")
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "2021")
	require.NoError(t, os.MkdirAll(sub, 0750))
	for _, name := range []string{"a.ofx", "notes.txt", filepath.Join("2021", "b.QFX"), filepath.Join("2021", "c.csv")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}

	files, err := collectFiles([]string{dir, filepath.Join(dir, "*.ofx"), filepath.Join(dir, "missing-*.ofx")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "2021", "b.QFX"),
		filepath.Join(dir, "a.ofx"),
	}, files)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "1.5 KB", formatFileSize(1536))
	assert.Equal(t, "2.0 MB", formatFileSize(2*1024*1024))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", formatRelativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5 min ago", formatRelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3 h ago", formatRelativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2 days ago", formatRelativeTime(now.Add(-48*time.Hour), now))
	assert.Equal(t, "2024-05-01", formatRelativeTime(now.AddDate(0, -1, 0), now))

	start, end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1.00 y", formatTerm(&model.LoanConfig{LoanStartDate: &start, LoanEndDate: &end}))
	assert.Equal(t, "—", formatTerm(&model.LoanConfig{LoanStartDate: &start}))
}
