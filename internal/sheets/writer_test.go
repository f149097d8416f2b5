package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func sampleReport() *service.Report {
	val := func(s string) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}
	return &service.Report{
		Title:   "Compte de résultat",
		Sheet:   "Compte de résultat",
		Headers: []string{"Catégorie", "2021", "2022"},
		Rows: []service.ReportRow{
			{Label: "Produits d'exploitation", Bold: true},
			{Label: "Loyers", Level: 1, Cells: []decimal.NullDecimal{val("12000"), val("6000")}},
			{Label: "Charges - Amortissements", Level: 1, Cells: []decimal.NullDecimal{val("3000"), {}}},
			{Label: "Résultat net", Bold: true, Cells: []decimal.NullDecimal{val("10113.456"), val("-250")}},
		},
		Warnings: []string{"Le bilan n'est pas équilibré (ACTIF ≠ PASSIF) pour : 2022"},
	}
}

func TestReportValues(t *testing.T) {
	values := ReportValues(sampleReport())

	require.Len(t, values, headerRows+4+3)
	assert.Equal(t, []any{"Compte de résultat"}, values[0])
	assert.Empty(t, values[1])
	assert.Equal(t, []any{"Catégorie", "2021", "2022"}, values[2])

	assert.Equal(t, []any{"Produits d'exploitation"}, values[3])
	assert.Equal(t, []any{"  Loyers", 12000.0, 6000.0}, values[4])
	assert.Equal(t, []any{"  Charges - Amortissements", 3000.0, NoData}, values[5])
	assert.Equal(t, []any{"Résultat net", 10113.46, -250.0}, values[6], "amounts are rounded to cents")

	assert.Empty(t, values[7])
	assert.Equal(t, []any{"Avertissements"}, values[8])
	assert.Equal(t, []any{"Le bilan n'est pas équilibré (ACTIF ≠ PASSIF) pour : 2022"}, values[9])
}

func TestReportValues_NoWarnings(t *testing.T) {
	r := sampleReport()
	r.Warnings = nil
	assert.Len(t, ReportValues(r), headerRows+len(r.Rows))
}

func TestFormattingRequests(t *testing.T) {
	r := sampleReport()
	requests := formattingRequests(7, r, "#,##0.00 €")

	var boldRows []int64
	var currency *sheets.RepeatCellRequest
	var frozen *sheets.GridProperties
	for _, req := range requests {
		switch {
		case req.RepeatCell != nil && req.RepeatCell.Cell.UserEnteredFormat.TextFormat != nil:
			assert.Equal(t, int64(7), req.RepeatCell.Range.SheetId)
			boldRows = append(boldRows, req.RepeatCell.Range.StartRowIndex)
		case req.RepeatCell != nil:
			currency = req.RepeatCell
		case req.UpdateSheetProperties != nil:
			frozen = req.UpdateSheetProperties.Properties.GridProperties
		}
	}

	// title, headers, then the two bold report rows
	assert.Equal(t, []int64{0, 2, 3, 6}, boldRows)

	require.NotNil(t, currency)
	assert.Equal(t, "#,##0.00 €", currency.Cell.UserEnteredFormat.NumberFormat.Pattern)
	assert.Equal(t, int64(1), currency.Range.StartColumnIndex)
	assert.Equal(t, int64(3), currency.Range.EndColumnIndex)
	assert.Equal(t, int64(headerRows), currency.Range.StartRowIndex)
	assert.Equal(t, int64(headerRows+4), currency.Range.EndRowIndex)

	require.NotNil(t, frozen)
	assert.Equal(t, int64(headerRows), frozen.FrozenRowCount)
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Bilan'", quoteSheet("Bilan"))
	assert.Equal(t, "'Compte de résultat'", quoteSheet("Compte de résultat"))
	assert.Equal(t, "'L''Atelier'", quoteSheet("L'Atelier"))
}

func TestFindSheet(t *testing.T) {
	ss := &sheets.Spreadsheet{Sheets: []*sheets.Sheet{
		{Properties: &sheets.SheetProperties{Title: "Bilan", SheetId: 0}},
		{Properties: &sheets.SheetProperties{Title: "Compte de résultat", SheetId: 42}},
	}}

	id, ok := findSheet(ss, "Compte de résultat")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = findSheet(ss, "Prévisionnel")
	assert.False(t, ok)
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, classifyError(nil))

	quota := fmt.Errorf("update: %w", &googleapi.Error{Code: http.StatusTooManyRequests})
	assert.ErrorIs(t, classifyError(quota), common.ErrRateLimit)
	assert.True(t, common.IsRetryable(classifyError(quota)))

	assert.True(t, common.IsRetryable(classifyError(&googleapi.Error{Code: http.StatusServiceUnavailable})))
	assert.False(t, common.IsRetryable(classifyError(&googleapi.Error{Code: http.StatusForbidden})))
	assert.False(t, common.IsRetryable(classifyError(&googleapi.Error{Code: http.StatusBadRequest})))

	assert.True(t, common.IsRetryable(classifyError(errors.New("connection reset by peer"))))
	assert.False(t, common.IsRetryable(classifyError(context.Canceled)))
}

func TestMockWriter(t *testing.T) {
	ctx := context.Background()
	m := NewMockWriter()

	require.NoError(t, m.Write(ctx, &service.Report{Sheet: "Bilan"}))
	require.NoError(t, m.Write(ctx, &service.Report{Sheet: "Compte de résultat"}))
	assert.Equal(t, 2, m.WriteCallCount)
	assert.Equal(t, []string{"Bilan", "Compte de résultat"}, m.Sheets())
	assert.Equal(t, "Compte de résultat", m.LastReport.Sheet)

	boom := errors.New("quota exceeded")
	m.SetWriteError(boom)
	assert.ErrorIs(t, m.Write(ctx, &service.Report{Sheet: "Bilan"}), boom)
	assert.ErrorIs(t, m.WriteCalls[2].Error, boom)

	m.Reset()
	assert.Zero(t, m.WriteCallCount)
	assert.Nil(t, m.LastReport)
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	h := callbackHandler("s1", codes, errs)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, codes)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&error=access_denied", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, errs, 1)
	assert.Contains(t, (<-errs).Error(), "access_denied")

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", <-codes)
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, saveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, loaded.Expiry.Equal(token.Expiry))

	// a valid token is returned as is, without any network call
	got, err := RefreshTokenIfNeeded(context.Background(), OAuth2Config{TokenFile: path}, loaded)
	require.NoError(t, err)
	assert.Same(t, loaded, got)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
