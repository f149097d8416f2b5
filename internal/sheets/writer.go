package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

// NoData is written in cells without a value.
const NoData = "—"

// headerRows is the number of rows above the first statement row: title,
// blank line and column headers.
const headerRows = 3

// Writer implements service.ReportWriter for Google Sheets. Each report
// goes to its own tab, which is cleared and rewritten on every export.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
	}, nil
}

// Write implements the ReportWriter interface.
func (w *Writer) Write(ctx context.Context, report *service.Report) error {
	if report == nil {
		return errors.New("nil report")
	}
	if report.Sheet == "" {
		return fmt.Errorf("%w: report has no sheet name", common.ErrValidation)
	}

	w.logger.Info("starting report export",
		"sheet", report.Sheet,
		"rows", len(report.Rows),
		"warnings", len(report.Warnings))

	retryOpts := common.RetryOptions{
		MaxAttempts:  max(w.config.RetryAttempts, 1),
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx, report.Sheet)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	var sheetID int64
	err = common.WithRetry(ctx, func() error {
		var ensureErr error
		sheetID, ensureErr = w.ensureSheet(ctx, spreadsheetID, report.Sheet)
		return classifyError(ensureErr)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to prepare sheet %q: %w", report.Sheet, err)
	}

	if clearErr := w.clearSheet(ctx, spreadsheetID, report.Sheet); clearErr != nil {
		return fmt.Errorf("failed to clear sheet: %w", clearErr)
	}

	values := ReportValues(report)

	err = common.WithRetry(ctx, func() error {
		return classifyError(w.writeData(ctx, spreadsheetID, report.Sheet, values))
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		requests := formattingRequests(sheetID, report, w.config.CurrencyPattern)
		err = common.WithRetry(ctx, func() error {
			_, batchErr := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: requests,
			}).Context(ctx).Do()
			return classifyError(batchErr)
		}, retryOpts)
		if err != nil {
			// the data is already written
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report export completed",
		"spreadsheet_id", spreadsheetID,
		"sheet", report.Sheet,
		"rows_written", len(values))

	return nil
}

// classifyError marks which API failures are worth another attempt: quota
// errors and server errors are, other 4xx answers are not. Transport errors
// without an API status are retried.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return &common.RetryableError{Err: err, Retryable: true}
		default:
			return &common.RetryableError{Err: err, Retryable: false}
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &common.RetryableError{Err: err, Retryable: true}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := oauthClientConfig(config.ClientID, config.ClientSecret, "")
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets the configured spreadsheet or creates a new
// one whose first tab is named firstSheet.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context, firstSheet string) (string, error) {
	if w.config.SpreadsheetID != "" {
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
			Locale:   w.config.Locale,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: firstSheet}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	// later exports in this process reuse it
	w.config.SpreadsheetID = created.SpreadsheetId
	return created.SpreadsheetId, nil
}

// ensureSheet returns the id of the tab named title, adding it when missing.
func (w *Writer) ensureSheet(ctx context.Context, spreadsheetID, title string) (int64, error) {
	ss, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
	}
	if id, ok := findSheet(ss, title); ok {
		return id, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to add sheet: %w", err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, errors.New("add sheet returned no properties")
	}
	w.logger.Debug("added sheet", "title", title)
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func findSheet(ss *sheets.Spreadsheet, title string) (int64, bool) {
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, true
		}
	}
	return 0, false
}

// clearSheet clears all data from the tab.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID, title string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, quoteSheet(title), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// ReportValues lays a report out as sheet rows: the title, a blank line,
// the column headers, one row per report row and the warnings at the end.
// Labels are indented by level and cells without data hold NoData.
func ReportValues(report *service.Report) [][]any {
	values := make([][]any, 0, headerRows+len(report.Rows)+len(report.Warnings)+2)

	headers := make([]any, len(report.Headers))
	for i, h := range report.Headers {
		headers[i] = h
	}
	values = append(values, []any{report.Title}, []any{}, headers)

	for _, row := range report.Rows {
		line := make([]any, 0, len(row.Cells)+1)
		line = append(line, strings.Repeat("  ", row.Level)+row.Label)
		for _, c := range row.Cells {
			if !c.Valid {
				line = append(line, NoData)
				continue
			}
			line = append(line, c.Decimal.Round(2).InexactFloat64())
		}
		values = append(values, line)
	}

	if len(report.Warnings) > 0 {
		values = append(values, []any{}, []any{"Avertissements"})
		for _, warning := range report.Warnings {
			values = append(values, []any{warning})
		}
	}
	return values
}

// writeData writes the data to the tab in batches.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		rangeStr := fmt.Sprintf("%s!A%d", quoteSheet(title), i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// formattingRequests styles a tab laid out by ReportValues: a large title,
// bold headers and bold rows, currency on the year columns, frozen header
// and label column.
func formattingRequests(sheetID int64, report *service.Report, currencyPattern string) []*sheets.Request {
	cols := int64(max(len(report.Headers), 1))
	lastRow := int64(headerRows + len(report.Rows))

	bold := func(start, end int64, size int64) *sheets.Request {
		return &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    start,
					EndRowIndex:      end,
					StartColumnIndex: 0,
					EndColumnIndex:   cols,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: size},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		}
	}

	requests := []*sheets.Request{
		bold(0, 1, 14),
		bold(headerRows-1, headerRows, 10),
	}
	for i, row := range report.Rows {
		if row.Bold {
			idx := int64(headerRows + i)
			requests = append(requests, bold(idx, idx+1, 10))
		}
	}

	if cols > 1 {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    headerRows,
					EndRowIndex:      lastRow,
					StartColumnIndex: 1,
					EndColumnIndex:   cols,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat:        &sheets.NumberFormat{Type: "CURRENCY", Pattern: currencyPattern},
						HorizontalAlignment: "RIGHT",
					},
				},
				Fields: "userEnteredFormat.numberFormat,userEnteredFormat.horizontalAlignment",
			},
		})
	}

	requests = append(requests,
		&sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   cols,
				},
			},
		},
		&sheets.Request{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount:    headerRows,
						FrozenColumnCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
			},
		},
	)
	return requests
}

// quoteSheet quotes a tab title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
