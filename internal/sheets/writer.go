package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/service"
)

// Tab titles.
const (
	rulesTab           = "Rules"
	recommendationsTab = "Recommendations"
)

// rulesHeaderRow is the zero-based row of the rule column header in the Rules tab.
const rulesHeaderRow = 15

var _ service.ReportWriter = (*Writer)(nil)

// Writer implements the ReportWriter interface for Google Sheets.
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

	return newWriter(srv, config, logger), nil
}

func newWriter(srv *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		config:  config,
		service: srv,
		logger:  logger.With("component", "sheets"),
	}
}

// Write implements the ReportWriter interface.
func (w *Writer) Write(ctx context.Context, table basket.RuleTable, summary *service.ReportSummary) error {
	if summary == nil {
		summary = &service.ReportSummary{
			GeneratedAt: time.Now(),
			Metric:      table.Metric(),
			Threshold:   table.Threshold(),
		}
	}

	w.logger.Info("starting rule export",
		"rules", table.Len(),
		"filter", summary.Filter.String())

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get spreadsheet: %w", common.ErrExportFailed, err)
	}

	sheetIDs, err := w.ensureTabs(ctx, spreadsheetID)
	if err != nil {
		return fmt.Errorf("%w: failed to prepare tabs: %w", common.ErrExportFailed, err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if clearErr := common.WithRetry(ctx, retryOpts, func(ctx context.Context) error {
		return classifyAPIError(w.clearSheets(ctx, spreadsheetID))
	}); clearErr != nil {
		return fmt.Errorf("%w: failed to clear sheets: %w", common.ErrExportFailed, clearErr)
	}

	values := prepareReportData(table, summary)
	err = common.WithRetry(ctx, retryOpts, func(ctx context.Context) error {
		return classifyAPIError(w.writeData(ctx, spreadsheetID, rulesTab, values))
	})
	if err != nil {
		return fmt.Errorf("%w: failed to write rules: %w", common.ErrExportFailed, err)
	}

	recs := Recommendations(table)
	err = common.WithRetry(ctx, retryOpts, func(ctx context.Context) error {
		return classifyAPIError(w.writeRecommendationsTab(ctx, spreadsheetID, recs))
	})
	if err != nil {
		return fmt.Errorf("%w: failed to write recommendations: %w", common.ErrExportFailed, err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, retryOpts, func(ctx context.Context) error {
			return classifyAPIError(w.applyFormatting(ctx, spreadsheetID, sheetIDs[rulesTab], len(values)))
		})
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("rule export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values),
		"recommendations", len(recs))

	return nil
}

// classifyAPIError tags Google API failures for WithRetry: 429 is a rate
// limit, other 4xx responses will not succeed on a second try.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return common.Permanent(err)
	default:
		return err
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	method, err := config.AuthMethod()
	if err != nil {
		return nil, err
	}

	var tokenSource oauth2.TokenSource
	switch method {
	case AuthServiceAccount:
		jsonKey, readErr := os.ReadFile(config.ServiceAccountPath)
		if readErr != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", readErr)
		}

		jwtConfig, parseErr := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if parseErr != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", parseErr)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	case AuthOAuth:
		client := oauthConfig(config.ClientID, config.ClientSecret, "")
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

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: rulesTab}},
			{Properties: &sheets.SheetProperties{Title: recommendationsTab}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

// ensureTabs makes sure both tabs exist and returns their sheet IDs by title.
func (w *Writer) ensureTabs(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	existing, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
	}

	ids := make(map[string]int64, 2)
	for _, s := range existing.Sheets {
		if s.Properties != nil {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
	}

	var requests []*sheets.Request
	for _, title := range []string{rulesTab, recommendationsTab} {
		if _, ok := ids[title]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			})
		}
	}
	if len(requests) == 0 {
		return ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return ids, nil
}

// clearSheets clears all data from both tabs.
func (w *Writer) clearSheets(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.BatchClear(spreadsheetID, &sheets.BatchClearValuesRequest{
		Ranges: []string{rulesTab + "!A:Z", recommendationsTab + "!A:Z"},
	}).Context(ctx).Do()
	return err
}

// prepareReportData lays out the Rules tab: a title, the analysis summary,
// then one row per rule under a column header.
func prepareReportData(table basket.RuleTable, summary *service.ReportSummary) [][]any {
	rows := RuleRows(table)
	values := make([][]any, 0, rulesHeaderRow+1+len(rows))

	generated := summary.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	values = append(values,
		[]any{"Association Rules", summary.Filter.String()},
		[]any{}, // Empty row
		[]any{"Summary"},
		[]any{"Point of Sale", summary.Filter.PointOfSaleID},
		[]any{"Period", fmt.Sprintf("%d Q%d", summary.Filter.Year, summary.Filter.Quarter)},
		[]any{"Granularity", summary.Granularity.Label()},
		[]any{"Metric", string(summary.Metric)},
		[]any{"Minimum Support", summary.MinSupport},
		[]any{"Minimum Threshold", summary.Threshold},
		[]any{"Transactions", summary.Transactions},
		[]any{"Frequent Itemsets", summary.Itemsets},
		[]any{"Rules", len(rows)},
		[]any{"Generated", generated.Format(time.RFC3339)},
		[]any{}, // Empty row
		[]any{"Rule Details"},
		ruleHeader,
	)

	for _, row := range rows {
		values = append(values, row.values())
	}

	return values
}

// writeData writes the data to the named tab in batches.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		valueRange := &sheets.ValueRange{
			Values: batch,
		}

		rangeStr := fmt.Sprintf("%s!A%d", tab, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()

		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", tab, "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// applyFormatting applies formatting to the Rules tab.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64, totalRows int) error {
	requests := []*sheets.Request{
		// Title
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold:     true,
							FontSize: 16,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		// Summary labels
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    2,
					EndRowIndex:      rulesHeaderRow,
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		// Rule column header
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    rulesHeaderRow,
					EndRowIndex:      rulesHeaderRow + 1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(ruleHeader)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		// Metric columns
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    rulesHeaderRow + 1,
					EndRowIndex:      int64(totalRows),
					StartColumnIndex: 3,
					EndColumnIndex:   int64(len(ruleHeader)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "NUMBER",
							Pattern: "0.0000",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		// Auto-resize columns
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(ruleHeader)),
				},
			},
		},
		// Freeze title row
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}
