package ledger

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheet layout, matching the reporting workbook:
// A display_name | B contact | C key | D date_started | E plan_label | F status_label
const (
	keyColumnIndex    = 2
	statusColumnIndex = 5
	readRange         = "A:F"
	statusColumn      = "F"
)

// valuesAPI is the slice of the Sheets values API the ledger needs. The
// indirection keeps the row-scan and cell-update logic testable without a
// live spreadsheet.
type valuesAPI interface {
	Get(ctx context.Context, readRange string) ([][]interface{}, error)
	Update(ctx context.Context, writeRange string, values [][]interface{}) error
	Append(ctx context.Context, writeRange string, values [][]interface{}) error
}

// SheetsLedger stores ledger rows in one Google Sheets tab.
type SheetsLedger struct {
	values    valuesAPI
	sheetName string
}

// NewSheetsLedger opens the configured spreadsheet tab.
func NewSheetsLedger(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsLedger, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("ledger: spreadsheet id is required")
	}
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: sheets service init: %w", err)
	}
	return &SheetsLedger{
		values:    &googleValues{srv: srv, spreadsheetID: spreadsheetID},
		sheetName: sheetName,
	}, nil
}

func (l *SheetsLedger) Find(ctx context.Context, key string) (*Row, error) {
	_, row, err := l.findRow(ctx, key)
	return row, err
}

func (l *SheetsLedger) Upsert(ctx context.Context, key, status string, newRow Row) error {
	rowIndex, existing, err := l.findRow(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		// Only the status cell changes on existing rows.
		writeRange := fmt.Sprintf("%s!%s%d", l.sheetName, statusColumn, rowIndex+1)
		if err := l.values.Update(ctx, writeRange, [][]interface{}{{status}}); err != nil {
			return fmt.Errorf("ledger: update status for key %s: %w", key, err)
		}
		return nil
	}

	newRow.Key = key
	newRow.StatusLabel = status
	appendRange := fmt.Sprintf("%s!%s", l.sheetName, readRange)
	values := [][]interface{}{{
		newRow.DisplayName,
		newRow.Contact,
		newRow.Key,
		newRow.DateStarted,
		newRow.PlanLabel,
		newRow.StatusLabel,
	}}
	if err := l.values.Append(ctx, appendRange, values); err != nil {
		return fmt.Errorf("ledger: append row for key %s: %w", key, err)
	}
	return nil
}

// findRow scans the key column and returns the zero-based row index and the
// parsed row, or (-1, nil) when the key is absent.
func (l *SheetsLedger) findRow(ctx context.Context, key string) (int, *Row, error) {
	rows, err := l.values.Get(ctx, fmt.Sprintf("%s!%s", l.sheetName, readRange))
	if err != nil {
		return -1, nil, fmt.Errorf("ledger: read rows: %w", err)
	}
	for i, cells := range rows {
		if cellString(cells, keyColumnIndex) != key {
			continue
		}
		return i, &Row{
			DisplayName: cellString(cells, 0),
			Contact:     cellString(cells, 1),
			Key:         key,
			DateStarted: cellString(cells, 3),
			PlanLabel:   cellString(cells, 4),
			StatusLabel: cellString(cells, statusColumnIndex),
		}, nil
	}
	return -1, nil, nil
}

func cellString(cells []interface{}, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	s, _ := cells[idx].(string)
	return strings.TrimSpace(s)
}

type googleValues struct {
	srv           *sheets.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, readRange string) ([][]interface{}, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(g.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Update(ctx context.Context, writeRange string, values [][]interface{}) error {
	_, err := g.srv.Spreadsheets.Values.
		Update(g.spreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (g *googleValues) Append(ctx context.Context, writeRange string, values [][]interface{}) error {
	_, err := g.srv.Spreadsheets.Values.
		Append(g.spreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
