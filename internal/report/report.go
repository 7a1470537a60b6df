package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"plenary/internal/language"
	"plenary/internal/records"
)

const (
	sessionsSheet = "Sessions"
	failuresSheet = "Failures"
)

var sessionHeader = []any{
	"Session ID", "Title", "Status", "Attempt", "Language",
	"Segments", "Words", "Embedding Ref", "Created", "Completed",
}

var failureHeader = []any{"Session ID", "Source URL", "Cause", "Message", "Updated"}

// Export writes every record in the store to an XLSX workbook with one
// sheet for all sessions and one for failures.
func Export(ctx context.Context, store *records.Store, path string) error {
	all, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("report: load records: %w", err)
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	workbook.SetSheetName(workbook.GetSheetName(0), sessionsSheet)
	if err := writeRow(workbook, sessionsSheet, 1, sessionHeader); err != nil {
		return err
	}
	for i, record := range all {
		row := []any{
			record.SessionID,
			record.Title,
			string(record.Status),
			record.Attempt,
			language.Display(record.Language),
			record.SegmentCount,
			record.WordCount,
			record.EmbeddingRef,
			formatTime(record.CreatedAt),
			formatTimePtr(record.CompletedAt),
		}
		if err := writeRow(workbook, sessionsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := workbook.NewSheet(failuresSheet); err != nil {
		return fmt.Errorf("report: create failures sheet: %w", err)
	}
	if err := writeRow(workbook, failuresSheet, 1, failureHeader); err != nil {
		return err
	}
	failureRow := 2
	for _, record := range all {
		if record.Status != records.StatusFailed {
			continue
		}
		row := []any{
			record.SessionID,
			record.SourceURL,
			record.ErrorCause,
			record.ErrorMessage,
			formatTime(record.UpdatedAt),
		}
		if err := writeRow(workbook, failuresSheet, failureRow, row); err != nil {
			return err
		}
		failureRow++
	}

	if err := workbook.SaveAs(path); err != nil {
		return fmt.Errorf("report: save workbook: %w", err)
	}
	return nil
}

func writeRow(workbook *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("report: build cell reference: %w", err)
	}
	if err := workbook.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("report: write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
