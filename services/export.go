package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"pdf-chat-platform/internal/logger"
)

// ExportService renders a user's chat history as an Excel workbook, one
// sheet of turns plus a summary sheet.
type ExportService struct {
	history HistoryStore
}

func NewExportService(history HistoryStore) *ExportService {
	return &ExportService{history: history}
}

// ExportChats builds the workbook for one user. When pdf is non-empty only
// that document's turns are included, otherwise every document is exported.
func (es *ExportService) ExportChats(ctx context.Context, username, pdf string) ([]byte, error) {
	doc, err := es.history.Load(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	pdfs := make([]string, 0, len(doc.PDFChats))
	for name := range doc.PDFChats {
		if pdf != "" && name != pdf {
			continue
		}
		pdfs = append(pdfs, name)
	}
	sort.Strings(pdfs)
	if pdf != "" && len(pdfs) == 0 {
		return nil, fmt.Errorf("no chat history for %q", pdf)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("closing export workbook", "error", err)
		}
	}()

	sheetName := "Chat History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"PDF", "Question", "Answer", "Timestamp"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	row := 2
	total := 0
	for _, name := range pdfs {
		for _, turn := range doc.PDFChats[name] {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), name)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), turn.Question)
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), turn.Answer)
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), turn.Timestamp.Format("2006-01-02 15:04:05"))
			row++
			total++
		}
	}

	widths := []float64{30, 60, 80, 20}
	for i, w := range widths {
		col := fmt.Sprintf("%c", 'A'+i)
		f.SetColWidth(sheetName, col, col, w)
	}

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryData := [][]interface{}{
		{"Export Date", time.Now().Format("2006-01-02 15:04:05")},
		{"User", username},
		{"Documents", len(pdfs)},
		{"Total Turns", total},
	}
	for i, r := range summaryData {
		for j, cell := range r {
			f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
