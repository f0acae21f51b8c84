package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CSVParser renders CSV rows as comma-joined lines.
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Name() string         { return "csv" }
func (p *CSVParser) Extensions() []string { return []string{".csv"} }

func (p *CSVParser) Parse(ctx context.Context, data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to parse CSV; %w", err)
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, ", "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ExcelParser extracts cell text from workbook sheets.
type ExcelParser struct{}

// NewExcelParser creates an Excel workbook parser.
func NewExcelParser() *ExcelParser {
	return &ExcelParser{}
}

func (p *ExcelParser) Name() string         { return "excel" }
func (p *ExcelParser) Extensions() []string { return []string{".xlsx", ".xls"} }

func (p *ExcelParser) Parse(ctx context.Context, data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open workbook; %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %q; %w", sheet, err)
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, ", "))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
