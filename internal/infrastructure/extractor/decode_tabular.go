package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// columnDelimiter joins cells of one row. Round-trip tests depend on this
// exact rendering, so it must not change.
const columnDelimiter = " | "

func decodeCSV(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("csv content is not valid utf-8")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("decode csv: %w", err)
	}

	rows := make([]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, strings.Join(record, columnDelimiter))
	}
	return strings.Join(rows, "\n"), nil
}

// decodeSpreadsheet flattens every sheet to rows joined by the column
// delimiter, sheets in workbook order separated by a blank line.
func decodeSpreadsheet(data []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer workbook.Close()

	var lines []string
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		lines = append(lines, "Sheet: "+sheet)
		for _, row := range rows {
			line := strings.Join(row, columnDelimiter)
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n"), nil
}
