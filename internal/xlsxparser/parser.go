// =============================================================================
// SAP Invoice Export - XLSX Parser Module
// =============================================================================
//
// This module reads invoice line-item workbooks. The layout matches the CSV
// exports: the first non-empty row of the sheet holds the column headers and
// every following row is one line item.
//
// Cell values are read as displayed by Excel (excelize GetRows), so amounts
// formatted with thousands separators arrive with them and are cleaned by
// the source package.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/freightbill/sap-invoice-export/internal/types"
)

// Parse reads one sheet of an XLSX workbook.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//   - sheet: The sheet name. Empty selects the first sheet.
//
// RETURNS:
//   - The parsed table; Row.Number is the worksheet row number.
//   - An error if the workbook cannot be opened, the sheet does not exist,
//     or the sheet has no header row.
func Parse(filePath, sheet string) (*types.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	table, err := ReadSheet(f, sheet)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath
	return table, nil
}

// ReadSheet reads a sheet of an already opened workbook.
func ReadSheet(f *excelize.File, sheet string) (*types.Table, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("workbook has no sheets")
		}
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errors.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read rows of %q", sheet)
	}

	headerAt := -1
	for i, row := range rows {
		if !isRowEmpty(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, errors.Errorf("sheet %q is empty", sheet)
	}

	table := &types.Table{Headers: cleanHeaders(rows[headerAt])}

	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		values := make(map[string]string, len(table.Headers))
		for col, h := range table.Headers {
			if col < len(row) {
				values[h] = strings.TrimSpace(row[col])
			} else {
				values[h] = ""
			}
		}
		table.Rows = append(table.Rows, types.Row{Number: i + 1, Values: values})
	}

	return table, nil
}

// cleanHeaders trims header values and names blank ones after their column.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				name = fmt.Sprint(i + 1)
			}
			header = "Column_" + name
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
