// =============================================================================
// SAP Invoice Export - CSV Parser Module
// =============================================================================
//
// This module reads invoice line-item exports in CSV form. Each row is one
// line item; the invoice header columns (InvoiceNumber, CustomerNbr, ...)
// are repeated on every row and grouped later by the source package.
//
// FEATURES:
//   - Configurable delimiter (comma, semicolon, pipe, tab)
//   - Optional comment lines
//   - UTF-8 byte order mark on the header row is ignored
//   - Empty rows are skipped; row numbers still refer to the file line
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/types"
)

const bom = "\ufeff"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV settings of the module the file belongs to.
//
// RETURNS:
//   - The parsed table. The first non-comment record is the header row.
//   - An error if the file cannot be read, is malformed, or has no header.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer file.Close()

	table, err := Read(file, settings)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath
	return table, nil
}

// Read parses CSV data from r.
func Read(r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	configureReader(reader, settings)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("CSV file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}

	table := &types.Table{Headers: cleanHeaders(header)}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read CSV")
		}
		if isRowEmpty(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		values := make(map[string]string, len(table.Headers))
		for i, h := range table.Headers {
			if i < len(record) {
				values[h] = strings.TrimSpace(record[i])
			} else {
				values[h] = ""
			}
		}
		table.Rows = append(table.Rows, types.Row{Number: line, Values: values})
	}

	return table, nil
}

// configureReader applies the module's CSV settings.
//
// The delimiter accepts the character itself or one of the names
// "tab", "pipe", "semicolon".
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch strings.ToLower(settings.Delimiter) {
	case "\\t", "\t", "tab":
		reader.Comma = '\t'
	case "|", "pipe":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	case "", ",", "comma":
		reader.Comma = ','
	default:
		reader.Comma = []rune(settings.Delimiter)[0]
	}

	if settings.Comment != "" {
		reader.Comment = []rune(settings.Comment)[0]
	}

	// Exports from the invoicing system pad trailing columns inconsistently.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims header values and names blank ones after their column.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
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
