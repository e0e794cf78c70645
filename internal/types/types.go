// =============================================================================
// SAP Invoice Export - Shared Types
// =============================================================================
//
// This package contains the invoice model shared by the input sources, the
// serializer and the export pipeline. Keeping it in one place avoids import
// cycles between:
//   - source
//   - sapxml
//   - converter
//
// =============================================================================

package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BUSINESS TYPE
// =============================================================================

// BusinessType classifies a shipment-related charge as import or export.
type BusinessType string

const (
	// Import is rendered as "I".
	Import BusinessType = "IMPORT"

	// Export is rendered as "E".
	Export BusinessType = "EXPORT"
)

// =============================================================================
// INVOICE TYPES
// =============================================================================

// Invoice is one customer invoice as assembled by the upstream business logic.
// It is handed to the serializer once; the serializer never mutates it.
type Invoice struct {
	// Number is the invoice number. Required.
	Number string

	// CustomerNbr is the SAP customer identifier. Required.
	CustomerNbr string

	// IssueDate is the calendar date the invoice was issued. Required.
	IssueDate time.Time

	// PostingDate overrides the SAP posting date. Nil means IssueDate.
	PostingDate *time.Time

	// Currency is the 3-letter transaction currency. Empty means the module default.
	Currency string

	// Total is the total stored on the invoice record. The exported open item
	// is recomputed from the line items, so this is informational only.
	Total decimal.Decimal

	// SAPDocumentNumber overrides Header.EntityDocNbr. Empty means Number.
	SAPDocumentNumber string

	// Module names the business module (trucking, agency, shipchandler) whose
	// defaults apply to this invoice. Empty means the pipeline's module.
	Module string

	// Items are the line items in output order.
	Items []LineItem

	// Transmission is set after the XML has been handed to the transmitter.
	Transmission *TransmissionStatus
}

// LineItem is one service, container movement or surcharge on an invoice.
type LineItem struct {
	// Amount is the monetary amount in transaction currency. Required.
	Amount decimal.NullDecimal

	// Tax fields. Empty TaxCode and zero amounts fall back to module defaults.
	TaxCode          string
	TaxAmountDoc     decimal.Decimal
	TaxAmountCompany decimal.Decimal

	// Cost allocation.
	ProfitCenter  string
	InternalOrder string
	Bundle        string

	// Service is the SAP service key, e.g. "TRK001". Required.
	Service string

	// Descriptive attributes, normally constant per module.
	Activity       string
	Pillar         string
	BUCountry      string
	ServiceCountry string
	RepairType     string
	ClientType     string

	// BusinessType must be Import or Export.
	BusinessType BusinessType

	// Container attributes.
	FullEmpty   string
	CtrISOCode  string
	CtrType     string
	CtrSize     string
	CtrCategory string

	// References.
	SalesOrder     string
	Route          string
	Commodity      string
	SubContracting string

	// Fields only carried by the legacy schema profile.
	BaseUnitMeasure string
	Quantity        decimal.NullDecimal
	ReferencePeriod string
	Text            string
	BL              string
	CtrNbr          string

	// SourceRow is the 1-based row in the input file this item came from,
	// or 0 when the invoice was not read from a tabular file.
	SourceRow int
}

// TransmissionStatus records the outcome of handing the XML to SAP.
type TransmissionStatus struct {
	Sent       bool
	SentAt     time.Time
	RemoteName string
}

// =============================================================================
// TABULAR INPUT
// =============================================================================

// Table is a row-oriented input file (CSV export or worksheet) with one
// line item per row and the invoice header repeated on every row.
type Table struct {
	// SourceFile is the path the table was read from.
	SourceFile string

	// Headers are the cleaned column headers in file order.
	Headers []string

	// Rows are the non-empty data rows in file order.
	Rows []Row
}

// Row is one data row keyed by header.
type Row struct {
	// Number is the 1-based line (CSV) or row (worksheet) number.
	Number int

	Values map[string]string
}

// Get returns the trimmed value of column, or "" if the row lacks it.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}
