// Package source reads invoices from the files dropped in the input folder.
//
// Two shapes are supported. Invoice documents (.yaml, .yml, .json) carry
// invoices with nested line items. Tabular exports (.csv, .xlsx) carry one
// line item per row with the invoice header repeated on every row; rows are
// grouped into invoices by InvoiceNumber in order of first appearance.
//
// Both shapes are turned into rows keyed by the canonical column names below
// so the same transformation rules apply to every input.
package source

import (
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/csvparser"
	"github.com/freightbill/sap-invoice-export/internal/types"
	"github.com/freightbill/sap-invoice-export/internal/xlsxparser"
)

var logger = logrus.WithField("component", "source")

// Canonical column names.
const (
	ColInvoiceNumber     = "InvoiceNumber"
	ColCustomerNbr       = "CustomerNbr"
	ColIssueDate         = "IssueDate"
	ColPostingDate       = "PostingDate"
	ColCurrency          = "Currency"
	ColTotal             = "Total"
	ColSAPDocumentNumber = "SAPDocumentNumber"
	ColModule            = "Module"

	ColAmount           = "Amount"
	ColTaxCode          = "TaxCode"
	ColTaxAmountDoc     = "TaxAmountDoc"
	ColTaxAmountCompany = "TaxAmountCompany"
	ColProfitCenter     = "ProfitCenter"
	ColInternalOrder    = "InternalOrder"
	ColBundle           = "Bundle"
	ColService          = "Service"
	ColActivity         = "Activity"
	ColPillar           = "Pillar"
	ColBUCountry        = "BUCountry"
	ColServiceCountry   = "ServiceCountry"
	ColRepairType       = "RepairType"
	ColClientType       = "ClientType"
	ColBusinessType     = "BusinessType"
	ColFullEmpty        = "FullEmpty"
	ColCtrISOCode       = "CtrISOCode"
	ColCtrType          = "CtrType"
	ColCtrSize          = "CtrSize"
	ColCtrCategory      = "CtrCategory"
	ColSalesOrder       = "SalesOrder"
	ColRoute            = "Route"
	ColCommodity        = "Commodity"
	ColSubContracting   = "SubContracting"
	ColBaseUnitMeasure  = "BaseUnitMeasure"
	ColQuantity         = "Quantity"
	ColReferencePeriod  = "ReferencePeriod"
	ColText             = "Text"
	ColBL               = "BL"
	ColCtrNbr           = "CtrNbr"
)

// Extensions lists the input file extensions Load understands.
var Extensions = []string{".yaml", ".yml", ".json", ".csv", ".xlsx"}

// Supported reports whether Load understands the file's extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// RowFunc transforms a row in place before it becomes part of an invoice.
type RowFunc func(row *types.Row) error

// Load reads every invoice of the file at path.
//
// PARAMETERS:
//   - path: The input file.
//   - module: The module the file belongs to; supplies CSV settings, the
//     worksheet name and column aliases. Invoices without an explicit
//     module get module.Name.
//   - transform: Applied to every row after aliasing. May be nil.
//
// RETURNS:
//   - The invoices in file order.
//   - An error if the file cannot be read or any row cannot be converted.
func Load(path string, module *config.ModuleConfig, transform RowFunc) ([]types.Invoice, error) {
	if module == nil {
		return nil, errors.New("nil module config")
	}

	var (
		invoices []types.Invoice
		err      error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		invoices, err = loadDocument(path, module, transform)
	case ".csv":
		var table *types.Table
		if table, err = csvparser.Parse(path, module.CSVSettings); err == nil {
			invoices, err = FromTable(table, module, transform)
		}
	case ".xlsx":
		var table *types.Table
		if table, err = xlsxparser.Parse(path, module.Sheet); err == nil {
			invoices, err = FromTable(table, module, transform)
		}
	default:
		return nil, errors.Errorf("unsupported input file %s", filepath.Base(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filepath.Base(path))
	}

	logger.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"module":   module.Name,
		"invoices": len(invoices),
	}).Debug("Loaded input file")

	return invoices, nil
}

// FromTable groups the rows of a tabular export into invoices.
func FromTable(table *types.Table, module *config.ModuleConfig, transform RowFunc) ([]types.Invoice, error) {
	b := newBuilder(module.Name)
	for _, row := range table.Rows {
		row.Values = applyAliases(row.Values, module.ColumnAliases)
		if transform != nil {
			if err := transform(&row); err != nil {
				return nil, err
			}
		}
		if err := b.add(row, true); err != nil {
			return nil, err
		}
	}
	return b.invoices(), nil
}

// applyAliases renames columns to their canonical names. Values already
// present under the canonical name win over aliased ones.
func applyAliases(values map[string]string, aliases map[string]string) map[string]string {
	if len(aliases) == 0 {
		return values
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if canonical, ok := aliases[k]; ok {
			if _, exists := values[canonical]; exists {
				continue
			}
			k = canonical
		}
		out[k] = v
	}
	return out
}
