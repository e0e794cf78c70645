package source

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/freightbill/sap-invoice-export/internal/types"
)

// headerColumns are taken from the first row of an invoice that fills them;
// later rows may repeat them but must not contradict them.
var headerColumns = []string{
	ColCustomerNbr, ColIssueDate, ColPostingDate, ColCurrency,
	ColTotal, ColSAPDocumentNumber, ColModule,
}

// DateLayouts are the accepted date formats, tried in order.
var DateLayouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

type pending struct {
	inv    types.Invoice
	header map[string]string
	source map[string]int
}

// builder groups rows into invoices by InvoiceNumber, keeping the order in
// which invoice numbers first appear.
type builder struct {
	module string
	order  []string
	byNum  map[string]*pending
}

func newBuilder(module string) *builder {
	return &builder{module: module, byNum: make(map[string]*pending)}
}

// add merges one row. withItem is false for header-only rows of documents
// that list no line items.
func (b *builder) add(row types.Row, withItem bool) error {
	number := row.Get(ColInvoiceNumber)
	if number == "" {
		return errors.Errorf("row %d: %s is empty", row.Number, ColInvoiceNumber)
	}

	p, ok := b.byNum[number]
	if !ok {
		inv, err := b.header(number, row)
		if err != nil {
			return err
		}
		p = &pending{inv: inv, header: map[string]string{}, source: map[string]int{}}
		for _, col := range headerColumns {
			if v := row.Get(col); v != "" {
				p.header[col] = v
				p.source[col] = row.Number
			}
		}
		b.byNum[number] = p
		b.order = append(b.order, number)
	} else {
		for _, col := range headerColumns {
			v := row.Get(col)
			if v == "" {
				continue
			}
			prev := p.header[col]
			if prev == "" {
				if err := setHeader(&p.inv, col, v, row.Number); err != nil {
					return err
				}
				p.header[col] = v
				p.source[col] = row.Number
				continue
			}
			if prev != v {
				return errors.Errorf("row %d: invoice %s %s %q conflicts with %q of row %d",
					row.Number, number, col, v, prev, p.source[col])
			}
		}
	}

	if !withItem {
		return nil
	}
	item, err := lineItem(row)
	if err != nil {
		return err
	}
	p.inv.Items = append(p.inv.Items, item)
	return nil
}

func (b *builder) invoices() []types.Invoice {
	out := make([]types.Invoice, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, b.byNum[n].inv)
	}
	return out
}

func (b *builder) header(number string, row types.Row) (types.Invoice, error) {
	inv := types.Invoice{Number: number, Module: b.module}
	for _, col := range headerColumns {
		if err := setHeader(&inv, col, row.Get(col), row.Number); err != nil {
			return inv, err
		}
	}
	return inv, nil
}

// setHeader copies one non-empty header column onto inv.
func setHeader(inv *types.Invoice, col, v string, rowNum int) error {
	if v == "" {
		return nil
	}
	switch col {
	case ColCustomerNbr:
		inv.CustomerNbr = v
	case ColCurrency:
		inv.Currency = strings.ToUpper(v)
	case ColSAPDocumentNumber:
		inv.SAPDocumentNumber = v
	case ColModule:
		inv.Module = strings.ToLower(v)
	case ColIssueDate:
		t, err := ParseDate(v)
		if err != nil {
			return errors.Wrapf(err, "row %d: %s", rowNum, col)
		}
		inv.IssueDate = t
	case ColPostingDate:
		t, err := ParseDate(v)
		if err != nil {
			return errors.Wrapf(err, "row %d: %s", rowNum, col)
		}
		inv.PostingDate = &t
	case ColTotal:
		d, err := ParseAmount(v)
		if err != nil {
			return errors.Wrapf(err, "row %d: %s", rowNum, col)
		}
		inv.Total = d
	}
	return nil
}

func lineItem(row types.Row) (types.LineItem, error) {
	item := types.LineItem{
		TaxCode:         row.Get(ColTaxCode),
		ProfitCenter:    row.Get(ColProfitCenter),
		InternalOrder:   row.Get(ColInternalOrder),
		Bundle:          row.Get(ColBundle),
		Service:         row.Get(ColService),
		Activity:        row.Get(ColActivity),
		Pillar:          row.Get(ColPillar),
		BUCountry:       row.Get(ColBUCountry),
		ServiceCountry:  row.Get(ColServiceCountry),
		RepairType:      row.Get(ColRepairType),
		ClientType:      row.Get(ColClientType),
		BusinessType:    types.BusinessType(strings.ToUpper(row.Get(ColBusinessType))),
		FullEmpty:       row.Get(ColFullEmpty),
		CtrISOCode:      row.Get(ColCtrISOCode),
		CtrType:         row.Get(ColCtrType),
		CtrSize:         row.Get(ColCtrSize),
		CtrCategory:     row.Get(ColCtrCategory),
		SalesOrder:      row.Get(ColSalesOrder),
		Route:           row.Get(ColRoute),
		Commodity:       row.Get(ColCommodity),
		SubContracting:  row.Get(ColSubContracting),
		BaseUnitMeasure: row.Get(ColBaseUnitMeasure),
		ReferencePeriod: row.Get(ColReferencePeriod),
		Text:            row.Get(ColText),
		BL:              row.Get(ColBL),
		CtrNbr:          row.Get(ColCtrNbr),
		SourceRow:       row.Number,
	}

	var err error
	if item.Amount, err = nullAmount(row, ColAmount); err != nil {
		return item, err
	}
	if item.Quantity, err = nullAmount(row, ColQuantity); err != nil {
		return item, err
	}
	tax, err := nullAmount(row, ColTaxAmountDoc)
	if err != nil {
		return item, err
	}
	item.TaxAmountDoc = tax.Decimal
	if tax, err = nullAmount(row, ColTaxAmountCompany); err != nil {
		return item, err
	}
	item.TaxAmountCompany = tax.Decimal
	return item, nil
}

// nullAmount parses an optional numeric column. An empty cell is not valid,
// which lets the serializer tell a missing amount from a zero one.
func nullAmount(row types.Row, col string) (decimal.NullDecimal, error) {
	v := row.Get(col)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrapf(err, "row %d: %s", row.Number, col)
	}
	return decimal.NewNullDecimal(d), nil
}

// ParseAmount parses a monetary value as exported by spreadsheets:
// thousands separators, a leading currency sign and accounting-style
// parentheses for negatives are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Errorf("invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseDate parses a date in one of DateLayouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
}
