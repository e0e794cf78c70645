package sapxml

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Profile is one versioned variant of the OtherItem mapping. The two variants
// seen in production differ in precision, amount sign and field set, and are
// kept side by side rather than merged.
type Profile interface {
	// Name is the selector used in configuration ("current", "legacy").
	Name() string

	// Version is the schema version the profile targets.
	Version() string

	// Precision is the number of decimals of every monetary element.
	Precision() int32

	// ItemAmount converts a line item amount as stored upstream into the value
	// rendered in AmntTransacCur.
	ItemAmount(amount decimal.Decimal) decimal.Decimal

	// ItemFields lists the OtherItem child elements in schema order.
	ItemFields() []string

	fields(r resolvedItem) []Field
}

type column struct {
	name  string
	value func(r resolvedItem) string
}

type columnProfile struct {
	name      string
	version   string
	precision int32
	negate    bool
	columns   []column
}

func (p *columnProfile) Name() string     { return p.name }
func (p *columnProfile) Version() string  { return p.version }
func (p *columnProfile) Precision() int32 { return p.precision }

func (p *columnProfile) ItemAmount(amount decimal.Decimal) decimal.Decimal {
	amount = amount.Round(p.precision)
	if p.negate {
		return amount.Neg()
	}
	return amount
}

func (p *columnProfile) ItemFields() []string {
	names := make([]string, len(p.columns))
	for i, c := range p.columns {
		names[i] = c.name
	}
	return names
}

func (p *columnProfile) fields(r resolvedItem) []Field {
	out := make([]Field, len(p.columns))
	for i, c := range p.columns {
		out[i] = Field{Name: c.name, Value: c.value(r)}
	}
	return out
}

// Current is the authoritative profile: 3 decimals, amounts as provided
// upstream, tax and sales-order fields.
var Current Profile = &columnProfile{
	name:      "current",
	version:   "01.00",
	precision: 3,
	columns: []column{
		{"IncomeRebateCode", func(r resolvedItem) string { return r.IncomeRebateCode }},
		{"AmntTransacCur", func(r resolvedItem) string { return r.Amount }},
		{"TaxCode", func(r resolvedItem) string { return r.TaxCode }},
		{"TaxAmntDocCur", func(r resolvedItem) string { return r.TaxAmountDoc }},
		{"TaxAmntCpyCur", func(r resolvedItem) string { return r.TaxAmountCompany }},
		{"ProfitCenter", func(r resolvedItem) string { return r.ProfitCenter }},
		{"InternalOrder", func(r resolvedItem) string { return r.InternalOrder }},
		{"Bundle", func(r resolvedItem) string { return r.Bundle }},
		{"Service", func(r resolvedItem) string { return r.Service }},
		{"Activity", func(r resolvedItem) string { return r.Activity }},
		{"Pillar", func(r resolvedItem) string { return r.Pillar }},
		{"BUCountry", func(r resolvedItem) string { return r.BUCountry }},
		{"ServiceCountry", func(r resolvedItem) string { return r.ServiceCountry }},
		{"RepairTyp", func(r resolvedItem) string { return r.RepairType }},
		{"ClientType", func(r resolvedItem) string { return r.ClientType }},
		{"BusinessType", func(r resolvedItem) string { return r.BusinessType }},
		{"FullEmpty", func(r resolvedItem) string { return r.FullEmpty }},
		{"CtrISOcode", func(r resolvedItem) string { return r.CtrISOCode }},
		{"CtrType", func(r resolvedItem) string { return r.CtrType }},
		{"CtrSize", func(r resolvedItem) string { return r.CtrSize }},
		{"CtrCategory", func(r resolvedItem) string { return r.CtrCategory }},
		{"SalesOrder", func(r resolvedItem) string { return r.SalesOrder }},
		{"Route", func(r resolvedItem) string { return r.Route }},
		{"Commodity", func(r resolvedItem) string { return r.Commodity }},
		{"SubContracting", func(r resolvedItem) string { return r.SubContracting }},
	},
}

// Legacy reproduces the older exporter: 2 decimals, negated item amounts,
// quantity/BL/container-number fields instead of tax and sales order.
// The open item keeps the upstream sign, so it equals the sum of the rendered
// items under Current only.
var Legacy Profile = &columnProfile{
	name:      "legacy",
	version:   "00.90",
	precision: 2,
	negate:    true,
	columns: []column{
		{"IncomeRebateCode", func(r resolvedItem) string { return r.IncomeRebateCode }},
		{"AmntTransacCur", func(r resolvedItem) string { return r.Amount }},
		{"BaseUnitMeasure", func(r resolvedItem) string { return r.BaseUnitMeasure }},
		{"Qty", func(r resolvedItem) string { return r.Quantity }},
		{"ProfitCenter", func(r resolvedItem) string { return r.ProfitCenter }},
		{"InternalOrder", func(r resolvedItem) string { return r.InternalOrder }},
		{"Bundle", func(r resolvedItem) string { return r.Bundle }},
		{"Service", func(r resolvedItem) string { return r.Service }},
		{"Activity", func(r resolvedItem) string { return r.Activity }},
		{"Pillar", func(r resolvedItem) string { return r.Pillar }},
		{"BUCountry", func(r resolvedItem) string { return r.BUCountry }},
		{"ServiceCountry", func(r resolvedItem) string { return r.ServiceCountry }},
		{"RepairTyp", func(r resolvedItem) string { return r.RepairType }},
		{"ReferencePeriod", func(r resolvedItem) string { return r.ReferencePeriod }},
		{"ClientType", func(r resolvedItem) string { return r.ClientType }},
		{"BusinessType", func(r resolvedItem) string { return r.BusinessType }},
		{"FullEmpty", func(r resolvedItem) string { return r.FullEmpty }},
		{"CtrISOcode", func(r resolvedItem) string { return r.CtrISOCode }},
		{"CtrType", func(r resolvedItem) string { return r.CtrType }},
		{"CtrSize", func(r resolvedItem) string { return r.CtrSize }},
		{"CtrCategory", func(r resolvedItem) string { return r.CtrCategory }},
		{"LineItemText", func(r resolvedItem) string { return r.Text }},
		{"BL", func(r resolvedItem) string { return r.BL }},
		{"CtrNbr", func(r resolvedItem) string { return r.CtrNbr }},
		{"Route", func(r resolvedItem) string { return r.Route }},
		{"Commodity", func(r resolvedItem) string { return r.Commodity }},
		{"SubContracting", func(r resolvedItem) string { return r.SubContracting }},
	},
}

// ProfileByName returns the profile selected by name. An empty name selects Current.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "current":
		return Current, nil
	case "legacy":
		return Legacy, nil
	}
	return nil, errors.Errorf("unknown schema profile %q (allowed: current, legacy)", name)
}
