package sapxml

import (
	"strings"

	"github.com/freightbill/sap-invoice-export/internal/types"
	"github.com/shopspring/decimal"
)

// Field is one (element name, text) pair of an OtherItem, in output order.
type Field struct {
	Name  string
	Value string
}

// BusinessTypeCode translates the stored business type to its one-letter SAP
// code. Every value other than IMPORT and EXPORT is rejected.
func BusinessTypeCode(bt types.BusinessType) (string, error) {
	return businessTypeCode(bt, 0)
}

func businessTypeCode(bt types.BusinessType, index int) (string, error) {
	switch bt {
	case types.Import:
		return "I", nil
	case types.Export:
		return "E", nil
	}
	return "", &FieldError{Kind: ErrInvalidBusinessType, Field: "BusinessType", Item: index, Value: string(bt)}
}

// MapLineItem turns one line item into the ordered field list of the given
// profile. index is the 1-based position of the item, used in errors.
func MapLineItem(item types.LineItem, defaults Defaults, profile Profile, index int) ([]Field, error) {
	r, err := resolveItem(item, defaults, profile, index)
	if err != nil {
		return nil, err
	}
	return profile.fields(r), nil
}

// resolvedItem is a line item with every default applied and every value
// already formatted as element text.
type resolvedItem struct {
	IncomeRebateCode string
	Amount           string
	TaxCode          string
	TaxAmountDoc     string
	TaxAmountCompany string
	ProfitCenter     string
	InternalOrder    string
	Bundle           string
	Service          string
	Activity         string
	Pillar           string
	BUCountry        string
	ServiceCountry   string
	RepairType       string
	ClientType       string
	BusinessType     string
	FullEmpty        string
	CtrISOCode       string
	CtrType          string
	CtrSize          string
	CtrCategory      string
	SalesOrder       string
	Route            string
	Commodity        string
	SubContracting   string
	BaseUnitMeasure  string
	Quantity         string
	ReferencePeriod  string
	Text             string
	BL               string
	CtrNbr           string
}

func resolveItem(item types.LineItem, d Defaults, profile Profile, index int) (resolvedItem, error) {
	if !item.Amount.Valid {
		return resolvedItem{}, missing("AmntTransacCur", index)
	}
	service := strings.TrimSpace(item.Service)
	if service == "" {
		return resolvedItem{}, missing("Service", index)
	}
	bt, err := businessTypeCode(item.BusinessType, index)
	if err != nil {
		return resolvedItem{}, err
	}

	precision := profile.Precision()
	amount := profile.ItemAmount(item.Amount.Decimal)

	qty := decimal.NewFromInt(1)
	if item.Quantity.Valid {
		qty = item.Quantity.Decimal
	}

	r := resolvedItem{
		IncomeRebateCode: d.IncomeRebateCode,
		Amount:           FormatAmount(amount, precision),
		TaxCode:          or(item.TaxCode, d.TaxCode),
		TaxAmountDoc:     FormatAmount(item.TaxAmountDoc, precision),
		TaxAmountCompany: FormatAmount(item.TaxAmountCompany, precision),
		ProfitCenter:     or(item.ProfitCenter, d.ProfitCenter),
		InternalOrder:    or(item.InternalOrder, d.InternalOrder),
		Bundle:           or(item.Bundle, d.Bundle),
		Service:          service,
		Activity:         or(item.Activity, d.Activity),
		Pillar:           or(item.Pillar, d.Pillar),
		BUCountry:        or(item.BUCountry, d.BUCountry),
		ServiceCountry:   or(item.ServiceCountry, d.ServiceCountry),
		RepairType:       or(item.RepairType, d.RepairType),
		ClientType:       or(item.ClientType, d.ClientType),
		BusinessType:     bt,
		FullEmpty:        or(item.FullEmpty, d.FullEmpty),
		CtrISOCode:       or(item.CtrISOCode, d.CtrISOCode),
		CtrType:          or(item.CtrType, d.CtrType),
		CtrSize:          or(item.CtrSize, d.CtrSize),
		CtrCategory:      or(item.CtrCategory, d.CtrCategory),
		SalesOrder:       or(item.SalesOrder, d.SalesOrder),
		Route:            or(item.Route, d.Route),
		Commodity:        or(item.Commodity, d.Commodity),
		SubContracting:   or(item.SubContracting, d.SubContracting),
		BaseUnitMeasure:  or(item.BaseUnitMeasure, d.BaseUnitMeasure),
		Quantity:         qty.String(),
		ReferencePeriod:  or(item.ReferencePeriod, d.ReferencePeriod),
		Text:             item.Text,
		BL:               item.BL,
		CtrNbr:           item.CtrNbr,
	}

	resolved := Defaults{
		IncomeRebateCode: r.IncomeRebateCode,
		ProfitCenter:     r.ProfitCenter,
		InternalOrder:    r.InternalOrder,
		Bundle:           r.Bundle,
		Activity:         r.Activity,
		Pillar:           r.Pillar,
		BUCountry:        r.BUCountry,
		ServiceCountry:   r.ServiceCountry,
		RepairType:       r.RepairType,
		ClientType:       r.ClientType,
	}
	if unset := resolved.Unset(); len(unset) > 0 {
		return resolvedItem{}, missing(unset[0], index)
	}
	return r, nil
}

func or(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
