package sapxml

// Defaults is the per-module configuration record consulted by the mapper and
// the assembler whenever an invoice or line item leaves a field empty. It is
// passed explicitly so mapping stays a pure function of its inputs.
type Defaults struct {
	// Header level.
	CompanyCode  string `yaml:"company_code"`
	DocumentType string `yaml:"document_type"`
	Currency     string `yaml:"currency"`
	LangKey      string `yaml:"lang_key"`

	// Line item level.
	IncomeRebateCode string `yaml:"income_rebate_code"`
	TaxCode          string `yaml:"tax_code"`
	ProfitCenter     string `yaml:"profit_center"`
	InternalOrder    string `yaml:"internal_order"`
	Bundle           string `yaml:"bundle"`
	Activity         string `yaml:"activity"`
	Pillar           string `yaml:"pillar"`
	BUCountry        string `yaml:"bu_country"`
	ServiceCountry   string `yaml:"service_country"`
	RepairType       string `yaml:"repair_type"`
	ClientType       string `yaml:"client_type"`
	FullEmpty        string `yaml:"full_empty"`
	CtrISOCode       string `yaml:"ctr_iso_code"`
	CtrType          string `yaml:"ctr_type"`
	CtrSize          string `yaml:"ctr_size"`
	CtrCategory      string `yaml:"ctr_category"`
	SalesOrder       string `yaml:"sales_order"`
	Route            string `yaml:"route"`
	Commodity        string `yaml:"commodity"`
	SubContracting   string `yaml:"sub_contracting"`

	// Legacy profile only.
	BaseUnitMeasure string `yaml:"base_unit_measure"`
	ReferencePeriod string `yaml:"reference_period"`
}

// Merge returns d with every empty field taken from base.
func (d Defaults) Merge(base Defaults) Defaults {
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	return Defaults{
		CompanyCode:      pick(d.CompanyCode, base.CompanyCode),
		DocumentType:     pick(d.DocumentType, base.DocumentType),
		Currency:         pick(d.Currency, base.Currency),
		LangKey:          pick(d.LangKey, base.LangKey),
		IncomeRebateCode: pick(d.IncomeRebateCode, base.IncomeRebateCode),
		TaxCode:          pick(d.TaxCode, base.TaxCode),
		ProfitCenter:     pick(d.ProfitCenter, base.ProfitCenter),
		InternalOrder:    pick(d.InternalOrder, base.InternalOrder),
		Bundle:           pick(d.Bundle, base.Bundle),
		Activity:         pick(d.Activity, base.Activity),
		Pillar:           pick(d.Pillar, base.Pillar),
		BUCountry:        pick(d.BUCountry, base.BUCountry),
		ServiceCountry:   pick(d.ServiceCountry, base.ServiceCountry),
		RepairType:       pick(d.RepairType, base.RepairType),
		ClientType:       pick(d.ClientType, base.ClientType),
		FullEmpty:        pick(d.FullEmpty, base.FullEmpty),
		CtrISOCode:       pick(d.CtrISOCode, base.CtrISOCode),
		CtrType:          pick(d.CtrType, base.CtrType),
		CtrSize:          pick(d.CtrSize, base.CtrSize),
		CtrCategory:      pick(d.CtrCategory, base.CtrCategory),
		SalesOrder:       pick(d.SalesOrder, base.SalesOrder),
		Route:            pick(d.Route, base.Route),
		Commodity:        pick(d.Commodity, base.Commodity),
		SubContracting:   pick(d.SubContracting, base.SubContracting),
		BaseUnitMeasure:  pick(d.BaseUnitMeasure, base.BaseUnitMeasure),
		ReferencePeriod:  pick(d.ReferencePeriod, base.ReferencePeriod),
	}
}

// BaseDefaults holds the values shared by every module.
var BaseDefaults = Defaults{
	CompanyCode:     "9325",
	DocumentType:    "XL",
	Currency:        "USD",
	LangKey:         "EN",
	TaxCode:         "O7",
	FullEmpty:       "F",
	SubContracting:  "N",
	BaseUnitMeasure: "EA",
}

// TruckingDefaults are the defaults of the trucking module.
var TruckingDefaults = Defaults{
	IncomeRebateCode: "TRK",
	ProfitCenter:     "PAPANC4400",
	InternalOrder:    "PA44TRK001",
	Bundle:           "TRK",
	Activity:         "TRK",
	Pillar:           "NLOG",
	BUCountry:        "PA",
	ServiceCountry:   "PA",
	RepairType:       "NA",
	ClientType:       "EXT",
	CtrISOCode:       "42G1",
	CtrType:          "DV",
	CtrSize:          "40",
	CtrCategory:      "STD",
}.Merge(BaseDefaults)

// AgencyDefaults are the defaults of the agency module.
var AgencyDefaults = Defaults{
	IncomeRebateCode: "AGY",
	ProfitCenter:     "PAPANC4100",
	InternalOrder:    "PA41AGY001",
	Bundle:           "AGY",
	Activity:         "AGY",
	Pillar:           "MSC",
	BUCountry:        "PA",
	ServiceCountry:   "PA",
	RepairType:       "NA",
	ClientType:       "EXT",
	CtrISOCode:       "22G1",
	CtrType:          "DV",
	CtrSize:          "20",
	CtrCategory:      "STD",
}.Merge(BaseDefaults)

// ShipChandlerDefaults are the defaults of the ship-chandling module.
var ShipChandlerDefaults = Defaults{
	IncomeRebateCode: "SHC",
	ProfitCenter:     "PAPANC4700",
	InternalOrder:    "PA47SHC001",
	Bundle:           "SHC",
	Activity:         "SHC",
	Pillar:           "NLOG",
	BUCountry:        "PA",
	ServiceCountry:   "PA",
	RepairType:       "NA",
	ClientType:       "EXT",
	FullEmpty:        "E",
	CtrISOCode:       "NA",
	CtrType:          "NA",
	CtrSize:          "NA",
	CtrCategory:      "NA",
}.Merge(BaseDefaults)

// Unset lists the cost-allocation and descriptive fields of d that are empty.
// They have no fallback, so line items must then carry them.
func (d Defaults) Unset() []string {
	var names []string
	for _, f := range []Field{
		{"IncomeRebateCode", d.IncomeRebateCode},
		{"ProfitCenter", d.ProfitCenter},
		{"InternalOrder", d.InternalOrder},
		{"Bundle", d.Bundle},
		{"Activity", d.Activity},
		{"Pillar", d.Pillar},
		{"BUCountry", d.BUCountry},
		{"ServiceCountry", d.ServiceCountry},
		{"RepairType", d.RepairType},
		{"ClientType", d.ClientType},
	} {
		if f.Value == "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// ModuleDefaults returns the built-in defaults for a module name and whether
// the name is known.
func ModuleDefaults(module string) (Defaults, bool) {
	switch module {
	case "trucking":
		return TruckingDefaults, true
	case "agency":
		return AgencyDefaults, true
	case "shipchandler":
		return ShipChandlerDefaults, true
	}
	return Defaults{}, false
}
