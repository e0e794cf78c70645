package source

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/types"
)

// scalar is a document value that may be written as a string or a number.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = scalar(v)
		return nil
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		return errors.Errorf("expected a scalar, got %s", b)
	}
	*s = scalar(b)
	return nil
}

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: expected a scalar", n.Line)
	}
	if n.Tag == "!!null" {
		return nil
	}
	*s = scalar(n.Value)
	return nil
}

type documentItem struct {
	Amount           scalar `json:"amount" yaml:"amount"`
	TaxCode          scalar `json:"tax_code" yaml:"tax_code"`
	TaxAmountDoc     scalar `json:"tax_amount_doc" yaml:"tax_amount_doc"`
	TaxAmountCompany scalar `json:"tax_amount_company" yaml:"tax_amount_company"`
	ProfitCenter     scalar `json:"profit_center" yaml:"profit_center"`
	InternalOrder    scalar `json:"internal_order" yaml:"internal_order"`
	Bundle           scalar `json:"bundle" yaml:"bundle"`
	Service          scalar `json:"service" yaml:"service"`
	Activity         scalar `json:"activity" yaml:"activity"`
	Pillar           scalar `json:"pillar" yaml:"pillar"`
	BUCountry        scalar `json:"bu_country" yaml:"bu_country"`
	ServiceCountry   scalar `json:"service_country" yaml:"service_country"`
	RepairType       scalar `json:"repair_type" yaml:"repair_type"`
	ClientType       scalar `json:"client_type" yaml:"client_type"`
	BusinessType     scalar `json:"business_type" yaml:"business_type"`
	FullEmpty        scalar `json:"full_empty" yaml:"full_empty"`
	CtrISOCode       scalar `json:"ctr_iso_code" yaml:"ctr_iso_code"`
	CtrType          scalar `json:"ctr_type" yaml:"ctr_type"`
	CtrSize          scalar `json:"ctr_size" yaml:"ctr_size"`
	CtrCategory      scalar `json:"ctr_category" yaml:"ctr_category"`
	SalesOrder       scalar `json:"sales_order" yaml:"sales_order"`
	Route            scalar `json:"route" yaml:"route"`
	Commodity        scalar `json:"commodity" yaml:"commodity"`
	SubContracting   scalar `json:"sub_contracting" yaml:"sub_contracting"`
	BaseUnitMeasure  scalar `json:"base_unit_measure" yaml:"base_unit_measure"`
	Quantity         scalar `json:"quantity" yaml:"quantity"`
	ReferencePeriod  scalar `json:"reference_period" yaml:"reference_period"`
	Text             scalar `json:"text" yaml:"text"`
	BL               scalar `json:"bl" yaml:"bl"`
	CtrNbr           scalar `json:"ctr_nbr" yaml:"ctr_nbr"`
}

type documentInvoice struct {
	Number            scalar         `json:"number" yaml:"number"`
	CustomerNbr       scalar         `json:"customer_nbr" yaml:"customer_nbr"`
	IssueDate         scalar         `json:"issue_date" yaml:"issue_date"`
	PostingDate       scalar         `json:"posting_date" yaml:"posting_date"`
	Currency          scalar         `json:"currency" yaml:"currency"`
	Total             scalar         `json:"total" yaml:"total"`
	SAPDocumentNumber scalar         `json:"sap_document_number" yaml:"sap_document_number"`
	Module            scalar         `json:"module" yaml:"module"`
	Items             []documentItem `json:"items" yaml:"items"`
}

// document is either a list under "invoices" or a single invoice at the top level.
type document struct {
	documentInvoice `yaml:",inline"`
	Invoices        []documentInvoice `json:"invoices" yaml:"invoices"`
}

func loadDocument(path string, module *config.ModuleConfig, transform RowFunc) ([]types.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	var doc document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode document")
	}

	list := doc.Invoices
	if len(list) == 0 && doc.Number != "" {
		list = []documentInvoice{doc.documentInvoice}
	}
	return fromDocuments(list, module, transform)
}

// fromDocuments converts decoded invoices. Every line item becomes one row
// carrying the invoice header, numbered by its position in the document, so
// the same rules and checks apply as for tabular inputs.
func fromDocuments(list []documentInvoice, module *config.ModuleConfig, transform RowFunc) ([]types.Invoice, error) {
	b := newBuilder(module.Name)
	n := 0
	for _, di := range list {
		header := di.values()
		if len(di.Items) == 0 {
			n++
			row := types.Row{Number: n, Values: header}
			if transform != nil {
				if err := transform(&row); err != nil {
					return nil, err
				}
			}
			if err := b.add(row, false); err != nil {
				return nil, err
			}
			continue
		}
		for _, item := range di.Items {
			n++
			values := item.values()
			for k, v := range header {
				values[k] = v
			}
			row := types.Row{Number: n, Values: values}
			if transform != nil {
				if err := transform(&row); err != nil {
					return nil, err
				}
			}
			if err := b.add(row, true); err != nil {
				return nil, err
			}
		}
	}
	return b.invoices(), nil
}

func (d documentInvoice) values() map[string]string {
	return map[string]string{
		ColInvoiceNumber:     string(d.Number),
		ColCustomerNbr:       string(d.CustomerNbr),
		ColIssueDate:         string(d.IssueDate),
		ColPostingDate:       string(d.PostingDate),
		ColCurrency:          string(d.Currency),
		ColTotal:             string(d.Total),
		ColSAPDocumentNumber: string(d.SAPDocumentNumber),
		ColModule:            string(d.Module),
	}
}

func (i documentItem) values() map[string]string {
	return map[string]string{
		ColAmount:           string(i.Amount),
		ColTaxCode:          string(i.TaxCode),
		ColTaxAmountDoc:     string(i.TaxAmountDoc),
		ColTaxAmountCompany: string(i.TaxAmountCompany),
		ColProfitCenter:     string(i.ProfitCenter),
		ColInternalOrder:    string(i.InternalOrder),
		ColBundle:           string(i.Bundle),
		ColService:          string(i.Service),
		ColActivity:         string(i.Activity),
		ColPillar:           string(i.Pillar),
		ColBUCountry:        string(i.BUCountry),
		ColServiceCountry:   string(i.ServiceCountry),
		ColRepairType:       string(i.RepairType),
		ColClientType:       string(i.ClientType),
		ColBusinessType:     string(i.BusinessType),
		ColFullEmpty:        string(i.FullEmpty),
		ColCtrISOCode:       string(i.CtrISOCode),
		ColCtrType:          string(i.CtrType),
		ColCtrSize:          string(i.CtrSize),
		ColCtrCategory:      string(i.CtrCategory),
		ColSalesOrder:       string(i.SalesOrder),
		ColRoute:            string(i.Route),
		ColCommodity:        string(i.Commodity),
		ColSubContracting:   string(i.SubContracting),
		ColBaseUnitMeasure:  string(i.BaseUnitMeasure),
		ColQuantity:         string(i.Quantity),
		ColReferencePeriod:  string(i.ReferencePeriod),
		ColText:             string(i.Text),
		ColBL:               string(i.BL),
		ColCtrNbr:           string(i.CtrNbr),
	}
}
