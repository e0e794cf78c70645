package sapxml

import (
	"strings"

	"github.com/freightbill/sap-invoice-export/internal/types"
	"github.com/freightbill/sap-invoice-export/internal/xmlwriter"
	"github.com/shopspring/decimal"
)

// DefaultNamespace is the namespace of the CustomerInvoice 01.00 schema.
const DefaultNamespace = "urn:medlog.com:MSC_GVA_FS:CustomerInvoice:01.00"

const (
	rootElement     = "ns1:LogisticARInvoices"
	namespaceAttr   = "xmlns:ns1"
	invoiceElement  = "CustomerInvoice"
	otherItemsGroup = "OtherItems"
	otherItem       = "OtherItem"
)

// Protocol holds the exporter constants written in the Protocol block.
type Protocol struct {
	SourceSystem     string `mapstructure:"source_system"`
	TechnicalContact string `mapstructure:"technical_contact"`
}

// DefaultProtocol is the Protocol block SAP has been receiving from this exporter.
var DefaultProtocol = Protocol{
	SourceSystem:     "LOGINVOICE",
	TechnicalContact: "SAP-INTEGRATION",
}

// Options selects the profile and supplies the configuration the assembler
// needs. The zero value assembles with the Current profile, the built-in
// defaults of the invoice's module, DefaultProtocol and DefaultNamespace.
type Options struct {
	Profile   Profile
	Defaults  Defaults
	Protocol  Protocol
	Namespace string
}

func (o Options) withDefaults(module string) Options {
	if o.Profile == nil {
		o.Profile = Current
	}
	if o.Defaults == (Defaults{}) {
		if d, ok := ModuleDefaults(module); ok {
			o.Defaults = d
		} else {
			o.Defaults = BaseDefaults
		}
	}
	if o.Protocol.SourceSystem == "" {
		o.Protocol.SourceSystem = DefaultProtocol.SourceSystem
	}
	if o.Protocol.TechnicalContact == "" {
		o.Protocol.TechnicalContact = DefaultProtocol.TechnicalContact
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	return o
}

// Assemble builds the complete document tree for one invoice. Every required
// value is checked and every line item mapped before the first node is
// created, so a failing invoice never yields a partial tree.
func Assemble(inv types.Invoice, opts Options) (*xmlwriter.Node, error) {
	opts = opts.withDefaults(inv.Module)
	d := opts.Defaults

	if err := checkHeader(inv, d); err != nil {
		return nil, err
	}

	items := make([][]Field, len(inv.Items))
	total := decimal.Zero
	for i, item := range inv.Items {
		fields, err := MapLineItem(item, d, opts.Profile, i+1)
		if err != nil {
			return nil, err
		}
		items[i] = fields
		// Open item keeps the upstream sign under every profile.
		total = total.Add(item.Amount.Decimal.Round(opts.Profile.Precision()))
	}

	posting := inv.IssueDate
	if inv.PostingDate != nil && !inv.PostingDate.IsZero() {
		posting = *inv.PostingDate
	}
	precision := opts.Profile.Precision()

	protocol := xmlwriter.Element("Protocol",
		xmlwriter.Leaf("SourceSystem", opts.Protocol.SourceSystem),
		xmlwriter.Leaf("TechnicalContact", opts.Protocol.TechnicalContact),
	)
	header := xmlwriter.Element("Header",
		xmlwriter.Leaf("CompanyCode", d.CompanyCode),
		xmlwriter.Leaf("DocumentType", d.DocumentType),
		xmlwriter.Leaf("DocumentDate", FormatDate(inv.IssueDate)),
		xmlwriter.Leaf("PostingDate", FormatDate(posting)),
		xmlwriter.Leaf("TransactionCurrency", or(inv.Currency, d.Currency)),
		xmlwriter.Leaf("Reference", strings.TrimSpace(inv.Number)),
		xmlwriter.Leaf("EntityDocNbr", or(inv.SAPDocumentNumber, inv.Number)),
	)
	texts := xmlwriter.Element("AdditionalTexts",
		xmlwriter.Leaf("LongHeaderTextLangKey", d.LangKey),
	)
	openItem := xmlwriter.Element("CustomerOpenItem",
		xmlwriter.Leaf("CustomerNbr", strings.TrimSpace(inv.CustomerNbr)),
		xmlwriter.Leaf("AmntTransactCur", FormatAmount(total, precision)),
	)

	group := xmlwriter.Element(otherItemsGroup)
	for _, fields := range items {
		el := xmlwriter.Element(otherItem)
		for _, f := range fields {
			el.Add(xmlwriter.Leaf(f.Name, f.Value))
		}
		group.Add(el)
	}

	invoice := xmlwriter.Element(invoiceElement, protocol, header, texts, openItem, group)
	return xmlwriter.Element(rootElement, invoice).Attr(namespaceAttr, opts.Namespace), nil
}

func checkHeader(inv types.Invoice, d Defaults) error {
	switch {
	case strings.TrimSpace(inv.Number) == "":
		return missing("Reference", 0)
	case strings.TrimSpace(inv.CustomerNbr) == "":
		return missing("CustomerNbr", 0)
	case inv.IssueDate.IsZero():
		return missing("DocumentDate", 0)
	case d.CompanyCode == "":
		return missing("CompanyCode", 0)
	case d.DocumentType == "":
		return missing("DocumentType", 0)
	case or(inv.Currency, d.Currency) == "":
		return missing("TransactionCurrency", 0)
	case len(inv.Items) == 0:
		return missing(otherItem, 0)
	}
	return nil
}

// Serialize assembles and renders one invoice. Construction errors are
// returned unchanged; writer errors are wrapped in a *RenderError.
func Serialize(inv types.Invoice, opts Options) ([]byte, error) {
	root, err := Assemble(inv, opts)
	if err != nil {
		return nil, err
	}
	out, err := xmlwriter.Render(root)
	if err != nil {
		return nil, &RenderError{Err: err}
	}
	return out, nil
}
