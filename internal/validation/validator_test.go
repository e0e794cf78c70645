package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightbill/sap-invoice-export/internal/sapxml"
	"github.com/freightbill/sap-invoice-export/internal/types"
)

func renderedInvoice(t *testing.T, profile sapxml.Profile) string {
	t.Helper()
	inv := types.Invoice{
		Number:      "F-DHL-01250",
		CustomerNbr: "1234567890",
		IssueDate:   time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC),
		Currency:    "USD",
		Module:      "trucking",
	}
	for i, a := range []string{"850.00", "350.00", "280.00", "150.00", "180.00"} {
		inv.Items = append(inv.Items, types.LineItem{
			Amount:       decimal.NewNullDecimal(decimal.RequireFromString(a)),
			Service:      "SRV" + string(rune('1'+i)) + "00",
			BusinessType: types.Import,
		})
	}
	out, err := sapxml.Serialize(inv, sapxml.Options{Profile: profile})
	require.NoError(t, err)
	return string(out)
}

func TestValidateRenderedInvoice(t *testing.T) {
	doc := renderedInvoice(t, sapxml.Current)

	res := Validate(doc)
	assert.True(t, res.IsValid)
	assert.NotNil(t, res.Errors)
	assert.Empty(t, res.Errors)
	assert.NoError(t, res.Err())
}

func TestValidateDateOutOfRange(t *testing.T) {
	doc := strings.Replace(renderedInvoice(t, sapxml.Current),
		"<DocumentDate>20250704</DocumentDate>", "<DocumentDate>20351301</DocumentDate>", 1)

	res := Validate(doc)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Invalid year in DocumentDate: 2035 (expected 2020-2030)",
		"Invalid month in DocumentDate: 13 (expected 1-12)",
	}, res.Errors)
	for _, e := range res.Errors {
		assert.NotContains(t, e, "Missing")
	}
	assert.True(t, errors.Is(res.Err(), sapxml.ErrValidationFailure))
}

func TestValidatePrefixedDocumentDate(t *testing.T) {
	doc := strings.Replace(renderedInvoice(t, sapxml.Current),
		"<DocumentDate>20250704</DocumentDate>", "<ns1:DocumentDate>20350704</ns1:DocumentDate>", 1)

	res := Validate(doc)
	assert.Equal(t, []string{"Invalid year in DocumentDate: 2035 (expected 2020-2030)"}, res.Errors)
}

func TestValidateDateFormat(t *testing.T) {
	doc := strings.Replace(renderedInvoice(t, sapxml.Current),
		"<DocumentDate>20250704</DocumentDate>", "<DocumentDate>2025-07-04</DocumentDate>", 1)

	res := Validate(doc)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "expected YYYYMMDD")
}

func TestValidateAccumulatesEveryFailure(t *testing.T) {
	res := Validate("")
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Missing XML declaration",
		"Missing root element: LogisticARInvoices",
		"Missing element: CustomerInvoice",
		"Missing required field: CompanyCode",
		"Missing required field: DocumentType",
		"Missing required field: DocumentDate",
		"Missing required field: CustomerNbr",
		"Missing required field: AmntTransactCur",
		"No OtherItem elements found",
	}, res.Errors)
}

func TestValidateDoesNotConfuseSimilarNames(t *testing.T) {
	doc := `<?xml version="1.0"?>
<ns1:LogisticARInvoices xmlns:ns1="urn:medlog.com:MSC_GVA_FS:CustomerInvoice:01.00">
  <OtherItems>
    <AmntTransacCur>1.000</AmntTransacCur>
  </OtherItems>
</ns1:LogisticARInvoices>`

	res := Validate(doc)
	assert.Contains(t, res.Errors, "Missing element: CustomerInvoice")
	assert.Contains(t, res.Errors, "Missing required field: AmntTransactCur")
	assert.Contains(t, res.Errors, "No OtherItem elements found")
	assert.NotContains(t, res.Errors, "Missing root element: LogisticARInvoices")
}

func TestValidateIsIdempotent(t *testing.T) {
	docs := []string{
		renderedInvoice(t, sapxml.Current),
		"<not-xml",
		strings.Replace(renderedInvoice(t, sapxml.Legacy), "20250704", "20191240", 1),
	}
	for _, doc := range docs {
		assert.Equal(t, Validate(doc), Validate(doc))
	}
}

func TestCheckFieldOrder(t *testing.T) {
	for _, profile := range []sapxml.Profile{sapxml.Current, sapxml.Legacy} {
		doc := renderedInvoice(t, profile)
		assert.Empty(t, CheckFieldOrder(doc, profile.ItemFields()), profile.Name())
	}

	doc := renderedInvoice(t, sapxml.Current)
	swapped := strings.Replace(doc, "<Bundle>", "<BundleX>", 1)
	swapped = strings.Replace(swapped, "</Bundle>", "</BundleX>", 1)
	problems := CheckFieldOrder(swapped, sapxml.Current.ItemFields())
	assert.Equal(t, []string{"OtherItem 1: missing <Bundle>"}, problems)

	problems = CheckFieldOrder(doc, []string{"Service", "ProfitCenter"})
	assert.Len(t, problems, 5)
	assert.Equal(t, "OtherItem 1: <ProfitCenter> appears before <Service>", problems[0])

	problems = CheckFieldOrder("<broken", sapxml.Current.ItemFields())
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "not well-formed")
}

func TestFormatErrorsAndLog(t *testing.T) {
	assert.Equal(t, "✅ XML validation passed", FormatErrors(Result{IsValid: true, Errors: []string{}}))

	res := Result{Errors: []string{"first", "second"}}
	out := FormatErrors(res)
	assert.Contains(t, out, "❌ XML validation failed with 2 error(s)")
	assert.Contains(t, out, "  2. second")

	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, WriteErrorLog(res, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1. first")

	assert.Error(t, WriteErrorLog(res, filepath.Join(t.TempDir(), "missing", "errors.log")))
}
