// =============================================================================
// SAP Invoice Export - Validation Engine
// =============================================================================
//
// This module performs a shallow check of a rendered SAP invoice document.
// It works on the document text, not on the invoice that produced it, so it
// can be pointed at any file sitting in the output folder.
//
// CHECKS (in order, all failures are collected):
//   1. XML declaration present
//   2. LogisticARInvoices root element present
//   3. CustomerInvoice element present
//   4. Required fields present (CompanyCode, DocumentType, DocumentDate,
//      CustomerNbr, AmntTransactCur)
//   5. DocumentDate components within loose ranges
//   6. At least one OtherItem
//
// The date check is a sanity check and deliberately loose: it does not know
// about month lengths or leap years.
//
// =============================================================================

package validation

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"

	"github.com/freightbill/sap-invoice-export/internal/sapxml"
)

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of Validate. Errors is never nil, and IsValid is true
// exactly when Errors is empty.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Err returns nil for a valid result, or an error matching
// sapxml.ErrValidationFailure that lists every defect.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	return errors.Wrap(sapxml.ErrValidationFailure, strings.Join(r.Errors, "; "))
}

// =============================================================================
// RULES
// =============================================================================

// RequiredFields are the elements whose presence Validate checks.
var RequiredFields = []string{"CompanyCode", "DocumentType", "DocumentDate", "CustomerNbr", "AmntTransactCur"}

// Accepted DocumentDate ranges.
const (
	MinYear = 2020
	MaxYear = 2030
)

var documentDateRe = regexp.MustCompile(`<(?:[A-Za-z_][\w.-]*:)?DocumentDate>\s*([^<]*?)\s*</(?:[A-Za-z_][\w.-]*:)?DocumentDate>`)

// tagPattern matches an opening tag with an optional namespace prefix.
func tagPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`<(?:[A-Za-z_][\w.-]*:)?` + regexp.QuoteMeta(name) + `[\s>/]`)
}

var (
	rootTag      = tagPattern("LogisticARInvoices")
	invoiceTag   = tagPattern("CustomerInvoice")
	otherItemTag = tagPattern("OtherItem")
	requiredTags = func() map[string]*regexp.Regexp {
		m := make(map[string]*regexp.Regexp, len(RequiredFields))
		for _, f := range RequiredFields {
			m[f] = tagPattern(f)
		}
		return m
	}()
)

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks a rendered document. It never fails: a malformed or empty
// document simply yields a result with errors. Validate is a pure function of
// doc.
func Validate(doc string) Result {
	errs := []string{}

	if !strings.Contains(doc, "<?xml") {
		errs = append(errs, "Missing XML declaration")
	}
	if !rootTag.MatchString(doc) {
		errs = append(errs, "Missing root element: LogisticARInvoices")
	}
	if !invoiceTag.MatchString(doc) {
		errs = append(errs, "Missing element: CustomerInvoice")
	}
	for _, field := range RequiredFields {
		if !requiredTags[field].MatchString(doc) {
			errs = append(errs, "Missing required field: "+field)
		}
	}
	if m := documentDateRe.FindStringSubmatch(doc); m != nil {
		errs = append(errs, checkDocumentDate(m[1])...)
	}
	if !otherItemTag.MatchString(doc) {
		errs = append(errs, "No OtherItem elements found")
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}

func checkDocumentDate(value string) []string {
	if len(value) != 8 {
		return []string{fmt.Sprintf("Invalid DocumentDate format: %q (expected YYYYMMDD)", value)}
	}
	year, errY := strconv.Atoi(value[0:4])
	month, errM := strconv.Atoi(value[4:6])
	day, errD := strconv.Atoi(value[6:8])
	if errY != nil || errM != nil || errD != nil {
		return []string{fmt.Sprintf("Invalid DocumentDate format: %q (expected YYYYMMDD)", value)}
	}

	var errs []string
	if year < MinYear || year > MaxYear {
		errs = append(errs, fmt.Sprintf("Invalid year in DocumentDate: %d (expected %d-%d)", year, MinYear, MaxYear))
	}
	if month < 1 || month > 12 {
		errs = append(errs, fmt.Sprintf("Invalid month in DocumentDate: %d (expected 1-12)", month))
	}
	if day < 1 || day > 31 {
		errs = append(errs, fmt.Sprintf("Invalid day in DocumentDate: %d (expected 1-31)", day))
	}
	return errs
}

// CheckFieldOrder parses doc and reports every OtherItem whose child elements
// are missing or do not follow order. An empty slice means every item is in
// order. Elements not named in order are ignored.
func CheckFieldOrder(doc string, order []string) []string {
	d := etree.NewDocument()
	if err := d.ReadFromString(doc); err != nil {
		return []string{"Document is not well-formed: " + err.Error()}
	}

	problems := []string{}
	for i, item := range d.FindElements("//OtherItem") {
		position := make(map[string]int, len(item.ChildElements()))
		for pos, child := range item.ChildElements() {
			if _, seen := position[child.Tag]; !seen {
				position[child.Tag] = pos
			}
		}

		last, lastName := -1, ""
		for _, name := range order {
			pos, ok := position[name]
			if !ok {
				problems = append(problems, fmt.Sprintf("OtherItem %d: missing <%s>", i+1, name))
				continue
			}
			if pos < last {
				problems = append(problems, fmt.Sprintf("OtherItem %d: <%s> appears before <%s>", i+1, name, lastName))
			}
			last, lastName = pos, name
		}
	}
	return problems
}

// =============================================================================
// REPORTING
// =============================================================================

// FormatErrors formats a result for display or logging.
func FormatErrors(r Result) string {
	if r.IsValid {
		return "✅ XML validation passed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ XML validation failed with %d error(s):\n", len(r.Errors))
	for i, e := range r.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, e)
	}
	return b.String()
}

// WriteErrorLog writes a timestamped report of r to filePath.
func WriteErrorLog(r Result, filePath string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Validation report generated %s\n\n", time.Now().Format(time.RFC3339))
	b.WriteString(FormatErrors(r))
	b.WriteString("\n")

	if err := os.WriteFile(filePath, []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, "write error log %s", filePath)
	}
	return nil
}
