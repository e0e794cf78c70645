// =============================================================================
// SAP Invoice Export - Transformation Engine
// =============================================================================
//
// This module applies a module's transformation rules to raw input rows
// before they become invoices. Rules run in the order they are configured;
// the actions of a rule run in the order they are listed.
//
// TYPICAL USES:
//   - Upper-casing service codes typed by hand in a workbook
//   - Mapping local business type labels ("IMPO", "EXPO") to IMPORT/EXPORT
//   - Zero-padding customer numbers to the SAP length
//   - Converting "04/07/2025" to the ISO dates the source package expects
//
// A rule that names a column the row does not have creates it, so
// if_empty_use_default can supply a column missing from an export.
//
// =============================================================================

package converter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/types"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies transformation rules to input rows.
type Transformer struct {
	rules []config.TransformationRule
}

// NewTransformer creates a new Transformer with the given rules.
func NewTransformer(rules []config.TransformationRule) *Transformer {
	return &Transformer{rules: rules}
}

// ApplyRow transforms row in place.
//
// RETURNS:
//   - An error naming the row, field and action if any action fails.
func (t *Transformer) ApplyRow(row *types.Row) error {
	if len(t.rules) == 0 {
		return nil
	}
	if row.Values == nil {
		row.Values = make(map[string]string)
	}

	for _, rule := range t.rules {
		value := row.Values[rule.Field]
		for _, action := range rule.Actions {
			var err error
			value, err = ApplyTransformation(value, action, row.Values)
			if err != nil {
				return errors.Wrapf(err, "row %d field %s: %s", row.Number, rule.Field, action.Type)
			}
		}
		row.Values[rule.Field] = value
	}
	return nil
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// ApplyTransformation applies a single transformation action.
//
// PARAMETERS:
//   - value: The current value.
//   - action: The transformation action to apply.
//   - fields: All values of the current row (for if_empty_use_field).
//
// RETURNS:
//   - The transformed value.
//   - An error if the action is unknown or its parameter is invalid.
func ApplyTransformation(value string, action config.TransformationAction, fields map[string]string) (string, error) {
	switch action.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "replace":
		// find "-" value "" : "TRK-001" -> "TRK001"
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if action.Find == "" {
			return value, nil
		}
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return "", errors.Wrap(err, "invalid regex pattern")
		}
		return re.ReplaceAllString(value, action.Value), nil

	// =========================================================================
	// NUMERIC FORMATTING
	// =========================================================================

	case "pad_zeros_to_length":
		// value "10" : "1234567" -> "0001234567"
		targetLength, err := strconv.Atoi(action.Value)
		if err != nil || targetLength <= 0 {
			return "", errors.Errorf("invalid length %q", action.Value)
		}
		if value == "" {
			return value, nil
		}
		return PadLeft(value, targetLength, '0'), nil

	// =========================================================================
	// DATE CONVERSIONS
	// =========================================================================

	case "format_date":
		// find "02/01/2006" value "2006-01-02" : "04/07/2025" -> "2025-07-04"
		if value == "" {
			return value, nil
		}
		if action.Find == "" || action.Value == "" {
			return "", errors.New("format_date needs find (input layout) and value (output layout)")
		}
		t, err := time.Parse(action.Find, value)
		if err != nil {
			return "", errors.Wrapf(err, "parse date %q", value)
		}
		return t.Format(action.Value), nil

	// =========================================================================
	// LOOKUPS AND DEFAULTS
	// =========================================================================

	case "lookup":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return action.Value, nil

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	case "if_empty_use_field":
		if strings.TrimSpace(value) == "" {
			return fields[action.Value], nil
		}
		return value, nil

	default:
		return "", errors.Errorf("unknown transformation type: %s", action.Type)
	}
}

// PadLeft pads s on the left with padChar up to length runes.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
