package sapxml

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultFileNameFormat is the file name SAP's inbound folder expects.
const DefaultFileNameFormat = "LogisticARInvoice_{invoice}_{date}{time}.xml"

// FileNameParams are the invoice-specific values of a file name.
type FileNameParams struct {
	Invoice string
	Module  string
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GenerateFileName expands the placeholders of format:
//   - {invoice}: invoice number, with every run of unsafe characters replaced by "_"
//   - {module}: module name
//   - {date}: now as YYYYMMDD
//   - {time}: now as HHMMSS
//   - {timestamp}: now as Unix seconds
//   - {uuid}: a random UUID
//
// An empty format selects DefaultFileNameFormat. The result always ends in ".xml".
func GenerateFileName(format string, params FileNameParams, now time.Time) string {
	if strings.TrimSpace(format) == "" {
		format = DefaultFileNameFormat
	}

	r := strings.NewReplacer(
		"{invoice}", sanitizeName(params.Invoice),
		"{module}", sanitizeName(params.Module),
		"{date}", FormatDate(now),
		"{time}", FormatTime(now),
		"{timestamp}", strconv.FormatInt(now.Unix(), 10),
	)
	name := r.Replace(format)

	// Each {uuid} gets its own value.
	for strings.Contains(name, "{uuid}") {
		name = strings.Replace(name, "{uuid}", uuid.New().String(), 1)
	}

	name = filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(name), ".xml") {
		name += ".xml"
	}
	return name
}

func sanitizeName(s string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
}
