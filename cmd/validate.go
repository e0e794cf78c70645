// =============================================================================
// SAP Invoice Export - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   sapexport validate FILE.xml [FILE.xml...] [--check-order] [--schema legacy]
//
// Runs the document validator over existing XML files, for example documents
// returned by SAP or edited by hand. --check-order also checks that the
// children of every OtherItem follow the schema's field order.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/freightbill/sap-invoice-export/internal/sapxml"
	"github.com/freightbill/sap-invoice-export/internal/validation"
)

var (
	checkOrder     bool
	validateSchema string
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE.xml [FILE.xml...]",
	Short: "Validate SAP invoice XML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args, validateSchema, checkOrder)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&checkOrder, "check-order", false, "Also check the field order of every OtherItem")
	validateCmd.Flags().StringVar(&validateSchema, "schema", "current", "Schema whose field order is checked (current or legacy)")
}

func runValidate(out io.Writer, paths []string, schema string, withOrder bool) error {
	profile, err := sapxml.ProfileByName(schema)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		doc := string(data)

		fmt.Fprintf(out, "%s\n", filepath.Base(path))
		result := validation.Validate(doc)
		fmt.Fprintln(out, validation.FormatErrors(result))

		ok := result.IsValid
		if withOrder {
			problems := validation.CheckFieldOrder(doc, profile.ItemFields())
			if len(problems) == 0 {
				fmt.Fprintf(out, "✅ OtherItem field order matches %s %s\n", profile.Name(), profile.Version())
			} else {
				ok = false
				fmt.Fprintf(out, "❌ OtherItem field order does not match %s %s:\n", profile.Name(), profile.Version())
				for _, p := range problems {
					fmt.Fprintf(out, "  - %s\n", p)
				}
			}
		}
		if !ok {
			failed++
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d file(s) failed validation", failed, len(paths))
	}
	return nil
}
