// =============================================================================
// SAP Invoice Export - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   sapexport version
//
// OUTPUT:
//   SAP Invoice Export
//   Version:    1.0.0
//   Build Date: 2025-07-04
//   Go Version: go1.24.0
//   Schemas:    current (01.00), legacy (00.90)
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/freightbill/sap-invoice-export/internal/sapxml"
)

// These variables are set at build time using ldflags:
//   go build -ldflags "-X 'github.com/freightbill/sap-invoice-export/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "1.0.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build date, Go runtime version and the supported XML schemas.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "SAP Invoice Export")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "Schemas:    %s (%s), %s (%s)\n",
			sapxml.Current.Name(), sapxml.Current.Version(),
			sapxml.Legacy.Name(), sapxml.Legacy.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
