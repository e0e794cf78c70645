// =============================================================================
// SAP Invoice Export - Main Entry Point
// =============================================================================
//
// USAGE:
//   sapexport export        - Export every invoice file in the input directory
//   sapexport validate      - Validate generated XML files
//   sapexport version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Serializer, validator, sources and integrations
//   - pkg/           : Shared file utilities
//   - configs/       : Module-specific YAML configurations
//
// =============================================================================

package main

import (
	"github.com/freightbill/sap-invoice-export/cmd"
)

func main() {
	cmd.Execute()
}
