// =============================================================================
// Donation Ledger - Main Entry Point
// =============================================================================
//
// USAGE:
//   donledger import        - Import pending intake files into the ledger
//   donledger acknowledge   - Acknowledge new gifts by email or stored letter
//   donledger rollup        - Build annual summaries of recurring gifts
//   donledger schedule      - Run the pipeline on a cron schedule
//   donledger serve         - Accept run triggers over HTTP
//   donledger export        - Write the ledger to an XLSX workbook
//   donledger settings      - Read or change named settings
//   donledger version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra) and pipeline wiring
//   - internal/      : Pipeline stages, stores and services
//   - configs/       : Example configuration and source profiles
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/donation-ledger/cmd"
)

func main() {
	cmd.Execute()
}
