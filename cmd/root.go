package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "omni-swap",
	Short: "Cross-chain swap aggregation across DEXes, bridges and exchanges",
	Long: `omni-swap aggregates swap quotes from DEX aggregators, bridge
aggregators and centralized exchange venues across EVM chains, Solana and
Sui, ranks the routes, and tracks accepted swaps through to confirmation.

Examples:
  omni-swap serve
  omni-swap quote --from-chain 1 --from USDC --to-chain solana --to SOL --amount 250000000
  omni-swap status <swap-id> --watch`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "omni-swap API server to talk to")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
