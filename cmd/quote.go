package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"omni-swap/pkg/types"
)

var (
	quoteFromChain string
	quoteFromToken string
	quoteFromAddr  string
	quoteDecimals  int
	quoteToChain   string
	quoteToToken   string
	quoteToAddr    string
	quoteAmount    string
	quoteSlippage  int
	quoteUser      string
	quoteRecipient string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch ranked swap routes for a token pair",
	Long: `Fetch quotes from every eligible liquidity source and print the
ranked routes.

Examples:
  omni-swap quote --from-chain 1 --from USDC --from-address 0xa0b8... --amount 250000000 --to-chain solana --to SOL
  omni-swap quote --from-chain 8453 --from ETH --amount 1000000000000000000 --to-chain 8453 --to USDC --to-address 0x8335...`,
	Run: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteFromChain, "from-chain", "", "Source chain id")
	quoteCmd.Flags().StringVar(&quoteFromToken, "from", "", "Source token symbol")
	quoteCmd.Flags().StringVar(&quoteFromAddr, "from-address", "", "Source token contract (empty = native)")
	quoteCmd.Flags().IntVar(&quoteDecimals, "from-decimals", 18, "Source token decimals")
	quoteCmd.Flags().StringVar(&quoteToChain, "to-chain", "", "Destination chain id")
	quoteCmd.Flags().StringVar(&quoteToToken, "to", "", "Destination token symbol")
	quoteCmd.Flags().StringVar(&quoteToAddr, "to-address", "", "Destination token contract (empty = native)")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Input amount in base units")
	quoteCmd.Flags().IntVar(&quoteSlippage, "slippage", 0, "Slippage tolerance in bps (0 = server default)")
	quoteCmd.Flags().StringVar(&quoteUser, "user", "", "User wallet address")
	quoteCmd.Flags().StringVar(&quoteRecipient, "recipient", "", "Recipient address (defaults to user)")

	quoteCmd.MarkFlagRequired("from-chain")
	quoteCmd.MarkFlagRequired("from")
	quoteCmd.MarkFlagRequired("to-chain")
	quoteCmd.MarkFlagRequired("to")
	quoteCmd.MarkFlagRequired("amount")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req := map[string]interface{}{
		"from_token": types.Token{
			ChainID:  quoteFromChain,
			Symbol:   quoteFromToken,
			Address:  quoteFromAddr,
			Decimals: quoteDecimals,
		},
		"to_token": types.Token{
			ChainID: quoteToChain,
			Symbol:  quoteToToken,
			Address: quoteToAddr,
		},
		"amount_in":    quoteAmount,
		"slippage_bps": quoteSlippage,
		"user_address": quoteUser,
		"recipient":    quoteRecipient,
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}

	var q types.Quote
	err := callAPI(serverURL(cmd), http.MethodPost, "/v1/quotes", req, &q)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(data))
		return
	}
	displayQuote(&q)
}

func displayQuote(q *types.Quote) {
	fmt.Printf("\nQuote %s (expires %s)\n", color.CyanString(q.ID), q.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("Swap %s %s -> %s\n\n", q.Input.Amount, q.Input.Token.Symbol, q.Output.Token.Symbol)

	for i, route := range q.Routes {
		tags := make([]string, 0, len(route.Tags))
		for _, t := range route.Tags {
			tags = append(tags, color.GreenString(string(t)))
		}
		tagStr := ""
		if len(tags) > 0 {
			tagStr = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Printf("%d. %s%s\n", i+1, color.YellowString(route.Source), tagStr)
		fmt.Printf("   Output:  %s %s\n", route.OutputAmount, q.Output.Token.Symbol)
		fmt.Printf("   Time:    ~%ds\n", route.EstimatedSeconds)
		if route.EstimatedGas != "" {
			fmt.Printf("   Gas:     %s\n", route.EstimatedGas)
		}
		for _, step := range route.Steps {
			fmt.Printf("     - %s via %s (%s -> %s)\n", step.Kind, step.Protocol, step.From.Symbol, step.To.Symbol)
		}
		fmt.Println()
	}
}
