package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"omni-swap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <swap-id>",
	Short: "Check the status of a swap",
	Long: `Check the execution status of a swap by its id.

Examples:
  omni-swap status 3f2c9a...
  omni-swap status 3f2c9a... --watch
  omni-swap status 3f2c9a... --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	swapID := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	base := serverURL(cmd)

	if watchStatus {
		watchSwapStatus(base, swapID, jsonOutput)
	} else {
		checkSwapStatus(base, swapID, jsonOutput)
	}
}

func fetchSwap(base, swapID string) (*types.Swap, error) {
	var sw types.Swap
	if err := callAPI(base, http.MethodGet, "/v1/swaps/"+swapID, nil, &sw); err != nil {
		return nil, err
	}
	return &sw, nil
}

func checkSwapStatus(base, swapID string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	sw, err := fetchSwap(base, swapID)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(sw, "", "  ")
		fmt.Println(string(data))
		return
	}
	displaySwap(sw)
}

func watchSwapStatus(base, swapID string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap %s\n", color.CyanString(swapID))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		sw, err := fetchSwap(base, swapID)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displaySwap(sw)
			if sw.Status.IsTerminal() {
				return
			}
		}
		<-ticker.C
	}
}

func displaySwap(sw *types.Swap) {
	statusColor := color.YellowString
	switch sw.Status {
	case types.SwapConfirmed:
		statusColor = color.GreenString
	case types.SwapFailed:
		statusColor = color.RedString
	}

	fmt.Printf("[%s] Swap %s: %s\n", time.Now().Format("15:04:05"), sw.ID, statusColor(string(sw.Status)))
	fmt.Printf("  %s %s -> %s %s via %s\n",
		sw.Input.Amount, sw.Input.Token.Symbol,
		sw.Output.Amount, sw.Output.Token.Symbol,
		sw.RouteSource)
	if sw.TxHash != "" {
		fmt.Printf("  Tx: %s\n", sw.TxHash)
	}
	if sw.ErrorMessage != "" {
		color.Red("  Error: %s", sw.ErrorMessage)
	}
	fmt.Println()
}
