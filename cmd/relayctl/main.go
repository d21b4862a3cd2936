// Command relayctl inspects the relay's model catalog and pricing offline.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/registry"
	"github.com/vnmchuo/llm-relay/internal/proxy"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Operator tooling for the LLM relay",
		Long: `Inspect the model catalog, resolve models to providers and price
vendor responses without calling any vendor.

Examples:
  relayctl models --modality image
  relayctl providers
  relayctl resolve claude-3-5-haiku-20241022
  relayctl cost gpt-4o-mini response.json
  relayctl millicredits 0.0105 --price-per-credit 0.01`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		modelsCmd(),
		providersCmd(),
		resolveCmd(),
		costCmd(),
		millicreditsCmd(),
		tokenCmd(),
	)
	return cmd
}

// offlineRouter builds every adapter without credentials.
func offlineRouter() *proxy.Router {
	providers := make([]provider.Provider, 0, len(registry.Entries))
	for _, e := range registry.Entries {
		providers = append(providers, e.New(provider.Config{}))
	}
	return proxy.NewRouter(providers)
}
