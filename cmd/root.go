package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orvion-demo",
	Short: "Orvion payment-gate demo server",
	Long:  "A demo server that fronts premium content routes with the Orvion payments backend: x402 challenges, hosted checkout redirects, and charge proxying.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
