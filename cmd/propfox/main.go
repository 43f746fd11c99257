package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "propfox",
		Short: "Billing, dispatch and audit engine for property service providers",
	}

	rootCmd.AddCommand(
		serveCmd(),
		billingSweepCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
