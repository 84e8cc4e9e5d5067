package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "propease",
		Short:        "PropEase property transaction and application lifecycle engine",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		sweepCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
