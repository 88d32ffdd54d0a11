package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oleg-smirsky/LaudReader/server"
)

var rootCmd = &cobra.Command{
	Use:   "laudreader",
	Short: "LaudReader turns web articles into a personal audio queue.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
