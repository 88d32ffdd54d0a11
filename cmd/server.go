package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oleg-smirsky/LaudReader/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the LaudReader HTTP server",
	Long:  `Start the HTTP server that serves the article API, the player API and the websocket event stream.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
