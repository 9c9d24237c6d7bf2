package cmd

import (
	"github.com/spf13/cobra"

	"github.com/julienstroheker/tgc/internal/config"
)

var (
	clientPortFlag  string
	connectPortFlag string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept the real client and the connect instance",
	Long: `Accept the real client and the connect instance.

Ports are either bare ("8000") or host:port. The connect port may be a
WebSocket URL such as ws://:9000/tgc.`,
	Example: `  tgc listen -p 8000 -q 9000
  tgc -L -p 8000 -q 9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Mode = config.ModeListen
		if cmd.Flags().Changed("client-port") {
			cfg.LocalAddr = clientPortFlag
		}
		if cmd.Flags().Changed("connect-port") {
			cfg.RemoteAddr = connectPortFlag
		}
		return run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVarP(&clientPortFlag, "client-port", "p", "", "Port to listen on for the actual client connection")
	listenCmd.Flags().StringVarP(&connectPortFlag, "connect-port", "q", "", "Port to listen on for the connect instance")
}
