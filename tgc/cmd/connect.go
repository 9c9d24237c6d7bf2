package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/julienstroheker/tgc/internal/acquire"
	"github.com/julienstroheker/tgc/internal/config"
)

const defaultIntervalSeconds = int(acquire.DefaultInterval / time.Second)

var (
	localServerFlag  string
	listenServerFlag string
	intervalFlag     int
	reconnectFlag    string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Dial the real server and the listen instance",
	Long: `Dial the real server and the listen instance, retrying every interval
until each endpoint accepts. The listen server may be a WebSocket URL such as
ws://relay.example.com:9000/tgc.

With -r false the local server is only dialed once data arrived from the
listen instance.`,
	Example: `  tgc connect -s localhost:22 -c relay.example.com:9000
  tgc -C -s localhost:22 -c relay.example.com:9000 -i 2 -r false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		cfg.Mode = config.ModeConnect
		if flags.Changed("local-server") {
			cfg.LocalAddr = localServerFlag
		}
		if flags.Changed("listen-server") {
			cfg.RemoteAddr = listenServerFlag
		}
		if flags.Changed("interval") {
			cfg.Interval = time.Duration(intervalFlag) * time.Second
		}
		if flags.Changed("reconnect") {
			reconnect, err := strconv.ParseBool(reconnectFlag)
			if err != nil {
				return fmt.Errorf("invalid value %q for -r: expected true or false", reconnectFlag)
			}
			cfg.Reconnect = reconnect
		}
		return run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().StringVarP(&localServerFlag, "local-server", "s", "", "Host and port of the local server")
	connectCmd.Flags().StringVarP(&listenServerFlag, "listen-server", "c", "", "Host and port of the listen instance")
	connectCmd.Flags().IntVarP(&intervalFlag, "interval", "i", defaultIntervalSeconds, "Interval when (re)connecting to either host, in seconds")
	connectCmd.Flags().StringVarP(&reconnectFlag, "reconnect", "r", "true", "Dial the local server eagerly (true) or only when data arrives (false)")
}
