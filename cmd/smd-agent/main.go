// Smd-agent is the device-side agent for SMD e-paper displays.
//
// On an unprovisioned device it runs the serial provisioning protocol
// until the device is configured, then exits for the supervisor to
// restart it. On a provisioned device it connects WiFi, syncs
// configuration with the management server and runs the heartbeat loop.
//
// Usage:
//
//	smd-agent [command] [flags]
//
// Running without arguments is equivalent to 'smd-agent run'.
// See 'smd-agent --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smdworks/smdagent/internal/logging"
	"github.com/smdworks/smdagent/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smd-agent",
	Short: "SMD display device agent",
	Long: `The device agent for SMD e-paper displays.

Unprovisioned devices enter serial provisioning mode and wait for
configuration commands. Provisioned devices connect to their WiFi
network and heartbeat against the management server.

If no command is specified, 'run' is assumed.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	RunE: runAgent,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smd-agent %s (firmware %s)\n", version.Full(), version.Firmware)
	},
}
