// Smd-cfg is a provisioning utility for SMD e-paper display devices.
//
// It speaks the line-JSON provisioning protocol to a device over a
// serial device file or a TCP bridge, and can discover management
// servers on the local network via mDNS.
//
// Usage:
//
//	smd-cfg [command] [flags]
//
// See 'smd-cfg --help' for available commands.
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
	Use:   "smd-cfg",
	Short: "SMD device provisioning utility",
	Long: `A host-side utility for provisioning SMD display devices.

Connects to a device's serial provisioning channel, configures WiFi
credentials and the management server URL, and commits the
configuration. Also discovers management servers via mDNS.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smd-cfg %s\n", version.Full())
	},
}
