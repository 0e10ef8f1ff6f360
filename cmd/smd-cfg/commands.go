package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/smdworks/smdagent/internal/discovery"
)

// Connection flags
var (
	devicePath  string
	tcpAddr     string
	cmdTimeout  int
	scanTimeout int
	backupWiFi  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "Serial device file (e.g. /dev/ttyACM0)")
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "TCP address of a serial bridge (host:port)")
	rootCmd.PersistentFlags().IntVar(&cmdTimeout, "timeout", 10, "Command timeout in seconds")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setWiFiCmd)
	rootCmd.AddCommand(setServerCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(discoverCmd)
}

// withClient opens the provisioning channel, runs fn, and closes it.
func withClient(fn func(*protocolClient) error) error {
	client, err := dialDevice(devicePath, tcpAddr, time.Duration(cmdTimeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device identity",
	Example: `  smd-cfg info --device /dev/ttyACM0
  smd-cfg info --tcp 192.168.4.1:5000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *protocolClient) error {
			response, err := c.execute(map[string]interface{}{"cmd": "get_info"})
			if err != nil {
				return err
			}
			fmt.Printf("MAC address:  %v\n", response["mac"])
			fmt.Printf("Device type:  %v\n", response["type"])
			fmt.Printf("Firmware:     %v\n", response["version"])
			fmt.Printf("Provisioned:  %v\n", response["provisioned"])
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored device configuration (passwords masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *protocolClient) error {
			response, err := c.execute(map[string]interface{}{"cmd": "get_config"})
			if err != nil {
				return err
			}
			config, ok := response["config"].(map[string]interface{})
			if !ok {
				return fmt.Errorf("device returned no config object")
			}

			keys := make([]string, 0, len(config))
			for key := range config {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("%-20s %v\n", key+":", config[key])
			}
			return nil
		})
	},
}

var setWiFiCmd = &cobra.Command{
	Use:   "set-wifi <ssid> [password]",
	Short: "Store WiFi credentials on the device",
	Long: `Store WiFi credentials on the device.

Omit the password for an open network. Use --backup to store the
fallback network used when the primary is unreachable.`,
	Example: `  smd-cfg set-wifi HomeNet secret --device /dev/ttyACM0
  smd-cfg set-wifi GuestNet --backup --device /dev/ttyACM0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := map[string]interface{}{"cmd": "set_wifi", "ssid": args[0]}
		if backupWiFi {
			command["cmd"] = "set_wifi_backup"
		}
		if len(args) == 2 {
			command["password"] = args[1]
		}
		return withClient(func(c *protocolClient) error {
			if _, err := c.execute(command); err != nil {
				return err
			}
			fmt.Println("WiFi credentials stored.")
			return nil
		})
	},
}

func init() {
	setWiFiCmd.Flags().BoolVar(&backupWiFi, "backup", false, "Store as the backup network")
}

var setServerCmd = &cobra.Command{
	Use:   "set-server <url>",
	Short: "Store the management server URL on the device",
	Example: `  smd-cfg set-server http://192.168.1.10:3001 --device /dev/ttyACM0`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *protocolClient) error {
			if _, err := c.execute(map[string]interface{}{"cmd": "set_server", "url": args[0]}); err != nil {
				return err
			}
			fmt.Println("Server URL stored.")
			return nil
		})
	},
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Commit the configuration and restart the device",
	Long: `Mark the device provisioned and restart it.

Requires WiFi credentials and a server URL to be stored first; the
device rejects the command otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *protocolClient) error {
			if _, err := c.execute(map[string]interface{}{"cmd": "provision"}); err != nil {
				return err
			}
			fmt.Println("Device provisioned. It is restarting into normal operation.")
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all configuration and restart the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *protocolClient) error {
			if _, err := c.execute(map[string]interface{}{"cmd": "reset"}); err != nil {
				return err
			}
			fmt.Println("Device configuration cleared. It is restarting unprovisioned.")
			return nil
		})
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Restart the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *protocolClient) error {
			if _, err := c.execute(map[string]interface{}{"cmd": "reboot"}); err != nil {
				return err
			}
			fmt.Println("Device is restarting.")
			return nil
		})
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan for management servers on the network",
	Long: `Scan for management servers using mDNS/DNS-SD discovery.

Servers advertising the ` + discovery.ServiceType + ` service are listed
with the URL to pass to 'smd-cfg set-server'.`,
	Example: `  # Scan for 10 seconds (default)
  smd-cfg discover

  # Longer scan for slow networks
  smd-cfg discover --scan-timeout 30`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 10, "Scan timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for management servers (timeout: %ds)...\n\n", scanTimeout)

	servers, err := discovery.ScanForServers(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the management server is running on this network")
		fmt.Println("  - Check that mDNS traffic is not blocked")
		fmt.Println("  - Try increasing --scan-timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))
	for i, server := range servers {
		fmt.Printf("%d. %s\n", i+1, server.Name)
		fmt.Printf("   URL:      %s\n", server.BaseURL())
		fmt.Printf("   Hostname: %s\n", server.Hostname)
		if version := server.GetMetadata("version"); version != "" {
			fmt.Printf("   Version:  %s\n", version)
		}
		fmt.Println()
	}

	fmt.Println("Use 'smd-cfg set-server <url>' to store a server on a device")
	return nil
}
