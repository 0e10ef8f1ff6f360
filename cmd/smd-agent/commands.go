package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/battery"
	"github.com/smdworks/smdagent/internal/credstore"
	"github.com/smdworks/smdagent/internal/deviceconfig"
	"github.com/smdworks/smdagent/internal/display"
	"github.com/smdworks/smdagent/internal/heartbeat"
	"github.com/smdworks/smdagent/internal/identity"
	"github.com/smdworks/smdagent/internal/logging"
	"github.com/smdworks/smdagent/internal/network"
	"github.com/smdworks/smdagent/internal/provision"
	"github.com/smdworks/smdagent/internal/serverapi"
	"github.com/smdworks/smdagent/internal/version"
)

// restartExitCode signals the process supervisor that the agent wants a
// restart, the process analogue of a device reset after provisioning.
const restartExitCode = 10

// Agent command flags
var (
	storePath  string
	serialPath string
	headless   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Credential store path (default: per-user data directory)")
	rootCmd.PersistentFlags().StringVar(&serialPath, "serial", "", "Serial device file for provisioning (default: stdin/stdout)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Disable the console display panel")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(resetCmd)
}

// runCmd is the normal boot path.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent (provisioning mode if unprovisioned)",
	Long: `Run the device agent.

An unprovisioned device enters serial provisioning mode and waits for
line-JSON commands. A provisioned device connects WiFi, syncs its
configuration and heartbeats against the management server until
interrupted.`,
	RunE: runAgent,
}

// provisionCmd forces provisioning mode even on a configured device.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Force serial provisioning mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runProvisioning(store)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print device identity and stored configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		id, err := deviceIdentity()
		if err != nil {
			return err
		}

		fmt.Printf("MAC address:  %s\n", id.MAC)
		fmt.Printf("Device type:  %s\n", id.DeviceType)
		fmt.Printf("Firmware:     %s\n", id.Version)
		fmt.Printf("Store:        %s\n", store.Path())
		fmt.Println()
		for key, value := range store.Summary() {
			fmt.Printf("%-20s %v\n", key+":", value)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the credential store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		fmt.Println("Credential store cleared. The device is unprovisioned.")
		return nil
	},
}

func runAgent(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if !store.IsProvisioned() {
		return runProvisioning(store)
	}
	return runHeartbeat(store)
}

// runProvisioning drives the serial provisioning session. It does not
// return on success: a restart-triggering command exits the process so
// the supervisor boots the agent into its new state.
func runProvisioning(store *credstore.Store) error {
	id, err := deviceIdentity()
	if err != nil {
		return err
	}

	in, out, closeSerial, err := openSerial()
	if err != nil {
		return err
	}
	defer closeSerial()

	if renderer := newRenderer(); renderer != nil {
		if err := renderer.RenderProvisioning(id); err != nil {
			logging.Warn("Provisioning screen render failed", zap.Error(err))
		}
	}

	handler := provision.NewHandler(store, provision.DeviceInfo{
		MAC:     id.MAC,
		Type:    id.DeviceType,
		Version: id.Version,
	}, out)
	handler.WriteBanner()

	if err := handler.Run(in); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("provisioning session failed: %w", err)
	}

	if handler.RestartPending() {
		logging.Info("Restart requested, exiting for supervisor restart")
		logging.Sync()
		closeSerial()
		os.Exit(restartExitCode)
	}
	return nil
}

// runHeartbeat is the provisioned boot path: connect, sync, loop.
func runHeartbeat(store *credstore.Store) error {
	id, err := deviceIdentity()
	if err != nil {
		return err
	}

	serverURL := store.ServerURL()
	if serverURL == "" {
		return fmt.Errorf("no server URL stored; reprovision the device")
	}

	client := serverapi.NewClient(serverURL)
	config := deviceconfig.NewManager(client)
	config.Init()
	netmgr := network.NewManager()

	renderer := newRenderer()
	if renderer == nil {
		renderer = display.Nop{}
	}

	loop := heartbeat.New(store, config, client, netmgr, battery.NewMonitor(), renderer, id)

	// Best-effort boot sync; the loop retries everything on its own
	// schedule.
	if connectAtBoot(store, config, netmgr) {
		config.FetchConfig(id.MAC)
		if err := loop.RefreshContent(); err != nil {
			logging.Warn("Initial content render failed", zap.Error(err))
		}
	} else {
		logging.Warn("WiFi unavailable at boot, heartbeat loop will keep retrying")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.Sync()

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// connectAtBoot joins the primary network, then the backup, with the
// configured timeout. Returns whether a link is up afterwards.
func connectAtBoot(store *credstore.Store, config *deviceconfig.Manager, netmgr network.Manager) bool {
	if netmgr.Connected() {
		return true
	}

	timeout := time.Duration(config.Config().WiFiTimeoutSeconds) * time.Second
	ssid := store.WiFiSSID()
	if ssid == "" {
		return false
	}
	if err := netmgr.Connect(ssid, store.WiFiPassword(), timeout); err == nil {
		return true
	}

	backup := store.WiFiSSIDBackup()
	if backup == "" {
		return false
	}
	return netmgr.Connect(backup, store.WiFiPasswordBackup(), timeout) == nil
}

func openStore() (*credstore.Store, error) {
	path := storePath
	if path == "" {
		var err error
		path, err = credstore.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store path: %w", err)
		}
	}
	return credstore.NewStore(path), nil
}

func deviceIdentity() (display.Identity, error) {
	mac, err := identity.MACAddress()
	if err != nil {
		return display.Identity{}, fmt.Errorf("failed to determine device identity: %w", err)
	}
	return display.Identity{
		MAC:        mac,
		DeviceType: identity.DeviceType(),
		Version:    version.Firmware,
	}, nil
}

// newRenderer returns the console renderer on stderr, or nil when
// running headless. Stderr keeps the panel off the provisioning
// protocol channel.
func newRenderer() display.Renderer {
	if headless {
		return nil
	}
	return display.NewConsole(os.Stderr)
}

// openSerial returns the provisioning reader/writer pair. With
// --serial it opens the device file for both directions; otherwise the
// process's stdin/stdout are the serial channel.
func openSerial() (io.Reader, io.Writer, func(), error) {
	if serialPath == "" {
		return os.Stdin, os.Stdout, func() {}, nil
	}

	f, err := os.OpenFile(serialPath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open serial device %s: %w", serialPath, err)
	}
	var once bool
	closer := func() {
		if !once {
			once = true
			f.Close()
		}
	}
	return f, f, closer, nil
}
