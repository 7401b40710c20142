package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/lightwave/internal/config"
	"github.com/muurk/lightwave/internal/discovery"
	"github.com/muurk/lightwave/internal/ui"
)

var scanTimeout time.Duration

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Scan timeout (default: preferences.discover_timeout)")
	rootCmd.AddCommand(scanCmd)
}

// scanCmd discovers hubs on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for LightwaveRF hubs on the network",
	Long: `Scan for LightwaveLink and Link Plus hubs using mDNS/DNS-SD discovery.

Discovered hubs are listed with their model, serial number and address.
Use the address as legacy.host to talk to a LightwaveLink directly instead
of broadcasting.`,
	Example: `  # Scan with the configured timeout
  lightwave scan

  # Longer scan for busy networks
  lightwave scan --timeout 15s`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	timeout := scanTimeout
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences.DiscoverTimeout > 0 {
			timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
		}
	}

	p.PrintHeader("Hub Discovery", "lightwave scan", map[string]string{"timeout": timeout.String()})

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout
	hubs, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintError("Scan failed", err, []string{
			"Check that multicast traffic is allowed on this network",
			"Run with --log-level debug to see every mDNS answer",
		})
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(hubs) == 0 {
		p.PrintError("No hubs found", errors.New("no LightwaveRF hub answered"), []string{
			"Ensure the hub is powered on and its network light is steady",
			"Verify this computer is on the same network segment as the hub",
			"Try increasing --timeout for slower networks",
			"Set legacy.host to the hub address if discovery is blocked",
		})
		return nil
	}

	rows := make([][]string, 0, len(hubs))
	for _, h := range hubs {
		rows = append(rows, []string{string(h.Model), h.Serial, h.Hostname, h.Address()})
	}
	p.PrintTable([]string{"MODEL", "SERIAL", "HOST", "ADDRESS"}, rows)
	p.Println(fmt.Sprintf("Found %d hub(s)", len(hubs)))
	return nil
}
