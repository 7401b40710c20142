package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/lightwave/internal/config"
	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/ui"
)

// Link command flags
var (
	heatInfoWait time.Duration
	deviceType   string
)

func init() {
	linkHeatInfoCmd.Flags().DurationVar(&heatInfoWait, "wait", 10*time.Second, "How long to collect reports")
	linkNameCmd.Flags().StringVar(&deviceType, "type", "", "Device type (switch, dimmer, relay)")

	linkCmd.AddCommand(linkListenCmd)
	linkCmd.AddCommand(linkOnCmd)
	linkCmd.AddCommand(linkOffCmd)
	linkCmd.AddCommand(linkDimCmd)
	linkCmd.AddCommand(linkRelayCmd)
	linkCmd.AddCommand(linkMoodCmd)
	linkCmd.AddCommand(linkAllOffCmd)
	linkCmd.AddCommand(linkHeatCmd)
	linkCmd.AddCommand(linkHeatInfoCmd)
	linkCmd.AddCommand(linkRegisterCmd)
	linkCmd.AddCommand(linkNameCmd)
	rootCmd.AddCommand(linkCmd)
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Control a LightwaveLink over UDP",
	Long: `Send commands to a LightwaveLink hub and watch what it reports.

Commands are broadcast to legacy.host (255.255.255.255 unless configured)
on UDP port 9760 and acknowledged on port 9761. A hub that has not seen
this computer before asks for registration: run 'lightwave link register'
and press the button on the hub.`,
}

var linkOnCmd = &cobra.Command{
	Use:     "on <room> <device>",
	Short:   "Switch a device on",
	Example: "  lightwave link on 1 2",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, device, err := parseRoomDevice(args)
		if err != nil {
			return err
		}
		return withLink(cmd, "Switch On", func(ctx context.Context, link *hub.Legacy) error {
			return link.SetSwitch(ctx, room, device, true)
		})
	},
}

var linkOffCmd = &cobra.Command{
	Use:     "off <room> <device>",
	Short:   "Switch a device off",
	Example: "  lightwave link off 1 2",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, device, err := parseRoomDevice(args)
		if err != nil {
			return err
		}
		return withLink(cmd, "Switch Off", func(ctx context.Context, link *hub.Legacy) error {
			return link.SetSwitch(ctx, room, device, false)
		})
	},
}

var linkDimCmd = &cobra.Command{
	Use:     "dim <room> <device> <percent>",
	Short:   "Set a dimmer level (0-100)",
	Example: "  lightwave link dim 1 2 40",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, device, err := parseRoomDevice(args)
		if err != nil {
			return err
		}
		percent, err := parseInt("percent", args[2], 0, 100)
		if err != nil {
			return err
		}
		return withLink(cmd, "Dim", func(ctx context.Context, link *hub.Legacy) error {
			return link.SetDim(ctx, room, device, percent)
		})
	},
}

var linkRelayCmd = &cobra.Command{
	Use:       "relay <room> <device> <open|close|stop>",
	Short:     "Drive an open/close relay such as a blind",
	Example:   "  lightwave link relay 3 1 close",
	Args:      cobra.ExactArgs(3),
	ValidArgs: []string{"open", "close", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		room, device, err := parseRoomDevice(args)
		if err != nil {
			return err
		}
		dir, err := parseRelay(args[2])
		if err != nil {
			return err
		}
		return withLink(cmd, "Relay", func(ctx context.Context, link *hub.Legacy) error {
			return link.SetRelay(ctx, room, device, dir)
		})
	},
}

var linkMoodCmd = &cobra.Command{
	Use:     "mood <room> <mood>",
	Short:   "Recall a stored room mood",
	Example: "  lightwave link mood 1 2",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := parseInt("room", args[0], 1, 255)
		if err != nil {
			return err
		}
		mood, err := parseInt("mood", args[1], 1, 255)
		if err != nil {
			return err
		}
		return withLink(cmd, "Mood", func(ctx context.Context, link *hub.Legacy) error {
			return link.SetMood(ctx, room, mood)
		})
	},
}

var linkAllOffCmd = &cobra.Command{
	Use:     "alloff <room>",
	Short:   "Switch every device in a room off",
	Example: "  lightwave link alloff 1",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := parseInt("room", args[0], 1, 255)
		if err != nil {
			return err
		}
		return withLink(cmd, "All Off", func(ctx context.Context, link *hub.Legacy) error {
			return link.AllOff(ctx, room)
		})
	},
}

var linkHeatCmd = &cobra.Command{
	Use:     "heat <room> <celsius>",
	Short:   "Set the target temperature of a room",
	Example: "  lightwave link heat 2 21.5",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := parseInt("room", args[0], 1, 255)
		if err != nil {
			return err
		}
		celsius, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", args[1])
		}
		return withLink(cmd, "Target Temperature", func(ctx context.Context, link *hub.Legacy) error {
			return link.SetTargetTemperature(ctx, room, celsius)
		})
	},
}

var linkHeatInfoCmd = &cobra.Command{
	Use:   "heatinfo <room>",
	Short: "Ask the heating devices of a room to report",
	Long: `Ask the radiator valves and thermostats of a room to report their
readings and print what arrives within --wait. Serials that answer are
remembered for the room.`,
	Example: "  lightwave link heatinfo 2 --wait 20s",
	Args:    cobra.ExactArgs(1),
	RunE:    runHeatInfo,
}

var linkRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Pair this computer with the hub",
	Long: `Send a registration request. The hub flashes until its button is
pressed, so the command waits for the handshake timeout before giving up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, "Register", func(ctx context.Context, link *hub.Legacy) error {
			return link.Register(ctx)
		})
	},
}

var linkNameCmd = &cobra.Command{
	Use:   "name <room> [device] <name>",
	Short: "Name a room or device in the registry",
	Example: `  # Name room 1
  lightwave link name 1 Lounge

  # Name a dimmer in room 1
  lightwave link name 1 2 "Floor lamp" --type dimmer`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runName,
}

var linkListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Watch everything the hub reports",
	Long: `Show a live table of the state changes the hub broadcasts, including
commands sent by remotes, wall switches and other apps.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

// legacyConfig builds the hub configuration from the loaded settings.
func legacyConfig(observers ...hub.Listener) hub.LegacyConfig {
	s := settings.Legacy
	return hub.LegacyConfig{
		Host:             s.Host,
		SendPort:         s.SendPort,
		ReceivePort:      s.ReceivePort,
		AckTimeout:       s.AckTimeout,
		HandshakeTimeout: s.HandshakeTimeout,
		MaxAttempts:      s.MaxAttempts,
		Observers:        observers,
	}
}

// startLink dials and starts a hub. The caller must Close it.
func startLink(ctx context.Context, observers ...hub.Listener) (*hub.Legacy, error) {
	link, err := hub.DialLegacy(legacyConfig(observers...))
	if err != nil {
		return nil, fmt.Errorf("failed to open link: %w", err)
	}
	if err := link.Start(ctx); err != nil {
		_ = link.Close()
		return nil, err
	}
	return link, nil
}

// withLink runs one command against the hub and reports the result.
func withLink(cmd *cobra.Command, title string, fn func(ctx context.Context, link *hub.Legacy) error) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	ctx := cmd.Context()

	link, err := startLink(ctx)
	if err != nil {
		return err
	}
	defer link.Close()

	start := time.Now()
	if err := fn(ctx, link); err != nil {
		p.PrintError(title+" failed", err, linkHints(err))
		return err
	}

	details := map[string]string{
		"Hub":     settings.Legacy.Host,
		"Elapsed": time.Since(start).Round(time.Millisecond).String(),
	}
	if v := link.Version(); v != "" {
		details["Firmware"] = v
	}
	p.PrintSuccess(title, details)
	return nil
}

func linkHints(err error) []string {
	var perr *protocol.ProtocolError
	switch {
	case errors.As(err, &perr) && perr.NotRegistered():
		return []string{"Run 'lightwave link register' and press the button on the hub"}
	case errors.As(err, &perr):
		return []string{fmt.Sprintf("The hub rejected the command (code %d)", perr.Code)}
	}
	return []string{
		"Ensure the hub is powered on and on the same network",
		"Set legacy.host to the hub address if broadcasts are filtered",
		"Check that UDP port 9761 is not used by another program",
	}
}

func runHeatInfo(cmd *cobra.Command, args []string) error {
	room, err := parseInt("room", args[0], 1, 255)
	if err != nil {
		return err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	reports := &collector{}
	link, err := startLink(cmd.Context(), reports)
	if err != nil {
		return err
	}
	defer link.Close()

	if err := link.RequestHeatInfo(cmd.Context(), room); err != nil {
		return err
	}

	select {
	case <-cmd.Context().Done():
	case <-time.After(heatInfoWait):
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	updates := reports.heatReports()
	if len(updates) == 0 {
		p.Println("No heating device reported for " + reg.RoomLabel(room))
		return nil
	}

	rows := make([][]string, 0, len(updates))
	for _, u := range updates {
		reg.AddSerial(room, u.Source)
		rows = append(rows, []string{u.Source, u.Kind.String(), u.State.String()})
	}
	p.PrintTable([]string{"SERIAL", "READING", "VALUE"}, rows)
	return reg.Save()
}

func runName(cmd *cobra.Command, args []string) error {
	room, err := parseInt("room", args[0], 1, 255)
	if err != nil {
		return err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	label := ""
	if len(args) == 2 {
		reg.SetRoomName(room, args[1])
		label = reg.RoomLabel(room)
	} else {
		device, err := parseInt("device", args[1], 1, 255)
		if err != nil {
			return err
		}
		if err := reg.SetDevice(room, device, args[2], deviceType); err != nil {
			return err
		}
		label = reg.DeviceLabel(room, device)
	}

	if err := reg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", label)
	return nil
}

func runListen(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	monitor := ui.NewMonitor("LightwaveLink Monitor", "lightwave link listen", func(u hub.Update) string {
		return reg.SourceLabel(u.Source)
	})

	link, err := startLink(cmd.Context(), monitor)
	if err != nil {
		return err
	}
	defer link.Close()

	return monitor.Run(cmd.Context())
}
