package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/lightwave/internal/cloud"
	"github.com/muurk/lightwave/internal/config"
	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/ui"
)

// connectTimeout bounds how long one-shot commands wait for a session
const connectTimeout = 30 * time.Second

var errNoSession = errors.New("no Link Plus session: run 'lightwave smart login' or set smart.email and smart.password")

var loginEmail string

func init() {
	smartLoginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (default: smart.email)")

	smartCmd.AddCommand(smartLoginCmd)
	smartCmd.AddCommand(smartLogoutCmd)
	smartCmd.AddCommand(smartSyncCmd)
	smartCmd.AddCommand(smartReadCmd)
	smartCmd.AddCommand(smartWriteCmd)
	smartCmd.AddCommand(smartMonitorCmd)
	rootCmd.AddCommand(smartCmd)
}

var smartCmd = &cobra.Command{
	Use:   "smart",
	Short: "Control a Link Plus through the LightwaveRF cloud",
	Long: `Log in to the LightwaveRF cloud, list the features of the Link Plus
devices on the account, and read or write them over the WebSocket session.`,
}

var smartLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session token",
	Long: `Exchange the account email and password for a session token. The
password is read from smart.password or prompted for and is never saved;
the token is stored in the device registry when preferences.save_session
is enabled.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var smartLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		reg.ClearSession()
		return reg.Save()
	},
}

var smartSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the feature list from the cloud",
	Long: `List every feature of every device on the account and store it in the
device registry. Features must be known before they can be decoded by
'smart read' and 'smart monitor'.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var smartReadCmd = &cobra.Command{
	Use:     "read <feature-id>",
	Short:   "Read the current value of a feature",
	Example: "  lightwave smart read 5bc4d06e87779374d29d7d9a-5-3157330962+0",
	Args:    cobra.ExactArgs(1),
	RunE:    runRead,
}

var smartWriteCmd = &cobra.Command{
	Use:     "write <feature-id> <value>",
	Short:   "Write a raw value to a feature",
	Example: "  lightwave smart write 5bc4d06e87779374d29d7d9a-5-3157330962+0 1",
	Args:    cobra.ExactArgs(2),
	RunE:    runWrite,
}

var smartMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch feature values change live",
	Args:  cobra.NoArgs,
	RunE:  runSmartMonitor,
}

func newCloudClient() *cloud.Client {
	c := cloud.NewClient()
	c.AuthURL = settings.Smart.AuthURL
	c.APIURL = settings.Smart.APIURL
	return c
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	email := loginEmail
	if email == "" {
		email = settings.Smart.Email
	}
	if email == "" {
		return errors.New("email required: use --email or set smart.email")
	}

	password := settings.Smart.Password
	if password == "" {
		var err error
		password, err = promptPassword(fmt.Sprintf("Password for %s: ", email))
		if err != nil {
			return err
		}
	}

	client := newCloudClient()
	token, err := client.Login(cmd.Context(), email, password)
	if err != nil {
		p.PrintError("Login failed", err, cloudHints(err))
		return err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	saved := "no (preferences.save_session is off)"
	if reg.Preferences.SaveSession {
		reg.SetSession(email, token)
		if err := reg.Save(); err != nil {
			return err
		}
		saved = "yes"
	}

	p.PrintSuccess("Logged in", map[string]string{"Email": email, "Token saved": saved})
	return nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: set smart.password or run from a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func cloudHints(err error) []string {
	if hint := cloud.GetTroubleshootingHint(err); hint != "" {
		return []string{hint}
	}
	return nil
}

// authedClient returns a cloud client holding a token, logging in when a
// password is configured and using the stored session otherwise.
func authedClient(ctx context.Context, reg *config.Registry) (*cloud.Client, error) {
	client := newCloudClient()
	s := settings.Smart
	if s.Email != "" && s.Password != "" {
		if _, err := client.Login(ctx, s.Email, s.Password); err != nil {
			return nil, err
		}
		return client, nil
	}
	token := reg.SessionToken(s.Email)
	if token == "" {
		return nil, errNoSession
	}
	client.SetToken(token)
	return client, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	client, err := authedClient(cmd.Context(), reg)
	if err != nil {
		return err
	}

	infos, err := client.Features(cmd.Context())
	if err != nil {
		p.PrintError("Sync failed", err, cloudHints(err))
		return err
	}

	features := make(map[string]*config.Feature, len(infos))
	for _, f := range infos {
		features[f.ID] = featureFromCloud(f)
	}
	reg.ReplaceFeatures(features)
	if err := reg.Save(); err != nil {
		return err
	}

	rows := make([][]string, 0, len(features))
	for _, id := range reg.FeatureIDs() {
		f := reg.Features[id]
		access := "read"
		if f.Writable {
			access = "read/write"
		}
		rows = append(rows, []string{reg.FeatureLabel(id), f.Kind, access, id})
	}
	p.PrintTable([]string{"FEATURE", "KIND", "ACCESS", "ID"}, rows)
	p.Println(fmt.Sprintf("Stored %d feature(s)", len(features)))
	return nil
}

// featureFromCloud names a feature after its feature set when that adds
// something to the device name.
func featureFromCloud(f cloud.FeatureInfo) *config.Feature {
	name := f.Type
	if f.SetName != "" && f.SetName != f.DeviceName {
		name = f.SetName + " " + f.Type
	}
	return &config.Feature{
		Name:       name,
		Kind:       f.Type,
		DeviceID:   f.DeviceID,
		DeviceName: f.DeviceName,
		Writable:   f.Writable,
	}
}

// smartConfig builds the hub configuration from the settings and the
// stored session.
func smartConfig(reg *config.Registry, observers ...hub.Listener) (hub.SmartConfig, error) {
	s := settings.Smart
	cfg := hub.SmartConfig{
		URL:            s.URL,
		AckTimeout:     s.AckTimeout,
		MaxAttempts:    s.MaxAttempts,
		PingInterval:   s.PingInterval,
		ReconnectDelay: s.ReconnectDelay,
		Cloud:          newCloudClient(),
		Observers:      observers,
	}
	if s.Email != "" && s.Password != "" {
		cfg.Email = s.Email
		cfg.Password = s.Password
		return cfg, nil
	}
	cfg.Token = reg.SessionToken(s.Email)
	if cfg.Token == "" {
		return cfg, errNoSession
	}
	return cfg, nil
}

// newSmart creates a hub with every registry feature bound to its kind.
func newSmart(reg *config.Registry, cfg hub.SmartConfig) *hub.Smart {
	sm := hub.NewSmart(cfg)
	for _, id := range reg.FeatureIDs() {
		sm.RegisterFeature(id, reg.Features[id].ChannelKind(), nil)
	}
	return sm
}

// startSmart runs the session in the background and waits until it is
// logged in. stop ends the session and waits for it.
func startSmart(ctx context.Context, sm *hub.Smart) (stop func(), err error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	stop = func() {
		cancel()
		<-done
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(connectTimeout)

	for !sm.Connected() {
		select {
		case err := <-done:
			cancel()
			if err == nil {
				err = context.Cause(ctx)
			}
			return nil, fmt.Errorf("link plus session: %w", err)
		case <-deadline:
			stop()
			return nil, errors.New("timed out connecting to the Link Plus")
		case <-ticker.C:
		}
	}
	return stop, nil
}

// withSmart runs fn against a connected hub.
func withSmart(cmd *cobra.Command, fn func(ctx context.Context, sm *hub.Smart, reg *config.Registry) error) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	cfg, err := smartConfig(reg)
	if err != nil {
		return err
	}

	sm := newSmart(reg, cfg)
	stop, err := startSmart(cmd.Context(), sm)
	if err != nil {
		ui.NewPrinter(cmd.ErrOrStderr()).PrintError("Connection failed", err, cloudHints(err))
		return err
	}
	defer stop()

	return fn(cmd.Context(), sm, reg)
}

func runRead(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withSmart(cmd, func(ctx context.Context, sm *hub.Smart, reg *config.Registry) error {
		st, err := sm.ReadFeature(ctx, id)
		if err != nil {
			return fmt.Errorf("read %s: %w", id, err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(reg.FeatureLabel(id), map[string]string{
			"Feature": id,
			"Value":   st.String(),
		})
		return nil
	})
}

func runWrite(cmd *cobra.Command, args []string) error {
	id := args[0]
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q: not a number", args[1])
	}
	return withSmart(cmd, func(ctx context.Context, sm *hub.Smart, reg *config.Registry) error {
		if f, ok := reg.Features[id]; ok && !f.Writable {
			return fmt.Errorf("feature %s is read-only", reg.FeatureLabel(id))
		}
		if err := sm.WriteFeature(ctx, id, value); err != nil {
			return fmt.Errorf("write %s: %w", id, err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(reg.FeatureLabel(id), map[string]string{
			"Feature": id,
			"Written": strconv.Itoa(value),
		})
		return nil
	})
}

func runSmartMonitor(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	monitor := ui.NewMonitor("Link Plus Monitor", "lightwave smart monitor", func(u hub.Update) string {
		return reg.FeatureLabel(u.Source)
	})
	cfg, err := smartConfig(reg, monitor)
	if err != nil {
		return err
	}
	sm := newSmart(reg, cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	if err := monitor.Run(ctx); err != nil {
		return err
	}
	cancel()
	return <-done
}
