package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/lightwave/internal/config"
	"github.com/muurk/lightwave/internal/export"
	"github.com/muurk/lightwave/internal/httpapi"
	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/metrics"
)

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (default: http.listen)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub bridge with an HTTP API",
	Long: `Keep connections to the enabled hubs open and serve their state.

Endpoints:
  GET  /healthz          connection status of both hubs
  GET  /metrics          Prometheus metrics
  GET  /features         last known value of every Link Plus feature
  GET  /features/{id}    one feature
  PUT  /features/{id}    write {"value": n} to a feature

Enable hubs with legacy.enabled and smart.enabled. Numeric updates are
also written to InfluxDB when influx.url is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if logLevel == "" && settings.Log.Level == "" {
		if err := logging.Initialize("info"); err != nil {
			return err
		}
	}
	log := logging.Named("serve")

	if !settings.Legacy.Enabled && !settings.Smart.Enabled {
		return errors.New("no hub enabled: set legacy.enabled or smart.enabled")
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	sup := newSupervisor(cmd.Context())
	ctx := sup.ctx

	promReg := metrics.NewRegistry()
	deliveryMetrics := metrics.NewDelivery(promReg)
	observers := []hub.Listener{metrics.NewFeatures(promReg)}

	if settings.Influx.URL != "" {
		influx := export.NewInflux(export.InfluxConfig{
			URL:    settings.Influx.URL,
			Token:  settings.Influx.Token,
			Org:    settings.Influx.Org,
			Bucket: settings.Influx.Bucket,
		})
		observers = append(observers, influx)
		sup.run("influx", influx.Run)
		log.Info("Exporting to InfluxDB", zap.String("url", settings.Influx.URL), zap.String("bucket", settings.Influx.Bucket))
	}

	api := &httpapi.API{Gatherer: promReg, Label: reg.FeatureLabel}

	if settings.Legacy.Enabled {
		cfg := legacyConfig(observers...)
		cfg.Metrics = deliveryMetrics
		link, err := hub.DialLegacy(cfg)
		if err != nil {
			return sup.abort(fmt.Errorf("failed to open link: %w", err))
		}
		defer link.Close()
		if err := link.Start(ctx); err != nil {
			return sup.abort(err)
		}
		api.Legacy = link
	}

	if settings.Smart.Enabled {
		cfg, err := smartConfig(reg, observers...)
		if err != nil {
			return sup.abort(err)
		}
		cfg.Metrics = deliveryMetrics
		sm := newSmart(reg, cfg)
		sup.run("smart", sm.Run)
		api.Smart = sm
	}

	listen := serveListen
	if listen == "" {
		listen = settings.HTTP.Listen
	}
	srv := httpapi.New(httpapi.Config{Listen: listen}, api.Routes())
	if err := srv.Listen(); err != nil {
		return sup.abort(err)
	}
	log.Info("Bridge running", zap.String("addr", srv.Addr()))
	sup.run("http", srv.Serve)

	err = sup.wait()
	log.Info("Bridge stopped")
	return err
}

// supervisor runs the bridge components. The first one to fail cancels
// the rest.
type supervisor struct {
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func newSupervisor(parent context.Context) *supervisor {
	ctx, cancel := context.WithCancel(parent)
	g, ctx := errgroup.WithContext(ctx)
	return &supervisor{g: g, ctx: ctx, cancel: cancel}
}

func (s *supervisor) run(name string, fn func(context.Context) error) {
	s.g.Go(func() error {
		if err := fn(s.ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// abort stops whatever was already started and returns err once it has
// all exited.
func (s *supervisor) abort(err error) error {
	s.cancel()
	_ = s.g.Wait()
	return err
}

// wait blocks until every component has returned and reports the first
// failure.
func (s *supervisor) wait() error {
	defer s.cancel()
	return s.g.Wait()
}
