// Package export forwards hub state updates to InfluxDB.
package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/state"
)

const (
	// DefaultMeasurementPrefix is prepended to the channel kind
	DefaultMeasurementPrefix = "lightwave_"

	defaultBuffer = 256
)

// Writer writes line protocol records. influxdb-client-go's
// api.WriteAPIBlocking implements it.
type Writer interface {
	WriteRecord(ctx context.Context, line ...string) error
}

// InfluxConfig holds the InfluxDB connection settings
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx is a hub.Listener that turns numeric updates into line protocol
// records. OnUpdate only buffers; Run does the writing.
type Influx struct {
	writer Writer
	prefix string
	lines  chan string
	close  func()
	log    *zap.Logger
}

// NewInflux connects a blocking write API for cfg.Bucket.
func NewInflux(cfg InfluxConfig) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	i := New(client.WriteAPIBlocking(cfg.Org, cfg.Bucket))
	i.close = client.Close
	return i
}

// New wraps an existing writer.
func New(w Writer) *Influx {
	return &Influx{
		writer: w,
		prefix: DefaultMeasurementPrefix,
		lines:  make(chan string, defaultBuffer),
		log:    logging.Named("influx"),
	}
}

// OnUpdate implements hub.Listener. Updates are dropped when the buffer is
// full rather than stalling the hub's receive loop.
func (i *Influx) OnUpdate(u hub.Update) {
	line, ok := i.Line(u)
	if !ok {
		return
	}
	select {
	case i.lines <- line:
	default:
		i.log.Warn("Influx buffer full, dropping update", zap.String("source", u.Source))
	}
}

// Line renders u as a line protocol record, or reports false when the state
// has no numeric form.
func (i *Influx) Line(u hub.Update) (string, bool) {
	v, ok := state.Float(u.State)
	if !ok {
		return "", false
	}

	kind := u.Kind.String()
	if u.Kind == state.KindUnknown {
		kind = "state"
	}
	ts := u.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return fmt.Sprintf("%s%s,hub=%s,source=%s value=%s %d",
		i.prefix, escape(kind), escape(u.Hub), escape(u.Source),
		strconv.FormatFloat(v, 'f', -1, 64), ts.UTC().UnixNano()), true
}

// Run writes buffered records until ctx is cancelled. Write failures are
// logged and the record is dropped.
func (i *Influx) Run(ctx context.Context) error {
	defer func() {
		if i.close != nil {
			i.close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-i.lines:
			if err := i.writer.WriteRecord(ctx, line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				i.log.Error("Failed to write to InfluxDB", zap.Error(err))
				continue
			}
			logging.LogWireMessage("influx", "write", []byte(line))
		}
	}
}

var tagEscaper = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)

func escape(s string) string { return tagEscaper.Replace(s) }
