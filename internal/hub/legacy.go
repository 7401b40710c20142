package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/delivery"
	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/registry"
	"github.com/muurk/lightwave/internal/state"
	"github.com/muurk/lightwave/internal/transport"
)

const legacyName = "legacy"

// closeGrace bounds how long Close waits for queued commands to go out
const closeGrace = 5 * time.Second

// RoomDevice addresses one device paired to a legacy Link.
type RoomDevice struct {
	Room   int
	Device int
}

func (rd RoomDevice) String() string { return fmt.Sprintf("R%dD%d", rd.Room, rd.Device) }

// LegacyConfig configures a Legacy hub connection.
type LegacyConfig struct {
	Host        string
	SendPort    int
	ReceivePort int

	AckTimeout       time.Duration
	HandshakeTimeout time.Duration
	MaxAttempts      int

	Metrics   delivery.Metrics
	Observers []Listener
}

// Legacy is a connection to a first generation LightwaveRF Link over UDP.
type Legacy struct {
	cfg   LegacyConfig
	conn  Conn
	codec protocol.TextCodec
	ids   protocol.TextIDs
	queue *delivery.Queue
	log   *zap.Logger

	devices *registry.Registry[RoomDevice, Listener]
	rooms   *registry.Registry[int, Listener]
	serials *registry.Registry[string, Listener]

	version atomic.Pointer[string]
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// DialLegacy opens the UDP sockets towards cfg.Host and returns an
// unstarted hub.
func DialLegacy(cfg LegacyConfig) (*Legacy, error) {
	if cfg.SendPort == 0 {
		cfg.SendPort = transport.LinkSendPort
	}
	if cfg.ReceivePort == 0 {
		cfg.ReceivePort = transport.LinkReceivePort
	}

	conn, err := transport.DialUDP(cfg.Host, cfg.SendPort, cfg.ReceivePort)
	if err != nil {
		return nil, err
	}
	return NewLegacy(conn, cfg), nil
}

// NewLegacy wraps an open connection.
func NewLegacy(conn Conn, cfg LegacyConfig) *Legacy {
	l := &Legacy{
		cfg:     cfg,
		conn:    conn,
		log:     logging.Named(legacyName),
		devices: registry.New[RoomDevice, Listener]("legacy-devices"),
		rooms:   registry.New[int, Listener]("legacy-rooms"),
		serials: registry.New[string, Listener]("legacy-serials"),
	}
	l.queue = delivery.New(legacyName, l.codec, conn, delivery.Options{
		AckTimeout:       cfg.AckTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		MaxAttempts:      cfg.MaxAttempts,
		Metrics:          cfg.Metrics,
		OnTransportError: func(err error) {
			l.log.Error("Failed to send to hub", zap.Error(err))
		},
	})
	return l
}

// Start runs the delivery queue and the receive loop in the background.
func (l *Legacy) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		if err := l.queue.Run(ctx); err != nil {
			l.log.Error("Delivery queue exited", zap.Error(err))
		}
	}()
	go func() {
		defer l.wg.Done()
		l.receive(ctx)
	}()

	l.log.Info("Legacy hub started", zap.String("host", l.cfg.Host))
	return nil
}

// Close lets already queued commands go out, then shuts the connection.
func (l *Legacy) Close() error {
	l.queue.Stop()
	if l.started.Load() {
		select {
		case <-l.queue.Done():
		case <-time.After(closeGrace):
			l.log.Warn("Gave up waiting for queued commands")
		}
		l.cancel()
	}

	err := l.conn.Close()
	l.wg.Wait()
	return err
}

// Version returns the hub firmware version, once the hub has reported it.
func (l *Legacy) Version() string {
	if v := l.version.Load(); v != nil {
		return *v
	}
	return ""
}

// Queue exposes the delivery queue, mainly for status reporting.
func (l *Legacy) Queue() *delivery.Queue { return l.queue }

// SetSwitch turns a device on or off.
func (l *Legacy) SetSwitch(ctx context.Context, room, device int, on bool) error {
	return l.send(ctx, protocol.OnOffCommand{ID: l.ids.Next(), Room: room, Device: device, On: on})
}

// SetDim sets a dimmer to percent (0-100). Zero switches the device off.
func (l *Legacy) SetDim(ctx context.Context, room, device, percent int) error {
	return l.send(ctx, protocol.NewDimCommand(l.ids.Next(), room, device, percent))
}

// SetRelay drives an open/close/stop relay such as a blind motor.
func (l *Legacy) SetRelay(ctx context.Context, room, device int, dir protocol.RelayDirection) error {
	return l.send(ctx, protocol.RelayCommand{ID: l.ids.Next(), Room: room, Device: device, Direction: dir})
}

// SetMood recalls a stored room mood.
func (l *Legacy) SetMood(ctx context.Context, room, mood int) error {
	return l.send(ctx, protocol.MoodCommand{ID: l.ids.Next(), Room: room, Mood: mood})
}

// AllOff switches every device in a room off.
func (l *Legacy) AllOff(ctx context.Context, room int) error {
	return l.send(ctx, protocol.AllOffCommand{ID: l.ids.Next(), Room: room})
}

// SetTargetTemperature sets the heating target of a room.
func (l *Legacy) SetTargetTemperature(ctx context.Context, room int, celsius float64) error {
	return l.send(ctx, protocol.TargetTemperatureCommand{ID: l.ids.Next(), Room: room, Celsius: celsius})
}

// RequestHeatInfo asks the heating devices of a room to report. Reports
// arrive asynchronously to the serial listeners.
func (l *Legacy) RequestHeatInfo(ctx context.Context, room int) error {
	return l.send(ctx, protocol.HeatInfoRequest{ID: l.ids.Next(), Room: room})
}

// Register pairs this client with the hub. The hub waits for its button to
// be pressed before it answers.
func (l *Legacy) Register(ctx context.Context) error {
	return l.send(ctx, protocol.NewRegistrationCommand())
}

func (l *Legacy) send(ctx context.Context, cmd protocol.Command) error {
	_, err := l.queue.Send(ctx, cmd)
	return err
}

// RegisterDevice routes updates for room/device to listener.
func (l *Legacy) RegisterDevice(room, device int, listener Listener) {
	l.devices.Register(RoomDevice{Room: room, Device: device}, listener)
}

// UnregisterDevice removes the listener for room/device.
func (l *Legacy) UnregisterDevice(room, device int) bool {
	return l.devices.Unregister(RoomDevice{Room: room, Device: device})
}

// RegisterRoom routes room level updates (moods, all-off, heating target).
func (l *Legacy) RegisterRoom(room int, listener Listener) {
	l.rooms.Register(room, listener)
}

// UnregisterRoom removes the listener for room.
func (l *Legacy) UnregisterRoom(room int) bool {
	return l.rooms.Unregister(room)
}

// RegisterSerial routes heat-info reports from the device with serial.
func (l *Legacy) RegisterSerial(serial string, listener Listener) {
	l.serials.Register(serial, listener)
}

// UnregisterSerial removes the listener for serial.
func (l *Legacy) UnregisterSerial(serial string) bool {
	return l.serials.Unregister(serial)
}

// UnregisterListener removes listener from every registry.
func (l *Legacy) UnregisterListener(listener Listener) int {
	return l.devices.UnregisterListener(listener) +
		l.rooms.UnregisterListener(listener) +
		l.serials.UnregisterListener(listener)
}

func (l *Legacy) receive(ctx context.Context) {
	for {
		data, err := l.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.log.Error("Receive failed", zap.Error(err))
			}
			return
		}

		msg, err := l.codec.Decode(data)
		if err != nil {
			var decErr *protocol.DecodeError
			if errors.As(err, &decErr) {
				l.log.Debug("Ignoring unrecognised line", zap.String("reason", decErr.Reason))
				continue
			}
			l.log.Warn("Failed to decode line", zap.Error(err))
			continue
		}
		l.handle(msg)
	}
}

func (l *Legacy) handle(msg protocol.Message) {
	now := time.Now()

	switch m := msg.(type) {
	case protocol.OKMessage:
		l.queue.Complete(m.ID, nil)

	case protocol.ErrorMessage:
		perr := m.Err()
		if perr.NotRegistered() && !l.queue.Queued(protocol.RegistrationID) {
			l.log.Info("Hub does not know this client, registering")
			if err := l.queue.Enqueue(protocol.NewRegistrationCommand()); err != nil {
				l.log.Warn("Failed to queue registration", zap.Error(err))
			}
		}
		if !l.queue.Complete(m.ID, perr) {
			l.log.Warn("Hub reported an error", zap.Int("code", m.Code), zap.String("text", m.Text))
		}

	case protocol.VersionMessage:
		v := m.Version
		l.version.Store(&v)
		l.log.Info("Hub firmware", zap.String("version", v))
		l.queue.Complete(m.ID, nil)

	case protocol.OnOffCommand:
		l.deviceUpdate(m.Room, m.Device, state.KindSwitch, state.OnOffType(m.On), m, now)

	case protocol.DimCommand:
		l.deviceUpdate(m.Room, m.Device, state.KindDimLevel, state.PercentType(m.Percent()), m, now)

	case protocol.RelayCommand:
		l.deviceUpdate(m.Room, m.Device, state.KindUnknown, state.StringType(m.Direction.String()), m, now)

	case protocol.MoodCommand:
		l.roomUpdate(m.Room, state.KindUnknown, state.DecimalType(m.Mood), m, now)

	case protocol.AllOffCommand:
		l.roomUpdate(m.Room, state.KindSwitch, state.Off, m, now)

	case protocol.TargetTemperatureCommand:
		l.roomUpdate(m.Room, state.KindTargetTemperature, state.DecimalType(m.Celsius), m, now)

	case protocol.HeatInfoMessage:
		l.heatInfo(m, now)

	default:
		l.log.Debug("Ignoring message", zap.Stringer("type", msg.Type()))
	}
}

func (l *Legacy) deviceUpdate(room, device int, kind state.ChannelKind, st state.State, msg protocol.Message, now time.Time) {
	rd := RoomDevice{Room: room, Device: device}
	listener, _ := l.devices.Lookup(rd)
	fanout(Update{Hub: legacyName, Source: rd.String(), Kind: kind, State: st, Message: msg, Time: now},
		listener, l.cfg.Observers)
}

func (l *Legacy) roomUpdate(room int, kind state.ChannelKind, st state.State, msg protocol.Message, now time.Time) {
	listener, _ := l.rooms.Lookup(room)
	fanout(Update{Hub: legacyName, Source: fmt.Sprintf("R%d", room), Kind: kind, State: st, Message: msg, Time: now},
		listener, l.cfg.Observers)
}

func (l *Legacy) heatInfo(m protocol.HeatInfoMessage, now time.Time) {
	listener, _ := l.serials.Lookup(m.Serial)

	readings := []struct {
		kind state.ChannelKind
		st   state.State
	}{
		{state.KindTemperature, state.DecimalType(m.CurrentTemp)},
		{state.KindTargetTemperature, state.DecimalType(m.CurrentTarget)},
		{state.KindVoltage, state.DecimalType(m.Battery)},
		{state.KindSignalStrength, state.DecimalType(m.Signal)},
		{state.KindValveLevel, state.PercentType(min(max(m.Output, 0), 100))},
	}
	for _, r := range readings {
		fanout(Update{Hub: legacyName, Source: m.Serial, Kind: r.kind, State: r.st, Message: m, Time: now},
			listener, l.cfg.Observers)
	}
}
