package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/cloud"
	"github.com/muurk/lightwave/internal/delivery"
	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/registry"
	"github.com/muurk/lightwave/internal/state"
	"github.com/muurk/lightwave/internal/transport"
	"github.com/muurk/lightwave/internal/version"
)

const smartName = "smart"

// Link Plus defaults
const (
	DefaultSmartURL       = "wss://v1-linkplus-app.lightwaverf.com"
	DefaultPingInterval   = 60 * time.Second
	DefaultReconnectDelay = 10 * time.Second
)

// errServerClosing ends a session when the server announces a shutdown
var errServerClosing = errors.New("server closing connection")

// Cloud is the part of the REST API a Smart hub needs. *cloud.Client
// implements it.
type Cloud interface {
	Login(ctx context.Context, email, password string) (string, error)
	ReadFeatures(ctx context.Context, ids []string) (map[string]int64, error)
}

// Dialer opens the session socket.
type Dialer func(ctx context.Context, url string) (Conn, error)

// SmartConfig configures a Smart hub connection.
type SmartConfig struct {
	URL string

	// Email and Password are exchanged for a fresh token on every
	// connect. Without them Token is used as is.
	Email    string
	Password string
	Token    string

	ClientDeviceID string

	AckTimeout     time.Duration
	MaxAttempts    int
	PingInterval   time.Duration
	ReconnectDelay time.Duration

	Cloud     Cloud
	Dial      Dialer
	Decoder   state.Decoder
	Metrics   delivery.Metrics
	Observers []Listener
}

// featureBinding is what a feature id is registered under
type featureBinding struct {
	kind     state.ChannelKind
	listener Listener
}

// Smart is a connection to a Link Plus hub through the LightwaveRF cloud
// WebSocket. Run keeps the session alive; the other methods are safe to
// call from any goroutine.
type Smart struct {
	cfg   SmartConfig
	codec protocol.JSONCodec
	tx    protocol.TransactionIDs
	log   *zap.Logger

	features *registry.Registry[string, featureBinding]
	cache    *registry.Cache

	// kinds learnt from descriptors embedded in server payloads
	kindsMu sync.RWMutex
	kinds   map[string]state.ChannelKind

	mu        sync.RWMutex
	queue     *delivery.Queue
	connected atomic.Bool
	running   atomic.Bool
}

// NewSmart creates an unconnected Smart hub.
func NewSmart(cfg SmartConfig) *Smart {
	if cfg.URL == "" {
		cfg.URL = DefaultSmartURL
	}
	if cfg.ClientDeviceID == "" {
		cfg.ClientDeviceID = uuid.NewString()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Dial == nil {
		cfg.Dial = func(ctx context.Context, url string) (Conn, error) {
			return transport.DialWebSocket(ctx, url, http.Header{"User-Agent": {version.UserAgent()}})
		}
	}

	return &Smart{
		cfg:      cfg,
		codec:    protocol.JSONCodec{SenderID: uuid.NewString()},
		log:      logging.Named(smartName),
		features: registry.New[string, featureBinding]("smart-features"),
		cache:    registry.NewCache(),
		kinds:    make(map[string]state.ChannelKind),
	}
}

// Run connects and reconnects until ctx is cancelled or the credentials
// are rejected.
func (s *Smart) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer s.running.Store(false)

	for {
		err := s.session(ctx)
		s.connected.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errCredentials) {
			return err
		}

		s.log.Warn("Session ended, reconnecting",
			zap.Error(err),
			zap.Duration("delay", s.cfg.ReconnectDelay),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// errCredentials marks failures that reconnecting cannot fix
var errCredentials = errors.New("credentials rejected")

func (s *Smart) token(ctx context.Context) (string, error) {
	if s.cfg.Email != "" {
		if s.cfg.Cloud == nil {
			return "", fmt.Errorf("%w: no cloud client for login", errCredentials)
		}
		tok, err := s.cfg.Cloud.Login(ctx, s.cfg.Email, s.cfg.Password)
		if err != nil {
			if cloud.IsAuthError(err) {
				return "", fmt.Errorf("%w: %w", errCredentials, err)
			}
			return "", fmt.Errorf("cloud login failed: %w", err)
		}
		return tok, nil
	}
	if s.cfg.Token == "" {
		return "", fmt.Errorf("%w: no token or login configured", errCredentials)
	}
	return s.cfg.Token, nil
}

// session runs one connection from dial to teardown.
func (s *Smart) session(ctx context.Context) error {
	tok, err := s.token(ctx)
	if err != nil {
		return err
	}

	conn, err := s.cfg.Dial(ctx, s.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	q := delivery.New(smartName, s.codec, conn, delivery.Options{
		AckTimeout:       s.cfg.AckTimeout,
		HandshakeTimeout: s.cfg.AckTimeout,
		MaxAttempts:      s.cfg.MaxAttempts,
		Metrics:          s.cfg.Metrics,
		OnTransportError: func(err error) {
			s.log.Error("Failed to send to server", zap.Error(err))
			cancel()
		},
	})

	var wg sync.WaitGroup
	recvErr := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = q.Run(sctx)
	}()
	go func() {
		defer wg.Done()
		recvErr <- s.receive(sctx, conn, q)
		cancel()
	}()

	defer func() {
		s.setQueue(nil)
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	s.setQueue(q)

	login := protocol.LoginCommand{
		TransactionID:  s.tx.Next(),
		Token:          tok,
		ClientDeviceID: s.cfg.ClientDeviceID,
	}
	if _, err := q.Send(sctx, login); err != nil {
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			return fmt.Errorf("%w: session login: %w", errCredentials, err)
		}
		return s.sessionErr(recvErr, fmt.Errorf("session login: %w", err))
	}

	s.connected.Store(true)
	s.log.Info("Link Plus session established", zap.String("url", s.cfg.URL))
	s.refresh(sctx)

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sctx.Done():
			return s.sessionErr(recvErr, sctx.Err())
		case <-ticker.C:
			if err := q.Enqueue(protocol.PingCommand{ID: s.tx.NextID()}); err != nil {
				return err
			}
		}
	}
}

// sessionErr prefers the receive loop's error when it is what ended the session
func (s *Smart) sessionErr(recvErr <-chan error, fallback error) error {
	select {
	case err := <-recvErr:
		if err != nil {
			return err
		}
	default:
	}
	return fallback
}

func (s *Smart) setQueue(q *delivery.Queue) {
	s.mu.Lock()
	s.queue = q
	s.mu.Unlock()
}

func (s *Smart) currentQueue() *delivery.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue
}

// refresh rebuilds the cache from the REST bulk read. Values that changed
// while disconnected reach the listeners here.
func (s *Smart) refresh(ctx context.Context) {
	if s.cfg.Cloud == nil {
		return
	}
	ids := s.features.IDs()
	if len(ids) == 0 {
		return
	}

	values, err := s.cfg.Cloud.ReadFeatures(ctx, ids)
	if err != nil {
		s.log.Warn("Failed to read features after connect", zap.Error(err))
		return
	}

	s.cache.Reset()
	now := time.Now()
	for id, raw := range values {
		s.cache.Set(id, raw)
		s.dispatch(id, raw, nil, now)
	}
	s.log.Debug("Feature cache rebuilt", zap.Int("features", len(values)))
}

func (s *Smart) receive(ctx context.Context, conn Conn, q *delivery.Queue) error {
	for {
		data, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, err := s.codec.Decode(data)
		if err != nil {
			s.log.Warn("Failed to decode message", zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case protocol.LoginResult:
			q.Complete(m.MessageID(), m.Err())

		case protocol.FeatureResult:
			s.featureResult(m)
			if !m.Notification {
				q.Complete(m.MessageID(), m.Err())
			}

		case protocol.ServerClosing:
			s.log.Info("Server is closing the connection")
			return errServerClosing

		default:
			s.log.Debug("Ignoring message", zap.Stringer("message", msg))
		}
	}
}

func (s *Smart) featureResult(m protocol.FeatureResult) {
	now := time.Now()
	for _, it := range m.Items {
		if it.Descriptor != nil {
			if kind, ok := state.ParseChannelKind(it.Descriptor.FeatureType); ok {
				s.kindsMu.Lock()
				s.kinds[it.FeatureID] = kind
				s.kindsMu.Unlock()
			}
		}
		if !it.HasValue || it.Err() != nil {
			continue
		}
		s.cache.Set(it.FeatureID, int64(it.Value))
		s.dispatch(it.FeatureID, int64(it.Value), m, now)
	}
}

func (s *Smart) kindOf(id string) (state.ChannelKind, Listener) {
	if b, ok := s.features.Lookup(id); ok {
		return b.kind, b.listener
	}
	s.kindsMu.RLock()
	defer s.kindsMu.RUnlock()
	return s.kinds[id], nil
}

func (s *Smart) dispatch(id string, raw int64, msg protocol.Message, now time.Time) {
	kind, listener := s.kindOf(id)
	fanout(Update{
		Hub:     smartName,
		Source:  id,
		Kind:    kind,
		State:   s.cfg.Decoder.Decode(kind, raw),
		Message: msg,
		Time:    now,
	}, listener, s.cfg.Observers)
}

// Connected reports whether a logged in session is up.
func (s *Smart) Connected() bool { return s.connected.Load() }

// WriteFeature sets a feature to a raw value and waits for the server to
// accept it.
func (s *Smart) WriteFeature(ctx context.Context, featureID string, value int) error {
	q := s.currentQueue()
	if q == nil || !s.Connected() {
		return ErrNotConnected
	}

	cmd := protocol.FeatureWriteCommand{TransactionID: s.tx.Next(), FeatureID: featureID, Value: value}
	if _, err := q.Send(ctx, cmd); err != nil {
		return err
	}
	s.cache.Set(featureID, int64(value))
	return nil
}

// ReadFeature asks the server for the current value of a feature and
// returns it decoded.
func (s *Smart) ReadFeature(ctx context.Context, featureID string) (state.State, error) {
	q := s.currentQueue()
	if q == nil || !s.Connected() {
		return state.Unset, ErrNotConnected
	}

	cmd := protocol.FeatureReadCommand{TransactionID: s.tx.Next(), FeatureID: featureID}
	if _, err := q.Send(ctx, cmd); err != nil {
		return state.Unset, err
	}
	st, _ := s.FeatureValue(featureID)
	return st, nil
}

// FeatureValue returns the last known value of a feature without asking
// the server.
func (s *Smart) FeatureValue(featureID string) (state.State, bool) {
	v, ok := s.cache.Get(featureID)
	if !ok {
		return state.Unset, false
	}
	kind, _ := s.kindOf(featureID)
	return s.cfg.Decoder.Decode(kind, v.Raw), true
}

// Values returns a snapshot of the raw feature cache.
func (s *Smart) Values() map[string]registry.Value { return s.cache.Snapshot() }

// RegisterFeature routes updates for featureID, decoded as kind, to listener.
func (s *Smart) RegisterFeature(featureID string, kind state.ChannelKind, listener Listener) {
	s.features.Register(featureID, featureBinding{kind: kind, listener: listener})
}

// UnregisterFeature removes the binding for featureID.
func (s *Smart) UnregisterFeature(featureID string) bool {
	return s.features.Unregister(featureID)
}

// UnregisterListener removes every feature bound to listener.
func (s *Smart) UnregisterListener(listener Listener) int {
	removed := 0
	for _, id := range s.features.IDs() {
		if b, ok := s.features.Lookup(id); ok && registry.Same(b.listener, listener) && s.features.Unregister(id) {
			removed++
		}
	}
	return removed
}

// Queue returns the queue of the current session, or nil.
func (s *Smart) Queue() *delivery.Queue { return s.currentQueue() }
