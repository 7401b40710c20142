package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/lightwave/internal/cloud"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/state"
)

type fakeCloud struct {
	mu       sync.Mutex
	token    string
	loginErr error
	values   map[string]int64
	logins   int
	reads    [][]string
}

func (c *fakeCloud) Login(_ context.Context, _, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	return c.token, c.loginErr
}

func (c *fakeCloud) ReadFeatures(_ context.Context, ids []string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, ids)
	out := make(map[string]int64)
	for _, id := range ids {
		if v, ok := c.values[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// smartRig runs a Smart hub against in-memory connections.
type smartRig struct {
	hub   *Smart
	cloud *fakeCloud
	conns chan *fakeConn
	codec protocol.JSONCodec
	done  chan error
}

func newSmartRig(t *testing.T, cfg SmartConfig) *smartRig {
	t.Helper()
	rig := &smartRig{
		cloud: &fakeCloud{token: "tok-1", values: map[string]int64{}},
		conns: make(chan *fakeConn, 4),
		done:  make(chan error, 1),
	}
	cfg.Email = "user@example.com"
	cfg.Password = "secret"
	cfg.Cloud = rig.cloud
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 200 * time.Millisecond
	}
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.Dial = func(ctx context.Context, url string) (Conn, error) {
		c := newFakeConn()
		rig.conns <- c
		return c, nil
	}
	rig.hub = NewSmart(cfg)
	return rig
}

func (r *smartRig) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { r.done <- r.hub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
}

func (r *smartRig) conn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-r.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("hub never dialled")
		return nil
	}
}

// request decodes the next envelope the hub sent.
func (r *smartRig) request(t *testing.T, c *fakeConn) protocol.Message {
	t.Helper()
	p := c.next(t)
	msg, err := r.codec.Decode(p.Data)
	require.NoError(t, err)
	return msg
}

// login answers the session login on c.
func (r *smartRig) login(t *testing.T, c *fakeConn, success bool) {
	t.Helper()
	msg := r.request(t, c)
	login, ok := msg.(protocol.LoginCommand)
	require.True(t, ok, "first message was %s", msg)
	assert.Equal(t, "tok-1", login.Token)

	if success {
		c.reply(fmt.Sprintf(`{"version":1,"transactionId":%d,"direction":"response","class":"user","operation":"authenticate","items":[{"itemId":%d,"success":true,"payload":{}}]}`,
			login.TransactionID, login.TransactionID))
		return
	}
	c.reply(fmt.Sprintf(`{"version":1,"transactionId":%d,"direction":"response","class":"user","operation":"authenticate","items":[{"itemId":%d,"success":false,"error":{"code":401,"message":"bad token"}}]}`,
		login.TransactionID, login.TransactionID))
}

func featureResponse(op string, tx int64, featureID string, value int, success bool) string {
	return fmt.Sprintf(`{"version":1,"transactionId":%d,"direction":"response","class":"feature","operation":"%s","items":[{"itemId":%d,"success":%v,"payload":{"featureId":"%s","value":%d}}]}`,
		tx, op, tx, success, featureID, value)
}

func TestSmartConnectAndRefresh(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.cloud.values["f-dim"] = 30

	dim := newRecorder()
	rig.hub.RegisterFeature("f-dim", state.KindDimLevel, dim)
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)

	u := dim.next(t)
	assert.Equal(t, "smart", u.Hub)
	assert.Equal(t, "f-dim", u.Source)
	assert.Equal(t, state.PercentType(30), u.State)

	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)
	st, ok := rig.hub.FeatureValue("f-dim")
	assert.True(t, ok)
	assert.Equal(t, state.PercentType(30), st)
}

func TestSmartWriteFeature(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.hub.RegisterFeature("f-switch", state.KindSwitch, newRecorder())
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)
	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)

	errc := async(func() error { return rig.hub.WriteFeature(context.Background(), "f-switch", 1) })
	msg := rig.request(t, c)
	write, ok := msg.(protocol.FeatureWriteCommand)
	require.True(t, ok, "got %s", msg)
	assert.Equal(t, "f-switch", write.FeatureID)
	assert.Equal(t, 1, write.Value)

	c.reply(featureResponse("write", write.TransactionID, "f-switch", 1, true))
	requireNoErr(t, errc)

	st, ok := rig.hub.FeatureValue("f-switch")
	assert.True(t, ok)
	assert.Equal(t, state.On, st)
}

func TestSmartWriteRejected(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)
	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)

	errc := async(func() error { return rig.hub.WriteFeature(context.Background(), "f-ro", 1) })
	write := rig.request(t, c).(protocol.FeatureWriteCommand)
	c.reply(fmt.Sprintf(`{"version":1,"transactionId":%d,"direction":"response","class":"feature","operation":"write","items":[{"itemId":%d,"success":false,"error":{"code":400,"message":"read only"}}]}`,
		write.TransactionID, write.TransactionID))

	err := wait(t, errc)
	var perr *protocol.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 400, perr.Code)
}

func TestSmartReadFeature(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.hub.RegisterFeature("f-temp", state.KindTemperature, newRecorder())
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)
	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)

	type result struct {
		st  state.State
		err error
	}
	resc := make(chan result, 1)
	go func() {
		st, err := rig.hub.ReadFeature(context.Background(), "f-temp")
		resc <- result{st, err}
	}()

	read := rig.request(t, c).(protocol.FeatureReadCommand)
	assert.Equal(t, "f-temp", read.FeatureID)
	c.reply(featureResponse("read", read.TransactionID, "f-temp", 215, true))

	select {
	case res := <-resc:
		require.NoError(t, res.err)
		assert.Equal(t, state.DecimalType(21.5), res.st)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadFeature did not return")
	}
}

func TestSmartEvents(t *testing.T) {
	observer := newRecorder()
	rig := newSmartRig(t, SmartConfig{Observers: []Listener{observer}})
	sw := newRecorder()
	rig.hub.RegisterFeature("f-1", state.KindSwitch, sw)
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)
	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)

	c.reply(`{"version":1,"transactionId":44,"direction":"notification","class":"feature","operation":"event","items":[` +
		`{"itemId":0,"payload":{"featureId":"f-1","value":1}},` +
		`{"itemId":1,"payload":{"featureId":"f-2","value":215,"_feature":{"featureId":"f-2","deviceId":"d-1","featureType":"temperature","writable":false}}}]}`)

	u := sw.next(t)
	assert.Equal(t, state.On, u.State)
	sw.none(t)

	// the unregistered feature reaches observers decoded by its descriptor
	assert.Equal(t, "f-1", observer.next(t).Source)
	u = observer.next(t)
	assert.Equal(t, "f-2", u.Source)
	assert.Equal(t, state.KindTemperature, u.Kind)
	assert.Equal(t, state.DecimalType(21.5), u.State)
}

func TestSmartReconnectsOnServerClosing(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.hub.RegisterFeature("f-1", state.KindSwitch, newRecorder())
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)
	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)

	c.reply(`{"version":1,"transactionId":0,"direction":"notification","class":"server","operation":"closing","items":[]}`)

	c2 := rig.conn(t)
	rig.login(t, c2, true)
	require.Eventually(t, rig.hub.Connected, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		rig.cloud.mu.Lock()
		defer rig.cloud.mu.Unlock()
		return rig.cloud.logins == 2 && len(rig.cloud.reads) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSmartSessionLoginRejected(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, false)

	select {
	case err := <-rig.done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials rejected")
		rig.done <- err // for cleanup
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going after the login was rejected")
	}
	assert.False(t, rig.hub.Connected())
}

func TestSmartCloudLoginRejected(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.cloud.loginErr = cloud.NewAuthError("bad password")

	err := rig.hub.Run(context.Background())
	require.Error(t, err)
	assert.True(t, cloud.IsAuthError(err))
	assert.Contains(t, err.Error(), "bad password")
}

func TestSmartNotConnected(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})

	assert.ErrorIs(t, rig.hub.WriteFeature(context.Background(), "f-1", 1), ErrNotConnected)
	_, err := rig.hub.ReadFeature(context.Background(), "f-1")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, ok := rig.hub.FeatureValue("f-1")
	assert.False(t, ok)
}

func TestSmartUnregister(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	r := newRecorder()
	rig.hub.RegisterFeature("f-1", state.KindSwitch, r)
	rig.hub.RegisterFeature("f-2", state.KindSwitch, r)
	rig.hub.RegisterFeature("f-3", state.KindSwitch, newRecorder())

	assert.True(t, rig.hub.UnregisterFeature("f-1"))
	assert.False(t, rig.hub.UnregisterFeature("f-1"))
	assert.Equal(t, 1, rig.hub.UnregisterListener(r))
}

// tally is a value listener holding a slice, so it is not comparable
type tally struct{ counts []int }

func (tally) OnUpdate(Update) {}

func TestSmartUnregisterUncomparableListener(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{})
	rig.hub.RegisterFeature("f-1", state.KindSwitch, tally{})
	rig.hub.RegisterFeature("f-1", state.KindSwitch, tally{counts: []int{1}})

	require.NotPanics(t, func() {
		assert.Equal(t, 0, rig.hub.UnregisterListener(tally{}))
	})
	assert.True(t, rig.hub.UnregisterFeature("f-1"))
}

func TestSmartPings(t *testing.T) {
	rig := newSmartRig(t, SmartConfig{PingInterval: 20 * time.Millisecond})
	rig.start(t)

	c := rig.conn(t)
	rig.login(t, c, true)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-c.sent:
			if p.Control {
				return
			}
		case <-deadline:
			t.Fatal("no ping sent")
		}
	}
}
