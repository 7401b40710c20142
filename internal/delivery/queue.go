// Package delivery sends commands to a hub one at a time and waits for the
// matching acknowledgment.
//
// A Queue owns a single worker goroutine (Run). The worker takes the head
// of the queue, encodes it, hands it to the transport and then blocks until
// the receive path calls Complete with the command's ID or the ack timeout
// elapses. A timed out command is put back at the head of the queue and
// resent unchanged until MaxAttempts transmissions have been made.
//
// Registration and login commands are priority commands: they are placed
// ahead of everything else so that the hub accepts the commands behind
// them. Commands with no function (heartbeat pings) are sent without
// waiting for a reply.
package delivery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/protocol"
)

// Defaults applied by New for zero Options fields
const (
	DefaultAckTimeout       = 2 * time.Second
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultMaxAttempts      = 3
)

// Transport delivers one encoded packet.
type Transport interface {
	Send(ctx context.Context, p protocol.Packet) error
}

// Metrics receives queue activity. *metrics.Delivery implements it.
type Metrics interface {
	Sent(queue string, t protocol.MessageType)
	Retried(queue string, t protocol.MessageType)
	Finished(queue string, t protocol.MessageType, outcome string, latency time.Duration)
	Depth(queue string, n int)
}

// Options configures a Queue.
type Options struct {
	// AckTimeout bounds the wait for a reply to an ordinary command
	AckTimeout time.Duration

	// HandshakeTimeout replaces AckTimeout for priority commands. Pairing
	// with a legacy hub waits for a button press on the hub itself.
	HandshakeTimeout time.Duration

	// MaxAttempts is the number of transmissions, including the first
	MaxAttempts int

	// OnResult is called from the worker for every terminal outcome
	OnResult func(Result)

	// OnTransportError is called when the transport fails to send
	OnTransportError func(error)

	Metrics Metrics
}

// Result is the terminal outcome of one command.
type Result struct {
	Command  protocol.Command
	Attempts int
	Err      error
	Latency  time.Duration
}

type entry struct {
	cmd      protocol.Command
	attempts int
	first    time.Time
	result   chan Result
	stop     bool
}

// Queue is an ordered, single-flight command queue.
type Queue struct {
	name      string
	codec     protocol.Codec
	transport Transport
	opts      Options
	log       *zap.Logger

	mu       sync.Mutex
	items    []*entry
	stopping bool
	closed   bool
	gate     chan error
	inflight protocol.MessageID

	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
}

// New creates a queue. It does nothing until Run is called.
func New(name string, codec protocol.Codec, transport Transport, opts Options) *Queue {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	return &Queue{
		name:      name,
		codec:     codec,
		transport: transport,
		opts:      opts,
		log:       logging.Named("delivery").With(zap.String("queue", name)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Name returns the queue name
func (q *Queue) Name() string { return q.name }

// Run processes commands until Stop's sentinel is reached or ctx is
// cancelled. Commands still queued when it returns fail with ErrStopped.
func (q *Queue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(q.done)
	defer q.drain()

	q.log.Debug("Delivery queue started")
	for {
		e := q.next(ctx)
		if e == nil {
			q.log.Debug("Delivery queue cancelled")
			return nil
		}
		if e.stop {
			q.log.Debug("Delivery queue stopped")
			return nil
		}
		q.process(ctx, e)
	}
}

// Enqueue appends cmd. Priority commands go ahead of everything except
// other priority commands already waiting.
func (q *Queue) Enqueue(cmd protocol.Command) error {
	return q.push(&entry{cmd: cmd})
}

// Send enqueues cmd and waits for its terminal outcome. Cancelling ctx
// stops the wait, not the delivery.
func (q *Queue) Send(ctx context.Context, cmd protocol.Command) (Result, error) {
	e := &entry{cmd: cmd, result: make(chan Result, 1)}
	if err := q.push(e); err != nil {
		return Result{Command: cmd, Err: err}, err
	}

	select {
	case res := <-e.result:
		return res, res.Err
	case <-ctx.Done():
		return Result{Command: cmd, Err: ctx.Err()}, ctx.Err()
	}
}

// Complete resolves the in-flight command with the given ID. A nil err is
// an acknowledgment; a retryable *protocol.ProtocolError causes a resend.
// It reports false when nothing with that ID is awaiting a reply, which
// includes replies that arrive after their timeout.
func (q *Queue) Complete(id protocol.MessageID, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gate == nil || q.inflight != id {
		return false
	}
	q.gate <- err
	q.gate = nil
	q.inflight = ""
	return true
}

// Stop places a sentinel behind the commands already queued. Commands
// ahead of it are still sent, but none is retried. Stop is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopping {
		q.mu.Unlock()
		return
	}
	q.stopping = true
	q.items = append(q.items, &entry{stop: true})
	q.mu.Unlock()
	q.signal()
}

// Done is closed when Run has returned.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Pending returns the ID of the command awaiting a reply, if any.
func (q *Queue) Pending() (protocol.MessageID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight, q.gate != nil
}

// Queued reports whether a command with id is waiting or in flight.
func (q *Queue) Queued(id protocol.MessageID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gate != nil && q.inflight == id {
		return true
	}
	for _, e := range q.items {
		if !e.stop && e.cmd.MessageID() == id {
			return true
		}
	}
	return false
}

// Len returns the number of commands waiting to be sent.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() int {
	n := 0
	for _, e := range q.items {
		if !e.stop {
			n++
		}
	}
	return n
}

func (q *Queue) push(e *entry) error {
	q.mu.Lock()
	if q.stopping || q.closed {
		q.mu.Unlock()
		return ErrStopped
	}
	if protocol.IsPriority(e.cmd) {
		q.insertLocked(q.priorityEnd(), e)
	} else {
		q.items = append(q.items, e)
	}
	depth := q.lenLocked()
	q.mu.Unlock()

	q.depth(depth)
	q.signal()
	return nil
}

// priorityEnd returns the index just past the leading priority commands
func (q *Queue) priorityEnd() int {
	i := 0
	for i < len(q.items) && !q.items[i].stop && protocol.IsPriority(q.items[i].cmd) {
		i++
	}
	return i
}

func (q *Queue) insertLocked(i int, e *entry) {
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = e
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) next(ctx context.Context) *entry {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			depth := q.lenLocked()
			q.mu.Unlock()
			q.depth(depth)
			return e
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

func (q *Queue) process(ctx context.Context, e *entry) {
	if e.attempts == 0 {
		e.first = time.Now()
	}

	pkt, err := q.codec.Encode(e.cmd)
	if err != nil {
		q.finish(e, err)
		return
	}

	awaits := protocol.AwaitsAck(e.cmd)
	var gate chan error
	if awaits {
		gate = make(chan error, 1)
		q.mu.Lock()
		q.gate = gate
		q.inflight = pkt.ID
		q.mu.Unlock()
	}

	e.attempts++
	if q.opts.Metrics != nil {
		q.opts.Metrics.Sent(q.name, e.cmd.Type())
	}
	q.log.Debug("Sending command",
		zap.String("message_id", string(pkt.ID)),
		zap.Stringer("type", e.cmd.Type()),
		zap.Int("attempt", e.attempts),
	)

	if err := q.transport.Send(ctx, pkt); err != nil {
		q.clearGate(gate)
		terr := &TransportError{Err: err}
		q.log.Error("Transport send failed",
			zap.String("message_id", string(pkt.ID)),
			zap.Error(err),
		)
		if q.opts.OnTransportError != nil {
			q.opts.OnTransportError(terr)
		}
		q.finish(e, terr)
		return
	}

	if !awaits {
		q.finish(e, nil)
		return
	}

	timeout := q.opts.AckTimeout
	if protocol.IsPriority(e.cmd) {
		timeout = q.opts.HandshakeTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-gate:
		q.resolve(e, reply)
	case <-timer.C:
		q.clearGate(gate)
		// Complete may have won the race with the timer
		select {
		case reply := <-gate:
			q.resolve(e, reply)
		default:
			q.log.Warn("Acknowledgment timeout",
				zap.String("message_id", string(pkt.ID)),
				zap.Int("attempt", e.attempts),
				zap.Duration("timeout", timeout),
			)
			q.retry(e, ErrAckTimeout)
		}
	case <-ctx.Done():
		q.clearGate(gate)
		q.finish(e, ErrStopped)
	}
}

func (q *Queue) resolve(e *entry, reply error) {
	switch {
	case reply == nil:
		q.finish(e, nil)
	case retryable(reply):
		q.log.Warn("Command rejected, will retry",
			zap.String("message_id", string(e.cmd.MessageID())),
			zap.Error(reply),
		)
		q.retry(e, reply)
	default:
		q.finish(e, reply)
	}
}

// retry puts e back at the head of the queue, behind any waiting priority
// commands, unless it has used all its attempts or the queue is stopping.
func (q *Queue) retry(e *entry, cause error) {
	q.mu.Lock()
	if q.stopping || q.closed {
		q.mu.Unlock()
		q.finish(e, cause)
		return
	}
	if e.attempts >= q.opts.MaxAttempts {
		q.mu.Unlock()
		q.finish(e, &RetriesExhaustedError{ID: e.cmd.MessageID(), Attempts: e.attempts, Last: cause})
		return
	}

	at := q.priorityEnd()
	if protocol.IsPriority(e.cmd) {
		at = 0
	}
	q.insertLocked(at, e)
	depth := q.lenLocked()
	q.mu.Unlock()

	if q.opts.Metrics != nil {
		q.opts.Metrics.Retried(q.name, e.cmd.Type())
	}
	q.depth(depth)
	q.signal()
}

func (q *Queue) clearGate(gate chan error) {
	if gate == nil {
		return
	}
	q.mu.Lock()
	if q.gate == gate {
		q.gate = nil
		q.inflight = ""
	}
	q.mu.Unlock()
}

func (q *Queue) finish(e *entry, err error) {
	res := Result{Command: e.cmd, Attempts: e.attempts, Err: err}
	if !e.first.IsZero() {
		res.Latency = time.Since(e.first)
	}

	outcome := Outcome(err)
	if err != nil {
		q.log.Warn("Command failed",
			zap.String("message_id", string(e.cmd.MessageID())),
			zap.Stringer("type", e.cmd.Type()),
			zap.Int("attempts", e.attempts),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	} else {
		q.log.Debug("Command delivered",
			zap.String("message_id", string(e.cmd.MessageID())),
			zap.Int("attempts", e.attempts),
			zap.Duration("latency", res.Latency),
		)
	}

	if q.opts.Metrics != nil {
		q.opts.Metrics.Finished(q.name, e.cmd.Type(), outcome, res.Latency)
	}
	if e.result != nil {
		e.result <- res
	}
	if q.opts.OnResult != nil {
		q.opts.OnResult(res)
	}
}

// drain fails everything left behind when the worker exits
func (q *Queue) drain() {
	q.mu.Lock()
	q.closed = true
	q.stopping = true
	left := q.items
	q.items = nil
	q.gate = nil
	q.inflight = ""
	q.mu.Unlock()

	for _, e := range left {
		if !e.stop {
			q.finish(e, ErrStopped)
		}
	}
	q.depth(0)
}

func (q *Queue) depth(n int) {
	if q.opts.Metrics != nil {
		q.opts.Metrics.Depth(q.name, n)
	}
}
