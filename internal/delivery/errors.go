package delivery

import (
	"errors"
	"fmt"

	"github.com/muurk/lightwave/internal/protocol"
)

var (
	// ErrAckTimeout is the cause recorded when no reply arrived in time
	ErrAckTimeout = errors.New("acknowledgment timeout")

	// ErrStopped is returned for commands that were not delivered because
	// the queue stopped.
	ErrStopped = errors.New("delivery queue stopped")

	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("delivery queue already running")
)

// RetriesExhaustedError reports a command dropped after its final attempt.
type RetriesExhaustedError struct {
	ID       protocol.MessageID
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("command %s dropped after %d attempts: %v", e.ID, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// TransportError wraps a failure of the underlying transport to send.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport send failed: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// Outcome labels used for metrics and logs
const (
	OutcomeOK        = "ok"
	OutcomeTimeout   = "timeout"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport"
	OutcomeStopped   = "stopped"
	OutcomeError     = "error"
)

// Outcome classifies a terminal result error.
func Outcome(err error) string {
	var (
		perr *protocol.ProtocolError
		terr *TransportError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrStopped):
		return OutcomeStopped
	case errors.As(err, &terr):
		return OutcomeTransport
	case errors.As(err, &perr):
		return OutcomeRejected
	case errors.Is(err, ErrAckTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrAckTimeout) {
		return true
	}
	var perr *protocol.ProtocolError
	return errors.As(err, &perr) && perr.Retryable
}
