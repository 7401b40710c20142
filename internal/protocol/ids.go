package protocol

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// Text protocol IDs are three digits. The hub treats "000" as the pairing
// slot, so generated IDs cycle through 100..999.
const (
	textIDMin  = 100
	textIDSpan = 900
)

// RegistrationID is the reserved ID carried by pairing requests.
const RegistrationID MessageID = "000"

// TextIDs generates legacy message IDs. The zero value is ready to use and
// is safe for concurrent use.
type TextIDs struct {
	offset atomic.Uint32
}

// Next returns the next ID, wrapping from 999 back to 100.
func (g *TextIDs) Next() MessageID {
	for {
		cur := g.offset.Load()
		next := (cur + 1) % textIDSpan
		if g.offset.CompareAndSwap(cur, next) {
			return MessageID(fmt.Sprintf("%03d", textIDMin+int(cur)))
		}
	}
}

// TransactionIDs generates JSON transaction IDs. They increase
// monotonically for the lifetime of the process.
type TransactionIDs struct {
	counter atomic.Int64
}

// Next returns the next transaction number.
func (g *TransactionIDs) Next() int64 {
	return g.counter.Add(1)
}

// NextID returns the next transaction number as a MessageID.
func (g *TransactionIDs) NextID() MessageID {
	return TransactionMessageID(g.Next())
}

// TransactionMessageID renders a JSON transaction number as a correlation ID
func TransactionMessageID(n int64) MessageID {
	return MessageID(strconv.FormatInt(n, 10))
}
