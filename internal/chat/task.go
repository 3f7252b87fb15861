package chat

import (
	"time"

	"meshchat/internal/domain"
)

// OutboundTask is one pending send. Produced by the input loop or by the
// classifier's auto-reply path, consumed exactly once by the Dispatcher,
// never mutated after creation.
type OutboundTask struct {
	Text    string
	Dest    domain.NodeID // broadcast when zero or domain.Broadcast
	WantAck bool
}

// Printer is the observable surface the chat engine reports through. The
// console implements it; tests substitute a recorder.
type Printer interface {
	Public(at time.Time, name, text string)
	Private(at time.Time, name, text string)
	Noticef(format string, args ...any)
	Errorf(format string, args ...any)
}

// Timestamp renders the short month-day hour-minute form used on every
// printed line.
func Timestamp(t time.Time) string {
	return t.Format("01-02 15:04")
}

// DestLabel names an acknowledgment destination for reporting.
func DestLabel(dest domain.NodeID) string {
	if dest.IsBroadcast() {
		return "@broadcast"
	}

	return "@" + dest.String()
}
