package chat

import (
	"context"
	"log/slog"
	"time"

	"meshchat/internal/domain"
)

// Sender is the transport send primitive. It may be slow; the dispatcher is
// its only caller for text traffic.
type Sender interface {
	SendText(ctx context.Context, text string, dest domain.NodeID, wantAck bool) (uint32, error)
}

// Dispatcher is the sole consumer of the outbound queue. It serializes sends
// with a fixed minimum delay between them because the radio degrades under
// rapid-fire writes, and registers a pending ack per tracked send. A failed
// send is reported and never stops delivery of subsequent tasks.
type Dispatcher struct {
	logger    *slog.Logger
	queue     *OutboundQueue
	acks      *AckRegistry
	sender    Sender
	printer   Printer
	sendDelay time.Duration
	clock     func() time.Time
}

func NewDispatcher(logger *slog.Logger, queue *OutboundQueue, acks *AckRegistry, sender Sender, printer Printer, sendDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		queue:     queue,
		acks:      acks,
		sender:    sender,
		printer:   printer,
		sendDelay: sendDelay,
		clock:     time.Now,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	for {
		task, ok := d.queue.Dequeue(ctx)
		if !ok {
			return
		}
		d.dispatch(ctx, task)
		if !sleepWithContext(ctx, d.sendDelay) {
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, task OutboundTask) {
	packetID, err := d.sender.SendText(ctx, task.Text, task.Dest, task.WantAck)
	if err != nil {
		d.printer.Errorf("TX error: %v", err)
		d.logger.Warn("send failed", "dest", DestLabel(task.Dest), "error", err)
		return
	}
	if !task.WantAck || packetID == 0 {
		return
	}

	if evicted, ok := d.acks.Register(packetID, task.Dest, d.clock()); ok {
		d.printer.Noticef("[%s] WARN pending acks overflow, dropping oldest (id=%d)", Timestamp(d.clock()), evicted.RequestID)
		d.logger.Warn("pending ack registry overflow", "evicted_id", evicted.RequestID)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
