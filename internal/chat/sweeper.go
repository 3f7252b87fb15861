package chat

import (
	"context"
	"time"
)

// Sweeper periodically expires pending acks and reports them. Reporting only:
// it never retries the send.
type Sweeper struct {
	acks     *AckRegistry
	printer  Printer
	interval time.Duration
	timeout  time.Duration
}

func NewSweeper(acks *AckRegistry, printer Printer, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		acks:     acks,
		printer:  printer,
		interval: interval,
		timeout:  timeout,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweepOnce(now)
		}
	}
}

func (s *Sweeper) sweepOnce(now time.Time) {
	for _, entry := range s.acks.SweepExpired(now, s.timeout) {
		s.printer.Noticef("[%s] NO ACK from %s, id=%d", Timestamp(now), DestLabel(entry.Dest), entry.RequestID)
	}
}
