package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestDispatcher(sender *fakeSender, acks *AckRegistry, printer *testPrinter) *Dispatcher {
	q := NewOutboundQueue(8)
	d := NewDispatcher(discardLogger(), q, acks, sender, printer, time.Millisecond)
	d.clock = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestDispatchRegistersPendingAck(t *testing.T) {
	sender := &fakeSender{}
	acks := NewAckRegistry(10)
	d := newTestDispatcher(sender, acks, &testPrinter{})

	d.dispatch(context.Background(), OutboundTask{Text: "hello", Dest: 0xAABBCC01, WantAck: true})

	if acks.Len() != 1 {
		t.Fatalf("expected one pending ack, got %d", acks.Len())
	}
	sent := sender.sentTasks()
	if len(sent) != 1 || sent[0].Text != "hello" || sent[0].Dest != 0xAABBCC01 {
		t.Fatalf("unexpected send: %+v", sent)
	}
}

func TestDispatchSkipsAckForUntrackedSend(t *testing.T) {
	sender := &fakeSender{}
	acks := NewAckRegistry(10)
	d := newTestDispatcher(sender, acks, &testPrinter{})

	d.dispatch(context.Background(), OutboundTask{Text: "fire and forget", WantAck: false})

	if acks.Len() != 0 {
		t.Fatalf("expected no pending acks, got %d", acks.Len())
	}
}

func TestDispatchReportsSendErrorAndContinues(t *testing.T) {
	sender := &fakeSender{err: errors.New("port gone")}
	acks := NewAckRegistry(10)
	printer := &testPrinter{}
	d := newTestDispatcher(sender, acks, printer)

	d.dispatch(context.Background(), OutboundTask{Text: "doomed", WantAck: true})

	if len(printer.errors) != 1 || !strings.Contains(printer.errors[0], "TX error") {
		t.Fatalf("expected one TX error line, got %v", printer.errors)
	}
	if acks.Len() != 0 {
		t.Fatalf("failed send must not register an ack")
	}

	sender.err = nil
	d.dispatch(context.Background(), OutboundTask{Text: "next", WantAck: true})
	if len(sender.sentTasks()) != 1 {
		t.Fatalf("dispatcher must keep sending after a failure")
	}
}

func TestDispatchWarnsOnAckOverflow(t *testing.T) {
	sender := &fakeSender{}
	acks := NewAckRegistry(1)
	printer := &testPrinter{}
	d := newTestDispatcher(sender, acks, printer)

	d.dispatch(context.Background(), OutboundTask{Text: "a", WantAck: true})
	d.dispatch(context.Background(), OutboundTask{Text: "b", WantAck: true})

	if len(printer.notices) != 1 || !strings.Contains(printer.notices[0], "pending acks overflow") {
		t.Fatalf("expected one overflow warning, got %v", printer.notices)
	}
	if acks.Len() != 1 {
		t.Fatalf("registry must stay at capacity, len=%d", acks.Len())
	}
}

func TestRunDrainsQueueInOrder(t *testing.T) {
	sender := &fakeSender{}
	acks := NewAckRegistry(10)
	d := newTestDispatcher(sender, acks, &testPrinter{})
	for _, text := range []string{"one", "two", "three"} {
		if err := d.queue.TryEnqueue(OutboundTask{Text: text}); err != nil {
			t.Fatalf("enqueue %q: %v", text, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(sender.sentTasks()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for sends, got %d", len(sender.sentTasks()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	sent := sender.sentTasks()
	for i, want := range []string{"one", "two", "three"} {
		if sent[i].Text != want {
			t.Fatalf("send %d: expected %q, got %q", i, want, sent[i].Text)
		}
	}
}
