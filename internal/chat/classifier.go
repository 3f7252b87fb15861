package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"meshchat/internal/bus"
	"meshchat/internal/domain"
	"meshchat/internal/events"
	"meshchat/internal/radio"
)

// DefaultMarkers is the vocabulary that triggers an automatic reply.
var DefaultMarkers = []string{"testa", "test", "тест", "ping"}

// Notifier surfaces private messages outside the terminal. Optional.
type Notifier interface {
	PrivateMessage(name, text string)
}

// Classifier routes one inbound packet event at a time: routing acks complete
// pending-ack entries, text messages are displayed and may trigger an
// auto-reply, everything else is discarded. Safe to call from any goroutine;
// it never blocks beyond bounded lookups and a non-blocking enqueue.
type Classifier struct {
	logger   *slog.Logger
	acks     *AckRegistry
	resolver *Resolver
	queue    *OutboundQueue
	printer  Printer
	local    func() (domain.NodeID, bool)
	markers  []string
	notifier Notifier
	clock    func() time.Time
}

func NewClassifier(
	logger *slog.Logger,
	acks *AckRegistry,
	resolver *Resolver,
	queue *OutboundQueue,
	printer Printer,
	local func() (domain.NodeID, bool),
	markers []string,
	notifier Notifier,
) *Classifier {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}

	return &Classifier{
		logger:   logger,
		acks:     acks,
		resolver: resolver,
		queue:    queue,
		printer:  printer,
		local:    local,
		markers:  markers,
		notifier: notifier,
		clock:    time.Now,
	}
}

// Start consumes packet and node-update events from the bus. Node updates
// invalidate the name cache before the store applies them elsewhere.
func (c *Classifier) Start(ctx context.Context, b bus.MessageBus) {
	packetSub := b.Subscribe(events.TopicPacket)
	nodeSub := b.Subscribe(events.TopicNodeUpdate)
	go func() {
		defer b.Unsubscribe(packetSub, events.TopicPacket)
		defer b.Unsubscribe(nodeSub, events.TopicNodeUpdate)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-packetSub:
				if !ok {
					return
				}
				if ev, ok := msg.(radio.PacketEvent); ok {
					c.OnPacket(ev)
				}
			case msg, ok := <-nodeSub:
				if !ok {
					return
				}
				if update, ok := msg.(domain.NodeUpdate); ok {
					c.OnNodeUpdated(update.Node.Num)
				}
			}
		}
	}()
}

// OnPacket handles one inbound event. A panic while processing is contained
// here so one malformed event cannot stop the event stream.
func (c *Classifier) OnPacket(ev radio.PacketEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("packet handling panic", "panic", r, "port", int(ev.Port))
		}
	}()

	switch ev.Port {
	case radio.PortRouting:
		c.handleAck(ev)
	case radio.PortText:
		c.handleText(ev)
	}
}

// OnNodeUpdated drops the stale cached name for a freshly-announced node.
func (c *Classifier) OnNodeUpdated(id domain.NodeID) {
	if id != 0 {
		c.resolver.Invalidate(id)
	}
}

func (c *Classifier) handleAck(ev radio.PacketEvent) {
	if ev.RequestID == 0 {
		return
	}
	entry, ok := c.acks.Complete(ev.RequestID)
	if !ok {
		// Already expired, evicted, or never tracked.
		return
	}

	now := c.clock()
	rtt := now.Sub(entry.SentAt)
	_, label := c.resolver.Resolve(ev.From)

	params := []string{fmt.Sprintf("RTT=%.1fs", rtt.Seconds())}
	params = append(params, signalParams(ev, false)...)
	c.printer.Noticef("[%s] ACK from %s, %s", Timestamp(now), label, strings.Join(params, ", "))
}

func (c *Classifier) handleText(ev radio.PacketEvent) {
	text := strings.TrimSpace(strings.ToValidUTF8(string(ev.Payload), "�"))
	name, _ := c.resolver.Resolve(ev.From)

	displayID := "@??"
	if ev.From != 0 {
		displayID = "@" + ev.From.String()
	}

	local, haveLocal := c.local()
	isPrivate := haveLocal && ev.To != 0 && ev.To != domain.Broadcast && ev.To == local

	now := c.clock()
	if isPrivate {
		c.printer.Private(now, name, text)
	} else {
		c.printer.Public(now, name, text)
	}

	techParams := signalParams(ev, true)
	metaParams := techParams
	if quality := domain.DetermineSignalQuality(ev.RxSNR, int(ev.RxRSSI)); quality != domain.SignalUnknown {
		metaParams = append(append([]string(nil), techParams...), "signal="+quality.String())
	}
	if len(metaParams) > 0 {
		c.printer.Noticef("(%s, %s)", displayID, strings.Join(metaParams, ", "))
	} else {
		c.printer.Noticef("(%s)", displayID)
	}

	if isPrivate && c.notifier != nil {
		c.notifier.PrivateMessage(name, text)
	}

	if !c.matchesMarker(text) {
		return
	}

	reply := fmt.Sprintf("✅ AR-ACK [%s] %s (%s, 📶%s)", now.Format("15:04"), name, displayID, strings.Join(techParams, ", "))
	dest := domain.Broadcast
	if isPrivate {
		dest = ev.From
	}
	if err := c.queue.TryEnqueue(OutboundTask{Text: reply, Dest: dest, WantAck: false}); err != nil {
		c.printer.Noticef("[%s] Send queue full, dropping auto reply", Timestamp(now))
	}
}

// matchesMarker does a case-insensitive whole-word match. Word splitting is
// unicode-aware because the marker set includes a non-Latin entry that RE2's
// ASCII \b cannot delimit.
func (c *Classifier) matchesMarker(text string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		for _, marker := range c.markers {
			if strings.EqualFold(word, marker) {
				return true
			}
		}
	}

	return false
}

// signalParams formats the link-quality fields the radio reported. Hop count
// is derived from hop_start minus hop_limit when both are present.
func signalParams(ev radio.PacketEvent, withHops bool) []string {
	var params []string
	if ev.RxRSSI != 0 {
		params = append(params, fmt.Sprintf("RSSI=%d", ev.RxRSSI))
	}
	if ev.RxSNR != 0 {
		params = append(params, fmt.Sprintf("SNR=%g", ev.RxSNR))
	}
	if withHops && ev.HopStart != 0 && ev.HopLimit != 0 && ev.HopStart >= ev.HopLimit {
		params = append(params, fmt.Sprintf("hops=%d", ev.HopStart-ev.HopLimit))
	}

	return params
}
