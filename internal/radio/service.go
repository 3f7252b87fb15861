package radio

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meshchat/internal/bus"
	"meshchat/internal/domain"
	"meshchat/internal/events"
	"meshchat/internal/transport"
)

const (
	readFrameTimeout  = 30 * time.Second
	writeFrameTimeout = 8 * time.Second
	keepAliveInterval = 25 * time.Second
	maxReconnectDelay = 15 * time.Second
	maxTextBytes      = 200
)

// Service owns the radio link: it supervises the connection, reads and decodes
// inbound frames onto the bus, keeps the link alive, and exposes the text-send
// primitive used by the dispatcher.
type Service struct {
	logger    *slog.Logger
	transport transport.Transport
	codec     Codec
	bus       bus.MessageBus
}

func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, codec Codec) *Service {
	return &Service{
		logger:    logger,
		transport: tr,
		codec:     codec,
		bus:       b,
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.runConnector(ctx)
}

// LocalNode reports the operating node's own id once known.
func (s *Service) LocalNode() (domain.NodeID, bool) {
	return s.codec.LocalNode()
}

// SendText encodes and writes one text message and returns the packet id the
// radio uses to correlate acknowledgments. Invoked only by the dispatcher, so
// sends are already serialized before they reach the transport.
func (s *Service) SendText(ctx context.Context, text string, dest domain.NodeID, wantAck bool) (uint32, error) {
	if n := len([]byte(text)); n > maxTextBytes {
		return 0, fmt.Errorf("message body exceeds %d bytes: %d", maxTextBytes, n)
	}
	payload, packetID, err := s.codec.EncodeText(text, dest, wantAck)
	if err != nil {
		return 0, fmt.Errorf("encode outgoing message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeFrameTimeout)
	defer cancel()
	if err := s.transport.WriteFrame(writeCtx, payload); err != nil {
		return 0, fmt.Errorf("send outgoing frame: %w", err)
	}
	s.publishRawFrame(events.TopicRawFrameOut, payload)

	return packetID, nil
}

func (s *Service) runConnector(ctx context.Context) {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		s.publishConnStatus(events.ConnectionStateConnecting, nil)
		if err := s.transport.Connect(ctx); err != nil {
			s.publishConnStatus(events.ConnectionStateReconnecting, err)
			s.logger.Error("transport connect failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			if backoff < maxReconnectDelay {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		s.publishConnStatus(events.ConnectionStateConnected, nil)
		if err := s.sendWantConfig(ctx); err != nil {
			s.logger.Warn("want_config send failed", "error", err)
		}

		keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
		go s.runKeepAlive(keepAliveCtx)
		err := s.runReader(ctx)
		cancelKeepAlive()
		_ = s.transport.Close()
		s.publishConnStatus(events.ConnectionStateReconnecting, err)

		if !sleepWithContext(ctx, backoff) {
			return
		}
		if backoff < maxReconnectDelay {
			backoff *= 2
		}
	}
}

func (s *Service) runReader(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, readFrameTimeout)
		payload, err := s.transport.ReadFrame(readCtx)
		cancel()
		if err != nil {
			return err
		}

		s.publishRawFrame(events.TopicRawFrameIn, payload)
		decoded, err := s.codec.Decode(payload)
		if err != nil {
			s.logger.Warn("decode inbound frame failed", "error", err)
			continue
		}

		if decoded.WantConfigReady {
			s.logger.Info("initial config download complete")
		}
		if decoded.NodeUpdate != nil {
			s.bus.Publish(events.TopicNodeUpdate, *decoded.NodeUpdate)
		}
		if decoded.Packet != nil {
			s.bus.Publish(events.TopicPacket, *decoded.Packet)
		}
	}
}

func (s *Service) runKeepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := s.codec.EncodeHeartbeat()
			if err != nil {
				s.logger.Debug("encode heartbeat failed", "error", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeFrameTimeout)
			err = s.transport.WriteFrame(writeCtx, payload)
			cancel()
			if err != nil {
				s.logger.Debug("heartbeat write failed", "error", err)
				continue
			}
			s.publishRawFrame(events.TopicRawFrameOut, payload)
		}
	}
}

func (s *Service) sendWantConfig(ctx context.Context) error {
	payload, err := s.codec.EncodeWantConfig()
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeFrameTimeout)
	defer cancel()
	if err := s.transport.WriteFrame(writeCtx, payload); err != nil {
		return err
	}
	s.publishRawFrame(events.TopicRawFrameOut, payload)

	return nil
}

func (s *Service) publishRawFrame(topic string, payload []byte) {
	s.bus.Publish(topic, events.RawFrame{
		Hex: strings.ToUpper(hex.EncodeToString(payload)),
		Len: len(payload),
	})
}

func (s *Service) publishConnStatus(state events.ConnectionState, err error) {
	status := events.ConnStatus{
		State:         state,
		TransportName: s.transport.Name(),
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(events.TopicConnStatus, status)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
