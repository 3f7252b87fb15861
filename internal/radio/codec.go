package radio

import (
	"time"

	"meshchat/internal/domain"
)

// PortNum identifies the application payload carried by a mesh packet.
// Values follow the Meshtastic port number registry.
type PortNum int32

const (
	PortUnknown   PortNum = 0
	PortText      PortNum = 1
	PortPosition  PortNum = 3
	PortNodeInfo  PortNum = 4
	PortRouting   PortNum = 5
	PortAdmin     PortNum = 6
	PortTelemetry PortNum = 67
)

// PacketEvent is one decoded inbound mesh packet. Zero RSSI/SNR/hop values
// mean the radio did not report the field.
type PacketEvent struct {
	Port      PortNum
	From      domain.NodeID
	To        domain.NodeID
	PacketID  uint32
	RequestID uint32
	Payload   []byte
	RxTime    time.Time
	RxRSSI    int32
	RxSNR     float32
	HopStart  uint32
	HopLimit  uint32
}

// Decoded is a parsed inbound radio frame with optional event payloads.
type Decoded struct {
	Raw              []byte
	Packet           *PacketEvent
	NodeUpdate       *domain.NodeUpdate
	ConfigCompleteID uint32
	WantConfigReady  bool
}

// Codec translates between transport frames and wire payloads.
type Codec interface {
	EncodeWantConfig() ([]byte, error)
	EncodeHeartbeat() ([]byte, error)
	// EncodeText returns the frame payload and the packet id the radio will
	// use to correlate delivery acknowledgments.
	EncodeText(text string, dest domain.NodeID, wantAck bool) ([]byte, uint32, error)
	Decode(payload []byte) (Decoded, error)
	// LocalNode reports the operating node's own id once the radio has
	// announced it; false until then.
	LocalNode() (domain.NodeID, bool)
}
