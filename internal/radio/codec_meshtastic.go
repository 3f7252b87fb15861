package radio

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"meshchat/internal/domain"
)

// Meshtastic protobuf field numbers for the message subset this client
// speaks. Hand-decoded with protowire so the repo does not carry the full
// generated proto tree.
const (
	fieldToRadioPacket       = 1
	fieldToRadioWantConfigID = 3
	fieldToRadioHeartbeat    = 7

	fieldFromRadioPacket         = 2
	fieldFromRadioMyInfo         = 3
	fieldFromRadioNodeInfo       = 4
	fieldFromRadioConfigComplete = 7

	fieldPacketFrom     = 1
	fieldPacketTo       = 2
	fieldPacketDecoded  = 4
	fieldPacketID       = 6
	fieldPacketRxTime   = 7
	fieldPacketRxSNR    = 8
	fieldPacketHopLimit = 9
	fieldPacketWantAck  = 10
	fieldPacketRxRSSI   = 12
	fieldPacketHopStart = 15

	fieldDataPortnum   = 1
	fieldDataPayload   = 2
	fieldDataRequestID = 6

	fieldMyInfoNodeNum = 1

	fieldNodeInfoNum       = 1
	fieldNodeInfoUser      = 2
	fieldNodeInfoSNR       = 4
	fieldNodeInfoLastHeard = 5
	fieldNodeInfoMetrics   = 6

	fieldUserLongName  = 2
	fieldUserShortName = 3
	fieldUserHwModel   = 5

	fieldMetricsBattery = 1
	fieldMetricsVoltage = 2
)

// WireCodec implements Codec for the Meshtastic client API framing.
type WireCodec struct {
	wantConfigID atomic.Uint32
	packetID     atomic.Uint32
	localNodeNum atomic.Uint32
}

func NewWireCodec() (*WireCodec, error) {
	var seedRaw [4]byte
	if _, err := rand.Read(seedRaw[:]); err != nil {
		return nil, fmt.Errorf("seed codec packet id: %w", err)
	}
	c := &WireCodec{}
	c.packetID.Store(binary.BigEndian.Uint32(seedRaw[:]))

	return c, nil
}

func (c *WireCodec) LocalNode() (domain.NodeID, bool) {
	num := c.localNodeNum.Load()

	return domain.NodeID(num), num != 0
}

func (c *WireCodec) EncodeWantConfig() ([]byte, error) {
	id := c.nextNonZeroID()
	var wire []byte
	wire = protowire.AppendTag(wire, fieldToRadioWantConfigID, protowire.VarintType)
	wire = protowire.AppendVarint(wire, uint64(id))
	c.wantConfigID.Store(id)

	return wire, nil
}

func (c *WireCodec) EncodeHeartbeat() ([]byte, error) {
	var wire []byte
	wire = protowire.AppendTag(wire, fieldToRadioHeartbeat, protowire.BytesType)
	wire = protowire.AppendBytes(wire, nil)

	return wire, nil
}

func (c *WireCodec) EncodeText(text string, dest domain.NodeID, wantAck bool) ([]byte, uint32, error) {
	if text == "" {
		return nil, 0, fmt.Errorf("message body is empty")
	}
	to := uint32(domain.Broadcast)
	if !dest.IsBroadcast() {
		to = uint32(dest)
	}
	packetID := c.nextNonZeroID()

	var data []byte
	data = protowire.AppendTag(data, fieldDataPortnum, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(PortText))
	data = protowire.AppendTag(data, fieldDataPayload, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte(text))

	var packet []byte
	packet = protowire.AppendTag(packet, fieldPacketTo, protowire.Fixed32Type)
	packet = protowire.AppendFixed32(packet, to)
	packet = protowire.AppendTag(packet, fieldPacketDecoded, protowire.BytesType)
	packet = protowire.AppendBytes(packet, data)
	packet = protowire.AppendTag(packet, fieldPacketID, protowire.Fixed32Type)
	packet = protowire.AppendFixed32(packet, packetID)
	if wantAck {
		packet = protowire.AppendTag(packet, fieldPacketWantAck, protowire.VarintType)
		packet = protowire.AppendVarint(packet, 1)
	}

	var wire []byte
	wire = protowire.AppendTag(wire, fieldToRadioPacket, protowire.BytesType)
	wire = protowire.AppendBytes(wire, packet)

	return wire, packetID, nil
}

func (c *WireCodec) Decode(payload []byte) (Decoded, error) {
	out := Decoded{Raw: payload}
	now := time.Now()

	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return out, fmt.Errorf("decode fromradio tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldFromRadioPacket && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return out, fmt.Errorf("decode packet: %w", protowire.ParseError(n))
			}
			b = b[n:]
			c.decodePacket(raw, now, &out)
		case num == fieldFromRadioMyInfo && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return out, fmt.Errorf("decode my_info: %w", protowire.ParseError(n))
			}
			b = b[n:]
			if num := decodeMyNodeNum(raw); num != 0 {
				c.localNodeNum.Store(num)
			}
		case num == fieldFromRadioNodeInfo && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return out, fmt.Errorf("decode node_info: %w", protowire.ParseError(n))
			}
			b = b[n:]
			if update, ok := decodeNodeInfo(raw, now); ok {
				out.NodeUpdate = &update
			}
		case num == fieldFromRadioConfigComplete && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return out, fmt.Errorf("decode config_complete_id: %w", protowire.ParseError(n))
			}
			b = b[n:]
			out.ConfigCompleteID = uint32(v)
			if expected := c.wantConfigID.Load(); expected != 0 && uint32(v) == expected {
				out.WantConfigReady = true
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return out, fmt.Errorf("skip fromradio field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return out, nil
}

func (c *WireCodec) decodePacket(raw []byte, now time.Time, out *Decoded) {
	ev := PacketEvent{RxTime: now}
	var data []byte

	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return
		}
		b = b[n:]

		switch num {
		case fieldPacketFrom:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.From = domain.NodeID(v)
		case fieldPacketTo:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.To = domain.NodeID(v)
		case fieldPacketDecoded:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return
			}
			b = b[n:]
			data = v
		case fieldPacketID:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.PacketID = v
		case fieldPacketRxTime:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			if v != 0 {
				ev.RxTime = time.Unix(int64(v), 0)
			}
		case fieldPacketRxSNR:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.RxSNR = math.Float32frombits(v)
		case fieldPacketHopLimit:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.HopLimit = uint32(v)
		case fieldPacketRxRSSI:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.RxRSSI = int32(uint32(v))
		case fieldPacketHopStart:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.HopStart = uint32(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return
			}
			b = b[n:]
		}
	}

	// Encrypted packets carry no decoded Data; nothing to classify.
	if data == nil {
		return
	}
	decodeData(data, &ev)
	out.Packet = &ev

	// NODEINFO_APP payloads double as directory updates.
	if ev.Port == PortNodeInfo && ev.From != 0 {
		if update, ok := decodeUserPayload(ev, now); ok {
			out.NodeUpdate = &update
		}
	}
}

func decodeData(raw []byte, ev *PacketEvent) {
	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return
		}
		b = b[n:]

		switch num {
		case fieldDataPortnum:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.Port = PortNum(v)
		case fieldDataPayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.Payload = v
		case fieldDataRequestID:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			ev.RequestID = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return
			}
			b = b[n:]
		}
	}
}

func decodeMyNodeNum(raw []byte) uint32 {
	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0
		}
		b = b[n:]

		if num == fieldMyInfoNodeNum && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0
			}
			return uint32(v)
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return 0
		}
		b = b[n:]
	}

	return 0
}

func decodeNodeInfo(raw []byte, now time.Time) (domain.NodeUpdate, bool) {
	node := domain.Node{UpdatedAt: now}

	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.NodeUpdate{}, false
		}
		b = b[n:]

		switch num {
		case fieldNodeInfoNum:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.NodeUpdate{}, false
			}
			b = b[n:]
			node.Num = domain.NodeID(v)
		case fieldNodeInfoUser:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.NodeUpdate{}, false
			}
			b = b[n:]
			applyUser(&node, v)
		case fieldNodeInfoSNR:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return domain.NodeUpdate{}, false
			}
			b = b[n:]
			if bits := math.Float32frombits(v); bits != 0 {
				snr := float64(bits)
				node.SNR = &snr
			}
		case fieldNodeInfoLastHeard:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return domain.NodeUpdate{}, false
			}
			b = b[n:]
			if v != 0 {
				node.LastHeardAt = time.Unix(int64(v), 0)
			}
		case fieldNodeInfoMetrics:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.NodeUpdate{}, false
			}
			b = b[n:]
			applyDeviceMetrics(&node, v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.NodeUpdate{}, false
			}
			b = b[n:]
		}
	}

	if node.Num == 0 {
		return domain.NodeUpdate{}, false
	}
	if node.LastHeardAt.IsZero() {
		node.LastHeardAt = now
	}

	return domain.NodeUpdate{Node: node, LastHeard: node.LastHeardAt}, true
}

// decodeUserPayload turns a NODEINFO_APP packet's User payload into a
// directory update attributed to the sending node.
func decodeUserPayload(ev PacketEvent, now time.Time) (domain.NodeUpdate, bool) {
	node := domain.Node{
		Num:         ev.From,
		LastHeardAt: ev.RxTime,
		UpdatedAt:   now,
	}
	applyUser(&node, ev.Payload)
	if node.ShortName == "" && node.LongName == "" {
		return domain.NodeUpdate{}, false
	}
	if rssi := ev.RxRSSI; rssi != 0 {
		v := int(rssi)
		node.RSSI = &v
	}
	if snr := ev.RxSNR; snr != 0 {
		v := float64(snr)
		node.SNR = &v
	}

	return domain.NodeUpdate{Node: node, LastHeard: node.LastHeardAt, FromPacket: true}, true
}

func applyUser(node *domain.Node, raw []byte) {
	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return
		}
		b = b[n:]

		switch num {
		case fieldUserLongName:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return
			}
			b = b[n:]
			node.LongName = strings.TrimSpace(string(v))
		case fieldUserShortName:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return
			}
			b = b[n:]
			node.ShortName = strings.TrimSpace(string(v))
		case fieldUserHwModel:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return
			}
			b = b[n:]
			if v != 0 {
				node.BoardModel = fmt.Sprintf("hw_%d", v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return
			}
			b = b[n:]
		}
	}
}

func applyDeviceMetrics(node *domain.Node, raw []byte) {
	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return
		}
		b = b[n:]

		switch num {
		case fieldMetricsBattery:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return
			}
			b = b[n:]
			battery := uint32(v)
			node.BatteryLevel = &battery
		case fieldMetricsVoltage:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return
			}
			b = b[n:]
			if bits := math.Float32frombits(v); bits != 0 {
				voltage := float64(bits)
				node.Voltage = &voltage
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return
			}
			b = b[n:]
		}
	}
}

func (c *WireCodec) nextNonZeroID() uint32 {
	for {
		id := c.packetID.Add(1)
		if id != 0 {
			return id
		}
	}
}
