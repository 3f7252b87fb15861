package radio

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"meshchat/internal/domain"
)

func newTestCodec(t *testing.T) *WireCodec {
	t.Helper()
	c, err := NewWireCodec()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

// wrapFromRadioPacket embeds raw MeshPacket bytes in a FromRadio frame.
func wrapFromRadioPacket(packet []byte) []byte {
	var wire []byte
	wire = protowire.AppendTag(wire, fieldFromRadioPacket, protowire.BytesType)
	wire = protowire.AppendBytes(wire, packet)
	return wire
}

// unwrapToRadioPacket extracts the MeshPacket bytes from a ToRadio frame.
func unwrapToRadioPacket(t *testing.T, wire []byte) []byte {
	t.Helper()
	num, typ, n := protowire.ConsumeTag(wire)
	if n < 0 || num != fieldToRadioPacket || typ != protowire.BytesType {
		t.Fatalf("unexpected toradio leading field: num=%d typ=%d", num, typ)
	}
	packet, n2 := protowire.ConsumeBytes(wire[n:])
	if n2 < 0 {
		t.Fatalf("consume packet bytes: %v", protowire.ParseError(n2))
	}
	return packet
}

func TestEncodeTextDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	wire, packetID, err := c.EncodeText("ping test", 0xAABBCC01, true)
	if err != nil {
		t.Fatalf("encode text: %v", err)
	}
	if packetID == 0 {
		t.Fatalf("expected nonzero packet id")
	}

	decoded, err := c.Decode(wrapFromRadioPacket(unwrapToRadioPacket(t, wire)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Packet == nil {
		t.Fatalf("expected packet event")
	}
	ev := decoded.Packet
	if ev.Port != PortText {
		t.Fatalf("expected text port, got %d", ev.Port)
	}
	if !bytes.Equal(ev.Payload, []byte("ping test")) {
		t.Fatalf("payload mismatch: %q", ev.Payload)
	}
	if ev.To != 0xAABBCC01 {
		t.Fatalf("expected directed destination, got %v", ev.To)
	}
	if ev.PacketID != packetID {
		t.Fatalf("packet id mismatch: got %d want %d", ev.PacketID, packetID)
	}
}

func TestEncodeTextBroadcastByDefault(t *testing.T) {
	c := newTestCodec(t)
	wire, _, err := c.EncodeText("hello", 0, false)
	if err != nil {
		t.Fatalf("encode text: %v", err)
	}

	decoded, err := c.Decode(wrapFromRadioPacket(unwrapToRadioPacket(t, wire)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Packet == nil || decoded.Packet.To != domain.Broadcast {
		t.Fatalf("expected broadcast destination, got %+v", decoded.Packet)
	}
}

func TestEncodeTextRejectsEmptyBody(t *testing.T) {
	c := newTestCodec(t)
	if _, _, err := c.EncodeText("", 0, true); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestDecodeRoutingAck(t *testing.T) {
	var data []byte
	data = protowire.AppendTag(data, fieldDataPortnum, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(PortRouting))
	data = protowire.AppendTag(data, fieldDataRequestID, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 42)

	var packet []byte
	packet = protowire.AppendTag(packet, fieldPacketFrom, protowire.Fixed32Type)
	packet = protowire.AppendFixed32(packet, 0xAABBCC01)
	packet = protowire.AppendTag(packet, fieldPacketDecoded, protowire.BytesType)
	packet = protowire.AppendBytes(packet, data)
	packet = protowire.AppendTag(packet, fieldPacketRxRSSI, protowire.VarintType)
	rssi := int32(-98)
	packet = protowire.AppendVarint(packet, uint64(uint32(rssi)))

	decoded, err := newTestCodec(t).Decode(wrapFromRadioPacket(packet))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev := decoded.Packet
	if ev == nil || ev.Port != PortRouting {
		t.Fatalf("expected routing packet, got %+v", ev)
	}
	if ev.RequestID != 42 {
		t.Fatalf("expected request id 42, got %d", ev.RequestID)
	}
	if ev.From != 0xAABBCC01 {
		t.Fatalf("expected sender preserved, got %v", ev.From)
	}
	if ev.RxRSSI != -98 {
		t.Fatalf("expected negative rssi decoded, got %d", ev.RxRSSI)
	}
}

func TestDecodeNodeInfoUpdatesDirectory(t *testing.T) {
	var user []byte
	user = protowire.AppendTag(user, fieldUserLongName, protowire.BytesType)
	user = protowire.AppendBytes(user, []byte("River Repeater"))
	user = protowire.AppendTag(user, fieldUserShortName, protowire.BytesType)
	user = protowire.AppendBytes(user, []byte("RVR"))

	var nodeInfo []byte
	nodeInfo = protowire.AppendTag(nodeInfo, fieldNodeInfoNum, protowire.VarintType)
	nodeInfo = protowire.AppendVarint(nodeInfo, 0xAABBCC01)
	nodeInfo = protowire.AppendTag(nodeInfo, fieldNodeInfoUser, protowire.BytesType)
	nodeInfo = protowire.AppendBytes(nodeInfo, user)

	var wire []byte
	wire = protowire.AppendTag(wire, fieldFromRadioNodeInfo, protowire.BytesType)
	wire = protowire.AppendBytes(wire, nodeInfo)

	decoded, err := newTestCodec(t).Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.NodeUpdate == nil {
		t.Fatalf("expected node update")
	}
	node := decoded.NodeUpdate.Node
	if node.Num != 0xAABBCC01 || node.ShortName != "RVR" || node.LongName != "River Repeater" {
		t.Fatalf("unexpected node: %+v", node)
	}
}

func TestDecodeMyInfoSetsLocalNode(t *testing.T) {
	c := newTestCodec(t)
	if _, ok := c.LocalNode(); ok {
		t.Fatalf("expected local node unknown before my_info")
	}

	var myInfo []byte
	myInfo = protowire.AppendTag(myInfo, fieldMyInfoNodeNum, protowire.VarintType)
	myInfo = protowire.AppendVarint(myInfo, 0x42)

	var wire []byte
	wire = protowire.AppendTag(wire, fieldFromRadioMyInfo, protowire.BytesType)
	wire = protowire.AppendBytes(wire, myInfo)

	if _, err := c.Decode(wire); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, ok := c.LocalNode()
	if !ok || id != 0x42 {
		t.Fatalf("expected local node 0x42, got %v ok=%v", id, ok)
	}
}

func TestDecodeConfigCompleteMatchesWantConfig(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.EncodeWantConfig(); err != nil {
		t.Fatalf("encode want_config: %v", err)
	}
	wantID := c.wantConfigID.Load()

	var wire []byte
	wire = protowire.AppendTag(wire, fieldFromRadioConfigComplete, protowire.VarintType)
	wire = protowire.AppendVarint(wire, uint64(wantID))

	decoded, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.WantConfigReady {
		t.Fatalf("expected want_config completion for id %d", wantID)
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	// A frame carrying only fields this client does not track.
	var wire []byte
	wire = protowire.AppendTag(wire, 16, protowire.BytesType)
	wire = protowire.AppendBytes(wire, []byte{0x01, 0x02})
	wire = protowire.AppendTag(wire, 8, protowire.VarintType)
	wire = protowire.AppendVarint(wire, 1)

	decoded, err := newTestCodec(t).Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Packet != nil || decoded.NodeUpdate != nil {
		t.Fatalf("expected no events, got %+v", decoded)
	}
}
