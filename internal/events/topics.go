package events

const (
	TopicConnStatus  = "conn.status"
	TopicPacket      = "packet.event"
	TopicNodeUpdate  = "node.update"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
)
