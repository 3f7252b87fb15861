package domain

import "time"

// Node is the directory record for a mesh participant.
type Node struct {
	Num          NodeID
	LongName     string
	ShortName    string
	BoardModel   string
	Role         string
	BatteryLevel *uint32
	Voltage      *float64
	RSSI         *int
	SNR          *float64
	LastHeardAt  time.Time
	UpdatedAt    time.Time
}

// NodeUpdate is published on the bus whenever the radio reports node state.
type NodeUpdate struct {
	Node       Node
	LastHeard  time.Time
	FromPacket bool
}

// DisplayName picks the most human-readable identity available for a node.
func DisplayName(node Node) string {
	if node.ShortName != "" {
		return node.ShortName
	}
	if node.LongName != "" {
		return node.LongName
	}

	return node.Num.String()
}
