package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID is the canonical integer identity of a mesh participant.
// The zero value means "unknown/unset".
type NodeID uint32

// Broadcast is the reserved "all nodes" destination.
const Broadcast NodeID = 0xFFFFFFFF

// String renders the canonical "!xxxxxxxx" hex form.
func (id NodeID) String() string {
	return fmt.Sprintf("!%08x", uint32(id))
}

// IsBroadcast reports whether a destination addresses all nodes. An unset
// destination is a broadcast by convention.
func (id NodeID) IsBroadcast() bool {
	return id == 0 || id == Broadcast
}

// ParseNodeID accepts the "!xxxxxxxx" hex form. Unparsable input yields
// (0, false), never an error.
func ParseNodeID(raw string) (NodeID, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "!") {
		return 0, false
	}
	v, err := strconv.ParseUint(raw[1:], 16, 32)
	if err != nil {
		return 0, false
	}

	return NodeID(v), true
}
