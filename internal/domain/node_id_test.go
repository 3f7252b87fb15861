package domain

import "testing"

func TestParseNodeIDHexForm(t *testing.T) {
	id, ok := ParseNodeID("!aabbcc01")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if id != 0xAABBCC01 {
		t.Fatalf("expected 0xaabbcc01, got %08x", uint32(id))
	}
}

func TestParseNodeIDRejectsGarbage(t *testing.T) {
	cases := []string{"", "aabbcc01", "!zzzzzzzz", "!aabbcc0199", "@rvr"}
	for _, raw := range cases {
		if id, ok := ParseNodeID(raw); ok {
			t.Fatalf("expected %q to fail, got %v", raw, id)
		}
	}
}

func TestNodeIDString(t *testing.T) {
	if got := NodeID(0xAABBCC01).String(); got != "!aabbcc01" {
		t.Fatalf("unexpected string form: %q", got)
	}
	if got := NodeID(0x1).String(); got != "!00000001" {
		t.Fatalf("expected zero padding, got %q", got)
	}
}

func TestNodeIDIsBroadcast(t *testing.T) {
	if !Broadcast.IsBroadcast() {
		t.Fatalf("expected broadcast sentinel to be broadcast")
	}
	if !NodeID(0).IsBroadcast() {
		t.Fatalf("expected unset id to count as broadcast")
	}
	if NodeID(0xAABBCC01).IsBroadcast() {
		t.Fatalf("expected concrete id to not be broadcast")
	}
}
