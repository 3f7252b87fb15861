package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"meshchat/internal/bus"
	"meshchat/internal/events"
)

// NodeStore keeps the latest node directory snapshots in memory. It is the
// externally-mutated directory the identity resolver reads from: the radio
// reader publishes node updates and the store applies them on its own
// goroutine, so all reads go through the lock.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[NodeID]Node
}

func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[NodeID]Node)}
}

func (s *NodeStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(events.TopicNodeUpdate)
	go func() {
		defer b.Unsubscribe(sub, events.TopicNodeUpdate)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				update, ok := msg.(NodeUpdate)
				if !ok {
					continue
				}
				s.Upsert(update.Node)
			}
		}
	}()
}

func (s *NodeStore) Upsert(node Node) {
	if node.Num == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.Num]
	if ok {
		// Merge sparse updates without wiping cached metadata.
		if node.LongName == "" {
			node.LongName = existing.LongName
		}
		if node.ShortName == "" {
			node.ShortName = existing.ShortName
		}
		if node.BoardModel == "" {
			node.BoardModel = existing.BoardModel
		}
		if node.Role == "" {
			node.Role = existing.Role
		}
		if node.BatteryLevel == nil {
			node.BatteryLevel = existing.BatteryLevel
		}
		if node.Voltage == nil {
			node.Voltage = existing.Voltage
		}
		if node.RSSI == nil {
			node.RSSI = existing.RSSI
		}
		if node.SNR == nil {
			node.SNR = existing.SNR
		}
		if node.LastHeardAt.IsZero() || existing.LastHeardAt.After(node.LastHeardAt) {
			node.LastHeardAt = existing.LastHeardAt
		}
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = time.Now()
	}
	s.nodes[node.Num] = node
}

// Get looks the node up by its canonical integer identifier.
func (s *NodeStore) Get(id NodeID) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]

	return node, ok
}

// GetByHex looks the node up by the "!xxxxxxxx" identifier form.
func (s *NodeStore) GetByHex(raw string) (Node, bool) {
	id, ok := ParseNodeID(raw)
	if !ok {
		return Node{}, false
	}

	return s.Get(id)
}

// SnapshotSorted copies the directory to a list ordered by last-heard time.
// The copy exists because the directory mutates concurrently with iteration.
func (s *NodeStore) SnapshotSorted() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastHeardAt.After(out[j].LastHeardAt)
	})

	return out
}
