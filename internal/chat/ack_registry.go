package chat

import (
	"sync"
	"time"

	"meshchat/internal/domain"
)

// PendingAck tracks one acknowledgment-requested send awaiting confirmation.
type PendingAck struct {
	RequestID uint32
	Dest      domain.NodeID
	SentAt    time.Time
}

// AckRegistry is a capacity-bounded map from packet id to pending send.
// Register, Complete and SweepExpired each take the single lock, so an id is
// never both completed and reported expired. Eviction under capacity pressure
// is strictly insertion-order FIFO, independent of timestamps.
type AckRegistry struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint32]PendingAck
	order    []uint32
}

func NewAckRegistry(capacity int) *AckRegistry {
	if capacity <= 0 {
		capacity = 1
	}

	return &AckRegistry{
		capacity: capacity,
		entries:  make(map[uint32]PendingAck),
	}
}

// Register records a pending ack. If the registry is at capacity the oldest
// entry by registration order is evicted and returned.
func (r *AckRegistry) Register(requestID uint32, dest domain.NodeID, sentAt time.Time) (PendingAck, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted PendingAck
	hadEviction := false
	if _, exists := r.entries[requestID]; !exists && len(r.entries) >= r.capacity {
		evicted, hadEviction = r.evictOldestLocked()
	}
	if _, exists := r.entries[requestID]; !exists {
		r.order = append(r.order, requestID)
	}
	r.entries[requestID] = PendingAck{RequestID: requestID, Dest: dest, SentAt: sentAt}

	return evicted, hadEviction
}

// Complete atomically removes and returns the entry for requestID.
func (r *AckRegistry) Complete(requestID uint32) (PendingAck, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[requestID]
	if !ok {
		return PendingAck{}, false
	}
	delete(r.entries, requestID)

	return entry, true
}

// SweepExpired atomically removes and returns every entry older than timeout.
func (r *AckRegistry) SweepExpired(now time.Time, timeout time.Duration) []PendingAck {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []PendingAck
	kept := r.order[:0]
	for _, id := range r.order {
		entry, ok := r.entries[id]
		if !ok {
			continue // completed earlier; drop the stale order slot
		}
		if now.Sub(entry.SentAt) > timeout {
			expired = append(expired, entry)
			delete(r.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	return expired
}

func (r *AckRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

func (r *AckRegistry) evictOldestLocked() (PendingAck, bool) {
	for len(r.order) > 0 {
		id := r.order[0]
		r.order = r.order[1:]
		entry, ok := r.entries[id]
		if !ok {
			continue // already completed, slot is stale
		}
		delete(r.entries, id)

		return entry, true
	}

	return PendingAck{}, false
}
