package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"meshchat/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPrinter records every printed line for assertions.
type testPrinter struct {
	mu      sync.Mutex
	public  []string
	private []string
	notices []string
	errors  []string
}

func (p *testPrinter) Public(_ time.Time, name, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.public = append(p.public, name+": "+text)
}

func (p *testPrinter) Private(_ time.Time, name, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.private = append(p.private, name+": "+text)
}

func (p *testPrinter) Noticef(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, fmt.Sprintf(format, args...))
}

func (p *testPrinter) Errorf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

// fakeDirectory serves canned nodes and counts lookups so tests can observe
// cache behavior.
type fakeDirectory struct {
	mu      sync.Mutex
	nodes   map[domain.NodeID]domain.Node
	lookups int
}

func newFakeDirectory(nodes ...domain.Node) *fakeDirectory {
	d := &fakeDirectory{nodes: make(map[domain.NodeID]domain.Node)}
	for _, node := range nodes {
		d.nodes[node.Num] = node
	}
	return d
}

func (d *fakeDirectory) Get(id domain.NodeID) (domain.Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	node, ok := d.nodes[id]
	return node, ok
}

func (d *fakeDirectory) GetByHex(raw string) (domain.Node, bool) {
	id, ok := domain.ParseNodeID(raw)
	if !ok {
		return domain.Node{}, false
	}
	return d.Get(id)
}

func (d *fakeDirectory) SnapshotSorted() []domain.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := make([]domain.Node, 0, len(d.nodes))
	for _, node := range d.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

func (d *fakeDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

// fakeSender records sends and can be told to fail or withhold packet ids.
type fakeSender struct {
	mu     sync.Mutex
	sent   []OutboundTask
	err    error
	nextID uint32
}

func (s *fakeSender) SendText(_ context.Context, text string, dest domain.NodeID, wantAck bool) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.sent = append(s.sent, OutboundTask{Text: text, Dest: dest, WantAck: wantAck})
	s.nextID++
	return s.nextID, nil
}

func (s *fakeSender) sentTasks() []OutboundTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboundTask(nil), s.sent...)
}
