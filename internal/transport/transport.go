package transport

import "context"

// Transport is a connected byte stream to the radio carrying length-prefixed
// frames. Implementations are safe for one concurrent reader plus writers.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}
