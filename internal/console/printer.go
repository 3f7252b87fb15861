package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"meshchat/internal/chat"
)

// Printer renders chat output with one color per semantic category: public
// traffic green, private red, link/engine notices blue, errors bright red.
// A single mutex keeps lines whole when workers print concurrently.
type Printer struct {
	mu  sync.Mutex
	out io.Writer

	public  *color.Color
	private *color.Color
	notice  *color.Color
	errLine *color.Color
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:     out,
		public:  color.New(color.FgGreen),
		private: color.New(color.FgRed),
		notice:  color.New(color.FgBlue),
		errLine: color.New(color.FgHiRed),
	}
}

func (p *Printer) Public(at time.Time, name, text string) {
	p.linef(p.public, "[%s] PUB %s: %s", chat.Timestamp(at), name, text)
}

func (p *Printer) Private(at time.Time, name, text string) {
	p.linef(p.private, "[%s] PM %s: %s", chat.Timestamp(at), name, text)
}

func (p *Printer) Noticef(format string, args ...any) {
	p.linef(p.notice, format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.linef(p.errLine, format, args...)
}

func (p *Printer) linef(c *color.Color, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = c.Fprintln(p.out, fmt.Sprintf(format, args...))
}
