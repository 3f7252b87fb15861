package console

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"meshchat/internal/chat"
	"meshchat/internal/domain"
)

// InputLoop reads operator lines and turns them into outbound tasks. A plain
// line broadcasts with an ack request; "@token text" resolves the token to a
// node and sends directed. Line history persists across sessions.
type InputLoop struct {
	logger   *slog.Logger
	rl       *readline.Instance
	queue    *chat.OutboundQueue
	resolver *chat.Resolver
	printer  *Printer
}

func NewInputLoop(logger *slog.Logger, historyFile string, queue *chat.OutboundQueue, resolver *chat.Resolver) (*InputLoop, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		AutoComplete:    &nameCompleter{names: resolver.KnownNames},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &InputLoop{
		logger:   logger,
		rl:       rl,
		queue:    queue,
		resolver: resolver,
		printer:  NewPrinter(rl.Stdout()),
	}, nil
}

// Printer writes through readline's stdout so output redraws the prompt.
func (l *InputLoop) Printer() *Printer {
	return l.printer
}

// Run blocks until interrupt, EOF, or Close.
func (l *InputLoop) Run() {
	for {
		line, err := l.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			l.logger.Warn("read input line", "error", err)
			return
		}
		l.handleLine(line)
	}
}

func (l *InputLoop) Close() error {
	return l.rl.Close()
}

func (l *InputLoop) handleLine(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	text := line
	dest := domain.Broadcast
	if strings.HasPrefix(line, "@") {
		target, body := splitDirected(line)
		id, ok := l.resolver.ResolveToken(target)
		if !ok {
			l.printer.Noticef("[%s] Unknown node: %s", chat.Timestamp(time.Now()), target)
			return
		}
		text = body
		dest = id
	}

	err := l.queue.TryEnqueue(chat.OutboundTask{Text: text, Dest: dest, WantAck: true})
	if errors.Is(err, chat.ErrQueueFull) {
		l.printer.Noticef("[%s] Send queue full, dropping message", chat.Timestamp(time.Now()))
	}
}

// splitDirected splits "@token rest of line" into the bare token and the
// message body (empty when the line is only a target).
func splitDirected(line string) (target, body string) {
	parts := strings.SplitN(line, " ", 2)
	target = strings.TrimPrefix(parts[0], "@")
	if len(parts) == 2 {
		body = strings.TrimSpace(parts[1])
	}

	return target, body
}

// nameCompleter completes "@shortname" targets from the node directory and
// the resolver's name cache.
type nameCompleter struct {
	names func() []string
}

func (c *nameCompleter) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])
	var out [][]rune
	for _, name := range c.names() {
		candidate := "@" + name
		if strings.HasPrefix(candidate, prefix) {
			out = append(out, []rune(candidate[len(prefix):]))
		}
	}

	return out, len(prefix)
}
