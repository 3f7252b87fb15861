package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meshchat/internal/app"
	"meshchat/internal/bus"
	"meshchat/internal/chat"
	"meshchat/internal/config"
	"meshchat/internal/console"
	"meshchat/internal/domain"
	"meshchat/internal/events"
	"meshchat/internal/logging"
	"meshchat/internal/notify"
	"meshchat/internal/radio"
	"meshchat/internal/transport"
)

const ackSweepInterval = time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("run meshchat", "error", err)
		os.Exit(1)
	}
}

func run() error {
	connector := flag.String("connector", "", "transport connector (serial|ip)")
	serialPort := flag.String("serial-port", "", "serial device path, e.g. /dev/ttyUSB0")
	host := flag.String("host", "", "radio ip/hostname for the ip connector")
	logLevel := flag.String("log-level", "", "log level (debug|info|warn|error)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(&cfg, *connector, *serialPort, *host, *logLevel)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("main")
	logger.Info("starting meshchat", "version", app.Version(), "connector", cfg.Connection.Connector)

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	tr := buildTransport(cfg.Connection)
	// The only fatal path: a radio that cannot be reached at startup.
	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s transport: %w", tr.Name(), err)
	}
	defer func() {
		if closeErr := tr.Close(); closeErr != nil {
			logger.Warn("close transport", "error", closeErr)
		}
	}()

	codec, err := radio.NewWireCodec()
	if err != nil {
		return fmt.Errorf("initialize codec: %w", err)
	}
	radioSvc := radio.NewService(logMgr.Logger("radio"), b, tr, codec)

	nodeStore := domain.NewNodeStore()
	nodeStore.Start(ctx, b)

	queue := chat.NewOutboundQueue(cfg.Chat.SendQueueSize)
	acks := chat.NewAckRegistry(cfg.Chat.MaxPendingAcks)
	resolver := chat.NewResolver(nodeStore)

	input, err := console.NewInputLoop(logMgr.Logger("console"), paths.HistoryFile, queue, resolver)
	if err != nil {
		return fmt.Errorf("initialize input: %w", err)
	}
	defer func() {
		_ = input.Close()
	}()
	printer := input.Printer()

	notifier := notify.New(logMgr.Logger("notify"), cfg.Notifications.PrivateMessages, app.Name)
	classifier := chat.NewClassifier(
		logMgr.Logger("classifier"),
		acks, resolver, queue, printer,
		radioSvc.LocalNode,
		cfg.Chat.AutoReplyMarkers,
		notifier,
	)
	dispatcher := chat.NewDispatcher(
		logMgr.Logger("dispatcher"),
		queue, acks, radioSvc, printer,
		time.Duration(cfg.Chat.SendDelayMS)*time.Millisecond,
	)
	sweeper := chat.NewSweeper(acks, printer, ackSweepInterval, time.Duration(cfg.Chat.AckTimeoutSec)*time.Second)

	radioSvc.Start(ctx)
	classifier.Start(ctx, b)
	go dispatcher.Run(ctx)
	go sweeper.Run(ctx)
	go watchLink(ctx, b, logMgr.Logger("link"), printer)

	printer.Noticef("meshchat started. Plain lines broadcast, @name sends directed. Ctrl+C or Ctrl+D to exit.")
	printer.Noticef("Tab completes @node names.")

	// Close the editor once the context falls, otherwise Readline blocks.
	go func() {
		<-ctx.Done()
		_ = input.Close()
	}()
	input.Run()
	stop()
	printer.Noticef("Stopped.")

	return nil
}

func applyFlagOverrides(cfg *config.AppConfig, connector, serialPort, host, logLevel string) {
	if v := strings.TrimSpace(connector); v != "" {
		cfg.Connection.Connector = config.ConnectorType(v)
	}
	if v := strings.TrimSpace(serialPort); v != "" {
		cfg.Connection.SerialPort = v
		if strings.TrimSpace(connector) == "" {
			cfg.Connection.Connector = config.ConnectorSerial
		}
	}
	if v := strings.TrimSpace(host); v != "" {
		cfg.Connection.Host = v
		if strings.TrimSpace(connector) == "" && strings.TrimSpace(serialPort) == "" {
			cfg.Connection.Connector = config.ConnectorIP
		}
	}
	if v := strings.TrimSpace(logLevel); v != "" {
		cfg.Logging.Level = v
	}
}

func buildTransport(cfg config.ConnectionConfig) transport.Transport {
	if cfg.Connector == config.ConnectorIP {
		return transport.NewIPTransport(cfg.Host, cfg.Port)
	}

	return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud)
}

// watchLink surfaces connection state changes to the operator and raw frame
// diagnostics to the debug log.
func watchLink(ctx context.Context, b bus.MessageBus, logger *slog.Logger, printer *console.Printer) {
	connSub := b.Subscribe(events.TopicConnStatus)
	rawInSub := b.Subscribe(events.TopicRawFrameIn)
	rawOutSub := b.Subscribe(events.TopicRawFrameOut)
	defer b.Unsubscribe(connSub, events.TopicConnStatus)
	defer b.Unsubscribe(rawInSub, events.TopicRawFrameIn)
	defer b.Unsubscribe(rawOutSub, events.TopicRawFrameOut)

	lastState := events.ConnectionStateConnected
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-connSub:
			status, ok := raw.(events.ConnStatus)
			if !ok {
				continue
			}
			logger.Info("link state", "state", status.State, "transport", status.TransportName, "error", status.Err)
			if status.State != lastState {
				lastState = status.State
				printer.Noticef("[%s] link %s", chat.Timestamp(status.Timestamp), status.State)
			}
		case raw := <-rawInSub:
			if frame, ok := raw.(events.RawFrame); ok {
				logger.Debug("raw frame in", "len", frame.Len, "hex", frame.Hex)
			}
		case raw := <-rawOutSub:
			if frame, ok := raw.(events.RawFrame); ok {
				logger.Debug("raw frame out", "len", frame.Len, "hex", frame.Hex)
			}
		}
	}
}
