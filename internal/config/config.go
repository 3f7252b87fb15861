package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

const (
	ConnectorSerial ConnectorType = "serial"
	ConnectorIP     ConnectorType = "ip"

	DefaultSerialBaud = 115200
	DefaultIPPort     = 4403
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector"`
	SerialPort string        `json:"serial_port"`
	SerialBaud int           `json:"serial_baud"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
}

// ChatConfig tunes the message-dispatch and acknowledgment engine.
type ChatConfig struct {
	SendQueueSize    int      `json:"send_queue_size"`
	MaxPendingAcks   int      `json:"max_pending_acks"`
	AckTimeoutSec    int      `json:"ack_timeout_sec"`
	SendDelayMS      int      `json:"send_delay_ms"`
	AutoReplyMarkers []string `json:"auto_reply_markers"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	PrivateMessages bool `json:"private_messages"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection"`
	Logging       LoggingConfig      `json:"logging"`
	Chat          ChatConfig         `json:"chat"`
	Notifications NotificationConfig `json:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorSerial,
			SerialPort: "",
			SerialBaud: DefaultSerialBaud,
			Host:       "",
			Port:       DefaultIPPort,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Chat: ChatConfig{
			SendQueueSize:    30,
			MaxPendingAcks:   100,
			AckTimeoutSec:    30,
			SendDelayMS:      1500,
			AutoReplyMarkers: []string{"testa", "test", "тест", "ping"},
		},
		Notifications: NotificationConfig{
			PrivateMessages: true,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	def := Default()
	if c.Connection.Connector == "" {
		c.Connection.Connector = def.Connection.Connector
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultIPPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Chat.SendQueueSize <= 0 {
		c.Chat.SendQueueSize = def.Chat.SendQueueSize
	}
	if c.Chat.MaxPendingAcks <= 0 {
		c.Chat.MaxPendingAcks = def.Chat.MaxPendingAcks
	}
	if c.Chat.AckTimeoutSec <= 0 {
		c.Chat.AckTimeoutSec = def.Chat.AckTimeoutSec
	}
	if c.Chat.SendDelayMS <= 0 {
		c.Chat.SendDelayMS = def.Chat.SendDelayMS
	}
	if len(c.Chat.AutoReplyMarkers) == 0 {
		c.Chat.AutoReplyMarkers = def.Chat.AutoReplyMarkers
	}
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	case ConnectorIP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("ip host is required")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
