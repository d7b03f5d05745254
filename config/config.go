package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type WebSocketConfig struct {
	Path           string        `yaml:"path"`
	ReadLimit      int64         `yaml:"read_limit"`
	SendBuffer     int           `yaml:"send_buffer"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type HistoryConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MinPongWait keeps the derived ping period above zero.
const MinPongWait = 10 * time.Millisecond

var (
	ErrEmptyPort        = errors.New("server.port must not be empty")
	ErrInvalidWSPath    = errors.New("websocket.path must start with /")
	ErrInvalidLimit     = errors.New("websocket.read_limit must be positive")
	ErrInvalidBuffer    = errors.New("websocket.send_buffer must be positive")
	ErrInvalidPongWait  = errors.New("websocket.pong_wait must be at least 10ms")
	ErrInvalidWriteWait = errors.New("websocket.write_wait must be positive")
	ErrInvalidDepth     = errors.New("history.max_depth must be positive")
)

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			Path:           "/whiteboard",
			ReadLimit:      64 * 1024,
			SendBuffer:     256,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		History: HistoryConfig{
			MaxDepth: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty), a .env file in the working directory and the
// environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)
	str("WS_PATH", &c.WebSocket.Path)

	if v, ok := lookup("WS_ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.WebSocket.AllowedOrigins = origins
	}

	readLimit := int(c.WebSocket.ReadLimit)
	if err := integer("WS_READ_LIMIT", &readLimit); err != nil {
		return err
	}
	c.WebSocket.ReadLimit = int64(readLimit)

	if err := integer("WS_SEND_BUFFER", &c.WebSocket.SendBuffer); err != nil {
		return err
	}
	return integer("HISTORY_MAX_DEPTH", &c.History.MaxDepth)
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Server.Port) == "":
		return ErrEmptyPort
	case !strings.HasPrefix(c.WebSocket.Path, "/"):
		return ErrInvalidWSPath
	case c.WebSocket.ReadLimit <= 0:
		return ErrInvalidLimit
	case c.WebSocket.SendBuffer <= 0:
		return ErrInvalidBuffer
	case c.WebSocket.PongWait < MinPongWait:
		return ErrInvalidPongWait
	case c.WebSocket.WriteWait <= 0:
		return ErrInvalidWriteWait
	case c.History.MaxDepth <= 0:
		return ErrInvalidDepth
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// OriginAllowed reports whether a websocket upgrade from origin is accepted.
func (c WebSocketConfig) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
