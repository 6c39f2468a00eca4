// Package config загружает настройки relay-сервера и клиента.
//
// Порядок применения (каждый следующий источник перекрывает предыдущий):
//
//  1. значения по умолчанию (Default)
//  2. YAML файл (--config или BOARDSYNC_CONFIG)
//  3. переменные окружения BOARDSYNC_<SECTION>_<NAME>
//  4. флаги командной строки, заданные явно
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/boardsync/internal/validation"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "BOARDSYNC_"

const sectionAnnotation = "boardsync/section"

// Section группа настроек
type Section string

const (
	SectionLog    Section = "log"
	SectionServer Section = "server"
	SectionClient Section = "client"
)

// Config настройки boardsync
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // auto, text, json
}

// ServerConfig настройки relay-сервера
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Database        string        `yaml:"database"`      // sqlite; пусто - состояние только в памяти
	RedisAddr       string        `yaml:"redis_addr"`    // пусто - один экземпляр relay
	RedisChannel    string        `yaml:"redis_channel"` // канал pub/sub между экземплярами
	PongWait        time.Duration `yaml:"pong_wait"`
	RateWindow      time.Duration `yaml:"rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ConnectRate     int           `yaml:"connect_rate"`
	APIRate         int           `yaml:"api_rate"`
}

// ClientConfig настройки клиента
type ClientConfig struct {
	Relay            string        `yaml:"relay"` // ws://host:port/ws
	API              string        `yaml:"api"`   // http://host:port
	Database         string        `yaml:"database"`
	NodeID           string        `yaml:"node_id"`
	Debounce         time.Duration `yaml:"debounce"`
	MaxWait          time.Duration `yaml:"max_wait"`
	Grace            time.Duration `yaml:"grace"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PongWait         time.Duration `yaml:"pong_wait"`
	MaxAttempts      int           `yaml:"max_attempts"`
}

// Default возвращает настройки по умолчанию
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Server: ServerConfig{
			Address:         ":8080",
			Database:        "boardsync.db",
			RedisChannel:    "boardsync:updates",
			PongWait:        90 * time.Second,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
			ConnectRate:     30,
			APIRate:         120,
		},
		Client: ClientConfig{
			Relay:            "ws://localhost:8080/ws",
			API:              "http://localhost:8080",
			Database:         "boardsync-client.db",
			Debounce:         40 * time.Millisecond,
			MaxWait:          200 * time.Millisecond,
			Grace:            50 * time.Millisecond,
			FrameInterval:    16 * time.Millisecond,
			SnapshotInterval: 30 * time.Second,
			PingInterval:     30 * time.Second,
			PongWait:         75 * time.Second,
			MaxAttempts:      5,
		},
	}
}

// setting одна настройка: флаг --<name> (для log - --log-<name>)
// и переменная окружения BOARDSYNC_<SECTION>_<NAME>
type setting struct {
	value   any // *string, *int, *time.Duration
	section Section
	name    string
	usage   string
}

func (s setting) flag() string {
	if s.section == SectionLog {
		return "log-" + s.name
	}
	return s.name
}

func (s setting) env() string {
	return EnvPrefix + strings.ToUpper(string(s.section)+"_"+strings.ReplaceAll(s.name, "-", "_"))
}

func (s setting) set(raw string) error {
	switch v := s.value.(type) {
	case *string:
		*v = raw
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", s.flag(), raw)
		}
		*v = n
	case *time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", s.flag(), raw)
		}
		*v = d
	default:
		return fmt.Errorf("%s: unsupported setting type %T", s.flag(), s.value)
	}
	return nil
}

func (c *Config) settings() []setting {
	return []setting{
		{section: SectionLog, name: "level", value: &c.Log.Level, usage: "log level: debug, info, warn, error"},
		{section: SectionLog, name: "format", value: &c.Log.Format, usage: "log format: auto, text, json"},

		{section: SectionServer, name: "address", value: &c.Server.Address, usage: "listen address"},
		{section: SectionServer, name: "database", value: &c.Server.Database, usage: "sqlite database for room state (empty - memory only)"},
		{section: SectionServer, name: "redis-addr", value: &c.Server.RedisAddr, usage: "redis address for multi-instance fan-out (empty - disabled)"},
		{section: SectionServer, name: "redis-channel", value: &c.Server.RedisChannel, usage: "redis pub/sub channel"},
		{section: SectionServer, name: "pong-wait", value: &c.Server.PongWait, usage: "disconnect clients silent for longer than this"},
		{section: SectionServer, name: "rate-window", value: &c.Server.RateWindow, usage: "rate limit window"},
		{section: SectionServer, name: "shutdown-timeout", value: &c.Server.ShutdownTimeout, usage: "graceful shutdown timeout"},
		{section: SectionServer, name: "connect-rate", value: &c.Server.ConnectRate, usage: "websocket connections per IP per window (0 - unlimited)"},
		{section: SectionServer, name: "api-rate", value: &c.Server.APIRate, usage: "REST requests per IP per window (0 - unlimited)"},

		{section: SectionClient, name: "relay", value: &c.Client.Relay, usage: "relay websocket URL"},
		{section: SectionClient, name: "api", value: &c.Client.API, usage: "relay REST API URL"},
		{section: SectionClient, name: "database", value: &c.Client.Database, usage: "local snapshot database"},
		{section: SectionClient, name: "node-id", value: &c.Client.NodeID, usage: "node identifier (empty - random)"},
		{section: SectionClient, name: "debounce", value: &c.Client.Debounce, usage: "pause after a drag step before sending"},
		{section: SectionClient, name: "max-wait", value: &c.Client.MaxWait, usage: "maximum delay of a drag update"},
		{section: SectionClient, name: "grace", value: &c.Client.Grace, usage: "remote-origin grace window"},
		{section: SectionClient, name: "frame-interval", value: &c.Client.FrameInterval, usage: "document frame for coalescing writes"},
		{section: SectionClient, name: "snapshot-interval", value: &c.Client.SnapshotInterval, usage: "local snapshot period"},
		{section: SectionClient, name: "ping-interval", value: &c.Client.PingInterval, usage: "keepalive ping period"},
		{section: SectionClient, name: "pong-wait", value: &c.Client.PongWait, usage: "reconnect when relay is silent for longer than this"},
		{section: SectionClient, name: "max-attempts", value: &c.Client.MaxAttempts, usage: "connection attempts before reporting disconnected"},
	}
}

// RegisterFlags регистрирует флаги настроек указанных секций и --config.
// Значения флагов по умолчанию берутся из Default.
func RegisterFlags(fs *pflag.FlagSet, sections ...Section) {
	fs.String("config", "", "path to YAML config file (env "+EnvPrefix+"CONFIG)")

	for _, s := range Default().settings() {
		if !slices.Contains(sections, s.section) {
			continue
		}
		switch v := s.value.(type) {
		case *string:
			fs.String(s.flag(), *v, s.usage)
		case *int:
			fs.Int(s.flag(), *v, s.usage)
		case *time.Duration:
			fs.Duration(s.flag(), *v, s.usage)
		}
		// одно имя флага (database, pong-wait) есть в нескольких секциях
		_ = fs.SetAnnotation(s.flag(), sectionAnnotation, []string{string(s.section)})
	}
}

// Load собирает конфигурацию из всех источников. fs может быть nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	return load(fs, os.LookupEnv)
}

func load(fs *pflag.FlagSet, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	path, _ := lookupEnv(EnvPrefix + "CONFIG")
	if fs != nil && fs.Changed("config") {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	settings := cfg.settings()

	for _, s := range settings {
		if raw, ok := lookupEnv(s.env()); ok {
			if err := s.set(raw); err != nil {
				return nil, fmt.Errorf("environment %s: %w", s.env(), err)
			}
		}
	}

	if fs != nil {
		for _, s := range settings {
			flag := fs.Lookup(s.flag())
			if flag == nil || !flag.Changed {
				continue
			}
			if owner := flag.Annotations[sectionAnnotation]; len(owner) != 1 || owner[0] != string(s.section) {
				continue
			}
			if err := s.set(flag.Value.String()); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile применяет YAML файл поверх текущих значений
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be auto, text or json, got %q", c.Log.Format))
	}

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address cannot be empty"))
	}
	if c.Server.ConnectRate < 0 || c.Server.APIRate < 0 {
		errs = append(errs, errors.New("rate limits cannot be negative"))
	}

	if err := validation.ValidateRelayURL(c.Client.Relay); err != nil {
		errs = append(errs, err)
	}
	if c.Client.MaxAttempts < 1 {
		errs = append(errs, errors.New("client max attempts must be at least 1"))
	}

	return errors.Join(errs...)
}
