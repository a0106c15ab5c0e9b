package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverBadger   = "badger"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET,required"`

	TurnUDPServer webrtc.ICEServer
	TurnTCPServer webrtc.ICEServer

	Storage      StorageConfig
	Chat         ChatConfig
	Calls        CallConfig
	Websocket    WebsocketConfig
	CoturnServer CoturnConfig
	Turn         TurnConfig
	Postgres     PostgresConfig
}

type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	BadgerDir string `env:"BADGER_DIR" envDefault:"./data/badger"`
}

type ChatConfig struct {
	// HistoryLimit - сколько последних сообщений поднимается из стора при восстановлении сессии
	HistoryLimit int `env:"CHAT_HISTORY_LIMIT" envDefault:"200"`
}

type CallConfig struct {
	RingTimeout time.Duration `env:"CALL_RING_TIMEOUT" envDefault:"45s"`
}

type WebsocketConfig struct {
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	PongTimeout  time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"60s"`
	SendBuffer   int           `env:"WS_SEND_BUFFER" envDefault:"64"`
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"goldlink"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

type CoturnConfig struct {
	Host     string `env:"COTURN_HOST"`
	Username string `env:"COTURN_USERNAME"`
	Password string `env:"COTURN_PASSWORD"`

	// Secret - нужен для генерации временных кредов для фронта
	Secret string `env:"COTURN_SECRET"`
}

// TurnConfig - встроенный TURN вместо внешнего coturn. Креды те же, по COTURN_SECRET.
type TurnConfig struct {
	Embedded bool   `env:"TURN_EMBEDDED" envDefault:"false"`
	ListenIP string `env:"TURN_LISTEN_IP" envDefault:"0.0.0.0"`
	PublicIP string `env:"TURN_PUBLIC_IP" envDefault:"127.0.0.1"`
	Port     int    `env:"TURN_PORT" envDefault:"3478"`
	Realm    string `env:"TURN_REALM" envDefault:"goldlink"`
}

// LoadEnvFile подгружает .env, если он есть. Уже выставленные переменные не перетираются.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("load env file: %w", err)
	}

	return nil
}

func New() (*Config, error) {
	envFile, ok := os.LookupEnv("ENV_FILE")
	if !ok {
		envFile = ".env"
	}

	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err = c.validate(); err != nil {
		return nil, err
	}

	if c.Turn.Embedded && c.CoturnServer.Host == "" {
		c.CoturnServer.Host = fmt.Sprintf("%s:%d", c.Turn.PublicIP, c.Turn.Port)
	}

	if c.CoturnServer.Host != "" {
		c.TurnUDPServer = webrtc.ICEServer{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=udp", c.CoturnServer.Host)},
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		}

		c.TurnTCPServer = webrtc.ICEServer{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=tcp", c.CoturnServer.Host)},
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		}
	}

	return &c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverBadger, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Calls.RingTimeout <= 0 {
		return fmt.Errorf("call ring timeout must be positive")
	}

	// time.NewTicker паникует на неположительном интервале
	if c.Websocket.PingInterval <= 0 {
		return fmt.Errorf("ws ping interval must be positive")
	}

	if c.Websocket.PingInterval >= c.Websocket.PongTimeout {
		return fmt.Errorf("ws ping interval must be shorter than pong timeout")
	}

	if c.Turn.Embedded && c.CoturnServer.Secret == "" {
		return fmt.Errorf("embedded turn needs COTURN_SECRET")
	}

	if c.Websocket.SendBuffer <= 0 {
		return fmt.Errorf("ws send buffer must be positive")
	}

	return nil
}

// ICEServers - TURN сервера для клиентов, пусто если coturn не настроен
func (c *Config) ICEServers() []webrtc.ICEServer {
	if c.CoturnServer.Host == "" {
		return nil
	}

	return []webrtc.ICEServer{c.TurnUDPServer, c.TurnTCPServer}
}

func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
