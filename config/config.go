package config

import (
	"errors"
	"os"
	"time"

	"github.com/chatgrid/chat-service/internal/postgres"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

func (p Postgres) ToPGConfig() postgres.Config {
	return postgres.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ApplicationName:   p.ApplicationName,
	}
}

type Password struct {
	MinLength  int `yaml:"minLength"`
	BcryptCost int `yaml:"bcryptCost"`
}

type JWT struct {
	Secret    string        `yaml:"secret"`    // обязательно
	Issuer    string        `yaml:"issuer"`    // обязательно
	Audience  string        `yaml:"audience"`  // по желанию
	AccessTTL time.Duration `yaml:"accessTTL"` // напр. 30m
	ClockSkew time.Duration `yaml:"clockSkew"` // напр. 30s
}

type Security struct {
	Password Password `yaml:"password"`
	JWT      JWT      `yaml:"jwt"`
}

type WS struct {
	PingInterval   time.Duration `yaml:"pingInterval"`   // 0 — без keepalive
	MaxMessageSize int64         `yaml:"maxMessageSize"` // байты; 0 — дефолт
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Security Security `yaml:"security"`
	WS       WS       `yaml:"ws"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is required")
	}
	if c.Security.JWT.Issuer == "" {
		return errors.New("security.jwt.issuer is required")
	}
	if c.Security.JWT.AccessTTL <= 0 {
		return errors.New("security.jwt.accessTTL must be > 0")
	}
	if c.Security.JWT.ClockSkew < 0 || c.Security.JWT.ClockSkew > time.Minute {
		return errors.New("security.jwt.clockSkew must be in [0..1m]")
	}
	if c.Security.Password.BcryptCost != 0 && (c.Security.Password.BcryptCost < 4 || c.Security.Password.BcryptCost > 18) {
		return errors.New("security.password.bcryptCost must be in [4..18]")
	}
	// установка дефолтов, если значения не указаны
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.WS.MaxMessageSize <= 0 {
		c.WS.MaxMessageSize = 1 << 20
	}
	return nil
}
