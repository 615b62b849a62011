package ledgerx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	EnvConnStr      = "LEDGERX_DB_CONN_STR"
	EnvAddr         = "LEDGERX_ADDR"
	EnvEventsDriver = "LEDGERX_EVENTS_DRIVER"
)

type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   struct {
		NodeID       int64         `yaml:"node_id"`
		MaxAttempts  int           `yaml:"max_attempts"`
		RetryBackoff time.Duration `yaml:"retry_backoff"`
	} `yaml:"engine"`
	Limits  LimitsConfig  `yaml:"limits"`
	Breaker BreakerConfig `yaml:"breaker"`
	Events  EventsConfig  `yaml:"events"`
	Seed    struct {
		Accounts []SeedAccount `yaml:"accounts"`
	} `yaml:"seed"`
}

type DatabaseConfig struct {
	ConnectionString string        `yaml:"conn_str"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
}

type LimitsConfig struct {
	Concurrency    int64         `yaml:"concurrency"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

type EventsConfig struct {
	Driver        string        `yaml:"driver"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
}

type SeedAccount struct {
	ID    snowflake.ID    `yaml:"id"`
	Name  string          `yaml:"name"`
	Limit decimal.Decimal `yaml:"limit"`
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Addr = ":3000"
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Engine.NodeID = 1
	cfg.Engine.MaxAttempts = DefaultMaxAttempts
	cfg.Engine.RetryBackoff = DefaultRetryBackoff
	cfg.Limits.Concurrency = 64
	cfg.Limits.AcquireTimeout = 2 * time.Second
	cfg.Breaker.MaxRequests = 5
	cfg.Breaker.Interval = time.Minute
	cfg.Breaker.Timeout = 30 * time.Second
	cfg.Breaker.ConsecutiveFailures = 10
	cfg.Events.Driver = EventsDriverNone
	cfg.Events.BatchTimeout = DefaultKafkaBatchTimeout
	return cfg
}

// LoadConfig reads the YAML file at path over the defaults, then lets an
// optional .env file and the process environment override it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		if err = yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvConnStr); ok {
		c.Database.ConnectionString = v
	}
	if v, ok := os.LookupEnv(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvEventsDriver); ok && v != "" {
		c.Events.Driver = strings.ToLower(v)
	}
}

func (c *Config) Validate() error {
	fields := map[string]string{}
	if c.Engine.NodeID < 0 || c.Engine.NodeID > 1023 {
		fields["engine.node_id"] = "must be between 0 and 1023"
	}
	if c.Engine.MaxAttempts < 1 {
		fields["engine.max_attempts"] = "must be at least 1"
	}
	if c.Limits.Concurrency < 1 {
		fields["limits.concurrency"] = "must be at least 1"
	}
	switch c.Events.Driver {
	case EventsDriverNone, EventsDriverKafka, EventsDriverRedis:
	default:
		fields["events.driver"] = "must be one of none, kafka, redis"
	}
	for i, a := range c.Seed.Accounts {
		if strings.TrimSpace(a.Name) == "" {
			fields[fmt.Sprintf("seed.accounts[%d].name", i)] = "missing"
		}
		if a.Limit.IsNegative() {
			fields[fmt.Sprintf("seed.accounts[%d].limit", i)] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return fmt.Errorf("invalid config: %w", ErrBadRequest{Fields: fields})
	}
	return nil
}
