package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type Config struct {
	Addr string `env:"POLL_ADDR" envDefault:":8080"`

	Store               string        `env:"POLL_STORE" envDefault:"file"`
	DataDir             string        `env:"POLL_DATA_DIR" envDefault:"data"`
	WALGroupCommitEvery time.Duration `env:"POLL_WAL_GROUP_COMMIT" envDefault:"10ms"`
	WALGroupBatch       int           `env:"POLL_WAL_GROUP_BATCH" envDefault:"256"`
	SnapshotInterval    time.Duration `env:"POLL_SNAPSHOT_INTERVAL" envDefault:"1m"`
	PostgresDSN         string        `env:"POLL_POSTGRES_DSN"`

	// RedisAddr enables the result cache when set.
	RedisAddr      string        `env:"POLL_REDIS_ADDR"`
	RedisDB        int           `env:"POLL_REDIS_DB" envDefault:"0"`
	RedisPassword  string        `env:"POLL_REDIS_PASSWORD"`
	ResultCacheTTL time.Duration `env:"POLL_RESULT_CACHE_TTL" envDefault:"5m"`

	SSEHeartbeat  time.Duration `env:"POLL_SSE_HEARTBEAT" envDefault:"25s"`
	SecureCookies bool          `env:"POLL_SECURE_COOKIES" envDefault:"false"`

	// OTelEndpoint enables tracing when set.
	OTelEndpoint string `env:"POLL_OTEL_ENDPOINT"`
	ServiceName  string `env:"POLL_SERVICE_NAME" envDefault:"rank-poll"`
	LogLevel     string `env:"POLL_LOG_LEVEL" envDefault:"info"`
}

// Load 加载 dotenv 文件再从环境变量解析配置。
// 未指定文件时尝试当前目录的 .env，缺失可忽略；显式指定的文件必须存在。
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load dotenv: %w", err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case DriverFile:
		if c.DataDir == "" {
			return errors.New("POLL_DATA_DIR is required for the file store")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POLL_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, DriverFile, DriverPostgres)
	}
	if c.WALGroupBatch <= 0 {
		return errors.New("POLL_WAL_GROUP_BATCH must be positive")
	}
	return nil
}
