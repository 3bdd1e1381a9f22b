package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "AGILEBOARD"

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type HTTPEnv struct {
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
}

type AuthEnv struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".agileboard/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"agileboard/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

// TaskBackendEnv selects where task rows live. "yaml" keeps them in the
// configured storage; "sqlite" uses a local database file.
type TaskBackendEnv struct {
	TaskBackend string `envconfig:"TASK_BACKEND" default:"yaml"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:".agileboard/tasks.db"`
}

// ServerEnv is the configuration of agileboard-server.
type ServerEnv struct {
	BaseEnv
	HTTPEnv
	AuthEnv
	StorageEnv
	TaskBackendEnv
}

// ClientEnv is the configuration of the agileboard CLI.
type ClientEnv struct {
	BaseEnv
	ServerURL      string        `envconfig:"SERVER_URL" default:"http://localhost:3100"`
	StateDir       string        `envconfig:"STATE_DIR"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
}

func LoadServerEnv() (*ServerEnv, error) {
	var env ServerEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func LoadClientEnv() (*ClientEnv, error) {
	var env ClientEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		env.StateDir = filepath.Join(home, ".agileboard")
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
