// Package config loads server settings from a .env file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	APIHost string `env:"TTT_API_HOST,default=localhost" validate:"required"`
	APIPort int    `env:"TTT_API_PORT,default=8080" validate:"min=1,max=65535"`
	WSHost  string `env:"TTT_WS_HOST,default=localhost" validate:"required"`
	WSPort  int    `env:"TTT_WS_PORT,default=8081" validate:"min=1,max=65535,nefield=APIPort"`

	// Store selects the room store backend; an empty StoragePath keeps it in memory
	Store        string        `env:"TTT_STORE,default=sqlite" validate:"oneof=sqlite badger"`
	StoragePath  string        `env:"TTT_STORAGE_PATH"`
	StoreTimeout time.Duration `env:"TTT_STORE_TIMEOUT,default=3s" validate:"gt=0"`

	RoomTTL         time.Duration `env:"TTT_ROOM_TTL,default=24h" validate:"gt=0"`
	CleanupInterval time.Duration `env:"TTT_CLEANUP_INTERVAL,default=10m" validate:"gt=0"`

	RateBurst      int     `env:"TTT_RATE_BURST,default=40" validate:"min=1"`
	RatePerSecond  float64 `env:"TTT_RATE_PER_SECOND,default=20" validate:"gt=0"`
	HTTPRateLimit  int     `env:"TTT_HTTP_RATE_LIMIT,default=10" validate:"min=1"`
	AllowedOrigins string  `env:"TTT_ALLOWED_ORIGINS,default=*" validate:"required"`

	LogLevel  string `env:"TTT_LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"TTT_LOG_FORMAT,default=text" validate:"oneof=text json"`
	AccessLog bool   `env:"TTT_ACCESS_LOG"`

	PIDPath string `env:"TTT_PID" validate:"required_if=PIDLock true"`
	PIDLock bool   `env:"TTT_PID_LOCK"`
}

// Load reads envFiles (".env" when none given), then the environment, then
// args. A missing env file is not an error. Variables already set in the
// environment win over the file.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	fset := flag.NewFlagSet("ttt-server", flag.ContinueOnError)
	cfg.registerFlags(fset)
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) registerFlags(fset *flag.FlagSet) {
	fset.StringVar(&c.APIHost, "api-host", c.APIHost, "API server host")
	fset.IntVar(&c.APIPort, "api-port", c.APIPort, "API server port")
	fset.StringVar(&c.WSHost, "ws-host", c.WSHost, "WebSocket server host")
	fset.IntVar(&c.WSPort, "ws-port", c.WSPort, "WebSocket server port")
	fset.StringVar(&c.Store, "store", c.Store, "Room store backend (sqlite|badger)")
	fset.StringVar(&c.StoragePath, "storage-path", c.StoragePath, "Database file or directory (in-memory if empty)")
	fset.DurationVar(&c.StoreTimeout, "store-timeout", c.StoreTimeout, "Timeout for a single store call")
	fset.DurationVar(&c.RoomTTL, "room-ttl", c.RoomTTL, "Remove rooms idle for longer than this")
	fset.DurationVar(&c.CleanupInterval, "cleanup-interval", c.CleanupInterval, "Stale room sweep interval")
	fset.IntVar(&c.RateBurst, "rate-burst", c.RateBurst, "WebSocket events allowed in a burst per connection")
	fset.Float64Var(&c.RatePerSecond, "rate-per-second", c.RatePerSecond, "WebSocket event refill rate per connection")
	fset.IntVar(&c.HTTPRateLimit, "http-rate-limit", c.HTTPRateLimit, "REST requests per second per client")
	fset.StringVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "Comma separated allowed origins, * for any")
	fset.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fset.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (text|json)")
	fset.BoolVar(&c.AccessLog, "access-log", c.AccessLog, "Log every REST request")
	fset.StringVar(&c.PIDPath, "pid", c.PIDPath, "Optional path to write PID file")
	fset.BoolVar(&c.PIDLock, "pid-lock", c.PIDLock, "Lock PID file to allow only one instance (requires -pid)")
}

// Validate checks field ranges and cross-field rules
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required when %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", "=")))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		case "nefield":
			msgs = append(msgs, fmt.Sprintf("%s must differ from %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Origins splits AllowedOrigins; nil means any origin
func (c *Config) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "*" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) APIAddr() string { return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort) }
func (c *Config) WSAddr() string  { return fmt.Sprintf("%s:%d", c.WSHost, c.WSPort) }

// Logger builds the process logger from LogLevel and LogFormat
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
