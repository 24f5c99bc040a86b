package server

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config 启动配置
type Config struct {
	Actors         int
	TickInterval   time.Duration
	Latency        time.Duration
	RenderInterval time.Duration
	Duration       time.Duration
	GridHalfExtent int
	HistoryLimit   int
	Seed           uint64 // 0 表示按时间取种子

	LogFile       string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	HTTPAddr string // 为空时不启动观察接口
	Render   bool
}

// DefaultConfig 默认配置：2 个 Actor，运行 15 秒
func DefaultConfig() Config {
	return Config{
		Actors:         2,
		TickInterval:   50 * time.Millisecond,
		Latency:        50 * time.Millisecond,
		RenderInterval: 300 * time.Millisecond,
		Duration:       15 * time.Second,
		GridHalfExtent: DefaultGridHalfExtent,
		HistoryLimit:   DefaultHistoryLimit,
		LogFile:        "app.log",
		LogLevel:       "debug",
		LogMaxSizeMB:   10,
		LogMaxBackups:  3,
		LogMaxAgeDays:  7,
		Render:         true,
	}
}

// LoadEnv 读取可选的 .env 文件与 AUTH_* 环境变量，覆盖到 cfg
func LoadEnv(cfg *Config, path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	ints := map[string]*int{
		"AUTH_ACTORS":           &cfg.Actors,
		"AUTH_GRID_HALF_EXTENT": &cfg.GridHalfExtent,
		"AUTH_HISTORY_LIMIT":    &cfg.HistoryLimit,
		"AUTH_LOG_MAX_SIZE_MB":  &cfg.LogMaxSizeMB,
		"AUTH_LOG_MAX_BACKUPS":  &cfg.LogMaxBackups,
		"AUTH_LOG_MAX_AGE_DAYS": &cfg.LogMaxAgeDays,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"AUTH_TICK_INTERVAL":   &cfg.TickInterval,
		"AUTH_LATENCY":         &cfg.Latency,
		"AUTH_RENDER_INTERVAL": &cfg.RenderInterval,
		"AUTH_DURATION":        &cfg.Duration,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = d
	}

	if v := os.Getenv("AUTH_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: AUTH_SEED=%q: %v", ErrInvalidConfig, v, err)
		}
		cfg.Seed = n
	}
	if v := os.Getenv("AUTH_RENDER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: AUTH_RENDER=%q: %v", ErrInvalidConfig, v, err)
		}
		cfg.Render = b
	}
	if v := os.Getenv("AUTH_LOG_COMPRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: AUTH_LOG_COMPRESS=%q: %v", ErrInvalidConfig, v, err)
		}
		cfg.LogCompress = b
	}
	if v := os.Getenv("AUTH_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("AUTH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AUTH_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	return nil
}

// BindFlags 将命令行参数绑定到 cfg（当前值作为默认值）
func (cfg *Config) BindFlags(flags *flag.FlagSet) {
	flags.IntVar(&cfg.Actors, "actors", cfg.Actors, "number of simulated actors")
	flags.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "actor tick interval")
	flags.DurationVar(&cfg.Latency, "latency", cfg.Latency, "simulated per-action server latency")
	flags.DurationVar(&cfg.RenderInterval, "render-interval", cfg.RenderInterval, "server render interval")
	flags.DurationVar(&cfg.Duration, "duration", cfg.Duration, "total run duration")
	flags.IntVar(&cfg.GridHalfExtent, "grid", cfg.GridHalfExtent, "grid half-extent")
	flags.IntVar(&cfg.HistoryLimit, "history", cfg.HistoryLimit, "history capacity")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 = time based)")
	flags.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flags.IntVar(&cfg.LogMaxSizeMB, "log-max-size", cfg.LogMaxSizeMB, "log file size in MB before rotation")
	flags.IntVar(&cfg.LogMaxBackups, "log-max-backups", cfg.LogMaxBackups, "rotated log files to keep (0 = all)")
	flags.IntVar(&cfg.LogMaxAgeDays, "log-max-age", cfg.LogMaxAgeDays, "days to keep rotated log files (0 = forever)")
	flags.BoolVar(&cfg.LogCompress, "log-compress", cfg.LogCompress, "gzip rotated log files")
	flags.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "observer listen address, e.g. :8080 (empty = disabled)")
	flags.BoolVar(&cfg.Render, "render", cfg.Render, "draw the grid to the terminal")
}

// Validate 检查配置合法性
func (cfg Config) Validate() error {
	switch {
	case cfg.Actors <= 0:
		return fmt.Errorf("%w: actors must be positive, got %d", ErrInvalidConfig, cfg.Actors)
	case cfg.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidConfig, cfg.TickInterval)
	case cfg.Latency < 0:
		return fmt.Errorf("%w: latency must be non-negative, got %v", ErrInvalidConfig, cfg.Latency)
	case cfg.RenderInterval < 0:
		return fmt.Errorf("%w: render interval must be non-negative, got %v", ErrInvalidConfig, cfg.RenderInterval)
	case cfg.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfig, cfg.Duration)
	case cfg.GridHalfExtent <= 0:
		return fmt.Errorf("%w: grid half-extent must be positive, got %d", ErrInvalidConfig, cfg.GridHalfExtent)
	case cfg.HistoryLimit <= 0:
		return fmt.Errorf("%w: history limit must be positive, got %d", ErrInvalidConfig, cfg.HistoryLimit)
	case cfg.LogMaxSizeMB < 0 || cfg.LogMaxBackups < 0 || cfg.LogMaxAgeDays < 0:
		return fmt.Errorf("%w: log rotation limits must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// LogOptions 转换为日志配置
func (cfg Config) LogOptions() LogOptions {
	return LogOptions{
		File:       cfg.LogFile,
		Level:      cfg.LogLevel,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}
}

// ServerOptions 转换为服务端配置
func (cfg Config) ServerOptions() Options {
	return Options{
		Latency:        cfg.Latency,
		RenderInterval: cfg.RenderInterval,
		GridHalfExtent: cfg.GridHalfExtent,
		HistoryLimit:   cfg.HistoryLimit,
	}
}
