package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/jobs"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	// RedisAddr enables the Redis distance cache, solver lock and status
	// stream. Without it the service runs on in-process adapters.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OSRMURL selects road distances. Without it distances are straight
	// lines driven at StraightLineSpeedKmh.
	OSRMURL              string
	OSRMTimeout          time.Duration
	StraightLineSpeedKmh float64
	DistanceCacheTTL     time.Duration
	DistanceConcurrency  int

	// SolverConfigFile is an optional YAML file overriding solver defaults.
	SolverConfigFile string
	Solver           solver.Config

	UnassignLimit  int
	UnassignPeriod time.Duration

	Workers               int
	QueueSize             int
	BusyRetryDelay        time.Duration
	StateTracking         bool
	StateTrackingSchedule string

	StatusStream       string
	StatusStreamMaxLen int64

	LogFile  string
	LogLevel slog.Level

	Swagger          bool
	ValidateRequests bool
}

// DSN is the PostgreSQL connection string built from the DB fields.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode,
	)
}

// LoadConfig reads the environment, optionally seeded from a .env file in the
// working directory. Malformed values are reported together.
func LoadConfig() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	p := envParser{}
	defaults := jobs.DefaultTaskRunnerConfig()
	cfg := Config{
		HTTPPort:   getEnv("HTTP_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "routeopt"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),

		OSRMURL:              getEnv("OSRM_URL", ""),
		OSRMTimeout:          p.duration("OSRM_TIMEOUT", 10*time.Second),
		StraightLineSpeedKmh: p.float("STRAIGHT_LINE_SPEED_KMH", 40),
		DistanceCacheTTL:     p.duration("DISTANCE_CACHE_TTL", 7*24*time.Hour),
		DistanceConcurrency:  p.int("DISTANCE_CONCURRENCY", 8),

		SolverConfigFile: getEnv("SOLVER_CONFIG_FILE", ""),

		UnassignLimit:  p.int("UNASSIGN_LIMIT", 200),
		UnassignPeriod: p.duration("UNASSIGN_PERIOD", 15*time.Second),

		Workers:               p.int("SOLVER_WORKERS", defaults.Workers),
		QueueSize:             p.int("SOLVER_QUEUE_SIZE", defaults.QueueSize),
		BusyRetryDelay:        p.duration("SOLVER_BUSY_RETRY_DELAY", defaults.BusyRetryDelay),
		StateTracking:         p.bool("STATE_TRACKING_ENABLED", true),
		StateTrackingSchedule: getEnv("STATE_TRACKING_SCHEDULE", jobs.DefaultStateTrackingSchedule),

		StatusStream:       getEnv("STATUS_STREAM", ""),
		StatusStreamMaxLen: int64(p.int("STATUS_STREAM_MAX_LEN", 100_000)),

		LogFile:  getEnv("LOG_FILE", "/tmp/routeopt.log"),
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "INFO")),

		Swagger:          p.bool("SWAGGER_ENABLED", true),
		ValidateRequests: p.bool("VALIDATE_REQUESTS", true),
	}
	if p.err != nil {
		return Config{}, p.err
	}

	solverCfg, err := LoadSolverConfig(cfg.SolverConfigFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Solver = solverCfg
	return cfg, nil
}

// LoadSolverConfig applies the YAML file at path over solver.DefaultConfig.
// An empty path yields the defaults.
func LoadSolverConfig(path string) (solver.Config, error) {
	cfg := solver.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return solver.Config{}, fmt.Errorf("read solver config: %w", err)
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return solver.Config{}, fmt.Errorf("parse solver config %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envParser collects every malformed variable instead of stopping at the first.
type envParser struct {
	err error
}

func (p *envParser) int(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return defaultVal
	}
	return v
}

func (p *envParser) float(key string, defaultVal float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, err)
		return defaultVal
	}
	return v
}

func (p *envParser) duration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return defaultVal
	}
	return v
}

func (p *envParser) bool(key string, defaultVal bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return defaultVal
	}
	return v
}

func (p *envParser) fail(key string, err error) {
	p.err = errors.Join(p.err, fmt.Errorf("%s: %w", key, err))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
