package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Store     Store
	Dispatch  Dispatch
	Heartbeat Heartbeat
	Kafka     Kafka
	NATS      NATS
	Redis     Redis
	RateLimit RateLimit
	Pprof     PprofConfig
	CORS      CORS
	Log       Log
	Agent     Agent
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Store selects storage backends: "memory" or "postgres" for orders, "memory" or "redis" for duty.
type Store struct {
	Orders string
	Duty   string
}

// Dispatch stores coordinator policy.
type Dispatch struct {
	OfferWindow      time.Duration
	SweepInterval    time.Duration
	SweepGrace       time.Duration
	ExhaustedAction  string
	ReofferOnReject  bool
	OperationTimeout time.Duration
}

// Heartbeat stores duty heartbeat settings.
type Heartbeat struct {
	TTL      time.Duration
	Interval time.Duration
}

// Kafka stores upstream order event consumer settings. Empty brokers disable the consumer.
type Kafka struct {
	Brokers []string
	GroupID string
	Topic   string
}

// NATS stores event relay settings. Empty URL disables the relay.
type NATS struct {
	URL           string
	SubjectPrefix string
}

// Redis stores duty session storage settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// RateLimit stores HTTP rate limiting settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// PprofConfig stores pprof server settings.
type PprofConfig struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// CORS stores allowed origins for browser clients.
type CORS struct {
	AllowedOrigins []string
}

// Log selects the logging backend ("slog" or "zerolog") and level.
type Log struct {
	Backend string
	Level   string
}

// Agent stores partner-agent settings.
type Agent struct {
	ServerURL   string
	Partner     string
	Decision    string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Load reads configuration in order: .env (if present) → environment → flags → policy file.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      defaultPort,
		DB:        defaultDB,
		Store:     defaultStore,
		Dispatch:  defaultDispatch,
		Heartbeat: defaultHeartbeat,
		Kafka:     defaultKafka,
		NATS:      defaultNATS,
		Redis:     defaultRedis,
		RateLimit: defaultRateLimit,
		Pprof:     defaultPprof,
		Log:       defaultLog,
		Agent:     defaultAgent,
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	policyPath, err := parseFlags(cfg)
	if err != nil {
		return nil, err
	}
	if policyPath != "" {
		p, err := LoadPolicy(policyPath)
		if err != nil {
			return nil, err
		}
		p.ApplyTo(&cfg.Dispatch)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return err
	}

	cfg.DB.Host = envString("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.User = envString("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envString("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envString("POSTGRES_DB", cfg.DB.Name)
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid POSTGRES_PORT %q: %w", v, err)
		}
		cfg.DB.Port = v
	}

	cfg.Store.Orders = envString("ORDER_STORE", cfg.Store.Orders)
	cfg.Store.Duty = envString("DUTY_STORE", cfg.Store.Duty)

	if cfg.Dispatch.OfferWindow, err = envDuration("DISPATCH_OFFER_WINDOW", cfg.Dispatch.OfferWindow); err != nil {
		return err
	}
	if cfg.Dispatch.SweepInterval, err = envDuration("DISPATCH_SWEEP_INTERVAL", cfg.Dispatch.SweepInterval); err != nil {
		return err
	}
	if cfg.Dispatch.SweepGrace, err = envDuration("DISPATCH_SWEEP_GRACE", cfg.Dispatch.SweepGrace); err != nil {
		return err
	}
	if cfg.Dispatch.OperationTimeout, err = envDuration("DISPATCH_OPERATION_TIMEOUT", cfg.Dispatch.OperationTimeout); err != nil {
		return err
	}
	cfg.Dispatch.ExhaustedAction = envString("DISPATCH_EXHAUSTED_ACTION", cfg.Dispatch.ExhaustedAction)
	if cfg.Dispatch.ReofferOnReject, err = envBool("DISPATCH_REOFFER_ON_REJECT", cfg.Dispatch.ReofferOnReject); err != nil {
		return err
	}

	if cfg.Heartbeat.TTL, err = envDuration("HEARTBEAT_TTL", cfg.Heartbeat.TTL); err != nil {
		return err
	}
	if cfg.Heartbeat.Interval, err = envDuration("HEARTBEAT_INTERVAL", cfg.Heartbeat.Interval); err != nil {
		return err
	}

	cfg.Kafka.Brokers = envList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.GroupID = envString("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Kafka.Topic = envString("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.NATS.URL = envString("NATS_URL", cfg.NATS.URL)
	cfg.NATS.SubjectPrefix = envString("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)

	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = envInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}

	if cfg.RateLimit.Enabled, err = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("RATE_LIMIT_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RATE %q: %w", v, err)
		}
		cfg.RateLimit.Rate = r
	}
	if cfg.RateLimit.Burst, err = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst); err != nil {
		return err
	}

	if cfg.Pprof.Enabled, err = envBool("PPROF_ENABLED", cfg.Pprof.Enabled); err != nil {
		return err
	}
	cfg.Pprof.Addr = envString("PPROF_ADDR", cfg.Pprof.Addr)
	cfg.Pprof.User = envString("PPROF_USER", cfg.Pprof.User)
	cfg.Pprof.Pass = envString("PPROF_PASS", cfg.Pprof.Pass)

	cfg.CORS.AllowedOrigins = envList("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.Log.Backend = envString("LOG_BACKEND", cfg.Log.Backend)
	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)

	cfg.Agent.ServerURL = envString("AGENT_SERVER_URL", cfg.Agent.ServerURL)
	cfg.Agent.Partner = envString("AGENT_PARTNER", cfg.Agent.Partner)
	cfg.Agent.Decision = envString("AGENT_DECISION", cfg.Agent.Decision)
	return nil
}

func parseFlags(cfg *Config) (string, error) {
	fs := pflag.CommandLine
	fs.ParseErrorsWhitelist.UnknownFlags = true

	if fs.Lookup("port") == nil {
		fs.IntP("port", "p", defaultPort, "port to listen on")
		fs.String("policy", "", "path to a YAML dispatch policy file")
		fs.String("partner", "", "partner identity for partner-agent")
		fs.String("decision", defaultAgent.Decision, "partner-agent decision: accept|reject|ignore")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return "", fmt.Errorf("parse flags: %w", err)
	}

	if fs.Changed("port") {
		cfg.Port, _ = fs.GetInt("port")
	}
	if fs.Changed("partner") {
		cfg.Agent.Partner, _ = fs.GetString("partner")
	}
	if fs.Changed("decision") {
		cfg.Agent.Decision, _ = fs.GetString("decision")
	}
	policyPath, _ := fs.GetString("policy")
	return policyPath, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Dispatch.OfferWindow <= 0 {
		return fmt.Errorf("invalid offer window: %s", c.Dispatch.OfferWindow)
	}
	if c.Dispatch.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %s", c.Dispatch.SweepInterval)
	}
	switch c.Dispatch.ExhaustedAction {
	case ExhaustedHold, ExhaustedCancel:
	default:
		return fmt.Errorf("invalid exhausted action: %q", c.Dispatch.ExhaustedAction)
	}
	switch c.Store.Orders {
	case "memory", "postgres":
	default:
		return fmt.Errorf("invalid order store: %q", c.Store.Orders)
	}
	switch c.Store.Duty {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid duty store: %q", c.Store.Duty)
	}
	switch c.Log.Backend {
	case "slog", "zerolog":
	default:
		return fmt.Errorf("invalid log backend: %q", c.Log.Backend)
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
