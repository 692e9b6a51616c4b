package config

import "time"

const defaultPort = 8080

// Exhausted-candidates actions.
const (
	ExhaustedHold   = "hold"
	ExhaustedCancel = "cancel"
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch",
}

var defaultStore = Store{
	Orders: "memory",
	Duty:   "memory",
}

var defaultDispatch = Dispatch{
	OfferWindow:      60 * time.Second,
	SweepInterval:    5 * time.Second,
	SweepGrace:       10 * time.Second,
	ExhaustedAction:  ExhaustedHold,
	ReofferOnReject:  true,
	OperationTimeout: 3 * time.Second,
}

var defaultHeartbeat = Heartbeat{
	TTL:      15 * time.Minute,
	Interval: 12 * time.Minute,
}

var defaultKafka = Kafka{
	GroupID: "courier-dispatch",
	Topic:   "orders.lifecycle",
}

var defaultNATS = NATS{
	SubjectPrefix: "dispatch",
}

var defaultRedis = Redis{
	Addr: "127.0.0.1:6379",
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       20,
	Burst:      40,
	TTL:        10 * time.Minute,
	MaxBuckets: 10000,
}

var defaultPprof = PprofConfig{
	Addr: "127.0.0.1:6060",
}

var defaultLog = Log{
	Backend: "slog",
	Level:   "info",
}

var defaultAgent = Agent{
	ServerURL:   "http://127.0.0.1:8080",
	Decision:    "ignore",
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    200 * time.Millisecond,
}

// DefaultPort returns the default port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultDispatch returns the default dispatch policy.
func DefaultDispatch() Dispatch { return defaultDispatch }

// DefaultHeartbeat returns the default heartbeat settings.
func DefaultHeartbeat() Heartbeat { return defaultHeartbeat }

// DefaultAgent returns the default partner agent settings.
func DefaultAgent() Agent { return defaultAgent }
