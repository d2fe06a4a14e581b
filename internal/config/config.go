// Package config loads and validates the control plane's YAML configuration,
// following the teacher's load → expand-env → parse → merge-defaults →
// validate pipeline (pkg/config/loader.go) adapted to this spec's domain.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	configDir string

	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Supervisor SupervisorPolicy `yaml:"supervisor"`
	EventBus   EventBusConfig   `yaml:"event_bus"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	WSAuth     WSAuthConfig     `yaml:"ws_authority"`
	Gateway    GatewayConfig    `yaml:"gateway"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig mirrors the teacher's pkg/database.Config shape.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// SupervisorPolicy holds the cognitive supervisor's policy constants —
// spec.md §4.3 and §9's "policy constants, not semantics" Open Question.
type SupervisorPolicy struct {
	MaxIterations       int           `yaml:"max_iterations" validate:"min=1,max=5"`
	HardIterationCap    int           `yaml:"hard_iteration_cap" validate:"min=1"`
	ApprovalThreshold   float64       `yaml:"approval_threshold"`
	MaxGraphTransitions int           `yaml:"max_graph_transitions"`
	AgentTimeout        time.Duration `yaml:"agent_timeout"`
}

// EventBusConfig holds the in-process bus + catch-up tuning knobs,
// grounded on the teacher's catchupLimit/listenTimeout constants.
type EventBusConfig struct {
	SubscriberQueueDepth int           `yaml:"subscriber_queue_depth"`
	CatchupLimit         int           `yaml:"catchup_limit"`
	ListenTimeout        time.Duration `yaml:"listen_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
}

// OutboxConfig holds the outbox worker's polling/retention tuning knobs,
// grounded on the teacher's pkg/queue.QueueConfig poll/jitter fields.
type OutboxConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`
	BatchSize          int           `yaml:"batch_size"`
	MaxRetries         int           `yaml:"max_retries"`
	Retention          time.Duration `yaml:"retention"`
}

// WSAuthConfig holds the WebSocket Authority's environment-sensitive
// handshake behaviour (§4.7 step 1: query-param token fallback is
// non-production only).
type WSAuthConfig struct {
	Environment       string        `yaml:"environment"` // "production" disables query-param token fallback
	IdempotencyTTL    time.Duration `yaml:"-"`
	MissionRecvBuffer int           `yaml:"mission_recv_buffer"`
}

func (c WSAuthConfig) IsProduction() bool { return c.Environment == "production" }

// GatewayConfig holds the API gateway's service registry + routing table.
type GatewayConfig struct {
	HealthProbeInterval time.Duration   `yaml:"health_probe_interval"`
	HealthProbeTimeout  time.Duration   `yaml:"health_probe_timeout"`
	ProxyTimeout        time.Duration   `yaml:"proxy_timeout"`
	Services            []ServiceConfig `yaml:"services"`
	Routes              []RouteConfig   `yaml:"routes"`
	DefaultService      string          `yaml:"default_service"`
}

// ServiceConfig is one registry entry (spec §4.9).
type ServiceConfig struct {
	Name       string        `yaml:"name"`
	BaseURL    string        `yaml:"base_url"`
	HealthPath string        `yaml:"health_path"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// RouteConfig is one routing-table entry (spec §4.9).
type RouteConfig struct {
	PathPrefix    string `yaml:"path_prefix"`
	TargetService string `yaml:"target_service"`
	StripPrefix   bool   `yaml:"strip_prefix"`
	RequireAuth   bool   `yaml:"require_auth"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }
