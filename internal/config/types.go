package config

import "time"

// Config represents the complete OpsGuard configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Log           LogConfig           `yaml:"log" envPrefix:"LOG_"`
	Escalation    EscalationConfig    `yaml:"escalation" envPrefix:"ESCALATION_"`
	Heartbeat     HeartbeatConfig     `yaml:"heartbeat" envPrefix:"HEARTBEAT_"`
	Alerts        AlertsConfig        `yaml:"alerts" envPrefix:"ALERTS_"`
	Protocols     ProtocolsConfig     `yaml:"protocols"`
	Notifications NotificationsConfig `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
}

// ServerConfig holds listener addresses; an empty grpc_addr disables gRPC
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
	GRPCAddr string `yaml:"grpc_addr" env:"GRPC_ADDR"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	BufferSize int    `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// EscalationConfig tunes the escalation engine
type EscalationConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	BaseThresholdMinutes float64       `yaml:"base_threshold_minutes" env:"BASE_THRESHOLD_MINUTES"`
	CriticalMultiplier   float64       `yaml:"critical_multiplier" env:"CRITICAL_MULTIPLIER"`
	MaxLevel             int           `yaml:"max_level" env:"MAX_LEVEL"`
	NotifyTimeout        time.Duration `yaml:"notify_timeout" env:"NOTIFY_TIMEOUT"`
}

// BaseThreshold returns the base tier width as a duration
func (c EscalationConfig) BaseThreshold() time.Duration {
	return time.Duration(c.BaseThresholdMinutes * float64(time.Minute))
}

// HeartbeatConfig tunes module liveness classification
type HeartbeatConfig struct {
	DegradedAfter time.Duration `yaml:"degraded_after" env:"DEGRADED_AFTER"`
	PoorAfter     time.Duration `yaml:"poor_after" env:"POOR_AFTER"`
	SyncInterval  time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL"`
	FlapThreshold int           `yaml:"flap_threshold" env:"FLAP_THRESHOLD"`
	FlapWindow    time.Duration `yaml:"flap_window" env:"FLAP_WINDOW"`
}

// AlertsConfig holds alert lifecycle rules
type AlertsConfig struct {
	RequireAcknowledgeBeforeResolve bool `yaml:"require_acknowledge_before_resolve" env:"REQUIRE_ACKNOWLEDGE_BEFORE_RESOLVE"`
}

// ProtocolsConfig holds automatic activation rules
type ProtocolsConfig struct {
	Triggers []TriggerConfig `yaml:"triggers,omitempty"`
}

// TriggerConfig activates a protocol when a matching alert escalates
type TriggerConfig struct {
	Kind        string `yaml:"kind,omitempty"`
	MinSeverity string `yaml:"min_severity,omitempty"`
	MinLevel    int    `yaml:"min_level"`
	Protocol    string `yaml:"protocol"`
}

// NotificationsConfig routes escalations to Apprise channels
type NotificationsConfig struct {
	// AppriseURL is the Apprise API base URL; notifications are disabled when empty.
	AppriseURL string `yaml:"apprise_url" env:"APPRISE_URL"`
	// Channels maps a channel name to its Apprise service URL.
	Channels map[string]ChannelConfig `yaml:"channels,omitempty"`
	// Routes maps a severity to the channel names notified for it.
	Routes   map[string][]string `yaml:"routes,omitempty"`
	MinLevel int                 `yaml:"min_level" env:"MIN_LEVEL"`
	Timeout  time.Duration       `yaml:"timeout" env:"TIMEOUT"`
}

// ChannelConfig defines a notification channel. URLEnv, when set, names an
// environment variable holding the service URL and takes precedence over URL.
type ChannelConfig struct {
	URL    string `yaml:"url,omitempty"`
	URLEnv string `yaml:"url_env,omitempty"`
}
