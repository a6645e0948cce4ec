package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/opsguard/opsguard/internal/protocol"
	"github.com/opsguard/opsguard/internal/types"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "OPSGUARD_"

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8088",
			GRPCAddr: ":9090",
		},
		Log: LogConfig{
			Level:      "info",
			BufferSize: 1000,
		},
		Escalation: EscalationConfig{
			PollInterval:         30 * time.Second,
			BaseThresholdMinutes: 30,
			CriticalMultiplier:   0.5,
			MaxLevel:             3,
			NotifyTimeout:        5 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			DegradedAfter: 30 * time.Second,
			PoorAfter:     60 * time.Second,
			SyncInterval:  10 * time.Second,
			FlapThreshold: 4,
			FlapWindow:    2 * time.Minute,
		},
		Notifications: NotificationsConfig{
			MinLevel: 1,
			Timeout:  10 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// Validate checks the configuration against the runtime invariants
func Validate(cfg *Config) error {
	if cfg.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	esc := cfg.Escalation
	if esc.PollInterval <= 0 {
		return fmt.Errorf("escalation.poll_interval must be positive")
	}
	if esc.BaseThresholdMinutes <= 0 {
		return fmt.Errorf("escalation.base_threshold_minutes must be positive")
	}
	if esc.CriticalMultiplier <= 0 || esc.CriticalMultiplier > 1 {
		return fmt.Errorf("escalation.critical_multiplier must be in (0, 1]")
	}
	if esc.MaxLevel <= 0 {
		return fmt.Errorf("escalation.max_level must be positive")
	}
	if esc.NotifyTimeout <= 0 {
		return fmt.Errorf("escalation.notify_timeout must be positive")
	}

	hb := cfg.Heartbeat
	if hb.DegradedAfter <= 0 || hb.PoorAfter <= 0 {
		return fmt.Errorf("heartbeat cutoffs must be positive")
	}
	if hb.DegradedAfter >= hb.PoorAfter {
		return fmt.Errorf("heartbeat.degraded_after must be less than heartbeat.poor_after")
	}
	if hb.SyncInterval <= 0 {
		return fmt.Errorf("heartbeat.sync_interval must be positive")
	}
	if hb.FlapThreshold < 0 || (hb.FlapThreshold > 0 && hb.FlapWindow <= 0) {
		return fmt.Errorf("heartbeat.flap_window must be positive when flap detection is enabled")
	}

	known := make(map[string]bool)
	for _, p := range protocol.DefaultCatalog() {
		known[p.ID] = true
	}
	for i, trig := range cfg.Protocols.Triggers {
		if !known[trig.Protocol] {
			return fmt.Errorf("protocols.triggers[%d]: unknown protocol %q", i, trig.Protocol)
		}
		if trig.Kind != "" {
			if _, err := types.ParseAlertKind(trig.Kind); err != nil {
				return fmt.Errorf("protocols.triggers[%d]: %w", i, err)
			}
		}
		if trig.MinSeverity != "" {
			if _, err := types.ParseSeverity(trig.MinSeverity); err != nil {
				return fmt.Errorf("protocols.triggers[%d]: %w", i, err)
			}
		}
		if trig.MinLevel < 0 || trig.MinLevel > esc.MaxLevel {
			return fmt.Errorf("protocols.triggers[%d]: min_level must be between 0 and %d", i, esc.MaxLevel)
		}
	}

	notif := cfg.Notifications
	for severity, channels := range notif.Routes {
		if _, err := types.ParseSeverity(severity); err != nil {
			return fmt.Errorf("notifications.routes: %w", err)
		}
		for _, name := range channels {
			if _, ok := notif.Channels[name]; !ok {
				return fmt.Errorf("notifications.routes.%s: references unknown channel %s", severity, name)
			}
		}
	}
	for name, ch := range notif.Channels {
		if ch.URL == "" && ch.URLEnv == "" {
			return fmt.Errorf("notifications.channels.%s: url or url_env is required", name)
		}
	}

	return nil
}

// TriggerRules converts configured triggers into protocol trigger rules
func (c *Config) TriggerRules() []protocol.TriggerRule {
	rules := make([]protocol.TriggerRule, 0, len(c.Protocols.Triggers))
	for _, trig := range c.Protocols.Triggers {
		rules = append(rules, protocol.TriggerRule{
			Kind:        types.AlertKind(trig.Kind),
			MinSeverity: types.Severity(trig.MinSeverity),
			MinLevel:    trig.MinLevel,
			ProtocolID:  trig.Protocol,
		})
	}
	return rules
}

// ResolveChannelURL returns the Apprise service URL of a channel
func (c *Config) ResolveChannelURL(name string) string {
	ch, ok := c.Notifications.Channels[name]
	if !ok {
		return ""
	}
	if ch.URLEnv != "" {
		if url := os.Getenv(ch.URLEnv); url != "" {
			return url
		}
	}
	return ch.URL
}
