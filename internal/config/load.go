package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://online.maccabi4u.co.il/"

	DefaultNotificationsPath = "./notifications.json"
	DefaultHealthPath        = "./healthcheck.json"

	DefaultDelayShort = 2 * time.Second
	DefaultDelayLong  = 5 * time.Second
)

// Load reads, strictly decodes, applies defaults to, and validates the config
// at path. Any problem here is a configuration error: the run must abort
// before any navigation happens.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw config bytes without applying defaults or validating.
func Parse(path string, b []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Portal.BaseURL) == "" {
		c.Portal.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(c.State.NotificationsPath) == "" {
		c.State.NotificationsPath = DefaultNotificationsPath
	}
	if strings.TrimSpace(c.State.HealthPath) == "" {
		c.State.HealthPath = DefaultHealthPath
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 1
	}
}

// Validate checks everything the run depends on, so failures surface before a
// browser session is opened.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Portal.UserID) == "" {
		return fmt.Errorf("portal.user_id is required")
	}
	if strings.TrimSpace(c.Portal.Password) == "" {
		return fmt.Errorf("portal.password is required")
	}
	if _, err := ParseDurationField("portal.delay_short", c.Portal.DelayShort); err != nil {
		return err
	}
	if _, err := ParseDurationField("portal.delay_long", c.Portal.DelayLong); err != nil {
		return err
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for i, t := range c.Targets {
		if strings.TrimSpace(t.PatientName) == "" {
			return fmt.Errorf("targets[%d].patient_name is required", i)
		}
		if strings.TrimSpace(t.PatientID) == "" {
			return fmt.Errorf("targets[%d].patient_id is required", i)
		}
		if strings.TrimSpace(t.DoctorName) == "" {
			return fmt.Errorf("targets[%d].doctor_name is required", i)
		}
		if _, err := t.OnlyBeforeTime(); err != nil {
			return fmt.Errorf("targets[%d].only_before: %w", i, err)
		}
	}

	if c.MaxDelayMinutes < 0 {
		return fmt.Errorf("max_delay_minutes must be >= 0")
	}
	if c.HealthCheckHour != nil {
		if h := *c.HealthCheckHour; h < 0 || h > 23 {
			return fmt.Errorf("health_check_hour must be within 0-23, got %d", h)
		}
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}

	if c.Daemon != nil && c.Daemon.Enabled {
		if strings.TrimSpace(c.Daemon.Schedule) == "" {
			return fmt.Errorf("daemon.schedule is required when daemon mode is enabled")
		}
		if tz := strings.TrimSpace(c.Daemon.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("daemon.timezone: %w", err)
			}
		}
	}
	return nil
}

// DelayShortDuration returns the short inter-action pause.
func (c *Config) DelayShortDuration() time.Duration {
	d, err := ParseDurationOrDefault("portal.delay_short", c.Portal.DelayShort, DefaultDelayShort)
	if err != nil {
		return DefaultDelayShort
	}
	return d
}

// DelayLongDuration returns the long pause used after page transitions.
func (c *Config) DelayLongDuration() time.Duration {
	d, err := ParseDurationOrDefault("portal.delay_long", c.Portal.DelayLong, DefaultDelayLong)
	if err != nil {
		return DefaultDelayLong
	}
	return d
}
