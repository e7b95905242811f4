package config

import (
	"time"

	"slotwatch/internal/timeutil"
)

type Config struct {
	Portal  PortalConfig   `json:"portal"`
	Targets []TargetConfig `json:"targets"`

	// MaxDelayMinutes bounds the random pre-run delay (0 disables it).
	MaxDelayMinutes int `json:"max_delay_minutes"`

	// HealthCheckHour is the local hour-of-day (0-23) after which the daily
	// liveness notification becomes due. Omitted = health checks disabled.
	HealthCheckHour *int `json:"health_check_hour,omitempty"`

	Telegram TelegramConfig `json:"telegram"`
	State    StateConfig    `json:"state"`

	// History enables the SQLite observation log when a path is set.
	History *HistoryConfig `json:"history,omitempty"`

	Logging LoggingConfig `json:"logging"`

	// Daemon switches the binary from one run per invocation to a resident
	// mode that triggers the run on a schedule.
	Daemon *DaemonConfig `json:"daemon,omitempty"`
}

type PortalConfig struct {
	BaseURL  string `json:"base_url,omitempty"`
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	Headless bool   `json:"headless,omitempty"`

	// DelayShort/DelayLong are Go duration strings; they pace the navigator
	// between page interactions the way the portal's frontend expects.
	DelayShort string `json:"delay_short,omitempty"`
	DelayLong  string `json:"delay_long,omitempty"`
}

// TargetConfig is one monitored (patient, doctor) pair.
type TargetConfig struct {
	PatientName string `json:"patient_name"`
	PatientID   string `json:"patient_id"`
	DoctorName  string `json:"doctor_name"`

	// OnlyBefore is a "dd/mm/yy" date. When set, notifications fire only for
	// slots strictly earlier than this date (it can only tighten the
	// threshold, never loosen it past the current appointment).
	OnlyBefore string `json:"only_before,omitempty"`
}

// OnlyBeforeTime parses the optional cutoff. Returns nil when unset.
func (t TargetConfig) OnlyBeforeTime() (*time.Time, error) {
	if t.OnlyBefore == "" {
		return nil, nil
	}
	d, err := timeutil.ParseDate(t.OnlyBefore)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`

	// RatePerSec caps outgoing sends. Defaults to 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StateConfig locates the two persisted state files.
type StateConfig struct {
	NotificationsPath string `json:"notifications_path,omitempty"`
	HealthPath        string `json:"health_path,omitempty"`
}

type HistoryConfig struct {
	Path string `json:"path"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type DaemonConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a robfig/cron spec or "@every <duration>".
	Schedule string `json:"schedule"`

	// Timezone is an IANA name for the schedule; defaults to local time.
	Timezone string `json:"timezone,omitempty"`

	// WatchConfig reloads the config file on change.
	WatchConfig bool `json:"watch_config,omitempty"`

	// SDNotify reports readiness and watchdog pings to systemd.
	SDNotify bool `json:"sd_notify,omitempty"`
}
