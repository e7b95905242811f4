// Package daemon runs the single-run check repeatedly on a schedule. The job
// itself stays single-run at heart; this layer only decides when to invoke it
// and keeps invocations serialized.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"slotwatch/pkg/logx"
)

type Config struct {
	// Schedule is a five-field cron spec or a descriptor like "@every 30m".
	Schedule string
	// Timezone is an IANA name; empty means local time.
	Timezone string
	// WatchConfig reloads the config file on change.
	WatchConfig bool
	// SDNotify reports readiness and watchdog pings when running under systemd.
	SDNotify bool
}

// parser accepts the standard five-field spec plus descriptors.
func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSchedule rejects malformed schedule specs before the daemon starts.
func ValidateSchedule(spec string) error {
	_, err := parser().Parse(strings.TrimSpace(spec))
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Service triggers the job on the configured schedule. Overlapping triggers
// are skipped, not queued: the persisted state tolerates at most one run at a
// time.
type Service struct {
	cfg Config
	job func(ctx context.Context) error
	log logx.Logger

	watch   *configWatcher
	running atomic.Bool
}

func New(cfg Config, job func(ctx context.Context) error, log logx.Logger) *Service {
	return &Service{cfg: cfg, job: job, log: log}
}

// WatchConfigFile arranges for onChange to be called whenever the file at
// path changes. Effective only when cfg.WatchConfig is set.
func (s *Service) WatchConfigFile(path string, onChange func()) {
	s.watch = &configWatcher{path: path, onChange: onChange, log: s.log}
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("daemon timezone: %w", err)
		}
		loc = l
	}

	c := cron.New(cron.WithParser(parser()), cron.WithLocation(loc))
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("daemon schedule: %w", err)
	}
	c.Start()
	s.log.Info("daemon started", logx.String("schedule", s.cfg.Schedule), logx.String("tz", loc.String()))

	if s.cfg.SDNotify {
		s.notifyReady(ctx)
	}
	if s.cfg.WatchConfig && s.watch != nil {
		go s.watch.run(ctx)
	}

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("daemon stopped")
	return nil
}

func (s *Service) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous run still in flight; skipping this trigger")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled run failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Info("scheduled run completed", logx.Duration("took", time.Since(start)))
}

// notifyReady tells systemd the service is up and, when a watchdog is armed,
// keeps feeding it from a background ticker.
func (s *Service) notifyReady(ctx context.Context) {
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		s.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if !ok {
		s.log.Debug("sd_notify unavailable (not running under systemd)")
	}

	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	}()
}
