package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"slotwatch/internal/checker"
	"slotwatch/internal/config"
	"slotwatch/internal/daemon"
	"slotwatch/internal/decision"
	"slotwatch/internal/dedup"
	"slotwatch/internal/health"
	"slotwatch/internal/history"
	"slotwatch/internal/navigator"
	"slotwatch/internal/notify"
	"slotwatch/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Configuration errors are reported to the log only, never via the
		// notifier: a misconfigured notifier must not cause a failure loop.
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer func() { _ = closeLog() }()

	if cfg.Daemon == nil || !cfg.Daemon.Enabled {
		return runOnce(ctx, cfg, log)
	}

	if err := daemon.ValidateSchedule(cfg.Daemon.Schedule); err != nil {
		return err
	}

	// Daemon mode: the current config is swapped atomically on reload; each
	// scheduled run picks up the latest one.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	svc := daemon.New(daemon.Config{
		Schedule:    cfg.Daemon.Schedule,
		Timezone:    cfg.Daemon.Timezone,
		WatchConfig: cfg.Daemon.WatchConfig,
		SDNotify:    cfg.Daemon.SDNotify,
	}, func(runCtx context.Context) error {
		return runOnce(runCtx, current.Load(), log)
	}, log)

	svc.WatchConfigFile(cfgPath, func() {
		fresh, err := config.Load(cfgPath)
		if err != nil {
			log.Warn("config reload rejected", logx.Err(err))
			return
		}
		current.Store(fresh)
		log.Info("config reloaded", logx.String("path", cfgPath))
	})

	return svc.Run(ctx)
}

// runOnce executes one complete check pass with freshly opened collaborators,
// so a daemon-mode reload fully applies on the next trigger.
func runOnce(ctx context.Context, cfg *config.Config, log logx.Logger) error {
	sender, err := notify.NewTelegram(notify.Config{
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, log)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	targets := make([]checker.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		onlyBefore, err := t.OnlyBeforeTime()
		if err != nil {
			return err
		}
		targets = append(targets, checker.Target{
			PatientName: t.PatientName,
			PatientID:   t.PatientID,
			DoctorName:  t.DoctorName,
			OnlyBefore:  onlyBefore,
		})
	}

	var hist *history.Store
	if cfg.History != nil {
		hist, err = history.Open(cfg.History.Path, log)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() { _ = hist.Close() }()
	}

	store := dedup.NewStore(cfg.State.NotificationsPath)
	gate := health.NewGate(cfg.State.HealthPath, cfg.HealthCheckHour)
	engine := decision.NewEngine(store, sender, log)

	nav := navigator.NewPortal(navigator.Config{
		BaseURL:    cfg.Portal.BaseURL,
		UserID:     cfg.Portal.UserID,
		Password:   cfg.Portal.Password,
		Headless:   cfg.Portal.Headless,
		DelayShort: cfg.DelayShortDuration(),
		DelayLong:  cfg.DelayLongDuration(),
	}, log)

	runner := checker.NewRunner(checker.Options{
		Targets:         targets,
		MaxDelayMinutes: cfg.MaxDelayMinutes,
		Navigator:       nav,
		Engine:          engine,
		Gate:            gate,
		History:         hist,
		Sender:          sender,
		Log:             log,
	})
	return runner.Run(ctx)
}
