// Package checker sequences one full polling run: jittered start, one
// authenticated portal session, a fail-fast pass over all targets, and the
// daily liveness notification after a clean pass.
package checker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"slotwatch/internal/decision"
	"slotwatch/internal/health"
	"slotwatch/internal/history"
	"slotwatch/internal/navigator"
	"slotwatch/internal/timeutil"
	"slotwatch/pkg/logx"
)

// Target is one monitored (patient, doctor) pair.
type Target struct {
	PatientName string
	PatientID   string
	DoctorName  string
	OnlyBefore  *time.Time
}

type Options struct {
	Targets []Target

	// MaxDelayMinutes bounds the random pre-run delay that breaks up a fixed
	// polling cadence against the portal. 0 disables the delay.
	MaxDelayMinutes int

	Navigator navigator.Navigator
	Engine    *decision.Engine
	Gate      *health.Gate
	History   *history.Store
	Sender    decision.Sender
	Clock     timeutil.Clock
	Log       logx.Logger
	Rand      *rand.Rand
}

type Runner struct {
	targets  []Target
	maxDelay int

	nav    navigator.Navigator
	engine *decision.Engine
	gate   *health.Gate
	hist   *history.Store
	sender decision.Sender
	clock  timeutil.Clock
	log    logx.Logger
	rng    *rand.Rand
}

func NewRunner(o Options) *Runner {
	clock := o.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	rng := o.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Runner{
		targets:  o.Targets,
		maxDelay: o.MaxDelayMinutes,
		nav:      o.Navigator,
		engine:   o.Engine,
		gate:     o.Gate,
		hist:     o.History,
		sender:   o.Sender,
		clock:    clock,
		log:      o.Log,
		rng:      rng,
	}
}

// Run drives one complete pass. Any failure on any target aborts the whole
// run: a partially-broken page state after one target is likely to corrupt
// navigation for the rest. The browser session is released on every exit
// path. The liveness gate is evaluated only when every target was checked.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.targets) == 0 {
		return errors.New("no targets configured")
	}

	if err := r.preRunDelay(ctx); err != nil {
		return err
	}

	defer func() {
		_ = r.nav.Close()
	}()

	if err := r.nav.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	for _, t := range r.targets {
		r.log.Info("checking target",
			logx.String("patient", t.PatientName),
			logx.String("doctor", t.DoctorName))
		if err := r.checkTarget(ctx, t); err != nil {
			return fmt.Errorf("target %s / %s: %w", t.PatientName, t.DoctorName, err)
		}
	}

	return r.maybeHealthCheck(ctx)
}

func (r *Runner) checkTarget(ctx context.Context, t Target) error {
	if err := r.nav.SelectPatient(ctx, t.PatientID); err != nil {
		return err
	}
	if err := r.nav.OpenDoctorAppointments(ctx, t.DoctorName); err != nil {
		var dnf *navigator.DoctorNotFoundError
		if errors.As(err, &dnf) {
			// Operator-actionable misconfiguration: forward the list of
			// doctors that were found, best-effort, before failing the run.
			msg := fmt.Sprintf("Doctor %q not found for %s.", dnf.Doctor, t.PatientName)
			if len(dnf.Found) > 0 {
				msg += " Doctors found: " + strings.Join(dnf.Found, ", ")
			}
			if sendErr := r.sender.Send(ctx, msg, false); sendErr != nil {
				r.log.Warn("could not notify operator about missing doctor", logx.Err(sendErr))
			}
		}
		return err
	}

	obs, err := r.nav.Observe(ctx)
	if err != nil {
		return err
	}

	outcome, err := r.engine.Evaluate(ctx, decision.Input{
		PatientName:    t.PatientName,
		DoctorName:     t.DoctorName,
		OnlyBefore:     t.OnlyBefore,
		Current:        obs.Current,
		FirstAvailable: obs.FirstAvailable,
	})
	if err != nil {
		return err
	}

	if r.hist != nil {
		if err := r.hist.Append(ctx, history.Observation{
			At:             r.clock.Now(),
			Patient:        t.PatientName,
			Doctor:         t.DoctorName,
			Current:        obs.Current,
			FirstAvailable: obs.FirstAvailable,
			Outcome:        string(outcome),
		}); err != nil {
			// Audit trail only; never fail a run over it.
			r.log.Warn("observation history append failed", logx.Err(err))
		}
	}
	return nil
}

// maybeHealthCheck runs after a fully successful pass. A liveness signal must
// not be sent when any target failed: that would mask a broken run as healthy.
func (r *Runner) maybeHealthCheck(ctx context.Context) error {
	now := r.clock.Now()
	sendDue, err := r.gate.Due(now)
	if err != nil {
		return err
	}
	if !sendDue {
		return nil
	}

	msg := fmt.Sprintf("Daily health check: slotwatch is running, %d target(s) checked.", len(r.targets))
	if err := r.sender.Send(ctx, msg, true); err != nil {
		// Not recorded, so a later run today retries.
		r.log.Warn("health check send failed", logx.Err(err))
		return nil
	}
	if err := r.gate.RecordSent(now); err != nil {
		return err
	}
	r.log.Info("health check sent")
	return nil
}

func (r *Runner) preRunDelay(ctx context.Context) error {
	if r.maxDelay <= 0 {
		return nil
	}
	mins := r.rng.Intn(r.maxDelay + 1)
	r.log.Info("waiting before run", logx.Int("minutes", mins))
	if mins == 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(mins) * time.Minute)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
