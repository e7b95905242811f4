// Package decision holds the core rule: is an observed first-available slot
// worth telling the operator about, and has it been reported already.
package decision

import (
	"context"
	"fmt"
	"time"

	"slotwatch/internal/dedup"
	"slotwatch/internal/timeutil"
	"slotwatch/pkg/logx"
)

// Sender is the outbound notification capability the engine needs. silent
// delivers the message without an audible alert.
type Sender interface {
	Send(ctx context.Context, text string, silent bool) error
}

type Outcome string

const (
	// OutcomeNotified means an earlier slot was found and the operator was told.
	OutcomeNotified Outcome = "notified"
	// OutcomeAlreadyNotified means the exact improvement was reported before.
	OutcomeAlreadyNotified Outcome = "already-notified"
	// OutcomeNoEarlierSlot means the first available slot is not earlier than
	// the threshold.
	OutcomeNoEarlierSlot Outcome = "no-earlier-slot"
	// OutcomeSendFailed means the slot was notification-worthy but the send
	// failed; the store is left untouched so the next run retries.
	OutcomeSendFailed Outcome = "send-failed"
)

// Input is one target's observed pair plus its configuration.
type Input struct {
	PatientName string
	DoctorName  string

	// OnlyBefore, when set, can only tighten the threshold.
	OnlyBefore *time.Time

	Current        time.Time
	FirstAvailable time.Time
}

// Threshold is the cutoff below which a slot counts as "earlier":
// min(onlyBefore, current) when onlyBefore is set, otherwise current. An
// onlyBefore later than the current appointment therefore has no effect.
func Threshold(current time.Time, onlyBefore *time.Time) time.Time {
	if onlyBefore != nil && onlyBefore.Before(current) {
		return *onlyBefore
	}
	return current
}

// NotifyWorthy applies the strict-inequality rule: a slot equal to the
// threshold is not earlier.
func NotifyWorthy(first, current time.Time, onlyBefore *time.Time) bool {
	return first.Before(Threshold(current, onlyBefore))
}

type Engine struct {
	store  *dedup.Store
	sender Sender
	log    logx.Logger
}

func NewEngine(store *dedup.Store, sender Sender, log logx.Logger) *Engine {
	return &Engine{store: store, sender: sender, log: log}
}

// Evaluate decides and acts for one observed pair. The only side effect on the
// store is MarkNotified, and it happens strictly after a confirmed send, so a
// failed send never marks the slot as reported.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Outcome, error) {
	threshold := Threshold(in.Current, in.OnlyBefore)
	if !in.FirstAvailable.Before(threshold) {
		e.log.Info("no earlier appointment",
			logx.String("patient", in.PatientName),
			logx.String("doctor", in.DoctorName),
			logx.String("first_available", in.FirstAvailable.Format(timeutil.HumanLayout)),
			logx.String("need_before", threshold.Format(timeutil.HumanLayout)))
		return OutcomeNoEarlierSlot, nil
	}

	curKey := dedup.Key(in.Current)
	firstKey := dedup.Key(in.FirstAvailable)

	seen, err := e.store.WasNotified(curKey, firstKey)
	if err != nil {
		return "", err
	}
	if seen {
		e.log.Info("earlier appointment found but already notified",
			logx.String("patient", in.PatientName),
			logx.String("doctor", in.DoctorName),
			logx.String("first_available", in.FirstAvailable.Format(timeutil.HumanLayout)))
		return OutcomeAlreadyNotified, nil
	}

	msg := fmt.Sprintf("Found an earlier appointment for %s with %s: %s",
		in.PatientName, in.DoctorName, in.FirstAvailable.Format(timeutil.HumanLayout))
	e.log.Info(msg)

	if err := e.sender.Send(ctx, msg, false); err != nil {
		// Not fatal: the next scheduled run retries naturally because the
		// store was not touched.
		e.log.Warn("notification send failed",
			logx.String("patient", in.PatientName),
			logx.String("doctor", in.DoctorName),
			logx.Err(err))
		return OutcomeSendFailed, nil
	}

	if err := e.store.MarkNotified(curKey, firstKey); err != nil {
		return "", err
	}
	return OutcomeNotified, nil
}
