// Package navigator drives the appointment portal in a headless browser and
// scrapes the two timestamps the decision engine needs. Everything here is
// page-structure glue and is expected to change whenever the portal's markup
// does; nothing downstream depends on how the timestamps were obtained.
package navigator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ObservedAppointment is the per-target scrape result: the slot presently
// booked and the earliest open slot the portal currently offers.
type ObservedAppointment struct {
	Current        time.Time
	FirstAvailable time.Time
}

// Navigator is one authenticated portal session. Methods are called in order
// per target: SelectPatient, OpenDoctorAppointments, Observe. The session is
// positioned on the home page right after Login, so the first target skips
// the redundant home navigation.
type Navigator interface {
	Login(ctx context.Context) error
	SelectPatient(ctx context.Context, patientID string) error
	OpenDoctorAppointments(ctx context.Context, doctorName string) error
	Observe(ctx context.Context) (ObservedAppointment, error)
	Close() error
}

// DoctorNotFoundError reports that the configured doctor name matched nothing
// in the portal's appointment list. It carries the doctor names that were
// found: this is an operator-actionable misconfiguration, not a transient
// failure, so the orchestrator forwards the list before failing the run.
type DoctorNotFoundError struct {
	Doctor string
	Found  []string
}

func (e *DoctorNotFoundError) Error() string {
	if len(e.Found) == 0 {
		return fmt.Sprintf("doctor %q not found (no doctors listed)", e.Doctor)
	}
	return fmt.Sprintf("doctor %q not found; doctors listed: %s", e.Doctor, strings.Join(e.Found, ", "))
}

// phaseError wraps a navigation failure with the phase it occurred at, so the
// log pinpoints which page interaction broke when the markup changes.
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string { return fmt.Sprintf("phase %q: %v", e.phase, e.err) }
func (e *phaseError) Unwrap() error { return e.err }
