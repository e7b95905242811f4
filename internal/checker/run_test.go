package checker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slotwatch/internal/decision"
	"slotwatch/internal/dedup"
	"slotwatch/internal/health"
	"slotwatch/internal/navigator"
	"slotwatch/internal/timeutil"
	"slotwatch/pkg/logx"
)

type fakeSender struct {
	sent   []string
	silent []bool
	err    error
}

func (f *fakeSender) Send(_ context.Context, text string, silent bool) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	f.silent = append(f.silent, silent)
	return nil
}

// fakeNav scripts one observation per patient ID and can be told to fail at a
// given step.
type fakeNav struct {
	obs         map[string]navigator.ObservedAppointment
	failObserve map[string]error
	failOpen    map[string]error

	loggedIn bool
	closed   bool
	visited  []string
}

func (f *fakeNav) Login(context.Context) error {
	f.loggedIn = true
	return nil
}

func (f *fakeNav) SelectPatient(_ context.Context, patientID string) error {
	f.visited = append(f.visited, patientID)
	return nil
}

func (f *fakeNav) OpenDoctorAppointments(_ context.Context, doctorName string) error {
	if err := f.failOpen[doctorName]; err != nil {
		return err
	}
	return nil
}

func (f *fakeNav) Observe(context.Context) (navigator.ObservedAppointment, error) {
	cur := f.visited[len(f.visited)-1]
	if err := f.failObserve[cur]; err != nil {
		return navigator.ObservedAppointment{}, err
	}
	return f.obs[cur], nil
}

func (f *fakeNav) Close() error {
	f.closed = true
	return nil
}

func ts(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, time.Local)
}

type fixture struct {
	nav    *fakeNav
	sender *fakeSender
	runner *Runner
}

func newFixture(t *testing.T, targets []Target, nav *fakeNav, healthHour *int) *fixture {
	t.Helper()
	dir := t.TempDir()
	sender := &fakeSender{}
	store := dedup.NewStore(filepath.Join(dir, "notifications.json"))
	engine := decision.NewEngine(store, sender, logx.Nop())
	gate := health.NewGate(filepath.Join(dir, "healthcheck.json"), healthHour)

	runner := NewRunner(Options{
		Targets:   targets,
		Navigator: nav,
		Engine:    engine,
		Gate:      gate,
		Sender:    sender,
		Clock:     timeutil.FixedClock{T: ts(14, 12, 0)},
		Log:       logx.Nop(),
	})
	return &fixture{nav: nav, sender: sender, runner: runner}
}

func TestRunNotifiesEarlierSlot(t *testing.T) {
	t.Parallel()

	nav := &fakeNav{obs: map[string]navigator.ObservedAppointment{
		"p1": {Current: ts(20, 9, 0), FirstAvailable: ts(15, 11, 30)},
	}}
	f := newFixture(t, []Target{{PatientName: "Dana", PatientID: "p1", DoctorName: "Dr. Levi"}}, nav, nil)

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !nav.loggedIn {
		t.Fatal("run must log in before checking targets")
	}
	if !nav.closed {
		t.Fatal("browser session must be closed after the run")
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(f.sender.sent))
	}
	if f.sender.silent[0] {
		t.Fatal("slot notification must be loud")
	}
}

func TestRunFailFastAbortsRemainingTargets(t *testing.T) {
	t.Parallel()

	nav := &fakeNav{
		obs: map[string]navigator.ObservedAppointment{
			"p1": {Current: ts(20, 9, 0), FirstAvailable: ts(22, 9, 0)},
			"p3": {Current: ts(20, 9, 0), FirstAvailable: ts(15, 11, 30)},
		},
		failObserve: map[string]error{"p2": errors.New("element vanished")},
	}
	hour := 9
	f := newFixture(t, []Target{
		{PatientName: "A", PatientID: "p1", DoctorName: "D1"},
		{PatientName: "B", PatientID: "p2", DoctorName: "D2"},
		{PatientName: "C", PatientID: "p3", DoctorName: "D3"},
	}, nav, &hour)

	err := f.runner.Run(context.Background())
	if err == nil {
		t.Fatal("a failing target must fail the run")
	}
	if !strings.Contains(err.Error(), "B / D2") {
		t.Fatalf("error must name the failing target: %v", err)
	}
	if len(nav.visited) != 2 {
		t.Fatalf("targets after the failure must not be checked, visited %v", nav.visited)
	}
	if !nav.closed {
		t.Fatal("browser session must be closed even on failure")
	}
	// No liveness ping after a failed pass.
	for _, s := range f.sender.sent {
		if strings.Contains(s, "health check") {
			t.Fatal("health check must not fire after a failed run")
		}
	}
}

func TestRunHealthCheckAfterCleanPass(t *testing.T) {
	t.Parallel()

	nav := &fakeNav{obs: map[string]navigator.ObservedAppointment{
		"p1": {Current: ts(20, 9, 0), FirstAvailable: ts(22, 9, 0)},
	}}
	hour := 9
	f := newFixture(t, []Target{{PatientName: "Dana", PatientID: "p1", DoctorName: "Dr. Levi"}}, nav, &hour)

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("got %d sends, want only the liveness ping", len(f.sender.sent))
	}
	if !strings.Contains(f.sender.sent[0], "health check") {
		t.Fatalf("unexpected message: %q", f.sender.sent[0])
	}
	if !f.sender.silent[0] {
		t.Fatal("liveness ping must be silent")
	}

	// A second clean pass the same day stays quiet.
	f.sender.sent = nil
	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("second pass sent %v", f.sender.sent)
	}
}

func TestRunHealthCheckSendFailureRetriesNextRun(t *testing.T) {
	t.Parallel()

	nav := &fakeNav{obs: map[string]navigator.ObservedAppointment{
		"p1": {Current: ts(20, 9, 0), FirstAvailable: ts(22, 9, 0)},
	}}
	hour := 9
	f := newFixture(t, []Target{{PatientName: "Dana", PatientID: "p1", DoctorName: "Dr. Levi"}}, nav, &hour)

	f.sender.err = errors.New("telegram down")
	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("a failed liveness send must not fail the run: %v", err)
	}

	f.sender.err = nil
	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "health check") {
		t.Fatalf("unsent ping must be retried on the next run, got %v", f.sender.sent)
	}
}

func TestRunDoctorNotFoundNotifiesOperator(t *testing.T) {
	t.Parallel()

	nav := &fakeNav{
		failOpen: map[string]error{
			"Dr. Levi": &navigator.DoctorNotFoundError{
				Doctor: "Dr. Levi",
				Found:  []string{"Dr. Cohen", "Dr. Mizrahi"},
			},
		},
	}
	f := newFixture(t, []Target{{PatientName: "Dana", PatientID: "p1", DoctorName: "Dr. Levi"}}, nav, nil)

	err := f.runner.Run(context.Background())
	if err == nil {
		t.Fatal("a missing doctor must fail the run")
	}
	var dnf *navigator.DoctorNotFoundError
	if !errors.As(err, &dnf) {
		t.Fatalf("error must carry the doctor-not-found cause: %v", err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("got %d sends, want operator message", len(f.sender.sent))
	}
	if !strings.Contains(f.sender.sent[0], "Dr. Cohen") {
		t.Fatalf("operator message must list found doctors: %q", f.sender.sent[0])
	}
}

func TestRunNoTargets(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, &fakeNav{}, nil)
	if err := f.runner.Run(context.Background()); err == nil {
		t.Fatal("a run without targets must fail")
	}
}

func TestPreRunDelayHonorsContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []Target{{PatientName: "Dana", PatientID: "p1", DoctorName: "Dr. Levi"}}, &fakeNav{}, nil)
	f.runner.maxDelay = 60

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A drawn delay of 0 returns immediately without touching the context;
	// keep drawing until a non-zero delay hits the cancelled select.
	for i := 0; i < 200; i++ {
		if err := f.runner.preRunDelay(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("got %v, want context.Canceled", err)
			}
			return
		}
	}
	t.Fatal("delay never observed the cancelled context")
}
