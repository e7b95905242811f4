package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"slotwatch/internal/timeutil"
	"slotwatch/pkg/logx"
)

// waitTimeout bounds every must-exist element lookup, mirroring the implicit
// wait the portal's frontend needs to finish rendering.
const waitTimeout = 10 * time.Second

type Config struct {
	BaseURL  string
	UserID   string
	Password string
	Headless bool

	// DelayShort paces consecutive interactions on one page; DelayLong covers
	// full page transitions.
	DelayShort time.Duration
	DelayLong  time.Duration
}

// Portal implements Navigator against the live portal via a Chrome instance
// it owns for the whole run.
type Portal struct {
	cfg Config
	log logx.Logger

	browserCtx  context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc

	// positioned is true once the session has navigated away from the home
	// page, meaning the next patient selection must return home first.
	positioned bool
}

func NewPortal(cfg Config, log logx.Logger) *Portal {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	return &Portal{
		cfg:         cfg,
		log:         log,
		browserCtx:  browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}
}

// Close releases the browser. Safe on every exit path, including mid-phase
// failures.
func (p *Portal) Close() error {
	p.cancelCtx()
	p.cancelAlloc()
	return nil
}

// Login walks the password login flow: ID number, switch to password entry,
// submit credentials.
func (p *Portal) Login(ctx context.Context) error {
	if err := p.run(ctx, "open portal", chromedp.Navigate(p.cfg.BaseURL), chromedp.Sleep(p.cfg.DelayShort)); err != nil {
		return err
	}

	if err := p.mustDo(ctx, "login user_id field",
		chromedp.SendKeys("#idNumber", p.cfg.UserID, chromedp.ByQuery)); err != nil {
		return err
	}
	if err := p.mustDo(ctx, "id login continue button",
		chromedp.Click("#chooseTypeBtn", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.DelayShort)); err != nil {
		return err
	}

	if err := p.mustDo(ctx, "login password button",
		chromedp.Click(xpathLinkText(loginPasswordLinkText), chromedp.BySearch),
		chromedp.Sleep(p.cfg.DelayShort)); err != nil {
		return err
	}

	if err := p.mustDo(ctx, "login credentials",
		chromedp.SendKeys("#idNumber2", p.cfg.UserID, chromedp.ByQuery),
		chromedp.SendKeys("#password", p.cfg.Password, chromedp.ByQuery),
		chromedp.Sleep(p.cfg.DelayShort)); err != nil {
		return err
	}

	if err := p.mustDo(ctx, "password login continue button",
		chromedp.Click("#enterWithPasswordBtn", chromedp.ByQuery)); err != nil {
		return err
	}

	p.log.Debug("portal login submitted")
	return nil
}

// SelectPatient picks the patient from the person picker. For every target
// after the first, the session first returns to the portal home page.
func (p *Portal) SelectPatient(ctx context.Context, patientID string) error {
	if p.positioned {
		if err := p.run(ctx, "return to portal home",
			chromedp.Navigate(p.cfg.BaseURL), chromedp.Sleep(p.cfg.DelayLong)); err != nil {
			return err
		}
		p.positioned = false
	}

	if err := p.mustDo(ctx, "choose person button",
		chromedp.Sleep(p.cfg.DelayLong),
		chromedp.Click(".me-lg-4", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.DelayShort)); err != nil {
		return err
	}
	if err := p.mustDo(ctx, "choose person by ID",
		chromedp.Click(fmt.Sprintf(`//div[text()=%q]`, patientID), chromedp.BySearch)); err != nil {
		return err
	}
	return nil
}

// OpenDoctorAppointments navigates to the future-appointments list and opens
// the entry matching doctorName (substring match). When the doctor is absent
// it returns a DoctorNotFoundError carrying whatever doctors were listed.
func (p *Portal) OpenDoctorAppointments(ctx context.Context, doctorName string) error {
	if err := p.mustDo(ctx, "future appointments button",
		chromedp.Sleep(p.cfg.DelayLong),
		chromedp.Click(xpathLinkContains(futureApptsLinkText), chromedp.BySearch),
		chromedp.Sleep(p.cfg.DelayShort)); err != nil {
		return err
	}
	p.positioned = true

	doctorSel := fmt.Sprintf(`//div[@role="listitem" and .//a[contains(text(), %q)]]`, doctorName)
	found, err := p.optionalDo(ctx, "choose by doctor name", chromedp.Click(doctorSel, chromedp.BySearch))
	if err != nil {
		return err
	}
	if !found {
		listed, listErr := p.listedDoctors(ctx)
		if listErr != nil {
			p.log.Debug("could not collect doctor list", logx.Err(listErr))
		}
		return &DoctorNotFoundError{Doctor: doctorName, Found: listed}
	}
	return nil
}

// Observe scrapes the booked appointment, opens the reschedule editor, and
// scrapes the first available slot.
func (p *Portal) Observe(ctx context.Context) (ObservedAppointment, error) {
	var obs ObservedAppointment

	current, err := p.currentAppointment(ctx)
	if err != nil {
		return obs, err
	}
	if err := p.openAppointmentEditor(ctx); err != nil {
		return obs, err
	}
	first, err := p.firstAvailable(ctx)
	if err != nil {
		return obs, err
	}

	obs = ObservedAppointment{Current: current, FirstAvailable: first}
	p.log.Debug("observed appointment pair",
		logx.Time("current", obs.Current),
		logx.Time("first_available", obs.FirstAvailable))
	return obs, nil
}

func (p *Portal) currentAppointment(ctx context.Context) (time.Time, error) {
	var texts []string
	js := fmt.Sprintf(
		`Array.from(document.getElementsByClassName(%q)).map(e => e.innerText)`, apptDetailsClass)
	if err := p.mustDo(ctx, "current appointment details",
		chromedp.Sleep(p.cfg.DelayLong),
		chromedp.Evaluate(js, &texts)); err != nil {
		return time.Time{}, err
	}

	date, clock, ok := appointmentFromDetails(texts)
	if !ok {
		return time.Time{}, &phaseError{phase: "current appointment details",
			err: errors.New("appointment date or time not found on page")}
	}
	t, err := timeutil.ParseScraped(date, clock)
	if err != nil {
		return time.Time{}, &phaseError{phase: "current appointment details", err: err}
	}
	return t, nil
}

func (p *Portal) openAppointmentEditor(ctx context.Context) error {
	if err := p.mustDo(ctx, "edit appointment button",
		chromedp.Sleep(p.cfg.DelayLong),
		chromedp.Click(xpathButtonText(editApptButtonText), chromedp.BySearch),
		chromedp.Sleep(p.cfg.DelayLong)); err != nil {
		return err
	}

	// Both follow-up dialogs appear only for some appointment types.
	if _, err := p.optionalDo(ctx, "regular visit button",
		chromedp.Click(xpathButtonText(regularVisitText), chromedp.BySearch)); err != nil {
		return err
	}
	if _, err := p.optionalDo(ctx, "show available slots button",
		chromedp.Sleep(p.cfg.DelayShort),
		chromedp.Click(xpathButtonText(showSlotsText), chromedp.BySearch)); err != nil {
		return err
	}
	return nil
}

func (p *Portal) firstAvailable(ctx context.Context) (time.Time, error) {
	var dateText, timeText string
	if err := p.mustDo(ctx, "find first available date",
		chromedp.Sleep(p.cfg.DelayLong),
		chromedp.Text("."+availDateClass, &dateText, chromedp.ByQuery)); err != nil {
		return time.Time{}, err
	}
	if err := p.mustDo(ctx, "find first available time",
		chromedp.Text("."+availTimeClass, &timeText, chromedp.ByQuery)); err != nil {
		return time.Time{}, err
	}

	t, err := timeutil.ParseScraped(tail(dateText, 8), timeText)
	if err != nil {
		return time.Time{}, &phaseError{phase: "find first available date", err: err}
	}
	return t, nil
}

// listedDoctors collects the doctor names present in the appointment list,
// for the operator message accompanying a DoctorNotFoundError.
func (p *Portal) listedDoctors(ctx context.Context) ([]string, error) {
	var names []string
	err := p.run(ctx, "list doctors",
		chromedp.Evaluate(`Array.from(document.querySelectorAll('div[role="listitem"] a')).map(a => a.innerText)`, &names))
	if err != nil {
		return nil, err
	}
	return names, nil
}

// mustDo runs actions with the must-exist wait budget; a missing element is a
// fatal navigation error carrying the phase name.
func (p *Portal) mustDo(ctx context.Context, phase string, actions ...chromedp.Action) error {
	if err := p.runWithTimeout(ctx, waitTimeout+p.cfg.DelayLong, actions...); err != nil {
		p.log.Error("failed finding element", logx.String("phase", phase), logx.Err(err))
		return &phaseError{phase: phase, err: err}
	}
	return nil
}

// optionalDo runs actions for an element that may legitimately be absent.
// Absence (lookup timeout) reports found=false; any other failure is an error.
func (p *Portal) optionalDo(ctx context.Context, phase string, actions ...chromedp.Action) (bool, error) {
	err := p.runWithTimeout(ctx, p.cfg.DelayLong+time.Second, actions...)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		p.log.Debug("optional element not present", logx.String("phase", phase))
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, &phaseError{phase: phase, err: err}
}

func (p *Portal) run(ctx context.Context, phase string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(p.browserCtx, actions...); err != nil {
		return &phaseError{phase: phase, err: err}
	}
	return nil
}

func (p *Portal) runWithTimeout(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.browserCtx, d)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

func xpathLinkText(text string) string {
	return fmt.Sprintf(`//a[text()=%q]`, text)
}

func xpathLinkContains(text string) string {
	return fmt.Sprintf(`//a[contains(text(), %q)]`, text)
}

func xpathButtonText(text string) string {
	return fmt.Sprintf(`//button[text()=%q]`, text)
}
