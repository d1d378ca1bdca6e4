// Package poller periodically re-derives every user's dose schedule, emails
// reminders for doses that have come due, and closes out finished days.
package poller

import (
	"context"
	"fmt"
	"time"

	"medreminder/dbtypes"
	"medreminder/notifylog"
	"medreminder/reportstore"
	"medreminder/schedule"

	"github.com/golang/glog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const tracerName = "medreminder/poller"

type store interface {
	ListUsers(ctx context.Context) ([]*dbtypes.User, error)
	ListMedicines(ctx context.Context, userID string) ([]dbtypes.Medicine, error)
	ListDoseRecords(ctx context.Context, userID string, start, end time.Time) ([]dbtypes.DoseRecord, error)
	ListGuardians(ctx context.Context, recipientID string) ([]*dbtypes.User, error)
	CloseOutDose(ctx context.Context, userID, medicineID, scheduledTime string, day, now time.Time) (bool, error)
}

type mailer interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sentLog interface {
	WasSent(ctx context.Context, key notifylog.Key) (bool, error)
	MarkSent(ctx context.Context, key notifylog.Key, at time.Time) (bool, error)
	SentAt(ctx context.Context, key notifylog.Key) (time.Time, bool, error)
	CountForDay(ctx context.Context, userID, day string) (int, error)
}

type archive interface {
	Create(ctx context.Context, summary *reportstore.DailySummary) (bool, error)
	Get(ctx context.Context, userID, day string) (*reportstore.DailySummary, bool, error)
	ListDays(ctx context.Context, userID string) ([]string, error)
}

// Poller runs an infinite loop, re-evaluating every user's doses each period.
type Poller struct {
	db      store
	sg      mailer
	sent    sentLog
	reports archive

	recheckPeriod time.Duration
	concurrency   int64
	defaultLoc    *time.Location
	baseURL       string
	now           func() time.Time
}

type PollerOpt func(*Poller)

func WithRecheckPeriod(period time.Duration) PollerOpt {
	return func(p *Poller) {
		p.recheckPeriod = period
	}
}

// WithConcurrency bounds how many users are processed at once.
func WithConcurrency(n int64) PollerOpt {
	return func(p *Poller) {
		p.concurrency = n
	}
}

// WithDefaultLocation sets the zone used for users without a valid TimeZone.
func WithDefaultLocation(loc *time.Location) PollerOpt {
	return func(p *Poller) {
		p.defaultLoc = loc
	}
}

// WithReportArchive enables archiving of each user's previous day.
func WithReportArchive(reports archive) PollerOpt {
	return func(p *Poller) {
		p.reports = reports
	}
}

// WithBaseURL sets the web UI address linked from reminder emails.
func WithBaseURL(u string) PollerOpt {
	return func(p *Poller) {
		p.baseURL = u
	}
}

// WithClock replaces the source of the current time.
func WithClock(now func() time.Time) PollerOpt {
	return func(p *Poller) {
		p.now = now
	}
}

func New(db store, sg mailer, sent sentLog, opts ...PollerOpt) *Poller {
	p := &Poller{
		db:            db,
		sg:            sg,
		sent:          sent,
		recheckPeriod: 1 * time.Minute,
		concurrency:   16,
		defaultLoc:    time.Local,
		baseURL:       "https://medreminder.dev",
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run starts the Poller's loop.
func (p *Poller) Run(ctx context.Context) {
	// Poll once right away; the ticker doesn't fire until the period has
	// elapsed.
	if err := p.Pass(ctx); err != nil {
		glog.Errorf("Error during poller pass: %v", err)
	}

	ticker := time.NewTicker(p.recheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			glog.Infof("Shutting down poller")
			return
		case <-ticker.C:
		}

		if err := p.Pass(ctx); err != nil {
			glog.Errorf("Error during poller pass: %v", err)
		}
	}
}

// Pass processes every user once.  A failure for one user does not stop the
// others; the first error is returned after all have been tried.
func (p *Poller) Pass(ctx context.Context) error {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Poller.Pass")
	defer span.End()

	glog.Infof("Starting poller pass")
	defer glog.Infof("Finished poller pass")

	users, err := p.db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("while listing users: %w", err)
	}

	eg := &errgroup.Group{}
	sem := semaphore.NewWeighted(p.concurrency)

	for _, user := range users {
		user := user

		if err := sem.Acquire(ctx, 1); err != nil {
			// Let the users already started finish before giving up.
			eg.Wait()
			return fmt.Errorf("while acquiring concurrency limiter semaphore: %w", err)
		}

		eg.Go(func() error {
			defer sem.Release(1)
			if err := p.processUser(ctx, user); err != nil {
				recordPassError(ctx)
				glog.Errorf("Error while processing user %s: %v", user.ID, err)
				return fmt.Errorf("while processing user %s: %w", user.ID, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("while waiting for completion of errgroup: %w", err)
	}

	return nil
}

func (p *Poller) processUser(ctx context.Context, user *dbtypes.User) error {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Poller.processUser")
	defer span.End()

	span.SetAttributes(attribute.String("user", user.ID))

	loc := schedule.LoadLocation(user.TimeZone, p.defaultLoc)
	now := p.now().In(loc)
	today := schedule.StartOfDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	allMeds, err := p.db.ListMedicines(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("while listing medicines: %w", err)
	}
	meds := schedule.ActiveMedicines(allMeds)

	records, err := p.db.ListDoseRecords(ctx, user.ID, yesterday, today.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("while listing dose records: %w", err)
	}

	// A failed reminder must not hold back yesterday's close-out.
	remindErr := p.sendReminders(ctx, user, meds, records, now)

	if err := p.closeOutDay(ctx, user, meds, records, yesterday, now); err != nil {
		if remindErr != nil {
			glog.Errorf("Error while sending reminders to user %s: %v", user.ID, remindErr)
		}
		return fmt.Errorf("while closing out %s: %w", schedule.DayKey(yesterday, loc), err)
	}

	if remindErr != nil {
		return fmt.Errorf("while sending reminders: %w", remindErr)
	}
	return nil
}

// unsentReminders filters reminders down to those not yet logged under
// keyFor, returning the keys to log once they are delivered.
func (p *Poller) unsentReminders(ctx context.Context, reminders []Reminder, keyFor func(Reminder) notifylog.Key) ([]Reminder, []notifylog.Key, error) {
	var fresh []Reminder
	var keys []notifylog.Key
	for _, r := range reminders {
		key := keyFor(r)
		sent, err := p.sent.WasSent(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("while checking reminder log: %w", err)
		}
		if sent {
			continue
		}
		fresh = append(fresh, r)
		keys = append(keys, key)
	}
	return fresh, keys, nil
}

func (p *Poller) markSent(ctx context.Context, keys []notifylog.Key, now time.Time) error {
	for _, key := range keys {
		if _, err := p.sent.MarkSent(ctx, key, now); err != nil {
			return fmt.Errorf("while recording reminder: %w", err)
		}
	}
	return nil
}

// guardianKey files a guardian's copy of a reminder under the guardian, so
// each guardian is retried on their own.
func guardianKey(guardianID, patientID, day string, r Reminder) notifylog.Key {
	return notifylog.Key{
		UserID: guardianID,
		DoseID: "patient:" + patientID + ":" + r.DoseID,
		Day:    day,
		Status: string(r.Status),
	}
}

// sendReminders emails the user about doses that newly came due, then tells
// each guardian about newly overdue ones.  A failing guardian does not stop
// the others; the first failure is returned once all have been tried.
func (p *Poller) sendReminders(ctx context.Context, user *dbtypes.User, meds []dbtypes.Medicine, records []dbtypes.DoseRecord, now time.Time) error {
	lang := schedule.ParseLanguage(user.Language)
	day := schedule.DayKey(now, now.Location())

	doses := schedule.ExpandMedicineDoses(meds, now, lang)
	doses = schedule.ApplyOverrides(doses, schedule.OverridesFromRecords(records, now))
	reminders := SelectReminders(doses)

	fresh, keys, err := p.unsentReminders(ctx, reminders, func(r Reminder) notifylog.Key {
		return notifylog.Key{UserID: user.ID, DoseID: r.DoseID, Day: day, Status: string(r.Status)}
	})
	if err != nil {
		return err
	}

	if len(fresh) > 0 {
		if user.NotifyEmail && user.Email != "" {
			if err := p.sendEmail(ctx, user, user, fresh); err != nil {
				return fmt.Errorf("while emailing %s: %w", user.ID, err)
			}
		}
		if err := p.markSent(ctx, keys, now); err != nil {
			return err
		}
		recordReminders(ctx, len(fresh))
	}

	var overdue []Reminder
	for _, r := range reminders {
		if r.Status == schedule.StatusOverdue {
			overdue = append(overdue, r)
		}
	}
	if len(overdue) == 0 {
		return nil
	}

	guardians, err := p.db.ListGuardians(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("while listing guardians: %w", err)
	}

	var firstErr error
	for _, g := range guardians {
		if !g.NotifyEmail || g.Email == "" {
			continue
		}

		gFresh, gKeys, err := p.unsentReminders(ctx, overdue, func(r Reminder) notifylog.Key {
			return guardianKey(g.ID, user.ID, day, r)
		})
		if err != nil {
			return err
		}
		if len(gFresh) == 0 {
			continue
		}

		if err := p.sendEmail(ctx, g, user, gFresh); err != nil {
			glog.Errorf("Error while emailing guardian %s about user %s: %v", g.ID, user.ID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("while emailing guardian %s: %w", g.ID, err)
			}
			continue
		}
		if err := p.markSent(ctx, gKeys, now); err != nil {
			return err
		}
		recordReminders(ctx, len(gFresh))
	}

	return firstErr
}

func archivedKey(userID, day string) notifylog.Key {
	return notifylog.Key{UserID: userID, DoseID: "daily-summary", Day: day, Status: "archived"}
}

// closeOutDay writes missed records for the finished day's unrecorded doses
// and archives its summary once.
func (p *Poller) closeOutDay(ctx context.Context, user *dbtypes.User, meds []dbtypes.Medicine, records []dbtypes.DoseRecord, day, now time.Time) error {
	dayKey := schedule.DayKey(day, now.Location())
	doneKey := archivedKey(user.ID, dayKey)

	done, err := p.sent.WasSent(ctx, doneKey)
	if err != nil {
		return fmt.Errorf("while checking archive log: %w", err)
	}
	if done {
		return nil
	}

	var items []schedule.ScheduleItem
	for _, item := range schedule.GenerateScheduleForDate(meds, day, records, now) {
		if item.Record == nil && scheduledBeforeCreation(item, day) {
			continue
		}
		items = append(items, item)
	}

	for _, item := range items {
		if item.Status != schedule.ScheduleMissed {
			continue
		}
		if item.Record != nil && item.Record.Status != dbtypes.RecordPending {
			continue
		}
		wrote, err := p.db.CloseOutDose(ctx, user.ID, item.Medicine.ID, item.ScheduledTime, day, now)
		if err != nil {
			return fmt.Errorf("while closing out dose %s: %w", item.DoseID(), err)
		}
		if wrote {
			recordMissed(ctx)
		}
	}

	if p.reports != nil {
		summary := reportstore.BuildDailySummary(user.ID, day, items, now)
		created, err := p.reports.Create(ctx, summary)
		if err != nil {
			return fmt.Errorf("while archiving daily summary: %w", err)
		}
		if created {
			glog.Infof("Archived %s summary for user %s: %d/%d taken", dayKey, user.ID, summary.Taken, summary.Total)
		}
	}

	if _, err := p.sent.MarkSent(ctx, doneKey, now); err != nil {
		return fmt.Errorf("while recording archive: %w", err)
	}
	return nil
}

// scheduledBeforeCreation reports whether the item's dose came due on day
// before its medicine existed.
func scheduledBeforeCreation(item schedule.ScheduleItem, day time.Time) bool {
	if item.Medicine.CreatedAt.IsZero() {
		return false
	}
	minutes := schedule.ParseTimeToMinutes(item.ScheduledTime)
	scheduledAt := time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
	return item.Medicine.CreatedAt.After(scheduledAt)
}
