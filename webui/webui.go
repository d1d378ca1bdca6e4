// Package webui serves the server-rendered pages of the reminder app.
package webui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"medreminder/dblayer"
	"medreminder/dbtypes"
	"medreminder/schedule"
	"medreminder/webui/uitemplates"

	"github.com/golang/glog"
)

const sessionCookieName = "MedReminder-Session"

// statsWindowDays is how far back adherence figures and streaks look.
const statsWindowDays = 30

type store interface {
	UserFromSessionCookie(ctx context.Context, cookie string) (*dbtypes.User, error)
	SessionFromPassword(ctx context.Context, email, password string) (*dbtypes.Session, error)
	SessionFromGoogleFederation(ctx context.Context, idToken string) (*dbtypes.Session, error)
	DeleteSession(ctx context.Context, cookie string) error
	GetUser(ctx context.Context, id string) (*dbtypes.User, error)

	ListMedicines(ctx context.Context, userID string) ([]dbtypes.Medicine, error)
	GetMedicine(ctx context.Context, id string) (*dbtypes.Medicine, error)
	CreateMedicine(ctx context.Context, med *dbtypes.Medicine) error
	UpdateMedicineStatus(ctx context.Context, id string, newStatus dbtypes.MedicineStatus) error

	ListDoseRecords(ctx context.Context, userID string, start, end time.Time) ([]dbtypes.DoseRecord, error)
	GetOrCreateTodayRecord(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error)
	MarkDoseTaken(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error)
	MarkDoseSkipped(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error)
	UpdateDoseRecordStatus(ctx context.Context, recordID string, newStatus dbtypes.RecordStatus, now time.Time) (*dbtypes.DoseRecord, error)

	ListCareRecipients(ctx context.Context, guardianID string) ([]*dbtypes.User, error)
	CheckUserAllowedToManageRecipient(ctx context.Context, user *dbtypes.User, recipientID string) error
}

type WebUI struct {
	db store

	googleClientID string
	defaultLoc     *time.Location
	now            func() time.Time

	// overrides holds the not-yet-confirmed dose actions of each session,
	// keyed by session cookie.
	overridesMu sync.Mutex
	overrides   map[string]*schedule.LocalOverrides
}

type WebUIOpt func(*WebUI)

// WithGoogleClientID enables "Sign in with Google" on the log-in page.
func WithGoogleClientID(id string) WebUIOpt {
	return func(u *WebUI) {
		u.googleClientID = id
	}
}

// WithDefaultLocation sets the zone used for users without a valid TimeZone.
func WithDefaultLocation(loc *time.Location) WebUIOpt {
	return func(u *WebUI) {
		u.defaultLoc = loc
	}
}

func WithClock(now func() time.Time) WebUIOpt {
	return func(u *WebUI) {
		u.now = now
	}
}

func New(db store, opts ...WebUIOpt) *WebUI {
	u := &WebUI{
		db:         db,
		defaultLoc: time.Local,
		now:        time.Now,
		overrides:  map[string]*schedule.LocalOverrides{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *WebUI) Register(m *http.ServeMux) {
	m.HandleFunc("/", u.todayHandler)
	m.HandleFunc("/dose-action", u.doseActionHandler)
	m.HandleFunc("/week", u.weekHandler)
	m.HandleFunc("/medicines", u.medicinesHandler)
	m.HandleFunc("/create-medicine", u.createMedicineHandler)
	m.HandleFunc("/medicine-status", u.medicineStatusHandler)
	m.HandleFunc("/care-recipients", u.careRecipientsHandler)
	m.HandleFunc("/log-in", u.logInHandler)
	m.HandleFunc("/log-in/google", u.logInGoogleHandler)
	m.HandleFunc("/log-out", u.logOutHandler)
}

// getLoggedInUser loads the user associated with the session cookie in the
// request, if it exists.
func (u *WebUI) getLoggedInUser(ctx context.Context, r *http.Request) (*dbtypes.User, string, error) {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		// No session cookie; user is not logged in.
		glog.Infof("No logged-in user because there was no session cookie.")
		return nil, "", nil
	}

	user, err := u.db.UserFromSessionCookie(ctx, sessionCookie.Value)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", nil
	}
	return user, sessionCookie.Value, nil
}

// localOverrides returns the pending actions of a session.
func (u *WebUI) localOverrides(cookie string) *schedule.LocalOverrides {
	u.overridesMu.Lock()
	defer u.overridesMu.Unlock()
	l, ok := u.overrides[cookie]
	if !ok {
		l = schedule.NewLocalOverrides()
		u.overrides[cookie] = l
	}
	return l
}

func (u *WebUI) dropLocalOverrides(cookie string) {
	u.overridesMu.Lock()
	defer u.overridesMu.Unlock()
	delete(u.overrides, cookie)
}

// pageRequest is the state shared by every page about one care recipient.
type pageRequest struct {
	user    *dbtypes.User
	patient *dbtypes.User
	cookie  string

	// patientParam is the "user" query parameter to carry in links; empty
	// when users manage their own medicines.
	patientParam string

	loc  *time.Location
	now  time.Time
	lang schedule.Language
}

func (p *pageRequest) nav() uitemplates.NavParams {
	return uitemplates.NavParams{
		Email:         p.user.Email,
		TodayLink:     TodayLink(p.patientParam, ""),
		WeekLink:      WeekLink(p.patientParam, ""),
		MedicinesLink: MedicinesLink(p.patientParam, ""),
	}
}

func displayName(user *dbtypes.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Email
}

// beginPage authenticates the request and resolves the care recipient named
// by its "user" parameter.  When it returns false, a response has already
// been written.
func (u *WebUI) beginPage(w http.ResponseWriter, r *http.Request) (*pageRequest, bool) {
	ctx := r.Context()

	user, cookie, err := u.getLoggedInUser(ctx, r)
	if err != nil {
		glog.Errorf("Error while getting logged-in user: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return nil, false
	}

	if user == nil {
		// User is not logged in.  Send them to log in.
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return nil, false
	}

	if err := r.ParseForm(); err != nil {
		glog.Errorf("Error while parsing form: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}

	p := &pageRequest{
		user:    user,
		patient: user,
		cookie:  cookie,
		lang:    schedule.ParseLanguage(user.Language),
	}

	if patientID := r.Form.Get("user"); patientID != "" && patientID != user.ID {
		err := u.db.CheckUserAllowedToManageRecipient(ctx, user, patientID)
		if errors.Is(err, dblayer.ErrPermissionDenied) {
			glog.Errorf("User %s is not allowed to manage user %s", user.ID, patientID)
			http.Error(w, "Not Found", http.StatusNotFound)
			return nil, false
		}
		if err != nil {
			glog.Errorf("Error while checking permissions: %v", err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return nil, false
		}

		patient, err := u.db.GetUser(ctx, patientID)
		if errors.Is(err, dblayer.ErrUserNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return nil, false
		}
		if err != nil {
			glog.Errorf("Error while retrieving user %s: %v", patientID, err)
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return nil, false
		}
		p.patient = patient
		p.patientParam = patient.ID
	}

	// Calendar days belong to the person taking the medicine.
	p.loc = schedule.LoadLocation(p.patient.TimeZone, u.defaultLoc)
	p.now = u.now().In(p.loc)

	return p, true
}

// ownedMedicine loads a medicine and checks that it belongs to the request's
// care recipient.
func (u *WebUI) ownedMedicine(ctx context.Context, p *pageRequest, id string) (*dbtypes.Medicine, error) {
	med, err := u.db.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}
	if med.UserID != p.patient.ID {
		return nil, dblayer.ErrMedicineNotFound
	}
	return med, nil
}

func writePage(w http.ResponseWriter, content []byte, err error) {
	if err != nil {
		glog.Errorf("Error while rendering page: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	if _, err := io.Copy(w, bytes.NewReader(content)); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
		return
	}
}

func pageLink(path, patientID, userError string, extra url.Values) string {
	q := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if patientID != "" {
		q.Add("user", patientID)
	}
	if userError != "" {
		q.Add("user-error", userError)
	}
	link := &url.URL{
		Path:     path,
		RawQuery: q.Encode(),
	}
	return link.String()
}

func TodayLink(patientID, userError string) string {
	return pageLink("/", patientID, userError, nil)
}

// WeekLink links to the week containing date, formatted "2006-01-02", or to
// the current week when date is empty.
func WeekLink(patientID, date string) string {
	extra := url.Values{}
	if date != "" {
		extra.Add("date", date)
	}
	return pageLink("/week", patientID, "", extra)
}

func MedicinesLink(patientID, userError string) string {
	return pageLink("/medicines", patientID, userError, nil)
}

func CreateMedicineLink(patientID, userError string) string {
	return pageLink("/create-medicine", patientID, userError, nil)
}

func (u *WebUI) careRecipientsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/care-recipients" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	p, ok := u.beginPage(w, r)
	if !ok {
		return
	}

	recipients, err := u.db.ListCareRecipients(r.Context(), p.user.ID)
	if err != nil {
		glog.Errorf("Error while listing care recipients of %s: %v", p.user.ID, err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	// The list is always about the logged-in user.
	p.patientParam = ""
	params := &uitemplates.RecipientsParams{Nav: p.nav()}
	for _, rcp := range recipients {
		params.Recipients = append(params.Recipients, uitemplates.RecipientRow{
			DisplayName:   displayName(rcp),
			Email:         rcp.Email,
			TodayLink:     TodayLink(rcp.ID, ""),
			WeekLink:      WeekLink(rcp.ID, ""),
			MedicinesLink: MedicinesLink(rcp.ID, ""),
		})
	}

	content, err := uitemplates.RecipientsPage(params)
	writePage(w, content, err)
}
