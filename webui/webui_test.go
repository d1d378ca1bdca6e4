package webui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"medreminder/dblayer"
	"medreminder/dbtypes"

	"github.com/google/go-cmp/cmp"
)

var kst = time.FixedZone("KST", 9*60*60)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 13, hour, minute, 0, 0, kst)
}

type statusUpdate struct {
	RecordID string
	Status   dbtypes.RecordStatus
}

type fakeStore struct {
	mu sync.Mutex

	sessions  map[string]*dbtypes.User
	passwords map[string]string
	users     map[string]*dbtypes.User
	medicines map[string]*dbtypes.Medicine
	records   []dbtypes.DoseRecord
	guardians map[string][]string

	// hideWrites keeps written records out of later listings, as a lagging
	// replica would.
	hideWrites bool
	failWrites bool

	updates []statusUpdate
	created []string
}

func newFakeStore() *fakeStore {
	patient := &dbtypes.User{ID: "user-1", Email: "patient@example.com", DisplayName: "Kim", Language: "en", TimeZone: "Asia/Seoul"}
	guardian := &dbtypes.User{ID: "guardian-1", Email: "guardian@example.com", DisplayName: "Lee", Language: "en"}
	stranger := &dbtypes.User{ID: "stranger-1", Email: "stranger@example.com", Language: "en"}

	takenAt := at(8, 2)
	return &fakeStore{
		sessions: map[string]*dbtypes.User{
			"patient-cookie":  patient,
			"guardian-cookie": guardian,
			"stranger-cookie": stranger,
		},
		passwords: map[string]string{"patient@example.com": "hunter2"},
		users: map[string]*dbtypes.User{
			patient.ID:  patient,
			guardian.ID: guardian,
			stranger.ID: stranger,
		},
		medicines: map[string]*dbtypes.Medicine{
			"a": {ID: "a", UserID: "user-1", Name: "Metformin", Dosage: "500mg", Times: []string{"08:00", "20:00"}, Status: dbtypes.MedicineActive},
			"b": {ID: "b", UserID: "user-1", Name: "Aspirin", Times: []string{"08:10"}, Status: dbtypes.MedicineActive},
			"c": {ID: "c", UserID: "user-1", Name: "Vitamin D", Times: []string{"12:00"}, Status: dbtypes.MedicinePaused},
		},
		records: []dbtypes.DoseRecord{{
			ID:            "a_20240313_0800",
			UserID:        "user-1",
			MedicineID:    "a",
			ScheduledDate: at(0, 0),
			ScheduledTime: "08:00",
			Status:        dbtypes.RecordTaken,
			TakenAt:       &takenAt,
		}},
		guardians: map[string][]string{"user-1": {"guardian-1"}},
	}
}

func (s *fakeStore) UserFromSessionCookie(ctx context.Context, cookie string) (*dbtypes.User, error) {
	return s.sessions[cookie], nil
}

func (s *fakeStore) SessionFromPassword(ctx context.Context, email, password string) (*dbtypes.Session, error) {
	if email == "" {
		return nil, dblayer.ErrEmailMustNotBeEmpty
	}
	if password == "" {
		return nil, dblayer.ErrPasswordMustNotBeEmpty
	}
	if s.passwords[email] != password {
		return nil, dblayer.ErrUnknownUserOrWrongPassword
	}
	return &dbtypes.Session{Cookie: "new-cookie", Expires: at(23, 0)}, nil
}

func (s *fakeStore) SessionFromGoogleFederation(ctx context.Context, idToken string) (*dbtypes.Session, error) {
	return nil, dblayer.ErrUnknownUserOrWrongPassword
}

func (s *fakeStore) DeleteSession(ctx context.Context, cookie string) error {
	delete(s.sessions, cookie)
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (*dbtypes.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, dblayer.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) ListMedicines(ctx context.Context, userID string) ([]dbtypes.Medicine, error) {
	var out []dbtypes.Medicine
	for _, id := range []string{"a", "b", "c", "new"} {
		if m, ok := s.medicines[id]; ok && m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) GetMedicine(ctx context.Context, id string) (*dbtypes.Medicine, error) {
	m, ok := s.medicines[id]
	if !ok {
		return nil, dblayer.ErrMedicineNotFound
	}
	med := *m
	return &med, nil
}

func (s *fakeStore) CreateMedicine(ctx context.Context, med *dbtypes.Medicine) error {
	if err := dblayer.NormalizeMedicine(med); err != nil {
		return err
	}
	med.ID = "new"
	s.medicines[med.ID] = med
	return nil
}

func (s *fakeStore) UpdateMedicineStatus(ctx context.Context, id string, newStatus dbtypes.MedicineStatus) error {
	switch newStatus {
	case dbtypes.MedicineActive, dbtypes.MedicinePaused, dbtypes.MedicineCompleted, dbtypes.MedicineDiscontinued:
	default:
		return dblayer.ErrInvalidMedicineStatus
	}
	s.medicines[id].Status = newStatus
	return nil
}

func (s *fakeStore) ListDoseRecords(ctx context.Context, userID string, start, end time.Time) ([]dbtypes.DoseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dbtypes.DoseRecord
	for _, r := range s.records {
		if r.UserID == userID && !r.ScheduledDate.Before(start) && r.ScheduledDate.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) setStatus(userID, medicineID, scheduledTime string, status dbtypes.RecordStatus, now time.Time) (*dbtypes.DoseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return nil, errors.New("firestore unavailable")
	}
	record := dblayer.NewDoseRecord(userID, medicineID, scheduledTime, now, now)
	if err := dblayer.ApplyRecordStatus(record, status, now); err != nil {
		return nil, err
	}
	if !s.hideWrites {
		s.records = append(s.records, *record)
	}
	return record, nil
}

func (s *fakeStore) GetOrCreateTodayRecord(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return nil, errors.New("firestore unavailable")
	}
	record := dblayer.NewDoseRecord(userID, medicineID, scheduledTime, now, now)
	for i := range s.records {
		if s.records[i].ID == record.ID {
			found := s.records[i]
			return &found, nil
		}
	}
	s.created = append(s.created, record.ID)
	if !s.hideWrites {
		s.records = append(s.records, *record)
	}
	return record, nil
}

func (s *fakeStore) MarkDoseTaken(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error) {
	return s.setStatus(userID, medicineID, scheduledTime, dbtypes.RecordTaken, now)
}

func (s *fakeStore) MarkDoseSkipped(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error) {
	return s.setStatus(userID, medicineID, scheduledTime, dbtypes.RecordSkipped, now)
}

func (s *fakeStore) UpdateDoseRecordStatus(ctx context.Context, recordID string, newStatus dbtypes.RecordStatus, now time.Time) (*dbtypes.DoseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{recordID, newStatus})
	for i := range s.records {
		if s.records[i].ID == recordID {
			if err := dblayer.ApplyRecordStatus(&s.records[i], newStatus, now); err != nil {
				return nil, err
			}
			return &s.records[i], nil
		}
	}
	return nil, dblayer.ErrDoseRecordNotFound
}

func (s *fakeStore) ListCareRecipients(ctx context.Context, guardianID string) ([]*dbtypes.User, error) {
	var out []*dbtypes.User
	for recipient, guardians := range s.guardians {
		for _, g := range guardians {
			if g == guardianID {
				out = append(out, s.users[recipient])
			}
		}
	}
	return out, nil
}

func (s *fakeStore) CheckUserAllowedToManageRecipient(ctx context.Context, user *dbtypes.User, recipientID string) error {
	if user.ID == recipientID {
		return nil
	}
	for _, g := range s.guardians[recipientID] {
		if g == user.ID {
			return nil
		}
	}
	return dblayer.ErrPermissionDenied
}

type testServer struct {
	db  *fakeStore
	ui  *WebUI
	mux *http.ServeMux
}

func newTestServer(now time.Time) *testServer {
	db := newFakeStore()
	ui := New(db, WithDefaultLocation(kst), WithClock(func() time.Time { return now }))
	mux := http.NewServeMux()
	ui.Register(mux)
	return &testServer{db: db, ui: ui, mux: mux}
}

func (s *testServer) get(t *testing.T, target, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) post(t *testing.T, target, cookie string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func wantBody(t *testing.T, rec *httptest.ResponseRecorder, fragments ...string) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body:\n%s", rec.Code, rec.Body.String())
	}
	for _, f := range fragments {
		if !strings.Contains(rec.Body.String(), f) {
			t.Errorf("Body is missing %q:\n%s", f, rec.Body.String())
		}
	}
}

func wantRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("Status = %d, want 302; body:\n%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func TestLoggedOutUserIsSentToLogIn(t *testing.T) {
	s := newTestServer(at(8, 20))
	for _, target := range []string{"/", "/week", "/medicines", "/care-recipients"} {
		wantRedirect(t, s.get(t, target, ""), "/log-in")
		wantRedirect(t, s.get(t, target, "expired-cookie"), "/log-in")
	}
}

func TestTodayPage(t *testing.T) {
	s := newTestServer(at(8, 20))
	rec := s.get(t, "/", "patient-cookie")

	wantBody(t, rec,
		"2024-03-13",
		"Metformin",
		"Aspirin",
		"8:10 AM",
		"<strong>1</strong> / 3 taken",
		"<strong>0</strong> overdue",
		"<strong>1</strong> due now",
		"<strong>1</strong> upcoming",
		"dose-taken",
		"dose-pending",
	)
	if strings.Contains(rec.Body.String(), "Vitamin D") {
		t.Errorf("Paused medicine shown on today page")
	}
}

func TestTodayPageUnknownPath(t *testing.T) {
	s := newTestServer(at(8, 20))
	if rec := s.get(t, "/nope", "patient-cookie"); rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func TestTakeDoseShowsBeforeRecordArrives(t *testing.T) {
	s := newTestServer(at(8, 20))
	s.db.hideWrites = true

	rec := s.post(t, "/dose-action", "patient-cookie", url.Values{
		"medicine": {"b"},
		"time":     {"8:10 AM"},
		"action":   {"take"},
	})
	wantRedirect(t, rec, "/")

	wantBody(t, s.get(t, "/", "patient-cookie"), "<strong>2</strong> / 3 taken", "<strong>0</strong> due now")
}

func TestFailedTakeIsWithdrawn(t *testing.T) {
	s := newTestServer(at(8, 20))
	s.db.failWrites = true

	rec := s.post(t, "/dose-action", "patient-cookie", url.Values{
		"medicine": {"b"},
		"time":     {"08:10"},
		"action":   {"take"},
	})
	wantRedirect(t, rec, TodayLink("", "Could not save the change; please try again."))

	wantBody(t, s.get(t, "/", "patient-cookie"), "<strong>1</strong> / 3 taken", "<strong>1</strong> due now")
}

func TestUndoRevertsRecordToPending(t *testing.T) {
	s := newTestServer(at(8, 20))

	rec := s.post(t, "/dose-action", "patient-cookie", url.Values{
		"medicine": {"a"},
		"time":     {"08:00"},
		"action":   {"undo"},
	})
	wantRedirect(t, rec, "/")

	want := []statusUpdate{{"a_20240313_0800", dbtypes.RecordPending}}
	if diff := cmp.Diff(s.db.updates, want); diff != "" {
		t.Errorf("Bad record updates; diff (-got +want)\n%s", diff)
	}

	wantBody(t, s.get(t, "/", "patient-cookie"), "<strong>0</strong> / 3 taken", "<strong>1</strong> overdue", "<strong>1</strong> due now")
}

func TestUndoWithoutRecordCreatesPendingRecord(t *testing.T) {
	s := newTestServer(at(8, 20))

	rec := s.post(t, "/dose-action", "patient-cookie", url.Values{
		"medicine": {"b"},
		"time":     {"08:10"},
		"action":   {"undo"},
	})
	wantRedirect(t, rec, "/")

	if diff := cmp.Diff(s.db.created, []string{"b_20240313_0810"}); diff != "" {
		t.Errorf("Bad created records; diff (-got +want)\n%s", diff)
	}
	if len(s.db.updates) != 0 {
		t.Errorf("Undo of a pending dose rewrote records: %+v", s.db.updates)
	}

	wantBody(t, s.get(t, "/", "patient-cookie"), "<strong>1</strong> / 3 taken", "<strong>1</strong> due now")
}

func TestDoseActionRejectsOtherUsersMedicine(t *testing.T) {
	s := newTestServer(at(8, 20))

	rec := s.post(t, "/dose-action", "stranger-cookie", url.Values{
		"medicine": {"a"},
		"time":     {"08:00"},
		"action":   {"take"},
	})
	wantRedirect(t, rec, TodayLink("", "No such medicine"))
	if len(s.db.records) != 1 {
		t.Errorf("A stranger's action was persisted")
	}
}

func TestGuardianViewsRecipient(t *testing.T) {
	s := newTestServer(at(8, 20))

	wantBody(t, s.get(t, TodayLink("user-1", ""), "guardian-cookie"), "Kim: 2024-03-13", "Metformin")

	rec := s.post(t, "/dose-action", "guardian-cookie", url.Values{
		"user":     {"user-1"},
		"medicine": {"b"},
		"time":     {"08:10"},
		"action":   {"skip"},
	})
	wantRedirect(t, rec, TodayLink("user-1", ""))

	got := s.db.records[len(s.db.records)-1]
	if got.UserID != "user-1" || got.Status != dbtypes.RecordSkipped {
		t.Errorf("Guardian's skip stored as %+v", got)
	}
}

func TestStrangerCannotViewRecipient(t *testing.T) {
	s := newTestServer(at(8, 20))
	for _, target := range []string{TodayLink("user-1", ""), WeekLink("user-1", ""), MedicinesLink("user-1", "")} {
		if rec := s.get(t, target, "stranger-cookie"); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s as stranger: status %d, want 404", target, rec.Code)
		}
	}
}

func TestWeekPage(t *testing.T) {
	s := newTestServer(at(8, 20))

	rec := s.get(t, WeekLink("", "2024-03-14"), "patient-cookie")
	wantBody(t, rec,
		"Mon", "Sun",
		"03-11", "03-17",
		WeekLink("", "2024-03-04"),
		WeekLink("", "2024-03-18"),
		"schedule-taken",
		"schedule-upcoming",
	)
}

func TestMedicinesPage(t *testing.T) {
	s := newTestServer(at(8, 20))

	wantBody(t, s.get(t, "/medicines", "patient-cookie"),
		"Metformin",
		"8:00 AM, 8:00 PM",
		"Vitamin D",
		"Resume",
		"Pause",
		"<strong>100%</strong>",
	)
}

func TestCreateMedicine(t *testing.T) {
	s := newTestServer(at(8, 20))

	wantBody(t, s.get(t, "/create-medicine", "patient-cookie"), "inhaler", `name="days"`, `value="6"`, "Sun")

	rec := s.post(t, "/create-medicine", "patient-cookie", url.Values{"name": {""}, "times": {"08:00"}})
	wantRedirect(t, rec, CreateMedicineLink("", dblayer.ErrMedicineNameMustNotBeEmpty.Error()))

	rec = s.post(t, "/create-medicine", "patient-cookie", url.Values{"name": {"Insulin"}, "times": {"7:30 AM, 19:30"}, "type": {"injection"}})
	wantRedirect(t, rec, "/medicines")

	got := s.db.medicines["new"]
	if got == nil {
		t.Fatalf("Medicine was not created")
	}
	if diff := cmp.Diff(got.Times, []string{"07:30", "19:30"}); diff != "" {
		t.Errorf("Bad stored times; diff (-got +want)\n%s", diff)
	}
	if got.UserID != "user-1" {
		t.Errorf("Medicine stored for %q, want user-1", got.UserID)
	}
}

func TestCreateMedicineWithDays(t *testing.T) {
	s := newTestServer(at(8, 20))

	rec := s.post(t, "/create-medicine", "patient-cookie", url.Values{"name": {"Methotrexate"}, "times": {"09:00"}, "days": {"6", "0", "2"}})
	wantRedirect(t, rec, "/medicines")

	got := s.db.medicines["new"]
	if got == nil {
		t.Fatalf("Medicine was not created")
	}
	want := []dbtypes.Weekday{dbtypes.Monday, dbtypes.Wednesday, dbtypes.Sunday}
	if diff := cmp.Diff(got.DaysOfWeek, want); diff != "" {
		t.Errorf("Bad stored days; diff (-got +want)\n%s", diff)
	}

	wantBody(t, s.get(t, "/medicines", "patient-cookie"), "Methotrexate", "Mon, Wed, Sun")

	for _, bad := range []string{"7", "monday"} {
		rec = s.post(t, "/create-medicine", "patient-cookie", url.Values{"name": {"x"}, "times": {"09:00"}, "days": {bad}})
		if rec.Code != http.StatusFound || !strings.Contains(rec.Header().Get("Location"), "user-error=") {
			t.Errorf("Day %q: got status %d to %q, want a redirect carrying a user error", bad, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestMedicineStatus(t *testing.T) {
	s := newTestServer(at(8, 20))

	rec := s.post(t, "/medicine-status", "patient-cookie", url.Values{"id": {"c"}, "status": {"active"}})
	wantRedirect(t, rec, "/medicines")
	if s.db.medicines["c"].Status != dbtypes.MedicineActive {
		t.Errorf("Medicine c is %q, want active", s.db.medicines["c"].Status)
	}

	rec = s.post(t, "/medicine-status", "patient-cookie", url.Values{"id": {"c"}, "status": {"forgotten"}})
	wantRedirect(t, rec, MedicinesLink("", dblayer.ErrInvalidMedicineStatus.Error()))
}

func TestCareRecipientsPage(t *testing.T) {
	s := newTestServer(at(8, 20))
	wantBody(t, s.get(t, "/care-recipients", "guardian-cookie"), "Kim", "patient@example.com", TodayLink("user-1", ""))
}

func TestLogIn(t *testing.T) {
	s := newTestServer(at(8, 20))

	wantBody(t, s.get(t, "/log-in", ""), "Log In")
	wantRedirect(t, s.get(t, "/log-in", "patient-cookie"), "/")

	rec := s.post(t, "/log-in", "", url.Values{"email": {"patient@example.com"}, "password": {"wrong"}})
	wantBody(t, rec, dblayer.ErrUnknownUserOrWrongPassword.Error())

	rec = s.post(t, "/log-in", "", url.Values{"email": {"patient@example.com"}, "password": {"hunter2"}})
	wantRedirect(t, rec, "/")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName || cookies[0].Value != "new-cookie" {
		t.Errorf("Bad session cookies: %v", cookies)
	}
}

func TestLogInWithUnknownGoogleAccount(t *testing.T) {
	s := newTestServer(at(8, 20))
	rec := s.post(t, "/log-in/google", "", url.Values{"credential": {"token"}})
	wantRedirect(t, rec, pageLink("/log-in", "", "No account is registered for that Google account", nil))
}

func TestLogOut(t *testing.T) {
	s := newTestServer(at(8, 20))

	wantBody(t, s.get(t, "/log-out", "patient-cookie"), "Log Out")

	wantRedirect(t, s.post(t, "/log-out", "patient-cookie", url.Values{}), "/log-in")
	if _, ok := s.db.sessions["patient-cookie"]; ok {
		t.Errorf("Session survived log out")
	}
	wantRedirect(t, s.get(t, "/", "patient-cookie"), "/log-in")
}
