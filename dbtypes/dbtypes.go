package dbtypes

import (
	"time"

	"cloud.google.com/go/firestore"
)

// User represents a person registered and interacting with the application.
//
// A user takes their own medicines, and may additionally act as a guardian for
// other users through a CareRelationship.
type User struct {
	ID           string `firestore:"id"`
	Email        string `firestore:"email"`
	DisplayName  string `firestore:"displayName"`
	PasswordHash string `firestore:"passwordHash"`

	// Language is the user's display language tag, "ko" or "en".
	Language string `firestore:"language"`

	// TimeZone is an IANA zone name.  Calendar days are evaluated in it.
	TimeZone string `firestore:"timeZone"`

	// NotifyEmail controls whether the poller sends dose reminders by email.
	NotifyEmail bool `firestore:"notifyEmail"`
}

// Session represents a log-in session for a User.
type Session struct {
	Cookie  string                 `firestore:"cookie"`
	User    *firestore.DocumentRef `firestore:"user"`
	Expires time.Time              `firestore:"expires"`
}

type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipAccepted RelationshipStatus = "accepted"
)

// CareRelationship links a guardian to a care recipient whose medicines they
// may view and act on.
type CareRelationship struct {
	ID          string             `firestore:"id"`
	GuardianID  string             `firestore:"guardianId"`
	RecipientID string             `firestore:"recipientId"`
	Status      RelationshipStatus `firestore:"status"`
	CreatedAt   time.Time          `firestore:"createdAt"`
}

type MedicineType string

const (
	MedicineTablet    MedicineType = "tablet"
	MedicineCapsule   MedicineType = "capsule"
	MedicineLiquid    MedicineType = "liquid"
	MedicineInjection MedicineType = "injection"
	MedicineCream     MedicineType = "cream"
	MedicineInhaler   MedicineType = "inhaler"
	MedicineOther     MedicineType = "other"
)

type MedicineStatus string

const (
	MedicineActive       MedicineStatus = "active"
	MedicinePaused       MedicineStatus = "paused"
	MedicineCompleted    MedicineStatus = "completed"
	MedicineDiscontinued MedicineStatus = "discontinued"
)

// Weekday is a day of the week, counted from Monday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

type Medicine struct {
	ID     string `firestore:"id"`
	UserID string `firestore:"userId"`

	Name   string       `firestore:"name"`
	Dosage string       `firestore:"dosage"`
	Type   MedicineType `firestore:"type"`

	// Times holds the daily clock times, either "HH:MM" or "h:mm AM".  An
	// empty list marks an as-needed medicine.
	Times []string `firestore:"times"`

	Status MedicineStatus `firestore:"status"`
	Color  string         `firestore:"color"`

	DaysOfWeek []Weekday `firestore:"daysOfWeek"`

	CreatedAt time.Time `firestore:"createdAt"`
}

type RecordStatus string

const (
	RecordPending RecordStatus = "pending"
	RecordTaken   RecordStatus = "taken"
	RecordSkipped RecordStatus = "skipped"
	RecordMissed  RecordStatus = "missed"
)

// DoseRecord is the persisted outcome of one scheduled dose on one day.
//
// (MedicineID, ScheduledDate, ScheduledTime) is the natural key.
type DoseRecord struct {
	ID         string `firestore:"id"`
	UserID     string `firestore:"userId"`
	MedicineID string `firestore:"medicineId"`

	// ScheduledDate is local midnight of the day the dose belongs to.
	ScheduledDate time.Time `firestore:"scheduledDate"`

	// ScheduledTime is the 24-hour "HH:MM" clock time of the dose.
	ScheduledTime string `firestore:"scheduledTime"`

	Status RecordStatus `firestore:"status"`

	// TakenAt is only set when Status is RecordTaken.
	TakenAt *time.Time `firestore:"takenAt"`

	UpdatedAt time.Time `firestore:"updatedAt"`
}
