// Package dblayer packages up most actual firestore accesses.
package dblayer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"medreminder/dbtypes"

	"cloud.google.com/go/firestore"
	"github.com/golang/glog"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection         = "Users"
	sessionsCollection      = "Sessions"
	medicinesCollection     = "Medicines"
	doseRecordsCollection   = "DoseRecords"
	relationshipsCollection = "CareRelationships"
)

const sessionLifetime = 18 * time.Hour

const tracerName = "medreminder/dblayer"

type DB struct {
	firestoreClient     *firestore.Client
	googleOAuthClientID string
}

func New(firestoreClient *firestore.Client, googleOAuthClientID string) *DB {
	return &DB{
		firestoreClient:     firestoreClient,
		googleOAuthClientID: googleOAuthClientID,
	}
}

var (
	ErrEmailMustNotBeEmpty        = errors.New("email must not be empty")
	ErrPasswordMustNotBeEmpty     = errors.New("password must not be empty")
	ErrUnknownUserOrWrongPassword = errors.New("unknown user or wrong password")
	ErrUserNotFound               = errors.New("user not found")
	ErrPermissionDenied           = errors.New("permission denied")
	ErrMedicineNotFound           = errors.New("medicine not found")
	ErrMedicineNameMustNotBeEmpty = errors.New("medicine name must not be empty")
	ErrInvalidDoseTime            = errors.New("invalid dose time")
	ErrInvalidWeekday             = errors.New("invalid day of week")
	ErrInvalidMedicineStatus      = errors.New("invalid medicine status")
	ErrDoseRecordNotFound         = errors.New("dose record not found")
	ErrInvalidRecordStatus        = errors.New("invalid dose record status")
)

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// firstDocument returns the first document of a query, or nil if the query
// matched nothing.
func firstDocument(iter *firestore.DocumentIterator) (*firestore.DocumentSnapshot, error) {
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (db *DB) userSnapshotByEmail(ctx context.Context, email interface{}) (*firestore.DocumentSnapshot, error) {
	snap, err := firstDocument(db.firestoreClient.Collection(usersCollection).Where("email", "==", email).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("while looking up user with email %q: %w", email, err)
	}
	return snap, nil
}

// newSession stores a fresh session for the user document.
func (db *DB) newSession(ctx context.Context, userRef *firestore.DocumentRef) (*dbtypes.Session, error) {
	sessionCookieBytes := make([]byte, 32)
	if _, err := rand.Read(sessionCookieBytes); err != nil {
		return nil, fmt.Errorf("while generating session cookie: %w", err)
	}

	session := &dbtypes.Session{
		Cookie:  base64.StdEncoding.EncodeToString(sessionCookieBytes),
		User:    userRef,
		Expires: time.Now().Add(sessionLifetime),
	}
	if _, _, err := db.firestoreClient.Collection(sessionsCollection).Add(ctx, session); err != nil {
		return nil, fmt.Errorf("while storing session cookie: %w", err)
	}

	return session, nil
}

// SessionFromPassword runs the password-based login process for a given user,
// returning a session or an error.
func (db *DB) SessionFromPassword(ctx context.Context, email, password string) (*dbtypes.Session, error) {
	if email == "" {
		return nil, ErrEmailMustNotBeEmpty
	}

	if password == "" {
		return nil, ErrPasswordMustNotBeEmpty
	}

	userSnapshot, err := db.userSnapshotByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if userSnapshot == nil {
		return nil, ErrUnknownUserOrWrongPassword
	}

	user := &dbtypes.User{}
	if err := userSnapshot.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user %q: %w", email, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnknownUserOrWrongPassword
	}

	return db.newSession(ctx, userSnapshot.Ref)
}

// SessionFromGoogleFederation signs in a user based on a Google identity token
// returned from the "Sign in with Google" process.
func (db *DB) SessionFromGoogleFederation(ctx context.Context, idToken string) (*dbtypes.Session, error) {
	payload, err := idtoken.Validate(ctx, idToken, db.googleOAuthClientID)
	if err != nil {
		return nil, fmt.Errorf("while validating ID token: %w", err)
	}

	userSnapshot, err := db.userSnapshotByEmail(ctx, payload.Claims["email"])
	if err != nil {
		return nil, err
	}

	// Accounts are provisioned out of band; federation only signs in users
	// that already exist.
	if userSnapshot == nil {
		return nil, ErrUnknownUserOrWrongPassword
	}

	return db.newSession(ctx, userSnapshot.Ref)
}

// DeleteSession deletes a session by its cookie.
func (db *DB) DeleteSession(ctx context.Context, cookie string) error {
	sessionIter := db.firestoreClient.Collection(sessionsCollection).Where("cookie", "==", cookie).Documents(ctx)
	defer sessionIter.Stop()
	for {
		sessionSnapshot, err := sessionIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("while looking up session: %w", err)
		}

		_, err = sessionSnapshot.Ref.Delete(ctx, firestore.LastUpdateTime(sessionSnapshot.UpdateTime))
		if err != nil {
			return fmt.Errorf("while deleting session: %w", err)
		}
	}

	return nil
}

// UserFromSessionCookie looks up a session from its cookie, and then returns
// the corresponding user.  A missing or expired session yields a nil user and
// no error.
func (db *DB) UserFromSessionCookie(ctx context.Context, cookie string) (*dbtypes.User, error) {
	sessionSnapshot, err := firstDocument(db.firestoreClient.Collection(sessionsCollection).Where("cookie", "==", cookie).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("while looking up session: %w", err)
	}
	if sessionSnapshot == nil {
		glog.Infof("No logged-in user because there was no session object corresponding to the cookie in the database.")
		return nil, nil
	}

	session := &dbtypes.Session{}
	if err := sessionSnapshot.DataTo(session); err != nil {
		return nil, fmt.Errorf("while unmarshaling session: %w", err)
	}

	if session.Expires.Before(time.Now()) {
		glog.Infof("No logged-in user because the session object in the database was expired.")
		return nil, nil
	}

	userSnapshot, err := session.User.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("while getting user linked from session: %w", err)
	}

	user := &dbtypes.User{}
	if err := userSnapshot.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user: %w", err)
	}

	return user, nil
}

// GetUser loads a user by ID.
func (db *DB) GetUser(ctx context.Context, id string) (*dbtypes.User, error) {
	snap, err := db.firestoreClient.Collection(usersCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while retrieving user %s: %w", id, err)
	}

	user := &dbtypes.User{}
	if err := snap.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user %s: %w", id, err)
	}
	return user, nil
}

// ListUsers returns every registered user.
func (db *DB) ListUsers(ctx context.Context) ([]*dbtypes.User, error) {
	var users []*dbtypes.User

	iter := db.firestoreClient.Collection(usersCollection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating users: %w", err)
		}

		user := &dbtypes.User{}
		if err := snap.DataTo(user); err != nil {
			return nil, fmt.Errorf("while unmarshaling user %s: %w", snap.Ref.ID, err)
		}
		users = append(users, user)
	}

	return users, nil
}
