// Package notifylog remembers which reminders have already gone out, so that
// each one is sent at most once per dose, day and status.
package notifylog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "reminder/"

const tracerName = "medreminder/notifylog"

// Key identifies one reminder.
type Key struct {
	UserID string
	DoseID string

	// Day is the "2006-01-02" calendar day of the dose.
	Day string

	// Status is the dose status the reminder announced.
	Status string
}

func (k Key) bytes() []byte {
	return []byte(keyPrefix + strings.Join([]string{k.UserID, k.Day, k.DoseID, k.Status}, "/"))
}

// Log is a badger-backed record of sent reminders.  Entries expire after the
// retention period.
type Log struct {
	db        *badger.DB
	retention time.Duration
}

type LogOpt func(*Log)

// WithRetention sets how long a sent reminder is remembered.
func WithRetention(d time.Duration) LogOpt {
	return func(l *Log) {
		l.retention = d
	}
}

// Open opens or creates the log in dir.  If clear is set, any existing
// contents are removed first.
func Open(dir string, clear bool, opts ...LogOpt) (*Log, error) {
	if clear {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("while clearing notify log dir %q: %w", dir, err)
		}
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(glogLogger{}))
	if err != nil {
		return nil, fmt.Errorf("while opening badger kv dir: %w", err)
	}

	l := &Log{
		db:        db,
		retention: 72 * time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Log) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("while closing database: %w", err)
	}
	return nil
}

// WasSent reports whether a reminder for key has been recorded.
func (l *Log) WasSent(ctx context.Context, key Key) (bool, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	_, span = tracer.Start(ctx, "Log.WasSent")
	defer span.End()

	found := false
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key.bytes())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		err := fmt.Errorf("while reading reminder %s: %w", key.bytes(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return found, nil
}

// MarkSent records a reminder for key at the given time.  It returns false if
// the reminder had already been recorded, in which case nothing changes.
func (l *Log) MarkSent(ctx context.Context, key Key, at time.Time) (bool, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	_, span = tracer.Start(ctx, "Log.MarkSent")
	defer span.End()

	span.SetAttributes(attribute.String("key", string(key.bytes())))

	var marked bool
CommitRetry:
	err := l.db.Update(func(txn *badger.Txn) error {
		marked = false
		_, err := txn.Get(key.bytes())
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		entry := badger.NewEntry(key.bytes(), []byte(at.UTC().Format(time.RFC3339))).WithTTL(l.retention)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		marked = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		goto CommitRetry
	} else if err != nil {
		err := fmt.Errorf("while recording reminder %s: %w", key.bytes(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return marked, nil
}

// SentAt returns when the reminder for key was recorded.
func (l *Log) SentAt(ctx context.Context, key Key) (time.Time, bool, error) {
	var sentAt time.Time
	var found bool
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.bytes())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		sentAt, err = time.Parse(time.RFC3339, string(v))
		if err != nil {
			return fmt.Errorf("while parsing sent time: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("while reading reminder %s: %w", key.bytes(), err)
	}
	return sentAt, found, nil
}

// CountForDay counts the reminders recorded for a user on a day.
func (l *Log) CountForDay(ctx context.Context, userID, day string) (int, error) {
	prefix := []byte(keyPrefix + userID + "/" + day + "/")

	count := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("while counting reminders for %s on %s: %w", userID, day, err)
	}
	return count, nil
}

// CollectGarbage reclaims value log space left behind by expired entries.
func (l *Log) CollectGarbage() error {
	for {
		err := l.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("while collecting value log garbage: %w", err)
		}
	}
}

// glogLogger routes badger's internal logging to glog.
type glogLogger struct{}

func (glogLogger) Errorf(format string, args ...interface{}) {
	glog.Errorf("badger: "+format, args...)
}

func (glogLogger) Warningf(format string, args ...interface{}) {
	glog.Warningf("badger: "+format, args...)
}

func (glogLogger) Infof(format string, args ...interface{}) {
	glog.V(1).Infof("badger: "+format, args...)
}

func (glogLogger) Debugf(format string, args ...interface{}) {
	glog.V(2).Infof("badger: "+format, args...)
}
