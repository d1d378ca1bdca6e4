// Package reportstore archives per-user daily dose summaries in GCS.
package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"medreminder/schedule"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const summaryKeyPrefix = "summaries/daily/"

const tracerName = "medreminder/reportstore"

// SummaryItem is one scheduled dose of the archived day.
type SummaryItem struct {
	MedicineID    string     `json:"medicineId"`
	MedicineName  string     `json:"medicineName"`
	ScheduledTime string     `json:"scheduledTime"`
	Status        string     `json:"status"`
	TakenAt       *time.Time `json:"takenAt,omitempty"`
}

// DailySummary is the archived outcome of one user's day.
type DailySummary struct {
	UserID string `json:"userId"`

	// Day is the "2006-01-02" calendar day in the user's zone.
	Day string `json:"day"`

	Total     int `json:"total"`
	Taken     int `json:"taken"`
	Missed    int `json:"missed"`
	Adherence int `json:"adherence"`

	Items []SummaryItem `json:"items"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// BuildDailySummary summarizes a finished day's schedule.  Adherence is the
// rounded share of taken doses, 100 for a day with nothing scheduled.
func BuildDailySummary(userID string, day time.Time, items []schedule.ScheduleItem, now time.Time) *DailySummary {
	counts := schedule.CountSchedule(items)

	summary := &DailySummary{
		UserID:      userID,
		Day:         schedule.DayKey(day, now.Location()),
		Total:       counts.Total,
		Taken:       counts.Taken,
		Missed:      counts.Missed,
		Adherence:   100,
		GeneratedAt: now,
	}
	if counts.Total > 0 {
		summary.Adherence = (counts.Taken*200 + counts.Total) / (counts.Total * 2)
	}

	for _, item := range items {
		summary.Items = append(summary.Items, SummaryItem{
			MedicineID:    item.Medicine.ID,
			MedicineName:  item.Medicine.Name,
			ScheduledTime: item.ScheduledTime,
			Status:        string(item.Status),
			TakenAt:       item.TakenAt,
		})
	}

	return summary
}

// ObjectName is the GCS object holding a user's summary for a day.
func ObjectName(userID, day string) string {
	return path.Join(summaryKeyPrefix, userID, day+".json")
}

func dayFromObjectName(userID, name string) (string, bool) {
	prefix := path.Join(summaryKeyPrefix, userID) + "/"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"), true
}

// Store fronts the daily summary archive in a GCS bucket.
type Store struct {
	gcs    *storage.Client
	bucket string
}

func New(gcs *storage.Client, bucket string) *Store {
	return &Store{
		gcs:    gcs,
		bucket: bucket,
	}
}

// Create writes a summary unless one already exists for the same user and
// day.  It returns false if the summary was already archived.
func (s *Store) Create(ctx context.Context, summary *DailySummary) (bool, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Store.Create")
	defer span.End()

	span.SetAttributes(attribute.String("user", summary.UserID), attribute.String("day", summary.Day))

	data, err := json.Marshal(summary)
	if err != nil {
		return false, fmt.Errorf("while marshaling daily summary: %w", err)
	}

	obj := s.gcs.Bucket(s.bucket).Object(ObjectName(summary.UserID, summary.Day))

	// Create condition: object does not currently exist.
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/json"

	// Summaries are small; a single request is enough.
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		err := fmt.Errorf("while writing daily summary to object writer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			span.SetStatus(codes.Ok, "")
			return false, nil
		}

		err := fmt.Errorf("while closing object writer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return true, nil
}

// Get reads a user's summary for a day.
//
// Returns the summary, a "found" indicator, and an error.
func (s *Store) Get(ctx context.Context, userID, day string) (*DailySummary, bool, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Store.Get")
	defer span.End()

	span.SetAttributes(attribute.String("user", userID), attribute.String("day", day))

	r, err := s.gcs.Bucket(s.bucket).Object(ObjectName(userID, day)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			span.SetStatus(codes.Ok, "")
			return nil, false, nil
		}

		err := fmt.Errorf("while opening reader for object: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	defer r.Close()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		err := fmt.Errorf("while reading from object: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	summary := &DailySummary{}
	if err := json.Unmarshal(data, summary); err != nil {
		err := fmt.Errorf("while unmarshaling daily summary: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	if summary.UserID != userID || summary.Day != day {
		err := fmt.Errorf("key mismatch in daily summary %s", ObjectName(userID, day))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	span.SetStatus(codes.Ok, "")
	return summary, true, nil
}

// ListDays returns the archived days of a user, oldest first.
func (s *Store) ListDays(ctx context.Context, userID string) ([]string, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Store.ListDays")
	defer span.End()

	var days []string

	it := s.gcs.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: path.Join(summaryKeyPrefix, userID) + "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			err := fmt.Errorf("while listing daily summaries: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if day, ok := dayFromObjectName(userID, attrs.Name); ok {
			days = append(days, day)
		}
	}

	sort.Strings(days)

	span.SetStatus(codes.Ok, "")
	return days, nil
}
