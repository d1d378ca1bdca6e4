package dblayer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"medreminder/dbtypes"
	"medreminder/schedule"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
)

// ListMedicines returns the user's medicines in creation order, whatever
// their status.
func (db *DB) ListMedicines(ctx context.Context, userID string) ([]dbtypes.Medicine, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.ListMedicines")
	defer span.End()

	span.SetAttributes(attribute.String("user", userID))

	var meds []dbtypes.Medicine

	iter := db.firestoreClient.Collection(medicinesCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			err := fmt.Errorf("while iterating medicines of user %s: %w", userID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		med := dbtypes.Medicine{}
		if err := snap.DataTo(&med); err != nil {
			err := fmt.Errorf("while unmarshaling medicine %s: %w", snap.Ref.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		meds = append(meds, med)
	}

	sort.SliceStable(meds, func(i, j int) bool {
		if !meds[i].CreatedAt.Equal(meds[j].CreatedAt) {
			return meds[i].CreatedAt.Before(meds[j].CreatedAt)
		}
		return meds[i].ID < meds[j].ID
	})

	span.SetStatus(codes.Ok, "")
	return meds, nil
}

// GetMedicine loads a medicine by ID.
func (db *DB) GetMedicine(ctx context.Context, id string) (*dbtypes.Medicine, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.GetMedicine")
	defer span.End()

	span.SetAttributes(attribute.String("medicine", id))

	snap, err := db.firestoreClient.Collection(medicinesCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		span.SetStatus(codes.Ok, "")
		return nil, ErrMedicineNotFound
	}
	if err != nil {
		err := fmt.Errorf("while retrieving medicine %s: %w", id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	med := &dbtypes.Medicine{}
	if err := snap.DataTo(med); err != nil {
		err := fmt.Errorf("while unmarshaling medicine %s: %w", id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return med, nil
}

// NormalizeMedicine validates a medicine about to be stored and rewrites its
// times to 24-hour form.
func NormalizeMedicine(med *dbtypes.Medicine) error {
	if med.Name == "" {
		return ErrMedicineNameMustNotBeEmpty
	}

	times := make([]string, 0, len(med.Times))
	for _, t := range med.Times {
		if !schedule.IsValidTime(t) {
			return fmt.Errorf("%w: %q", ErrInvalidDoseTime, t)
		}
		times = append(times, schedule.ParseTimeTo24Hour(t))
	}
	med.Times = times

	if len(med.DaysOfWeek) > 0 {
		seen := map[dbtypes.Weekday]bool{}
		days := make([]dbtypes.Weekday, 0, len(med.DaysOfWeek))
		for _, d := range med.DaysOfWeek {
			if d < dbtypes.Monday || d > dbtypes.Sunday {
				return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
			}
			if !seen[d] {
				seen[d] = true
				days = append(days, d)
			}
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		med.DaysOfWeek = days
	}

	if med.Status == "" {
		med.Status = dbtypes.MedicineActive
	}
	if med.Type == "" {
		med.Type = dbtypes.MedicineOther
	}
	return nil
}

// CreateMedicine stores a new medicine, filling in its ID and creation time.
func (db *DB) CreateMedicine(ctx context.Context, med *dbtypes.Medicine) error {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.CreateMedicine")
	defer span.End()

	if err := NormalizeMedicine(med); err != nil {
		return err
	}

	ref := db.firestoreClient.Collection(medicinesCollection).NewDoc()
	med.ID = ref.ID
	med.CreatedAt = time.Now()
	if _, err := ref.Create(ctx, med); err != nil {
		err := fmt.Errorf("while creating medicine: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateMedicineStatus moves a medicine between active, paused, completed and
// discontinued.
func (db *DB) UpdateMedicineStatus(ctx context.Context, id string, newStatus dbtypes.MedicineStatus) error {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.UpdateMedicineStatus")
	defer span.End()

	span.SetAttributes(attribute.String("medicine", id), attribute.String("status", string(newStatus)))

	switch newStatus {
	case dbtypes.MedicineActive, dbtypes.MedicinePaused, dbtypes.MedicineCompleted, dbtypes.MedicineDiscontinued:
	default:
		return ErrInvalidMedicineStatus
	}

	ref := db.firestoreClient.Collection(medicinesCollection).Doc(id)
	snap, err := ref.Get(ctx)
	if isNotFound(err) {
		return ErrMedicineNotFound
	}
	if err != nil {
		err := fmt.Errorf("while retrieving medicine %s: %w", id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	_, err = ref.Update(ctx, []firestore.Update{{Path: "status", Value: newStatus}}, firestore.LastUpdateTime(snap.UpdateTime))
	if err != nil {
		err := fmt.Errorf("while updating medicine %s: %w", id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
