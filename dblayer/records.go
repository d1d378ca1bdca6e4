package dblayer

import (
	"context"
	"fmt"
	"strings"
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

// DoseRecordID derives the document ID of a dose record from its natural key.
// day is interpreted in its own location.
func DoseRecordID(medicineID string, day time.Time, scheduledTime string) string {
	time24 := schedule.ParseTimeTo24Hour(scheduledTime)
	return fmt.Sprintf("%s_%s_%s", medicineID, day.Format("20060102"), strings.ReplaceAll(time24, ":", ""))
}

// NewDoseRecord builds the pending record for a dose on day, taken as a
// calendar day in now's location.
func NewDoseRecord(userID, medicineID, scheduledTime string, day, now time.Time) *dbtypes.DoseRecord {
	day = schedule.StartOfDay(day, now.Location())
	return &dbtypes.DoseRecord{
		ID:            DoseRecordID(medicineID, day, scheduledTime),
		UserID:        userID,
		MedicineID:    medicineID,
		ScheduledDate: day,
		ScheduledTime: schedule.ParseTimeTo24Hour(scheduledTime),
		Status:        dbtypes.RecordPending,
		UpdatedAt:     now,
	}
}

// ApplyRecordStatus moves a record to a new status.  TakenAt is kept only for
// taken records.
func ApplyRecordStatus(record *dbtypes.DoseRecord, newStatus dbtypes.RecordStatus, now time.Time) error {
	switch newStatus {
	case dbtypes.RecordTaken:
		takenAt := now
		record.TakenAt = &takenAt
	case dbtypes.RecordPending, dbtypes.RecordSkipped, dbtypes.RecordMissed:
		record.TakenAt = nil
	default:
		return ErrInvalidRecordStatus
	}
	record.Status = newStatus
	record.UpdatedAt = now
	return nil
}

// ListDoseRecords returns the user's records scheduled in [start, end).
func (db *DB) ListDoseRecords(ctx context.Context, userID string, start, end time.Time) ([]dbtypes.DoseRecord, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.ListDoseRecords")
	defer span.End()

	span.SetAttributes(attribute.String("user", userID))

	var records []dbtypes.DoseRecord

	iter := db.firestoreClient.Collection(doseRecordsCollection).
		Where("userId", "==", userID).
		Where("scheduledDate", ">=", start).
		Where("scheduledDate", "<", end).
		Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			err := fmt.Errorf("while iterating dose records of user %s: %w", userID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		record := dbtypes.DoseRecord{}
		if err := snap.DataTo(&record); err != nil {
			err := fmt.Errorf("while unmarshaling dose record %s: %w", snap.Ref.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		// Firestore hands timestamps back in UTC.
		record.ScheduledDate = record.ScheduledDate.In(start.Location())
		records = append(records, record)
	}

	span.SetStatus(codes.Ok, "")
	return records, nil
}

// recordInTxn reads the record for a natural key inside a transaction,
// returning a fresh pending record if none is stored yet.
func (db *DB) recordInTxn(txn *firestore.Transaction, userID, medicineID, scheduledTime string, day, now time.Time) (*dbtypes.DoseRecord, *firestore.DocumentRef, bool, error) {
	fresh := NewDoseRecord(userID, medicineID, scheduledTime, day, now)
	ref := db.firestoreClient.Collection(doseRecordsCollection).Doc(fresh.ID)

	snap, err := txn.Get(ref)
	if isNotFound(err) {
		return fresh, ref, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("while reading dose record %s: %w", fresh.ID, err)
	}

	record := &dbtypes.DoseRecord{}
	if err := snap.DataTo(record); err != nil {
		return nil, nil, false, fmt.Errorf("while unmarshaling dose record %s: %w", fresh.ID, err)
	}
	record.ScheduledDate = record.ScheduledDate.In(now.Location())
	return record, ref, true, nil
}

// GetOrCreateTodayRecord returns today's record for a dose, creating it as
// pending if it does not exist yet.
func (db *DB) GetOrCreateTodayRecord(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.GetOrCreateTodayRecord")
	defer span.End()

	span.SetAttributes(attribute.String("medicine", medicineID), attribute.String("time", scheduledTime))

	var record *dbtypes.DoseRecord
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		var ref *firestore.DocumentRef
		var exists bool
		var err error
		record, ref, exists, err = db.recordInTxn(txn, userID, medicineID, scheduledTime, now, now)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := txn.Create(ref, record); err != nil {
			return fmt.Errorf("while creating dose record %s: %w", record.ID, err)
		}
		return nil
	})
	if err != nil {
		err := fmt.Errorf("while executing transaction: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return record, nil
}

func (db *DB) setTodayRecordStatus(ctx context.Context, userID, medicineID, scheduledTime string, newStatus dbtypes.RecordStatus, now time.Time) (*dbtypes.DoseRecord, error) {
	var record *dbtypes.DoseRecord
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		var ref *firestore.DocumentRef
		var err error
		record, ref, _, err = db.recordInTxn(txn, userID, medicineID, scheduledTime, now, now)
		if err != nil {
			return err
		}
		if err := ApplyRecordStatus(record, newStatus, now); err != nil {
			return err
		}
		if err := txn.Set(ref, record); err != nil {
			return fmt.Errorf("while writing dose record %s: %w", record.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("while executing transaction: %w", err)
	}
	return record, nil
}

// MarkDoseTaken records today's dose as taken at now.
func (db *DB) MarkDoseTaken(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.MarkDoseTaken")
	defer span.End()

	record, err := db.setTodayRecordStatus(ctx, userID, medicineID, scheduledTime, dbtypes.RecordTaken, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return record, nil
}

// MarkDoseSkipped records today's dose as deliberately skipped.
func (db *DB) MarkDoseSkipped(ctx context.Context, userID, medicineID, scheduledTime string, now time.Time) (*dbtypes.DoseRecord, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.MarkDoseSkipped")
	defer span.End()

	record, err := db.setTodayRecordStatus(ctx, userID, medicineID, scheduledTime, dbtypes.RecordSkipped, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return record, nil
}

// CloseOutDose records a past day's dose as missed, unless it already has an
// outcome.  It reports whether anything was written.
func (db *DB) CloseOutDose(ctx context.Context, userID, medicineID, scheduledTime string, day, now time.Time) (bool, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.CloseOutDose")
	defer span.End()

	span.SetAttributes(attribute.String("medicine", medicineID), attribute.String("time", scheduledTime))

	var wrote bool
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		wrote = false
		record, ref, _, err := db.recordInTxn(txn, userID, medicineID, scheduledTime, day, now)
		if err != nil {
			return err
		}
		if record.Status != dbtypes.RecordPending {
			return nil
		}
		if err := ApplyRecordStatus(record, dbtypes.RecordMissed, now); err != nil {
			return err
		}
		if err := txn.Set(ref, record); err != nil {
			return fmt.Errorf("while writing dose record %s: %w", record.ID, err)
		}
		wrote = true
		return nil
	})
	if err != nil {
		err := fmt.Errorf("while executing transaction: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return wrote, nil
}

// UpdateDoseRecordStatus changes the status of an existing record, e.g. back
// to pending when a take or skip is undone.
func (db *DB) UpdateDoseRecordStatus(ctx context.Context, recordID string, newStatus dbtypes.RecordStatus, now time.Time) (*dbtypes.DoseRecord, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.UpdateDoseRecordStatus")
	defer span.End()

	span.SetAttributes(attribute.String("record", recordID), attribute.String("status", string(newStatus)))

	ref := db.firestoreClient.Collection(doseRecordsCollection).Doc(recordID)

	var record *dbtypes.DoseRecord
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		snap, err := txn.Get(ref)
		if isNotFound(err) {
			return ErrDoseRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("while reading dose record %s: %w", recordID, err)
		}

		record = &dbtypes.DoseRecord{}
		if err := snap.DataTo(record); err != nil {
			return fmt.Errorf("while unmarshaling dose record %s: %w", recordID, err)
		}
		record.ScheduledDate = record.ScheduledDate.In(now.Location())

		if err := ApplyRecordStatus(record, newStatus, now); err != nil {
			return err
		}
		if err := txn.Set(ref, record); err != nil {
			return fmt.Errorf("while writing dose record %s: %w", recordID, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("while executing transaction: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return record, nil
}
