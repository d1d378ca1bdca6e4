package dblayer

import (
	"context"
	"fmt"

	"medreminder/dbtypes"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
)

// acceptedRelationships lists accepted relationships where field equals id.
func (db *DB) acceptedRelationships(ctx context.Context, field, id string) ([]*dbtypes.CareRelationship, error) {
	var rels []*dbtypes.CareRelationship

	iter := db.firestoreClient.Collection(relationshipsCollection).
		Where(field, "==", id).
		Where("status", "==", string(dbtypes.RelationshipAccepted)).
		Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating care relationships: %w", err)
		}

		rel := &dbtypes.CareRelationship{}
		if err := snap.DataTo(rel); err != nil {
			return nil, fmt.Errorf("while unmarshaling care relationship %s: %w", snap.Ref.ID, err)
		}
		rels = append(rels, rel)
	}

	return rels, nil
}

// ListCareRecipients returns the users the guardian has an accepted
// relationship with.
func (db *DB) ListCareRecipients(ctx context.Context, guardianID string) ([]*dbtypes.User, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.ListCareRecipients")
	defer span.End()

	span.SetAttributes(attribute.String("guardian", guardianID))

	rels, err := db.acceptedRelationships(ctx, "guardianId", guardianID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var users []*dbtypes.User
	for _, rel := range rels {
		user, err := db.GetUser(ctx, rel.RecipientID)
		if err != nil {
			err := fmt.Errorf("while getting care recipient %s: %w", rel.RecipientID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		users = append(users, user)
	}

	span.SetStatus(codes.Ok, "")
	return users, nil
}

// ListGuardians returns the users holding an accepted relationship over the
// recipient.
func (db *DB) ListGuardians(ctx context.Context, recipientID string) ([]*dbtypes.User, error) {
	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.ListGuardians")
	defer span.End()

	span.SetAttributes(attribute.String("recipient", recipientID))

	rels, err := db.acceptedRelationships(ctx, "recipientId", recipientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var users []*dbtypes.User
	for _, rel := range rels {
		user, err := db.GetUser(ctx, rel.GuardianID)
		if err != nil {
			err := fmt.Errorf("while getting guardian %s: %w", rel.GuardianID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		users = append(users, user)
	}

	span.SetStatus(codes.Ok, "")
	return users, nil
}

// CheckUserAllowedToManageRecipient returns ErrPermissionDenied unless user is
// the recipient or one of their accepted guardians.
func (db *DB) CheckUserAllowedToManageRecipient(ctx context.Context, user *dbtypes.User, recipientID string) error {
	if user.ID == recipientID {
		return nil
	}

	rels, err := db.acceptedRelationships(ctx, "guardianId", user.ID)
	if err != nil {
		return fmt.Errorf("while checking care relationships of %s: %w", user.ID, err)
	}
	for _, rel := range rels {
		if rel.RecipientID == recipientID {
			return nil
		}
	}

	return ErrPermissionDenied
}
