package repository

import (
	"context"
	"fmt"
	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Slot_locks"

// SlotLockRepository implements per-(room, slot) advisory locks. Acquire
// is a unique _id insert; a duplicate key means another request holds
// the slot. A TTL index on expires_at reaps locks from crashed holders.
type SlotLockRepository interface {
	Acquire(ctx context.Context, roomID string, start time.Time, ttl time.Duration) (string, error)
	Release(ctx context.Context, lockID string) error
}

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func LockID(roomID string, start time.Time) string {
	return fmt.Sprintf("slot_lock_%s_%d", roomID, start.Unix())
}

func (r *mongoSlotLockRepository) Acquire(ctx context.Context, roomID string, start time.Time, ttl time.Duration) (string, error) {
	lock := &model.SlotLock{
		ID:        LockID(roomID, start),
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", bookingserrors.ErrLockHeld
		}
		return "", fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	return lock.ID, nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
