package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floodnet-dev/flood-response-api/models"
)

const schedulerLockName = "schedulerLocks"

// SchedulerLockDatabase hands out short-lived distributed locks so scheduled
// jobs run on exactly one instance at a time
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, jobName string, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName string, instanceID string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

// TryAcquireLock upserts the lock document keyed by job name. The filter only
// matches when the lock is free, expired, or already held by this instance,
// so a conflicting upsert from another holder fails on the duplicate _id and
// reports the lock as taken
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, jobName string, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	filter := bson.M{
		"_id": jobName,
		"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$lt": primitive.NewDateTimeFromTime(now)}},
			bson.M{"instanceID": instanceID},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"instanceID": instanceID,
			"expiresAt":  primitive.NewDateTimeFromTime(now.Add(ttl)),
			"acquiredAt": primitive.NewDateTimeFromTime(now),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	lock := models.SchedulerLock{}
	err := s.db.Collection(schedulerLockName).FindOneAndUpdate(ctx, filter, update, opts).Decode(&lock)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lock.InstanceID == instanceID, nil
}

// ReleaseLock deletes the lock only when this instance still holds it
func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, jobName string, instanceID string) error {
	filter := bson.M{
		"_id":        jobName,
		"instanceID": instanceID,
	}
	_, err := s.db.Collection(schedulerLockName).DeleteOne(ctx, filter)
	return err
}
