package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// SchedulerLock holds the structure for the schedulerLocks collection,
// used so periodic jobs run on exactly one instance
type SchedulerLock struct {
	ID         string             `json:"_id" bson:"_id"`
	InstanceID string             `json:"instanceID" bson:"instanceID"`
	ExpiresAt  primitive.DateTime `json:"expiresAt" bson:"expiresAt"`
	AcquiredAt primitive.DateTime `json:"acquiredAt" bson:"acquiredAt"`
}
