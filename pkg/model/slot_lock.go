package model

import "time"

// SlotLock is an advisory lock document keyed by room and slot start.
// Acquisition is a unique _id insert; ExpiresAt backs a TTL index so a
// crashed holder cannot wedge the slot.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
