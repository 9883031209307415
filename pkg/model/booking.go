package model

import "time"

// Booking reserves one fixed-duration slot in a room for one user.
// EndTime is always StartTime plus the configured slot duration; it is
// stored explicitly so overlap queries can compare both boundaries.
type Booking struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RoomID    string    `json:"room_id" bson:"room_id" validate:"required,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required,hour_aligned"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Purpose   string    `json:"purpose,omitempty" bson:"purpose,omitempty" validate:"omitempty,max=500"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// BookingPatch lists the mutable booking fields. Nil means "leave
// unchanged". End time is never patched directly; it is recomputed from
// the effective start time.
type BookingPatch struct {
	RoomID    *string    `json:"room_id,omitempty" validate:"omitempty,mongodb"`
	StartTime *time.Time `json:"start_time,omitempty" validate:"omitempty,hour_aligned"`
	Purpose   *string    `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

// BookingRequest is the create payload. RequiredCapacity is checked
// against the target room but not stored on the booking.
type BookingRequest struct {
	RoomID           string    `json:"room_id" validate:"required,mongodb"`
	StartTime        time.Time `json:"start_time" validate:"required,hour_aligned"`
	Purpose          string    `json:"purpose,omitempty" validate:"omitempty,max=500"`
	RequiredCapacity int       `json:"required_capacity" validate:"required,min=1,max=1000"`
}

// OptimizeRequest asks the scheduler to pick the best-fit room itself.
type OptimizeRequest struct {
	StartTime        time.Time `json:"start_time" validate:"required,hour_aligned"`
	RequiredCapacity int       `json:"required_capacity" validate:"required,min=1,max=1000"`
	Purpose          string    `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

// Slot is one bookable interval [StartTime, EndTime).
type Slot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
