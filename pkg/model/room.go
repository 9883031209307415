package model

import "time"

type Room struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity  int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=1000"`
	Location  string    `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// RoomPatch lists the mutable room fields. Nil means "leave unchanged".
type RoomPatch struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity *int    `json:"capacity,omitempty" validate:"omitempty,min=1,max=1000"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=200"`
}
