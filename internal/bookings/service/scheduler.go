package service

import (
	"context"
	"errors"
	bookingserrors "roombook/internal/bookings/errors"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/kafka"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// errSlotTaken signals inside the candidate loop that the locked slot
// turned out to be booked; the scheduler moves on to the next room.
var errSlotTaken = errors.New("candidate slot already booked")

// OptimizeAndBook picks the best-fit room for the requested slot and
// reserves it in the same atomic unit. Candidates arrive sorted by
// capacity ascending, then room ID ascending, so the first conflict-free
// room is the one that wastes the least capacity; equal capacities break
// toward the lowest ID. Each candidate is evaluated under its slot lock
// and transaction, so there is no window where a room is selected but not
// yet reserved.
func (s *bookingService) OptimizeAndBook(ctx context.Context, user model.User, req *model.OptimizeRequest) (*model.Booking, error) {
	if user.ID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.Purpose = sanitizer.NormalizePurpose(req.Purpose)
	if err := s.validator.ValidateOptimizeRequest(req); err != nil {
		s.cfg.Log.Warn("Optimize request validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	candidates, err := s.rooms.FindWithCapacityAtLeast(ctx, req.RequiredCapacity)
	if err != nil {
		return nil, apperrors.Internal("Failed to list candidate rooms", err)
	}

	start := req.StartTime
	end := start.Add(s.cfg.SlotDuration)

	for _, room := range candidates {
		booking, err := s.tryReserveRoom(ctx, room, user, start, end, req.Purpose)
		if err != nil {
			if errors.Is(err, errSlotTaken) || errors.Is(err, bookingserrors.ErrLockHeld) {
				continue
			}
			return nil, err
		}

		s.publish(ctx, kafka.NewEvent(kafka.EventBookingCreated, booking.RoomID, booking))
		s.cfg.Log.Info("Optimized booking created",
			"id", booking.ID,
			"room_id", booking.RoomID,
			"room_capacity", room.Capacity,
			"user_id", booking.UserID,
			"start_time", booking.StartTime,
		)
		return booking, nil
	}

	return nil, apperrors.NotFound("Suitable room")
}

// tryReserveRoom attempts check-then-insert for one candidate under its
// slot lock. A held lock or a detected conflict skips the candidate
// rather than failing the request.
func (s *bookingService) tryReserveRoom(ctx context.Context, room *model.Room, user model.User, start, end time.Time, purpose string) (*model.Booking, error) {
	lockID, err := s.locks.Acquire(ctx, room.ID, start, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to acquire slot lock", err)
	}
	defer s.releaseSlotLock(ctx, lockID)

	booking := &model.Booking{
		RoomID:    room.ID,
		UserID:    user.ID,
		StartTime: start,
		EndTime:   end,
		Purpose:   purpose,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		conflicts, err := s.repo.CountConflicts(sessCtx, room.ID, start, end, "")
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}
		if conflicts > 0 {
			return errSlotTaken
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// AvailableSlots enumerates the free intervals of the requested duration
// inside the room's business window for the given day. The sweep walks
// the bookings in start order: every full slot that ends at or before the
// next booking's start is emitted, then the cursor jumps past that
// booking. Trailing window time shorter than one slot is not offered.
func (s *bookingService) AvailableSlots(ctx context.Context, roomID string, day time.Time, duration time.Duration) ([]model.Slot, error) {
	if roomID == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}
	if duration == 0 {
		duration = s.cfg.SlotDuration
	}
	if err := s.validator.ValidateDuration(duration); err != nil {
		return nil, apperrors.Validation("Invalid slot duration", map[string]any{"error": err.Error()})
	}

	if _, err := s.getRoom(ctx, roomID); err != nil {
		return nil, err
	}

	windowStart, windowEnd, err := s.businessWindow(day)
	if err != nil {
		return nil, apperrors.Internal("Failed to compute business window", err)
	}

	bookings, err := s.repo.FindByRoomAndWindow(ctx, roomID, windowStart, windowEnd)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	return sweepFreeSlots(windowStart, windowEnd, duration, bookings), nil
}

// sweepFreeSlots is the pure core of the availability enumerator.
// Bookings must be ordered by start time ascending. Each candidate slot
// is emitted unless it overlaps a booking, in which case the cursor
// jumps past that booking.
func sweepFreeSlots(windowStart, windowEnd time.Time, duration time.Duration, bookings []*model.Booking) []model.Slot {
	slots := []model.Slot{}
	cursor := windowStart
	next := 0

	for !cursor.Add(duration).After(windowEnd) {
		end := cursor.Add(duration)

		for next < len(bookings) && !bookings[next].EndTime.After(cursor) {
			next++
		}
		if next < len(bookings) && overlaps(bookings[next].StartTime, bookings[next].EndTime, cursor, end) {
			cursor = bookings[next].EndTime
			continue
		}

		slots = append(slots, model.Slot{StartTime: cursor, EndTime: end})
		cursor = end
	}

	return slots
}

// overlaps reports whether the half-open intervals [start1, end1) and
// [start2, end2) intersect. Both comparisons are strict, so an interval
// ending exactly where the other begins does not overlap it.
func overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

// businessWindow anchors the configured HH:MM day bounds onto the given
// date, in the date's location.
func (s *bookingService) businessWindow(day time.Time) (time.Time, time.Time, error) {
	startClock, err := time.Parse("15:04", s.cfg.DayStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endClock, err := time.Parse("15:04", s.cfg.DayEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	year, month, date := day.Date()
	loc := day.Location()
	windowStart := time.Date(year, month, date, startClock.Hour(), startClock.Minute(), 0, 0, loc)
	windowEnd := time.Date(year, month, date, endClock.Hour(), endClock.Minute(), 0, 0, loc)
	return windowStart, windowEnd, nil
}
