package service

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/repository"
	"roombook/internal/bookings/validator"
	roomserrors "roombook/internal/rooms/errors"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/kafka"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// RoomDirectory is the slice of the room layer the conflict engine needs:
// lookups and capacity-eligible listing. Satisfied by the rooms
// repository.
type RoomDirectory interface {
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindWithCapacityAtLeast(ctx context.Context, capacity int) ([]*model.Room, error)
}

type BookingService interface {
	Create(ctx context.Context, user model.User, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, user model.User, id string, patch *model.BookingPatch) (*model.Booking, error)
	Delete(ctx context.Context, user model.User, id string) error
	OptimizeAndBook(ctx context.Context, user model.User, req *model.OptimizeRequest) (*model.Booking, error)
	AvailableSlots(ctx context.Context, roomID string, day time.Time, duration time.Duration) ([]model.Slot, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	locks     repository.SlotLockRepository
	rooms     RoomDirectory
	validator *validator.BookingValidator
	events    kafka.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	locks repository.SlotLockRepository,
	rooms RoomDirectory,
	validator *validator.BookingValidator,
	events kafka.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		locks:     locks,
		rooms:     rooms,
		validator: validator,
		events:    events,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, user model.User, req *model.BookingRequest) (*model.Booking, error) {
	if user.ID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.Purpose = sanitizer.NormalizePurpose(req.Purpose)
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	room, err := s.getRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Capacity < req.RequiredCapacity {
		return nil, apperrors.Capacity(fmt.Sprintf(
			"Room capacity insufficient: room holds %d, requested %d",
			room.Capacity, req.RequiredCapacity,
		))
	}

	booking := &model.Booking{
		RoomID:    room.ID,
		UserID:    user.ID,
		StartTime: req.StartTime,
		EndTime:   req.StartTime.Add(s.cfg.SlotDuration),
		Purpose:   req.Purpose,
	}

	if err := s.reserve(ctx, booking, ""); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.NewEvent(kafka.EventBookingCreated, booking.RoomID, booking))
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"room_id", booking.RoomID,
		"user_id", booking.UserID,
		"start_time", booking.StartTime,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", err)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) Update(ctx context.Context, user model.User, id string, patch *model.BookingPatch) (*model.Booking, error) {
	if user.ID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != user.ID {
		return nil, apperrors.Forbidden("Not authorized to modify this booking")
	}

	if err := s.validator.ValidatePatch(patch); err != nil {
		s.cfg.Log.Warn("Booking patch validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.applyPatch(existing, patch)

	// The validator and overlap gates run only when the interval actually
	// moves. A purpose-only patch, or a patch restating the current room
	// and time, bypasses both.
	roomChanged := merged.RoomID != existing.RoomID
	timeChanged := !merged.StartTime.Equal(existing.StartTime)

	if timeChanged {
		if err := s.validator.ValidateStartTime(merged.StartTime); err != nil {
			return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
		}
	}
	merged.EndTime = merged.StartTime.Add(s.cfg.SlotDuration)

	if roomChanged {
		// Capacity is deliberately not re-checked here; the original
		// headcount is not stored on the booking.
		if _, err := s.getRoom(ctx, merged.RoomID); err != nil {
			return nil, err
		}
	}

	if roomChanged || timeChanged {
		if err := s.reserveUpdate(ctx, merged, id); err != nil {
			return nil, err
		}
	} else {
		if err := s.persistUpdate(ctx, id, merged); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, kafka.NewEvent(kafka.EventBookingUpdated, merged.RoomID, merged))
	s.cfg.Log.Info("Booking updated successfully", "id", id)
	return merged, nil
}

func (s *bookingService) Delete(ctx context.Context, user model.User, id string) error {
	if user.ID == "" {
		return apperrors.Unauthorized("Authentication required")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != user.ID {
		return apperrors.Forbidden("Not authorized to delete this booking")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to delete booking", err)
	}

	s.publish(ctx, kafka.NewEvent(kafka.EventBookingDeleted, existing.RoomID, map[string]any{
		"id":      id,
		"room_id": existing.RoomID,
	}))
	s.cfg.Log.Info("Booking deleted successfully", "id", id)
	return nil
}

// reserve runs check-then-insert as one isolated unit: the advisory slot
// lock serializes concurrent attempts on the same room and start, and the
// transaction makes the overlap check and insert commit together.
func (s *bookingService) reserve(ctx context.Context, booking *model.Booking, excludeID string) error {
	lockID, err := s.acquireSlotLock(ctx, booking.RoomID, booking.StartTime)
	if err != nil {
		return err
	}
	defer s.releaseSlotLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.checkConflict(sessCtx, booking, excludeID); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reserve booking slot",
			"room_id", booking.RoomID,
			"start_time", booking.StartTime,
			"error", err,
		)
	}
	return err
}

// reserveUpdate is reserve for the update path: same lock and transaction
// discipline, but the write replaces the booking's own record, which is
// excluded from the overlap check.
func (s *bookingService) reserveUpdate(ctx context.Context, merged *model.Booking, id string) error {
	lockID, err := s.acquireSlotLock(ctx, merged.RoomID, merged.StartTime)
	if err != nil {
		return err
	}
	defer s.releaseSlotLock(ctx, lockID)

	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.checkConflict(sessCtx, merged, id); err != nil {
			return err
		}
		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update booking", err)
		}
		return nil
	})
}

func (s *bookingService) persistUpdate(ctx context.Context, id string, merged *model.Booking) error {
	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to update booking", err)
	}
	return nil
}

// checkConflict applies the half-open interval test via the repository:
// a conflict exists iff an existing booking in the room satisfies
// start_time < candidate_end AND end_time > candidate_start.
func (s *bookingService) checkConflict(ctx context.Context, booking *model.Booking, excludeID string) error {
	conflicts, err := s.repo.CountConflicts(ctx, booking.RoomID, booking.StartTime, booking.EndTime, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}
	if conflicts > 0 {
		return apperrors.Conflict(fmt.Sprintf(
			"Room is already booked for this time slot (%s - %s)",
			booking.StartTime.Format(time.RFC3339),
			booking.EndTime.Format(time.RFC3339),
		))
	}
	return nil
}

func (s *bookingService) applyPatch(existing *model.Booking, patch *model.BookingPatch) *model.Booking {
	merged := *existing
	if patch.RoomID != nil {
		merged.RoomID = *patch.RoomID
	}
	if patch.StartTime != nil {
		merged.StartTime = *patch.StartTime
	}
	if patch.Purpose != nil {
		merged.Purpose = sanitizer.NormalizePurpose(*patch.Purpose)
	}
	return &merged
}

func (s *bookingService) getRoom(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", roomID)
		}
		if errors.Is(err, roomserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *bookingService) acquireSlotLock(ctx context.Context, roomID string, start time.Time) (string, error) {
	lockID, err := s.locks.Acquire(ctx, roomID, start, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return "", apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}
	return lockID, nil
}

func (s *bookingService) releaseSlotLock(ctx context.Context, lockID string) {
	if err := s.locks.Release(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", err)
	}
}

func (s *bookingService) publish(ctx context.Context, event kafka.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "type", event.Type, "error", err)
	}
}
