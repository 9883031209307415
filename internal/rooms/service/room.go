package service

import (
	"context"
	"errors"
	roomserrors "roombook/internal/rooms/errors"
	"roombook/internal/rooms/repository"
	"roombook/internal/rooms/validator"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/kafka"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

// BookingPurger removes all bookings for a room. It must honor the
// transaction session context it receives so the cascade commits with the
// room deletion or not at all.
type BookingPurger interface {
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
}

type RoomService interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error)
	Update(ctx context.Context, id string, patch *model.RoomPatch) (*model.Room, error)
	Delete(ctx context.Context, id string) error
}

type roomService struct {
	repo      repository.RoomRepository
	purger    BookingPurger
	validator *validator.RoomValidator
	events    kafka.Publisher
	cfg       *config.Config
}

func NewRoomService(
	repo repository.RoomRepository,
	purger BookingPurger,
	validator *validator.RoomValidator,
	events kafka.Publisher,
	cfg *config.Config,
) RoomService {
	return &roomService{
		repo:      repo,
		purger:    purger,
		validator: validator,
		events:    events,
		cfg:       cfg,
	}
}

func (s *roomService) Create(ctx context.Context, room *model.Room) error {
	s.sanitize(room)
	if err := s.validator.Validate(room); err != nil {
		s.cfg.Log.Warn("Room validation failed", "name", room.Name, "error", err)
		return apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, room); err != nil {
		s.cfg.Log.Error("Failed to create room", "name", room.Name, "error", err)
		return apperrors.Internal("Failed to create room", err)
	}

	s.cfg.Log.Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"capacity", room.Capacity,
	)
	return nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		if errors.Is(err, roomserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}

	return room, nil
}

func (s *roomService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error) {
	var count int64
	var rooms []*model.Room
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", err)
			errCount = apperrors.Internal("Failed to count rooms", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		rooms, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list rooms", "error", err)
			errFind = apperrors.Internal("Failed to retrieve rooms", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return rooms, count, nil
}

func (s *roomService) Update(ctx context.Context, id string, patch *model.RoomPatch) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.ValidatePatch(patch); err != nil {
		s.cfg.Log.Warn("Room patch validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.applyPatch(existing, patch)
	s.sanitize(merged)
	if err := s.validator.Validate(merged); err != nil {
		return nil, apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		s.cfg.Log.Error("Failed to update room", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update room", err)
	}

	s.cfg.Log.Info("Room updated successfully", "id", id)
	return merged, nil
}

// Delete removes the room and every booking in it as one transactional
// unit: bookings first, then the room. There is no implicit cascade at
// the storage layer.
func (s *roomService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Room ID cannot be empty")
	}

	var purged int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		n, err := s.purger.DeleteByRoom(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete bookings for room", err)
		}
		purged = n

		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, roomserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Room", id)
			}
			if errors.Is(err, roomserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid room ID format")
			}
			return apperrors.Internal("Failed to delete room", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if purged > 0 {
		s.publish(ctx, kafka.NewEvent(kafka.EventBookingsCascaded, id, map[string]any{
			"deleted_bookings": purged,
		}))
	}

	s.cfg.Log.Info("Room deleted successfully", "id", id, "cascaded_bookings", purged)
	return nil
}

func (s *roomService) sanitize(room *model.Room) {
	room.Name = sanitizer.NormalizeName(room.Name)
	room.Location = sanitizer.NormalizeLocation(room.Location)
}

func (s *roomService) applyPatch(existing *model.Room, patch *model.RoomPatch) *model.Room {
	merged := *existing
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Capacity != nil {
		merged.Capacity = *patch.Capacity
	}
	if patch.Location != nil {
		merged.Location = *patch.Location
	}
	return &merged
}

func (s *roomService) publish(ctx context.Context, event kafka.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish room event", "type", event.Type, "error", err)
	}
}
