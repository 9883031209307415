package service

import (
	"context"
	"testing"
	"time"

	roomserrors "roombook/internal/rooms/errors"
	"roombook/internal/rooms/validator"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/kafka"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	mongotx "roombook/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/mongo"
)

const testRoomID = "665f1b2c3d4e5f6a7b8c9d0e"

// Mock repository for testing

type mockRoomRepository struct {
	createFunc       func(ctx context.Context, room *model.Room) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Room, error)
	findAllFunc      func(ctx context.Context, limit int, offset int64) ([]*model.Room, error)
	countFunc        func(ctx context.Context) (int64, error)
	updateFunc       func(ctx context.Context, id string, room *model.Room) error
	deleteFunc       func(ctx context.Context, id string) error
	findCapacityFunc func(ctx context.Context, capacity int) ([]*model.Room, error)
}

func (m *mockRoomRepository) Create(ctx context.Context, room *model.Room) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, room)
	}
	room.ID = testRoomID
	return nil
}

func (m *mockRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Room{ID: id, Name: "Test Room", Capacity: 10}, nil
}

func (m *mockRoomRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Room, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Room{}, nil
}

func (m *mockRoomRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockRoomRepository) Update(ctx context.Context, id string, room *model.Room) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, room)
	}
	return nil
}

func (m *mockRoomRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockRoomRepository) FindWithCapacityAtLeast(ctx context.Context, capacity int) ([]*model.Room, error) {
	if m.findCapacityFunc != nil {
		return m.findCapacityFunc(ctx, capacity)
	}
	return []*model.Room{}, nil
}

func (m *mockRoomRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

type mockBookingPurger struct {
	deleteByRoomFunc func(ctx context.Context, roomID string) (int64, error)
}

func (m *mockBookingPurger) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	if m.deleteByRoomFunc != nil {
		return m.deleteByRoomFunc(ctx, roomID)
	}
	return 0, nil
}

type mockPublisher struct {
	published []kafka.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event kafka.Event) error {
	m.published = append(m.published, event)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func newTestService(repo *mockRoomRepository, purger *mockBookingPurger, events *mockPublisher) *roomService {
	log := logger.New(logger.Config{
		Level:   logger.LevelError,
		Format:  logger.FormatJSON,
		Service: "test",
	})
	return &roomService{
		repo:      repo,
		purger:    purger,
		validator: validator.NewRoomValidator(log),
		events:    events,
		cfg: &config.Config{
			Log:          log,
			SlotDuration: time.Hour,
		},
	}
}

func TestCreate_Success(t *testing.T) {
	service := newTestService(&mockRoomRepository{}, &mockBookingPurger{}, &mockPublisher{})

	room := &model.Room{Name: "  Board Room  ", Capacity: 12, Location: "3rd floor"}
	if err := service.Create(context.Background(), room); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.ID != testRoomID {
		t.Errorf("expected assigned ID, got %q", room.ID)
	}
	if room.Name != "Board Room" {
		t.Errorf("expected trimmed name, got %q", room.Name)
	}
}

func TestCreate_InvalidCapacity(t *testing.T) {
	service := newTestService(&mockRoomRepository{}, &mockBookingPurger{}, &mockPublisher{})

	err := service.Create(context.Background(), &model.Room{Name: "Board Room", Capacity: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := &mockRoomRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
			return nil, roomserrors.ErrNotFound
		},
	}
	service := newTestService(repo, &mockBookingPurger{}, &mockPublisher{})

	_, err := service.GetByID(context.Background(), testRoomID)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
	}
}

func TestUpdate_PatchMergesFields(t *testing.T) {
	repo := &mockRoomRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
			return &model.Room{ID: id, Name: "Old Name", Capacity: 10, Location: "2nd floor"}, nil
		},
	}
	service := newTestService(repo, &mockBookingPurger{}, &mockPublisher{})

	capacity := 25
	updated, err := service.Update(context.Background(), testRoomID, &model.RoomPatch{Capacity: &capacity})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Capacity != 25 {
		t.Errorf("expected capacity 25, got %d", updated.Capacity)
	}
	if updated.Name != "Old Name" {
		t.Errorf("expected untouched name, got %q", updated.Name)
	}
}

func TestDelete_CascadesBookings(t *testing.T) {
	var purgedRoom string
	purger := &mockBookingPurger{
		deleteByRoomFunc: func(ctx context.Context, roomID string) (int64, error) {
			purgedRoom = roomID
			return 3, nil
		},
	}
	events := &mockPublisher{}
	service := newTestService(&mockRoomRepository{}, purger, events)

	if err := service.Delete(context.Background(), testRoomID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purgedRoom != testRoomID {
		t.Errorf("expected bookings purge for %s, got %q", testRoomID, purgedRoom)
	}
	if len(events.published) != 1 || events.published[0].Type != kafka.EventBookingsCascaded {
		t.Errorf("expected one %s event, got %v", kafka.EventBookingsCascaded, events.published)
	}
	if events.published[0].Payload.(map[string]any)["deleted_bookings"] != int64(3) {
		t.Errorf("expected cascade count 3 in event payload")
	}
}

func TestDelete_NoBookingsNoEvent(t *testing.T) {
	events := &mockPublisher{}
	service := newTestService(&mockRoomRepository{}, &mockBookingPurger{}, events)

	if err := service.Delete(context.Background(), testRoomID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.published) != 0 {
		t.Errorf("expected no cascade event for an empty room, got %v", events.published)
	}
}

func TestDelete_RoomNotFoundRollsBack(t *testing.T) {
	repo := &mockRoomRepository{
		deleteFunc: func(ctx context.Context, id string) error {
			return roomserrors.ErrNotFound
		},
	}
	events := &mockPublisher{}
	service := newTestService(repo, &mockBookingPurger{}, events)

	err := service.Delete(context.Background(), testRoomID)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
	}
	if len(events.published) != 0 {
		t.Errorf("expected no event after failed delete")
	}
}
