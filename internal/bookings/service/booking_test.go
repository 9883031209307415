package service

import (
	"context"
	"testing"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/validator"
	roomserrors "roombook/internal/rooms/errors"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/kafka"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	mongotx "roombook/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	testRoomID  = "665f1b2c3d4e5f6a7b8c9d0e"
	testRoomID2 = "665f1b2c3d4e5f6a7b8c9d0f"
	testUserID  = "user-42"
)

// Mock repositories for testing

type mockBookingRepository struct {
	createFunc         func(ctx context.Context, booking *model.Booking) error
	findByIDFunc       func(ctx context.Context, id string) (*model.Booking, error)
	findAllFunc        func(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	countFunc          func(ctx context.Context) (int64, error)
	updateFunc         func(ctx context.Context, id string, booking *model.Booking) error
	deleteFunc         func(ctx context.Context, id string) error
	findByWindowFunc   func(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error)
	countConflictsFunc func(ctx context.Context, roomID string, start, end time.Time, excludeID string) (int64, error)
	deleteByRoomFunc   func(ctx context.Context, roomID string) (int64, error)
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = "000000000000000000000001"
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, booking)
	}
	return nil
}

func (m *mockBookingRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockBookingRepository) FindByRoomAndWindow(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error) {
	if m.findByWindowFunc != nil {
		return m.findByWindowFunc(ctx, roomID, start, end)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountConflicts(ctx context.Context, roomID string, start, end time.Time, excludeID string) (int64, error) {
	if m.countConflictsFunc != nil {
		return m.countConflictsFunc(ctx, roomID, start, end, excludeID)
	}
	return 0, nil
}

func (m *mockBookingRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	if m.deleteByRoomFunc != nil {
		return m.deleteByRoomFunc(ctx, roomID)
	}
	return 0, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

type mockSlotLockRepository struct {
	acquireFunc func(ctx context.Context, roomID string, start time.Time, ttl time.Duration) (string, error)
	releaseFunc func(ctx context.Context, lockID string) error
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, roomID string, start time.Time, ttl time.Duration) (string, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, roomID, start, ttl)
	}
	return "lock-1", nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, lockID string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, lockID)
	}
	return nil
}

type mockRoomDirectory struct {
	findByIDFunc     func(ctx context.Context, id string) (*model.Room, error)
	findCapacityFunc func(ctx context.Context, capacity int) ([]*model.Room, error)
}

func (m *mockRoomDirectory) FindByID(ctx context.Context, id string) (*model.Room, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Room{ID: id, Name: "Test Room", Capacity: 10}, nil
}

func (m *mockRoomDirectory) FindWithCapacityAtLeast(ctx context.Context, capacity int) ([]*model.Room, error) {
	if m.findCapacityFunc != nil {
		return m.findCapacityFunc(ctx, capacity)
	}
	return []*model.Room{}, nil
}

type mockPublisher struct {
	published []kafka.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event kafka.Event) error {
	m.published = append(m.published, event)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func newTestService(repo *mockBookingRepository, locks *mockSlotLockRepository, rooms *mockRoomDirectory, events *mockPublisher) *bookingService {
	log := logger.New(logger.Config{
		Level:   logger.LevelError,
		Format:  logger.FormatJSON,
		Service: "test",
	})
	cfg := &config.Config{
		Log:          log,
		SlotDuration: time.Hour,
		LockTTL:      10 * time.Second,
		DayStart:     "09:00",
		DayEnd:       "17:00",
	}
	return &bookingService{
		repo:      repo,
		locks:     locks,
		rooms:     rooms,
		validator: validator.NewBookingValidator(log),
		events:    events,
		cfg:       cfg,
	}
}

func hour(h int) time.Time {
	return time.Date(2026, 9, 14, h, 0, 0, 0, time.UTC)
}

func TestCreate_Success(t *testing.T) {
	repo := &mockBookingRepository{}
	events := &mockPublisher{}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, events)

	booking, err := service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        hour(13),
		Purpose:          "standup",
		RequiredCapacity: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.RoomID != testRoomID {
		t.Errorf("expected room %s, got %s", testRoomID, booking.RoomID)
	}
	if booking.UserID != testUserID {
		t.Errorf("expected user %s, got %s", testUserID, booking.UserID)
	}
	if !booking.EndTime.Equal(hour(14)) {
		t.Errorf("expected end time %v, got %v", hour(14), booking.EndTime)
	}
	if len(events.published) != 1 || events.published[0].Type != kafka.EventBookingCreated {
		t.Errorf("expected one %s event, got %v", kafka.EventBookingCreated, events.published)
	}
}

func TestCreate_MisalignedStartTime(t *testing.T) {
	service := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	misaligned := time.Date(2026, 9, 14, 13, 15, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        misaligned,
		RequiredCapacity: 5,
	})
	if err == nil {
		t.Fatal("expected validation error for 13:15 start")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
}

func TestCreate_CapacityExceeded(t *testing.T) {
	rooms := &mockRoomDirectory{
		findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
			return &model.Room{ID: id, Name: "Small Room", Capacity: 10}, nil
		},
	}
	service := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{}, rooms, &mockPublisher{})

	_, err := service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        hour(13),
		RequiredCapacity: 20,
	})
	if err == nil {
		t.Fatal("expected capacity error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeCapacity {
		t.Errorf("expected code %s, got %s", apperrors.CodeCapacity, appErr.Code)
	}
}

func TestCreate_RoomNotFound(t *testing.T) {
	rooms := &mockRoomDirectory{
		findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
			return nil, roomserrors.ErrNotFound
		},
	}
	service := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{}, rooms, &mockPublisher{})

	_, err := service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        hour(13),
		RequiredCapacity: 5,
	})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
	}
}

func TestCreate_Conflict(t *testing.T) {
	repo := &mockBookingRepository{
		countConflictsFunc: func(ctx context.Context, roomID string, start, end time.Time, excludeID string) (int64, error) {
			return 1, nil
		},
	}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	_, err := service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        hour(13),
		RequiredCapacity: 5,
	})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
}

func TestCreate_SlotLockHeld(t *testing.T) {
	locks := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, roomID string, start time.Time, ttl time.Duration) (string, error) {
			return "", bookingserrors.ErrLockHeld
		},
	}
	service := newTestService(&mockBookingRepository{}, locks, &mockRoomDirectory{}, &mockPublisher{})

	_, err := service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        hour(13),
		RequiredCapacity: 5,
	})
	if err == nil {
		t.Fatal("expected conflict error when lock is held")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
}

func TestCreate_ReleasesLockOnConflict(t *testing.T) {
	released := false
	locks := &mockSlotLockRepository{
		releaseFunc: func(ctx context.Context, lockID string) error {
			released = true
			return nil
		},
	}
	repo := &mockBookingRepository{
		countConflictsFunc: func(ctx context.Context, roomID string, start, end time.Time, excludeID string) (int64, error) {
			return 1, nil
		},
	}
	service := newTestService(repo, locks, &mockRoomDirectory{}, &mockPublisher{})

	_, _ = service.Create(context.Background(), model.User{ID: testUserID}, &model.BookingRequest{
		RoomID:           testRoomID,
		StartTime:        hour(13),
		RequiredCapacity: 5,
	})
	if !released {
		t.Error("expected slot lock to be released after a failed reservation")
	}
}

func TestUpdate_PurposeOnlySkipsConflictCheck(t *testing.T) {
	conflictChecked := false
	existing := &model.Booking{
		ID:        "000000000000000000000001",
		RoomID:    testRoomID,
		UserID:    testUserID,
		StartTime: hour(13),
		EndTime:   hour(14),
		Purpose:   "old purpose",
	}
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return existing, nil
		},
		countConflictsFunc: func(ctx context.Context, roomID string, start, end time.Time, excludeID string) (int64, error) {
			conflictChecked = true
			return 0, nil
		},
	}
	lockAcquired := false
	locks := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, roomID string, start time.Time, ttl time.Duration) (string, error) {
			lockAcquired = true
			return "lock-1", nil
		},
	}
	service := newTestService(repo, locks, &mockRoomDirectory{}, &mockPublisher{})

	purpose := "new purpose"
	updated, err := service.Update(context.Background(), model.User{ID: testUserID}, existing.ID, &model.BookingPatch{
		Purpose: &purpose,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Purpose != purpose {
		t.Errorf("expected purpose %q, got %q", purpose, updated.Purpose)
	}
	if conflictChecked {
		t.Error("purpose-only update must not run the overlap check")
	}
	if lockAcquired {
		t.Error("purpose-only update must not take a slot lock")
	}
}

func TestUpdate_TimeChangeRunsConflictCheck(t *testing.T) {
	existing := &model.Booking{
		ID:        "000000000000000000000001",
		RoomID:    testRoomID,
		UserID:    testUserID,
		StartTime: hour(13),
		EndTime:   hour(14),
	}
	var checkedExclude string
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return existing, nil
		},
		countConflictsFunc: func(ctx context.Context, roomID string, start, end time.Time, excludeID string) (int64, error) {
			checkedExclude = excludeID
			return 0, nil
		},
	}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	newStart := hour(15)
	updated, err := service.Update(context.Background(), model.User{ID: testUserID}, existing.ID, &model.BookingPatch{
		StartTime: &newStart,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if checkedExclude != existing.ID {
		t.Errorf("overlap check must exclude the booking's own record, got exclude=%q", checkedExclude)
	}
	if !updated.EndTime.Equal(hour(16)) {
		t.Errorf("expected recomputed end time %v, got %v", hour(16), updated.EndTime)
	}
}

func TestUpdate_MisalignedNewStartRejected(t *testing.T) {
	existing := &model.Booking{
		ID:        "000000000000000000000001",
		RoomID:    testRoomID,
		UserID:    testUserID,
		StartTime: hour(13),
		EndTime:   hour(14),
	}
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return existing, nil
		},
	}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	misaligned := time.Date(2026, 9, 14, 15, 30, 0, 0, time.UTC)
	_, err := service.Update(context.Background(), model.User{ID: testUserID}, existing.ID, &model.BookingPatch{
		StartTime: &misaligned,
	})
	if err == nil {
		t.Fatal("expected validation error for misaligned start")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
}

func TestUpdate_NotOwner(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, RoomID: testRoomID, UserID: "someone-else"}, nil
		},
	}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	purpose := "takeover"
	_, err := service.Update(context.Background(), model.User{ID: testUserID}, "000000000000000000000001", &model.BookingPatch{
		Purpose: &purpose,
	})
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected code %s, got %s", apperrors.CodeForbidden, appErr.Code)
	}
}

func TestDelete_NotOwner(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, RoomID: testRoomID, UserID: "someone-else"}, nil
		},
	}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	err := service.Delete(context.Background(), model.User{ID: testUserID}, "000000000000000000000001")
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected code %s, got %s", apperrors.CodeForbidden, appErr.Code)
	}
}

func TestDelete_Success(t *testing.T) {
	deleted := ""
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, RoomID: testRoomID, UserID: testUserID}, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	events := &mockPublisher{}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, events)

	if err := service.Delete(context.Background(), model.User{ID: testUserID}, "000000000000000000000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "000000000000000000000001" {
		t.Errorf("expected delete of booking, got %q", deleted)
	}
	if len(events.published) != 1 || events.published[0].Type != kafka.EventBookingDeleted {
		t.Errorf("expected one %s event", kafka.EventBookingDeleted)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	service := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	_, err := service.GetByID(context.Background(), "000000000000000000000009")
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
	}
}

func TestGetAll_Pagination(t *testing.T) {
	repo := &mockBookingRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			return 25, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
			return []*model.Booking{{ID: "000000000000000000000001"}}, nil
		},
	}
	service := newTestService(repo, &mockSlotLockRepository{}, &mockRoomDirectory{}, &mockPublisher{})

	bookings, count, err := service.GetAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 25 {
		t.Errorf("expected count 25, got %d", count)
	}
	if len(bookings) != 1 {
		t.Errorf("expected 1 booking, got %d", len(bookings))
	}
}
