package main

import (
	bookinghandler "roombook/internal/bookings/handler"
	bookingrepo "roombook/internal/bookings/repository"
	bookingservice "roombook/internal/bookings/service"
	bookingvalidator "roombook/internal/bookings/validator"
	roomhandler "roombook/internal/rooms/handler"
	roomrepo "roombook/internal/rooms/repository"
	roomservice "roombook/internal/rooms/service"
	roomvalidator "roombook/internal/rooms/validator"
	"roombook/pkg/app"
	"roombook/pkg/config"
	"roombook/pkg/contracts"
	"roombook/pkg/kafka"
)

const ServiceName = "roombook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting roombook service")

	events, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event producer", "error", err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			cfg.Log.Error("Failed to close event producer", "error", err)
		}
	}()

	handlers := initHandlers(cfg, events)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handlers...)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, events kafka.Publisher) []contracts.Handler {
	roomRepository := roomrepo.NewMongoRoomRepository(cfg)
	bookingRepository := bookingrepo.NewMongoBookingRepository(cfg)
	slotLockRepository := bookingrepo.NewSlotLockRepository(cfg)

	roomSvc := roomservice.NewRoomService(
		roomRepository,
		bookingRepository,
		roomvalidator.NewRoomValidator(cfg.Log),
		events,
		cfg,
	)
	bookingSvc := bookingservice.NewBookingService(
		bookingRepository,
		slotLockRepository,
		roomRepository,
		bookingvalidator.NewBookingValidator(cfg.Log),
		events,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		roomhandler.NewRoomHandler(roomSvc, cfg.Log),
		bookinghandler.NewBookingHandler(bookingSvc, cfg.Log),
	}
}
