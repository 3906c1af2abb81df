package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cancelBookingHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/cancel_booking"
	createBookingHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/create_booking"
	getAvailabilityHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/get_availability"
	getAvailableSlotsHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/get_available_slots"
	getBookingHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/get_booking"
	getCustomerBookingsHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/get_customer_bookings"
	getOutboxEventsHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/get_outbox_events"
	getResourceBookingsHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/get_resource_bookings"
	paymentCallbackHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/payment_callback"
	rescheduleBookingHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/reschedule_booking"
	transitionBookingHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/transition_booking"
	updateAvailabilityHandler "github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers/update_availability"
	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	"github.com/m04kA/SMC-ScheduleEngine/internal/config"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	outboxRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/outbox"
	scheduleRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/schedule"
	catalogServiceClient "github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/allocator"
	bookingsService "github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings"
	scheduleService "github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"
	applyPaymentResultUC "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/apply_payment_result"
	createBookingUC "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/create_booking"
	getAvailableSlotsUC "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/get_available_slots"
	rescheduleBookingUC "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/reschedule_booking"
	"github.com/m04kA/SMC-ScheduleEngine/internal/worker/dispatcher"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/dbmetrics"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/logger"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/metrics"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/rabbitmq"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/simpletxmanager"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/txmanager"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load("config.toml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting SMC-ScheduleEngine...")
	log.Info("Configuration loaded from config.toml")

	// Инициализируем метрики (если включены)
	var metricsCollector *metrics.Metrics
	var wrappedDB *dbmetrics.DB
	stopMetricsCh := make(chan struct{})

	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Настраиваем connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: %v", err)
	}
	log.Info("Successfully connected to database (host=%s, port=%d, db=%s)",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	// Инициализируем клиент каталога
	catalogClient := catalogServiceClient.NewClient(
		cfg.Catalog.URL,
		time.Duration(cfg.Catalog.Timeout)*time.Second,
		log,
	)
	log.Info("Catalog client initialized (url=%s, timeout=%ds)", cfg.Catalog.URL, cfg.Catalog.Timeout)

	// Инициализируем репозитории и transaction manager (с метриками или без)
	var (
		bookingRepository  *bookingRepo.Repository
		scheduleRepository *scheduleRepo.Repository
		outboxRepository   *outboxRepo.Repository
	)

	type TxManager interface {
		DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
	}
	var txMgr TxManager

	if cfg.Metrics.Enabled {
		wrappedDB = dbmetrics.WrapWithDefault(db, metricsCollector, cfg.Metrics.ServiceName, stopMetricsCh)
		log.Info("Database metrics collection started")

		bookingRepository = bookingRepo.NewRepository(wrappedDB)
		scheduleRepository = scheduleRepo.NewRepository(wrappedDB)
		outboxRepository = outboxRepo.NewRepository(wrappedDB)
		txMgr = txmanager.NewTransactionManagerWithRetries(wrappedDB, cfg.Engine.AllocatorRetries)
	} else {
		bookingRepository = bookingRepo.NewRepository(db)
		scheduleRepository = scheduleRepo.NewRepository(db)
		outboxRepository = outboxRepo.NewRepository(db)
		txMgr = simpletxmanager.NewTransactionManagerWithRetries(db, cfg.Engine.AllocatorRetries)
	}

	// Инициализируем движок слотов и аллокатор
	calendar := slotcalendar.New(cfg.Engine.SlotGridMinutes, cfg.Engine.MaxLookaheadDays)
	windowAllocator := allocator.New(bookingRepository, log)

	// Инициализируем сервисы
	bookingSvc := bookingsService.NewService(
		bookingRepository,
		outboxRepository,
		txMgr,
		&bookingsService.RealTimeProvider{},
		log,
	)
	scheduleSvc := scheduleService.NewService(
		scheduleRepository,
		catalogClient,
		txMgr,
		log,
	)

	// Инициализируем use cases
	createBookingUseCase := createBookingUC.NewUseCase(
		bookingRepository,
		scheduleRepository,
		outboxRepository,
		windowAllocator,
		calendar,
		catalogClient,
		txMgr,
		cfg.Engine.ConflictSuggestions,
		time.Duration(cfg.Engine.IdempotencyLockTimeoutMS)*time.Millisecond,
		log,
	)
	getAvailableSlotsUseCase := getAvailableSlotsUC.NewUseCase(
		bookingRepository,
		scheduleRepository,
		calendar,
		catalogClient,
		log,
	)
	rescheduleBookingUseCase := rescheduleBookingUC.NewUseCase(
		bookingRepository,
		scheduleRepository,
		outboxRepository,
		windowAllocator,
		calendar,
		catalogClient,
		txMgr,
		log,
	)
	applyPaymentResultUseCase := applyPaymentResultUC.NewUseCase(
		bookingRepository,
		outboxRepository,
		txMgr,
		log,
	)

	// Инициализируем handlers
	createBooking := createBookingHandler.NewHandler(createBookingUseCase, log)
	getAvailableSlots := getAvailableSlotsHandler.NewHandler(getAvailableSlotsUseCase, log)
	getBooking := getBookingHandler.NewHandler(bookingSvc, log)
	cancelBooking := cancelBookingHandler.NewHandler(bookingSvc, log)
	transitionBooking := transitionBookingHandler.NewHandler(bookingSvc, log)
	rescheduleBooking := rescheduleBookingHandler.NewHandler(rescheduleBookingUseCase, log)
	getCustomerBookings := getCustomerBookingsHandler.NewHandler(bookingSvc, log)
	getResourceBookings := getResourceBookingsHandler.NewHandler(bookingSvc, log)
	getAvailability := getAvailabilityHandler.NewHandler(scheduleSvc, log)
	updateAvailability := updateAvailabilityHandler.NewHandler(scheduleSvc, log)
	paymentCallback := paymentCallbackHandler.NewHandler(applyPaymentResultUseCase, log)
	getOutboxEvents := getOutboxEventsHandler.NewHandler(outboxRepository, log)

	// Настраиваем роутер
	r := mux.NewRouter()

	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware(metricsCollector, cfg.Metrics.ServiceName))
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		log.Info("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}

	// Callback платёжного провайдера: вне /api/v1, тенант приходит в теле
	r.HandleFunc("/internal/payments/callback", paymentCallback.Handle).Methods(http.MethodPost)

	// API prefix: все ручки тенантные, X-Tenant-ID обязателен
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.TenantAuth)

	// --- Календарь и доступность ---
	api.HandleFunc("/resources/{resourceId}/available-slots",
		getAvailableSlots.Handle).Methods(http.MethodGet)
	api.HandleFunc("/resources/{resourceId}/availability",
		getAvailability.Handle).Methods(http.MethodGet)
	api.HandleFunc("/resources/{resourceId}/availability",
		updateAvailability.HandleReplaceRules).Methods(http.MethodPut)
	api.HandleFunc("/resources/{resourceId}/availability/exceptions",
		updateAvailability.HandleUpsertException).Methods(http.MethodPut)
	api.HandleFunc("/resources/{resourceId}/availability/exceptions/{date}",
		updateAvailability.HandleDeleteException).Methods(http.MethodDelete)

	// --- Бронирования ---
	api.HandleFunc("/bookings", createBooking.Handle).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}", getBooking.Handle).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{bookingId}/cancel", cancelBooking.Handle).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{bookingId}/check-in", transitionBooking.HandleCheckIn).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{bookingId}/complete", transitionBooking.HandleComplete).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{bookingId}/no-show", transitionBooking.HandleNoShow).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{bookingId}/reschedule", rescheduleBooking.Handle).Methods(http.MethodPatch)

	// --- Списки бронирований ---
	api.HandleFunc("/customers/{customerId}/bookings", getCustomerBookings.Handle).Methods(http.MethodGet)
	api.HandleFunc("/resources/{resourceId}/bookings", getResourceBookings.Handle).Methods(http.MethodGet)

	// --- Отладка доставки событий ---
	api.HandleFunc("/outbox-events", getOutboxEvents.Handle).Methods(http.MethodGet)

	// Диспетчер outbox-событий
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()

	var publisher *rabbitmq.Publisher
	dispatcherDone := make(chan struct{})

	if cfg.Dispatcher.Enabled {
		publisher, err = connectPublisher(cfg, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()

		outboxDispatcher := dispatcher.New(
			outboxRepository,
			publisher,
			txMgr,
			dispatcherMetrics(metricsCollector),
			dispatcher.Config{
				Workers:      cfg.Dispatcher.Workers,
				BatchSize:    cfg.Dispatcher.BatchSize,
				PollInterval: time.Duration(cfg.Dispatcher.PollInterval) * time.Second,
				MaxAttempts:  cfg.Dispatcher.MaxAttempts,
				BackoffBase:  time.Duration(cfg.Dispatcher.BackoffBaseMS) * time.Millisecond,
			},
			log,
		)

		go func() {
			outboxDispatcher.Run(dispatcherCtx)
			close(dispatcherDone)
		}()
		log.Info("Outbox dispatcher started (workers=%d, exchange=%s)",
			cfg.Dispatcher.Workers, cfg.RabbitMQ.Exchange)
	} else {
		close(dispatcherDone)
		log.Warn("Outbox dispatcher disabled: events will accumulate in outbox_events")
	}

	// Создаем HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Останавливаем диспетчер: новые пачки не берутся, текущая дорабатывает
	stopDispatcher()
	<-dispatcherDone

	// Останавливаем сбор метрик connection pool
	if cfg.Metrics.Enabled {
		close(stopMetricsCh)
		log.Info("Metrics collection stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}

// connectPublisher подключается к RabbitMQ с ретраями: брокер может
// подниматься дольше сервиса
func connectPublisher(cfg *config.Config, log *logger.Logger) (*rabbitmq.Publisher, error) {
	retries := cfg.RabbitMQ.RetryCount
	if retries <= 0 {
		retries = 1
	}

	var publisher *rabbitmq.Publisher
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err == nil {
			return publisher, nil
		}
		log.Warn("RabbitMQ connect attempt %d/%d failed: %v", attempt, retries, err)
		time.Sleep(time.Duration(cfg.RabbitMQ.RetryDelay) * time.Second)
	}
	return nil, err
}

// dispatcherMetrics типизированный nil для выключенных метрик
func dispatcherMetrics(m *metrics.Metrics) dispatcher.MetricsCollector {
	if m == nil {
		return nil
	}
	return m
}
