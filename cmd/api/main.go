package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medflow/stock-service/internal/application"
	"github.com/medflow/stock-service/internal/domain"
	mongoRepo "github.com/medflow/stock-service/internal/infrastructure/mongodb"
	"github.com/medflow/stock-service/pkg/api"
	"github.com/medflow/stock-service/pkg/cloudevents"
	apperrors "github.com/medflow/stock-service/pkg/errors"
	"github.com/medflow/stock-service/pkg/idempotency"
	"github.com/medflow/stock-service/pkg/kafka"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
	"github.com/medflow/stock-service/pkg/middleware"
	"github.com/medflow/stock-service/pkg/mongodb"
	"github.com/medflow/stock-service/pkg/outbox"
	outboxMongo "github.com/medflow/stock-service/pkg/outbox/mongodb"
)

const serviceName = "stock-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting stock-service API")

	config := loadConfig()
	ctx := context.Background()

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	kafkaProducer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer kafkaProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	eventFactory := cloudevents.NewEventFactory("/" + serviceName)

	db := mongoClient.Database()
	stockRepo := mongoRepo.NewStockRecordRepository(db, eventFactory)
	reservationRepo := mongoRepo.NewReservationRepository(db)
	transferRepo := mongoRepo.NewTransferRepository(db, eventFactory)
	locationRepo := mongoRepo.NewLocationRepository(db)
	movementRepo := mongoRepo.NewStockMovementRepository(db)
	publisher := mongoRepo.NewOutboxEventPublisher(db, eventFactory)

	idempotencyKeyRepo := idempotency.NewMongoKeyRepository(db)
	if err := idempotencyKeyRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure idempotency indexes")
	}

	outboxRepo := outboxMongo.NewOutboxRepository(db)
	outboxPublisher := outbox.NewPublisher(outboxRepo, kafkaProducer, logger, m, &outbox.PublisherConfig{
		PollInterval: 1 * time.Second,
		BatchSize:    100,
	})
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	stockService := application.NewStockApplicationService(
		stockRepo, movementRepo, locationRepo, publisher, m, logger)
	reservationService := application.NewReservationApplicationService(
		stockRepo, reservationRepo, movementRepo, publisher, config.ReservationTTL, m, logger)
	transferService := application.NewTransferApplicationService(
		transferRepo, stockRepo, reservationRepo, movementRepo, locationRepo, m, logger)
	consolidationService := application.NewConsolidationApplicationService(
		stockRepo, locationRepo, logger)

	if config.JanitorEnabled {
		janitor := application.NewReservationJanitor(
			stockRepo, reservationRepo, movementRepo, publisher, config.Janitor, m, logger)
		if err := janitor.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start reservation janitor")
			os.Exit(1)
		}
		defer janitor.Stop()
		logger.Info("Reservation janitor started", "interval", config.Janitor.SweepInterval)
	}

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	idempotencyConfig := idempotency.DefaultConfig(serviceName, idempotencyKeyRepo)
	idempotencyConfig.ActorIDExtractor = middleware.GetActorID
	idempotencyConfig.Metrics = idempotency.NewMetrics(nil)

	v1 := router.Group("/api/v1")
	v1.Use(idempotency.Middleware(idempotencyConfig))
	{
		stock := v1.Group("/stock")
		{
			stock.POST("", createRecordHandler(stockService, logger))
			stock.GET("/low-stock", lowStockHandler(stockService, logger))
			stock.GET("/location/:locationId", listByLocationHandler(stockService, logger))
			stock.GET("/:recordId", getRecordHandler(stockService, logger))
			stock.GET("/:recordId/movements", movementsHandler(stockService, logger))
			stock.POST("/:recordId/adjust", adjustHandler(stockService, logger))
			stock.POST("/:recordId/receive", receiveHandler(stockService, logger))
			stock.POST("/:recordId/deactivate", deactivateHandler(stockService, logger))
		}

		reservations := v1.Group("/reservations")
		{
			reservations.POST("", reserveHandler(reservationService, logger))
			reservations.GET("/consumer/:consumerRef", listByConsumerHandler(reservationService, logger))
			reservations.GET("/:reservationId", getReservationHandler(reservationService, logger))
			reservations.POST("/:reservationId/release", releaseHandler(reservationService, logger))
			reservations.POST("/:reservationId/fulfill", fulfillHandler(reservationService, logger))
			reservations.POST("/:reservationId/extend", extendHandler(reservationService, logger))
		}

		transfers := v1.Group("/transfers")
		{
			transfers.POST("", createTransferHandler(transferService, logger))
			transfers.POST("/quick", quickTransferHandler(transferService, logger))
			transfers.GET("", listTransfersHandler(transferService, logger))
			transfers.GET("/pending/:sourceId", pendingTransfersHandler(transferService, logger))
			transfers.GET("/:transferId", getTransferHandler(transferService, logger))
			transfers.POST("/:transferId/submit", transferActionHandler(transferService.Submit, logger))
			transfers.POST("/:transferId/approve", transferActionHandler(transferService.Approve, logger))
			transfers.POST("/:transferId/ship", transferActionHandler(transferService.Ship, logger))
			transfers.POST("/:transferId/receive", receiveTransferHandler(transferService, logger))
			transfers.POST("/:transferId/reject", transferActionHandler(transferService.Reject, logger))
			transfers.POST("/:transferId/cancel", transferActionHandler(transferService.Cancel, logger))
		}

		v1.GET("/consolidated/:family", consolidateFamilyHandler(consolidationService, logger))
		v1.GET("/consolidated/:family/:productId", consolidatedViewHandler(consolidationService, logger))
		v1.GET("/alerts", stockAlertsHandler(consolidationService, logger))
		v1.GET("/locations", listLocationsHandler(stockService, logger))
	}

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr     string
	ReservationTTL time.Duration
	JanitorEnabled bool
	Janitor        *application.JanitorConfig
	MongoDB        *mongodb.Config
	Kafka          *kafka.Config
}

func loadConfig() *Config {
	janitor := application.DefaultJanitorConfig()
	janitor.SweepInterval = getDurationEnv("JANITOR_SWEEP_INTERVAL", janitor.SweepInterval)
	janitor.BatchSize = getIntEnv("JANITOR_BATCH_SIZE", janitor.BatchSize)

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)
	mongoConfig.ReplicaSet = getEnv("MONGODB_REPLICA_SET", "")

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}

	return &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8010"),
		ReservationTTL: getDurationEnv("RESERVATION_TTL", domain.DefaultReservationTTL),
		JanitorEnabled: getEnv("JANITOR_ENABLED", "true") == "true",
		Janitor:        janitor,
		MongoDB:        mongoConfig,
		Kafka:          kafkaConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// actorID resolves the acting user: an explicit body field wins, otherwise
// the X-Actor-ID header captured by the clinic context middleware.
func actorID(c *gin.Context, bodyActor string) string {
	if bodyActor != "" {
		return bodyActor
	}
	return middleware.GetActorID(c)
}

// respondError translates domain sentinels to API error responses.
func respondError(responder *middleware.ErrorResponder, err error) {
	switch {
	case errors.Is(err, domain.ErrStockRecordNotFound):
		responder.RespondWithAppError(apperrors.ErrNotFound("stock record"))
	case errors.Is(err, domain.ErrReservationNotFound):
		responder.RespondWithAppError(apperrors.ErrNotFound("reservation"))
	case errors.Is(err, domain.ErrTransferNotFound):
		responder.RespondWithAppError(apperrors.ErrNotFound("transfer"))
	case errors.Is(err, domain.ErrLocationNotFound):
		responder.RespondWithAppError(apperrors.ErrNotFound("location"))
	case errors.Is(err, domain.ErrInsufficientStock):
		responder.RespondWithAppError(apperrors.ErrInsufficientStock(err.Error()))
	case errors.Is(err, domain.ErrInvalidAdjustment):
		responder.RespondWithAppError(apperrors.ErrInvalidAdjustment(err.Error()))
	case errors.Is(err, domain.ErrConflictingTransition):
		responder.RespondWithAppError(apperrors.ErrConflictingTransition(err.Error()))
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrStockRecordInactive),
		errors.Is(err, domain.ErrLocationInactive):
		responder.RespondWithAppError(apperrors.ErrInvalidState(err.Error()))
	case errors.Is(err, domain.ErrDuplicateStockRecord):
		responder.RespondWithAppError(apperrors.ErrConflict(err.Error()))
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrSameLocation):
		responder.RespondWithAppError(apperrors.ErrValidation(err.Error()))
	case errors.Is(err, domain.ErrStorageUnavailable):
		responder.RespondWithAppError(apperrors.ErrStorageUnavailable("").Wrap(err))
	default:
		responder.RespondInternalError(err)
	}
}

// Stock record handlers

func createRecordHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			LocationID   string `json:"locationId" binding:"required,location_id"`
			Family       string `json:"family" binding:"required,product_family"`
			ProductID    string `json:"productId" binding:"required,product_id"`
			ProductName  string `json:"productName" binding:"required"`
			InitialStock int    `json:"initialStock" binding:"min=0"`
			MinimumStock int    `json:"minimumStock" binding:"min=0"`
			ReorderPoint int    `json:"reorderPoint" binding:"min=0"`
			ActorID      string `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		record, err := service.CreateRecord(c.Request.Context(), application.CreateStockRecordCommand{
			LocationID:   req.LocationID,
			Family:       domain.ProductFamily(req.Family),
			ProductID:    req.ProductID,
			ProductName:  req.ProductName,
			InitialStock: req.InitialStock,
			MinimumStock: req.MinimumStock,
			ReorderPoint: req.ReorderPoint,
			ActorID:      actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusCreated, record)
	}
}

func getRecordHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		record, err := service.GetRecord(c.Request.Context(), application.GetRecordQuery{RecordID: c.Param("recordId")})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func listByLocationHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)
		records, err := service.ListByLocation(c.Request.Context(), application.ListByLocationQuery{
			LocationID: c.Param("locationId"),
			Family:     domain.ProductFamily(c.Query("family")),
			Limit:      page.Limit,
			Offset:     page.Offset,
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, api.NewListResponse(records, page))
	}
}

func lowStockHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		records, err := service.GetLowStock(c.Request.Context(), c.Query("locationId"))
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func adjustHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Delta   int    `json:"delta" binding:"required"`
			Reason  string `json:"reason" binding:"required,safe_string"`
			ActorID string `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		record, err := service.Adjust(c.Request.Context(), application.AdjustStockCommand{
			RecordID: c.Param("recordId"),
			Delta:    req.Delta,
			Reason:   req.Reason,
			ActorID:  actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func receiveHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Quantity    int    `json:"quantity" binding:"required,gt=0"`
			ReferenceID string `json:"referenceId"`
			ActorID     string `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		record, err := service.Receive(c.Request.Context(), application.ReceiveStockCommand{
			RecordID:    c.Param("recordId"),
			Quantity:    req.Quantity,
			ReferenceID: req.ReferenceID,
			ActorID:     actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func deactivateHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ActorID string `json:"actorId"`
		}
		_ = c.ShouldBindJSON(&req) // body optional

		err := service.Deactivate(c.Request.Context(), application.DeactivateRecordCommand{
			RecordID: c.Param("recordId"),
			ActorID:  actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recordId": c.Param("recordId"), "active": false})
	}
}

func movementsHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)
		movements, err := service.GetMovements(c.Request.Context(), c.Param("recordId"), page.Limit)
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, api.NewListResponse(movements, page))
	}
}

func listLocationsHandler(service *application.StockApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		locations, err := service.ListLocations(c.Request.Context(), c.Query("all") != "true")
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, locations)
	}
}

// Reservation handlers

func reserveHandler(service *application.ReservationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			RecordID    string `json:"recordId" binding:"required"`
			Quantity    int    `json:"quantity" binding:"required,gt=0"`
			ConsumerRef string `json:"consumerRef" binding:"required,safe_string"`
			TTLSeconds  int    `json:"ttlSeconds" binding:"min=0"`
			ActorID     string `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		reservation, err := service.Reserve(c.Request.Context(), application.ReserveStockCommand{
			RecordID:    req.RecordID,
			Quantity:    req.Quantity,
			ConsumerRef: req.ConsumerRef,
			TTL:         time.Duration(req.TTLSeconds) * time.Second,
			ActorID:     actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusCreated, reservation)
	}
}

func getReservationHandler(service *application.ReservationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		reservation, err := service.GetReservation(c.Request.Context(), c.Param("reservationId"))
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

func listByConsumerHandler(service *application.ReservationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		reservations, err := service.ListByConsumer(c.Request.Context(), c.Param("consumerRef"))
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, reservations)
	}
}

func releaseHandler(service *application.ReservationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ActorID string `json:"actorId"`
		}
		_ = c.ShouldBindJSON(&req)

		reservation, err := service.Release(c.Request.Context(), application.ReleaseReservationCommand{
			ReservationID: c.Param("reservationId"),
			ActorID:       actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

func fulfillHandler(service *application.ReservationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ActorID string `json:"actorId"`
		}
		_ = c.ShouldBindJSON(&req)

		reservation, err := service.Fulfill(c.Request.Context(), application.FulfillReservationCommand{
			ReservationID: c.Param("reservationId"),
			ActorID:       actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

func extendHandler(service *application.ReservationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TTLSeconds int    `json:"ttlSeconds" binding:"min=0"`
			ActorID    string `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		reservation, err := service.Extend(c.Request.Context(), application.ExtendReservationCommand{
			ReservationID: c.Param("reservationId"),
			TTL:           time.Duration(req.TTLSeconds) * time.Second,
			ActorID:       actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

// Transfer handlers

type transferItemRequest struct {
	ProductID string `json:"productId" binding:"required,product_id"`
	Family    string `json:"family" binding:"required,product_family"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

func transferItems(items []transferItemRequest) []application.TransferItemInput {
	inputs := make([]application.TransferItemInput, len(items))
	for i, item := range items {
		inputs[i] = application.TransferItemInput{
			ProductID: item.ProductID,
			Family:    domain.ProductFamily(item.Family),
			Quantity:  item.Quantity,
		}
	}
	return inputs
}

func createTransferHandler(service *application.TransferApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			SourceID      string                `json:"sourceId" binding:"required,location_id"`
			DestinationID string                `json:"destinationId" binding:"required,location_id"`
			Priority      string                `json:"priority" binding:"omitempty,transfer_priority"`
			Reason        string                `json:"reason" binding:"omitempty,safe_string"`
			Items         []transferItemRequest `json:"items" binding:"required,min=1,dive"`
			ActorID       string                `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		transfer, err := service.Create(c.Request.Context(), application.CreateTransferCommand{
			SourceID:      req.SourceID,
			DestinationID: req.DestinationID,
			Priority:      domain.TransferPriority(req.Priority),
			Reason:        req.Reason,
			Items:         transferItems(req.Items),
			ActorID:       actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusCreated, transfer)
	}
}

func quickTransferHandler(service *application.TransferApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			SourceID      string                `json:"sourceId" binding:"required,location_id"`
			DestinationID string                `json:"destinationId" binding:"required,location_id"`
			Priority      string                `json:"priority" binding:"omitempty,transfer_priority"`
			Reason        string                `json:"reason" binding:"omitempty,safe_string"`
			Items         []transferItemRequest `json:"items" binding:"required,min=1,dive"`
			ActorID       string                `json:"actorId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		transfer, err := service.QuickTransfer(c.Request.Context(), application.QuickTransferCommand{
			SourceID:      req.SourceID,
			DestinationID: req.DestinationID,
			Priority:      domain.TransferPriority(req.Priority),
			Reason:        req.Reason,
			Items:         transferItems(req.Items),
			ActorID:       actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusCreated, transfer)
	}
}

func getTransferHandler(service *application.TransferApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		transfer, err := service.Get(c.Request.Context(), c.Param("transferId"))
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

func listTransfersHandler(service *application.TransferApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		locationID := c.Query("locationId")
		if locationID == "" {
			responder.RespondBadRequest("locationId query parameter is required")
			return
		}

		var statuses []domain.TransferStatus
		if status := c.Query("status"); status != "" {
			statuses = append(statuses, domain.TransferStatus(status))
		}
		page := api.ParsePagination(c)
		transfers, err := service.List(c.Request.Context(), application.ListTransfersQuery{
			LocationID: locationID,
			Statuses:   statuses,
			Limit:      page.Limit,
			Offset:     page.Offset,
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, api.NewListResponse(transfers, page))
	}
}

func pendingTransfersHandler(service *application.TransferApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		transfers, err := service.PendingForSource(c.Request.Context(), c.Param("sourceId"))
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, transfers)
	}
}

// transferActionHandler adapts the shared shape of submit, approve, ship,
// reject and cancel.
func transferActionHandler(action func(context.Context, application.TransferActionCommand) (*application.TransferDTO, error), logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ActorID string `json:"actorId"`
			Note    string `json:"note" binding:"omitempty,safe_string"`
		}
		_ = c.ShouldBindJSON(&req)

		transfer, err := action(c.Request.Context(), application.TransferActionCommand{
			TransferID: c.Param("transferId"),
			ActorID:    actorID(c, req.ActorID),
			Note:       req.Note,
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

func receiveTransferHandler(service *application.TransferApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ReceivedQuantities map[string]int `json:"receivedQuantities"`
			ActorID            string         `json:"actorId"`
		}
		_ = c.ShouldBindJSON(&req)

		transfer, err := service.Receive(c.Request.Context(), application.ReceiveTransferCommand{
			TransferID:         c.Param("transferId"),
			ReceivedQuantities: req.ReceivedQuantities,
			ActorID:            actorID(c, req.ActorID),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

// Consolidation handlers

func consolidateFamilyHandler(service *application.ConsolidationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		family := domain.ProductFamily(c.Param("family"))
		if !family.IsValid() {
			responder.RespondBadRequest("unknown product family")
			return
		}

		page := api.ParsePagination(c)
		views, err := service.ConsolidateFamily(c.Request.Context(), application.ConsolidateFamilyQuery{
			Family: family,
			Limit:  page.Limit,
			Offset: page.Offset,
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, api.NewListResponse(views, page))
	}
}

func consolidatedViewHandler(service *application.ConsolidationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		family := domain.ProductFamily(c.Param("family"))
		if !family.IsValid() {
			responder.RespondBadRequest("unknown product family")
			return
		}

		view, err := service.ConsolidatedView(c.Request.Context(), application.ConsolidatedViewQuery{
			Family:    family,
			ProductID: c.Param("productId"),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func stockAlertsHandler(service *application.ConsolidationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		alerts, err := service.StockAlerts(c.Request.Context(), application.StockAlertsQuery{
			LocationID: c.Query("locationId"),
		})
		if err != nil {
			respondError(responder, err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}
