package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medflow/stock-service/internal/application"
	mongoRepo "github.com/medflow/stock-service/internal/infrastructure/mongodb"
	"github.com/medflow/stock-service/pkg/cloudevents"
	"github.com/medflow/stock-service/pkg/kafka"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
	"github.com/medflow/stock-service/pkg/mongodb"
	"github.com/medflow/stock-service/pkg/outbox"
	outboxMongo "github.com/medflow/stock-service/pkg/outbox/mongodb"
)

const serviceName = "stock-janitor"

// Standalone host for the reservation expiry sweep. Runs either as a one-shot
// job (-once, for cron) or as a long-lived loop. The host also drains the
// outbox so expiry events reach Kafka when no API instance is running.
func main() {
	var (
		mongoURI  = flag.String("mongo-uri", envOr("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
		dbName    = flag.String("db", envOr("MONGODB_DATABASE", "medflow_stock"), "Database name")
		brokers   = flag.String("kafka-brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "Kafka broker address")
		interval  = flag.Duration("interval", 2*time.Minute, "Sweep interval")
		batchSize = flag.Int("batch-size", 100, "Reservations claimed per sweep")
		once      = flag.Bool("once", false, "Run a single sweep and exit")
	)
	flag.Parse()

	logger := logging.New(logging.DefaultConfig(serviceName))
	logger.SetDefault()

	ctx := context.Background()
	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = *mongoURI
	mongoConfig.Database = *dbName

	mongoClient, err := mongodb.NewClient(ctx, mongoConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)

	db := mongoClient.Database()
	eventFactory := cloudevents.NewEventFactory("/" + serviceName)
	stockRepo := mongoRepo.NewStockRecordRepository(db, eventFactory)
	reservationRepo := mongoRepo.NewReservationRepository(db)
	movementRepo := mongoRepo.NewStockMovementRepository(db)
	publisher := mongoRepo.NewOutboxEventPublisher(db, eventFactory)

	janitorConfig := &application.JanitorConfig{
		SweepInterval: *interval,
		BatchSize:     *batchSize,
	}
	janitor := application.NewReservationJanitor(
		stockRepo, reservationRepo, movementRepo, publisher, janitorConfig, m, logger)

	if *once {
		result := janitor.SweepOnce(ctx)
		logger.Info("Sweep complete",
			"scanned", result.Scanned, "expired", result.Expired, "failed", result.Failed)
		if result.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{*brokers}
	kafkaConfig.ClientID = serviceName
	producer := kafka.NewProductionProducer(kafkaConfig, m, logger)
	defer producer.Close()

	outboxPublisher := outbox.NewPublisher(
		outboxMongo.NewOutboxRepository(db), producer, logger, m, nil)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()

	if err := janitor.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start janitor")
		os.Exit(1)
	}
	defer janitor.Stop()
	logger.Info("Janitor running", "interval", *interval, "batchSize", *batchSize)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down janitor")
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
