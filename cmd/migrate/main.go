package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/medflow/stock-service/internal/domain"
	mongoRepo "github.com/medflow/stock-service/internal/infrastructure/mongodb"
	"github.com/medflow/stock-service/pkg/cloudevents"
	"github.com/medflow/stock-service/pkg/idempotency"
	"github.com/medflow/stock-service/pkg/mongodb"
	outboxMongo "github.com/medflow/stock-service/pkg/outbox/mongodb"
)

// Index and seed tool: ensures every collection's indexes exist and
// optionally seeds the location registry for a fresh environment.

var (
	mongoURI = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName   = flag.String("db", "medflow_stock", "Database name")
	seed     = flag.Bool("seed", false, "Seed the default location registry")
)

// seedLocations is the default site network: one central depot plus the
// clinic sites.
var seedLocations = []struct {
	id      string
	name    string
	isDepot bool
}{
	{"central-depot", "Central Depot", true},
	{"annecy", "Clinique d'Annecy", false},
	{"chambery", "Clinique de Chambery", false},
	{"grenoble", "Clinique de Grenoble", false},
}

func main() {
	flag.Parse()

	log.Printf("Ensuring indexes on %s/%s", *mongoURI, *dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	config := mongodb.DefaultConfig()
	config.URI = *mongoURI
	config.Database = *dbName

	client, err := mongodb.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(context.Background())

	db := client.Database()
	eventFactory := cloudevents.NewEventFactory("/stock-service")

	indexed := []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"stock_records", mongoRepo.NewStockRecordRepository(db, eventFactory).EnsureIndexes},
		{"reservations", mongoRepo.NewReservationRepository(db).EnsureIndexes},
		{"transfers", mongoRepo.NewTransferRepository(db, eventFactory).EnsureIndexes},
		{"locations", mongoRepo.NewLocationRepository(db).EnsureIndexes},
		{"stock_movements", mongoRepo.NewStockMovementRepository(db).EnsureIndexes},
		{"outbox_events", outboxMongo.NewOutboxRepository(db).EnsureIndexes},
		{"idempotency_keys", idempotency.NewMongoKeyRepository(db).EnsureIndexes},
	}
	for _, target := range indexed {
		if err := target.ensure(ctx); err != nil {
			log.Fatalf("Failed to ensure indexes for %s: %v", target.name, err)
		}
		log.Printf("Indexes ensured: %s", target.name)
	}

	if *seed {
		locationRepo := mongoRepo.NewLocationRepository(db)
		for _, site := range seedLocations {
			location := domain.NewLocation(site.id, site.name, site.isDepot)
			if err := locationRepo.Save(ctx, location); err != nil {
				log.Fatalf("Failed to seed location %s: %v", site.id, err)
			}
			log.Printf("Seeded location: %s (%s)", site.id, site.name)
		}
	}

	log.Println("Migration completed successfully")
}
