package kafka

import (
	"strings"
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	ClientID string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// TLS settings
	TLSEnabled bool
	TLSCert    string
	TLSKey     string
	TLSCA      string

	// SASL settings
	SASLEnabled   bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "stock-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas

		TLSEnabled:  false,
		SASLEnabled: false,
	}
}

// Topics contains the stock service Kafka topic names
var Topics = struct {
	StockEvents       string
	ReservationEvents string
	TransferEvents    string
}{
	StockEvents:       "clinic.stock.events",
	ReservationEvents: "clinic.reservation.events",
	TransferEvents:    "clinic.transfer.events",
}

// TopicForEventType routes an event type to its topic. Event types are
// dotted: clinic.<aggregate>.<action>.
func TopicForEventType(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "clinic.reservation."):
		return Topics.ReservationEvents
	case strings.HasPrefix(eventType, "clinic.transfer."):
		return Topics.TransferEvents
	default:
		return Topics.StockEvents
	}
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for stock topics.
// Reservation and transfer histories feed audits, so they keep longer
// retention than plain stock telemetry.
func DefaultTopicConfigs() []TopicConfig {
	return []TopicConfig{
		{Name: Topics.StockEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 60 * 60 * 1000},
		{Name: Topics.ReservationEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 30 * 24 * 60 * 60 * 1000},
		{Name: Topics.TransferEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 90 * 24 * 60 * 60 * 1000},
	}
}
