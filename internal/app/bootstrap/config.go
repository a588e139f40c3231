package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	TransportKafka  = "kafka"
	TransportMemory = "memory"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	Transport              string
	KafkaBrokers           []string
	KafkaTopic             string
	KafkaConsumerGroup     string
	KafkaClientID          string
	KafkaRequiredAcks      string
	KafkaAutoCreateTopic   bool
	KafkaTopicPartitions   int
	KafkaReplicationFactor int
	KafkaDialTimeout       time.Duration

	PublishTimeout time.Duration
	PublishFanOut  int
	MaxBatchSize   int
	ForwardTimeout time.Duration
	CommitTimeout  time.Duration

	DatabaseURL       string
	MaxDBConns        int32
	MaxIdleDBConns    int32
	DBConnMaxIdleTime time.Duration
	DBConnMaxLifetime time.Duration
	RedisURL          string
	DedupTTL          time.Duration

	MetricsOTLPEndpoint   string
	MetricsInsecure       bool
	MetricsExportInterval time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Stream struct {
		Transport         string   `yaml:"transport"`
		Brokers           []string `yaml:"kafka_brokers"`
		Topic             string   `yaml:"topic"`
		ConsumerGroup     string   `yaml:"consumer_group"`
		ClientID          string   `yaml:"client_id"`
		RequiredAcks      string   `yaml:"required_acks"`
		AutoCreateTopic   *bool    `yaml:"auto_create_topic"`
		Partitions        int      `yaml:"partitions"`
		ReplicationFactor int      `yaml:"replication_factor"`
		PublishTimeoutSec int      `yaml:"publish_timeout_seconds"`
		PublishFanOut     int      `yaml:"publish_fan_out"`
		MaxBatchSize      int      `yaml:"max_batch_size"`
	} `yaml:"stream"`
	Dependencies struct {
		PostgresURL  string `yaml:"postgres_url"`
		RedisURL     string `yaml:"redis_url"`
		OTLPEndpoint string `yaml:"otlp_metrics_endpoint"`
	} `yaml:"dependencies"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "Sovereignty-Log-Gateway",
		HTTPPort:               8080,
		GRPCPort:               9090,
		Transport:              TransportKafka,
		KafkaTopic:             domain.DefaultTopic,
		KafkaConsumerGroup:     domain.DefaultConsumerGroup,
		KafkaClientID:          "sovereignty-gateway",
		KafkaRequiredAcks:      "all",
		KafkaTopicPartitions:   6,
		KafkaReplicationFactor: 3,
		KafkaDialTimeout:       10 * time.Second,
		PublishTimeout:         10 * time.Second,
		PublishFanOut:          32,
		MaxBatchSize:           500,
		ForwardTimeout:         30 * time.Second,
		CommitTimeout:          5 * time.Second,
		MaxDBConns:             10,
		DBConnMaxIdleTime:      15 * time.Minute,
		DBConnMaxLifetime:      time.Hour,
		DedupTTL:               7 * 24 * time.Hour,
		MetricsInsecure:        true,
		MetricsExportInterval:  30 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Stream.Transport != "" {
			cfg.Transport = f.Stream.Transport
		}
		if len(f.Stream.Brokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Stream.Brokers)
		}
		if f.Stream.Topic != "" {
			cfg.KafkaTopic = f.Stream.Topic
		}
		if f.Stream.ConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Stream.ConsumerGroup
		}
		if f.Stream.ClientID != "" {
			cfg.KafkaClientID = f.Stream.ClientID
		}
		if f.Stream.RequiredAcks != "" {
			cfg.KafkaRequiredAcks = f.Stream.RequiredAcks
		}
		if f.Stream.AutoCreateTopic != nil {
			cfg.KafkaAutoCreateTopic = *f.Stream.AutoCreateTopic
		}
		if f.Stream.Partitions > 0 {
			cfg.KafkaTopicPartitions = f.Stream.Partitions
		}
		if f.Stream.ReplicationFactor > 0 {
			cfg.KafkaReplicationFactor = f.Stream.ReplicationFactor
		}
		if f.Stream.PublishTimeoutSec > 0 {
			cfg.PublishTimeout = time.Duration(f.Stream.PublishTimeoutSec) * time.Second
		}
		if f.Stream.PublishFanOut > 0 {
			cfg.PublishFanOut = f.Stream.PublishFanOut
		}
		if f.Stream.MaxBatchSize > 0 {
			cfg.MaxBatchSize = f.Stream.MaxBatchSize
		}
		cfg.DatabaseURL = f.Dependencies.PostgresURL
		cfg.RedisURL = f.Dependencies.RedisURL
		cfg.MetricsOTLPEndpoint = f.Dependencies.OTLPEndpoint
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.Transport = strings.ToLower(envOrDefault("STREAM_TRANSPORT", cfg.Transport))
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaClientID = envOrDefault("KAFKA_CLIENT_ID", cfg.KafkaClientID)
	cfg.KafkaRequiredAcks = strings.ToLower(envOrDefault("KAFKA_REQUIRED_ACKS", cfg.KafkaRequiredAcks))
	cfg.KafkaAutoCreateTopic = envBool("KAFKA_AUTO_CREATE_TOPIC", cfg.KafkaAutoCreateTopic)
	cfg.KafkaTopicPartitions = envInt("KAFKA_TOPIC_PARTITIONS", cfg.KafkaTopicPartitions)
	cfg.KafkaReplicationFactor = envInt("KAFKA_REPLICATION_FACTOR", cfg.KafkaReplicationFactor)
	cfg.KafkaDialTimeout = envDuration("KAFKA_DIAL_TIMEOUT", cfg.KafkaDialTimeout)
	cfg.PublishTimeout = envDuration("PUBLISH_TIMEOUT", cfg.PublishTimeout)
	cfg.PublishFanOut = envInt("PUBLISH_FAN_OUT", cfg.PublishFanOut)
	cfg.MaxBatchSize = envInt("MAX_BATCH_SIZE", cfg.MaxBatchSize)
	cfg.ForwardTimeout = envDuration("FORWARD_TIMEOUT", cfg.ForwardTimeout)
	cfg.CommitTimeout = envDuration("COMMIT_TIMEOUT", cfg.CommitTimeout)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.MaxIdleDBConns = int32(envInt("DB_MAX_IDLE_CONNS", int(cfg.MaxIdleDBConns)))
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", cfg.DBConnMaxIdleTime)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", cfg.DBConnMaxLifetime)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.DedupTTL = envDuration("DEDUP_TTL", cfg.DedupTTL)
	cfg.MetricsOTLPEndpoint = envOrDefault("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", cfg.MetricsOTLPEndpoint)
	cfg.MetricsInsecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.MetricsInsecure)
	cfg.MetricsExportInterval = envDuration("METRICS_EXPORT_INTERVAL", cfg.MetricsExportInterval)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	switch cfg.Transport {
	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return fmt.Errorf("missing KAFKA_BROKERS for kafka transport")
		}
	case TransportMemory:
	default:
		return fmt.Errorf("unsupported STREAM_TRANSPORT %q", cfg.Transport)
	}
	if strings.TrimSpace(cfg.KafkaTopic) == "" {
		return fmt.Errorf("missing KAFKA_TOPIC")
	}
	if strings.TrimSpace(cfg.KafkaConsumerGroup) == "" {
		return fmt.Errorf("missing KAFKA_CONSUMER_GROUP")
	}
	if _, err := parseRequiredAcks(cfg.KafkaRequiredAcks); err != nil {
		return err
	}
	if cfg.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT must be positive")
	}
	return nil
}

// parseRequiredAcks maps the configured acknowledgement level. Fire-and-forget
// is not accepted: an acknowledged outcome must carry a broker offset.
func parseRequiredAcks(raw string) (kafka.RequiredAcks, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "-1":
		return kafka.RequireAll, nil
	case "one", "1", "leader":
		return kafka.RequireOne, nil
	default:
		return kafka.RequireAll, fmt.Errorf("unsupported KAFKA_REQUIRED_ACKS %q", raw)
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

// envDuration accepts Go duration strings ("15s") or a bare number of seconds.
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
