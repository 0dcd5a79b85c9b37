package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Chain        ChainConfig
	Storage      StorageConfig
	Auth         AuthConfig
	Registration RegistrationConfig
	Artifact     ArtifactConfig
	Mongo        MongoConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	PublicBaseURL   string
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnectTries  int
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	SignerTTL time.Duration
}

// Enabled reports whether a redis address was provided at all.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	AttendanceRecorded string
	CertificateIssued  string
	ArtifactRequested  string
}

// All lists every topic the service publishes to.
func (t TopicConfig) All() []string {
	return []string{t.AttendanceRecorded, t.CertificateIssued, t.ArtifactRequested}
}

type ChainConfig struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	NetworkName     string
	ChainID         int64
	ExplorerURL     string
	GasMultiplier   int64
	ReceiptTimeout  time.Duration
	MaxRetries      int
}

// Configured is true only when every credential required for live transactions is present.
func (c ChainConfig) Configured() bool {
	return c.RPCURL != "" && c.PrivateKey != "" && c.ContractAddress != ""
}

type StorageConfig struct {
	Driver     string
	PinataJWT  string
	APIURL     string
	GatewayURL string
	Timeout    time.Duration
	MaxRetries int
}

type AuthConfig struct {
	AdminToken string
	OIDCIssuer string
}

type RegistrationConfig struct {
	QRSecretKey string
	TokenTTL    time.Duration
	QRSize      int
}

type ArtifactConfig struct {
	Queue       string
	Workers     int
	BufferSize  int
	MaxAttempts int
	FontPath    string
	// WorkerPort serves /metrics for the standalone artifact-worker.
	WorkerPort string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectTries:  getEnvInt("DB_CONNECT_TRIES", 5),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			SignerTTL: getEnvDuration("SIGNER_LOCK_TTL", 3*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			GroupID: getEnv("KAFKA_GROUP_ID", "certificate-artifact-workers"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				AttendanceRecorded: getEnv("KAFKA_TOPIC_ATTENDANCE", "attendance.recorded"),
				CertificateIssued:  getEnv("KAFKA_TOPIC_CERTIFICATE", "certificate.issued"),
				ArtifactRequested:  getEnv("KAFKA_TOPIC_ARTIFACT", "certificates.artifact.requested"),
			},
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("POLYGON_AMOY_RPC_URL", ""),
			PrivateKey:      getEnv("PRIVATE_KEY", ""),
			ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
			NetworkName:     getEnv("CHAIN_NETWORK_NAME", "Polygon Amoy"),
			ChainID:         int64(getEnvInt("CHAIN_ID", 80002)),
			ExplorerURL:     getEnv("CHAIN_EXPLORER_URL", "https://amoy.polygonscan.com"),
			GasMultiplier:   int64(getEnvInt("CHAIN_GAS_MULTIPLIER", 2)),
			ReceiptTimeout:  getEnvDuration("CHAIN_RECEIPT_TIMEOUT", 2*time.Minute),
			MaxRetries:      getEnvInt("CHAIN_MAX_RETRIES", 3),
		},
		Storage: StorageConfig{
			Driver:     getEnv("STORAGE_DRIVER", "pinata"),
			PinataJWT:  getEnv("PINATA_JWT", ""),
			APIURL:     getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
			GatewayURL: getEnv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud"),
			Timeout:    getEnvDuration("PINATA_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("PINATA_MAX_RETRIES", 3),
		},
		Auth: AuthConfig{
			AdminToken: getEnv("ADMIN_TOKEN", ""),
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		Registration: RegistrationConfig{
			QRSecretKey: getEnv("QR_SECRET_KEY", ""),
			TokenTTL:    getEnvDuration("QR_TOKEN_TTL", 24*time.Hour),
			QRSize:      getEnvInt("QR_SIZE", 256),
		},
		Artifact: ArtifactConfig{
			Queue:       getEnv("ARTIFACT_QUEUE", "local"),
			Workers:     getEnvInt("ARTIFACT_WORKERS", 2),
			BufferSize:  getEnvInt("ARTIFACT_BUFFER", 256),
			MaxAttempts: getEnvInt("ARTIFACT_MAX_ATTEMPTS", 5),
			FontPath:    getEnv("CERT_FONT_PATH", "./fonts/DejaVuSans.ttf"),
			WorkerPort:  getEnv("ARTIFACT_WORKER_PORT", ":9091"),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", ""),
			Database:   getEnv("MONGO_DATABASE", "certificates"),
			Collection: getEnv("MONGO_MINT_RUNS_COLLECTION", "mint_runs"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
