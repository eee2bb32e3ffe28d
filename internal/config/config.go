package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Queue / worker settings
	UseMemoryQueue   bool
	WorkerCount      int
	DispatchQueueURL string
	DispatchJobTable string

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Call control provider (rooms, SIP dial, transfer)
	CallControlBaseURL string
	CallControlAPIKey  string
	SIPOutboundTrunkID string
	AgentName          string

	// Rendezvous and teardown tuning
	ParticipantJoinTimeout time.Duration
	PlayoutGracePeriod     time.Duration

	// Transcript artifacts
	TranscriptDir    string
	TranscriptBucket string

	// Admin auth for the dispatch API
	AdminJWTSecret string

	// AWS / LocalStack
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		UseMemoryQueue:   getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 2),
		DispatchQueueURL: getEnv("DISPATCH_QUEUE_URL", ""),
		DispatchJobTable: getEnv("DISPATCH_JOBS_TABLE", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CallControlBaseURL: getEnv("CALL_CONTROL_BASE_URL", ""),
		CallControlAPIKey:  getEnv("CALL_CONTROL_API_KEY", ""),
		SIPOutboundTrunkID: getEnv("SIP_OUTBOUND_TRUNK_ID", ""),
		AgentName:          getEnv("AGENT_NAME", "outbound-caller"),

		ParticipantJoinTimeout: getEnvAsDuration("PARTICIPANT_JOIN_TIMEOUT", 30*time.Second),
		PlayoutGracePeriod:     getEnvAsDuration("PLAYOUT_GRACE_PERIOD", 15*time.Second),

		TranscriptDir:    getEnv("TRANSCRIPT_DIR", "logs"),
		TranscriptBucket: getEnv("TRANSCRIPT_BUCKET", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
