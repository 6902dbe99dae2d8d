package types

import "time"

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseSchema  string `envconfig:"DATABASE_SCHEMA" default:"public"`
	// The change feed listener holds one connection for as long as it runs.
	DatabaseMaxConns int32 `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Supabase Auth
	SupabaseURL       string `envconfig:"SUPABASE_URL"`
	SupabaseProjectID string `envconfig:"SUPABASE_PROJECT_ID"`
	JWKSURL           string `envconfig:"JWKS_URL"`

	// Optional session cookie carrying the access token for browser clients.
	// openssl rand -base64 32
	// to generate values
	CookieName     string `envconfig:"SESSION_COOKIE_NAME" default:"eg_access_token"`
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// Vector index
	QdrantURL    string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey string `envconfig:"QDRANT_API_KEY"`

	// Embeddings
	EmbeddingProvider   string        `envconfig:"EMBEDDING_PROVIDER" default:"google"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	GoogleAPIKey        string        `envconfig:"GOOGLE_API_KEY"`
	GoogleAPIBaseURL    string        `envconfig:"GOOGLE_API_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string        `envconfig:"OPENAI_BASE_URL"`
	RedisURL            string        `envconfig:"REDIS_URL"`
	EmbeddingCacheTTL   time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`

	// Push gateway
	ExpoPushURL     string `envconfig:"EXPO_PUSH_URL" default:"https://exp.host"`
	ExpoAccessToken string `envconfig:"EXPO_ACCESS_TOKEN"`

	// Media (Supabase Storage S3 endpoint)
	MediaBucket   string `envconfig:"MEDIA_BUCKET" default:"report-media"`
	MediaEndpoint string `envconfig:"MEDIA_S3_ENDPOINT"`
	MediaVerify   bool   `envconfig:"MEDIA_VERIFY" default:"false"`

	// Outbox dispatcher
	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	OutboxBatchSize    uint64        `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxEmbedded     bool          `envconfig:"OUTBOX_EMBEDDED" default:"false"`

	// Lock the report row while transitioning. Off by default: concurrent
	// transitions to different targets are last-write-wins.
	SerializeTransitions bool `envconfig:"SERIALIZE_TRANSITIONS" default:"false"`

	FeedChannel string `envconfig:"FEED_CHANNEL" default:"report_changes"`
}
