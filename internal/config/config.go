// internal/config/config.go
package config

import (
    "os"
    "strconv"
    "time"
)

// Config is the full environment surface of the relay. Every tunable the
// dispatcher and ingestion pipeline need lives here so the mains stay thin.
type Config struct {
    ListenAddr string

    ProviderBaseURL   string
    ProviderToken     string
    ProviderChannelID string

    WebhookSecret string

    RequestTimeout   time.Duration // per outbound provider call
    IngestTimeout    time.Duration // whole webhook processing deadline
    RetryBase        time.Duration
    RetryCap         time.Duration
    RetryMaxAttempts int

    BreakerThreshold int
    BreakerCooldown  time.Duration

    LockTimeout time.Duration // per-customer lock acquisition

    AMQPURL        string
    ResyncQueue    string
    ResyncInterval time.Duration
}

func Load() Config {
    return Config{
        ListenAddr:        envStr("LISTEN_ADDR", ":8080"),
        ProviderBaseURL:   envStr("PROVIDER_API_URL", "https://api.respond.io/v2"),
        ProviderToken:     os.Getenv("PROVIDER_API_TOKEN"),
        ProviderChannelID: os.Getenv("PROVIDER_CHANNEL_ID"),
        WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
        RequestTimeout:    envDuration("PROVIDER_REQUEST_TIMEOUT", 10*time.Second),
        IngestTimeout:     envDuration("INGEST_TIMEOUT", 25*time.Second),
        RetryBase:         envDuration("RETRY_BASE", 500*time.Millisecond),
        RetryCap:          envDuration("RETRY_CAP", 30*time.Second),
        RetryMaxAttempts:  envInt("RETRY_MAX_ATTEMPTS", 5),
        BreakerThreshold:  envInt("BREAKER_THRESHOLD", 5),
        BreakerCooldown:   envDuration("BREAKER_COOLDOWN", 30*time.Second),
        LockTimeout:       envDuration("CUSTOMER_LOCK_TIMEOUT", 5*time.Second),
        AMQPURL:           os.Getenv("AMQP_URL"),
        ResyncQueue:       envStr("RESYNC_QUEUE", "provider_resync"),
        ResyncInterval:    envDuration("RESYNC_INTERVAL", time.Minute),
    }
}

func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            return n
        }
    }
    return def
}

func envDuration(key string, def time.Duration) time.Duration {
    if v := os.Getenv(key); v != "" {
        if d, err := time.ParseDuration(v); err == nil {
            return d
        }
    }
    return def
}
