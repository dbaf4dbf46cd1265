package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	AutoMigrate           bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CartTTLHours          int
	AuthSecret            string
	AccessTokenTTLMinutes int
	SeedAdminPassword     string
	WebhookTimeoutSeconds int
	WebhookMaxRetries     int
	NotifyQueueSize       int
	KafkaBrokers          []string
	KafkaTopic            string
	AssetBaseURL          string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		AutoMigrate:           getBool("DB_AUTO_MIGRATE", true),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CartTTLHours:          getPositiveInt("CART_TTL_HOURS", 12),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		SeedAdminPassword:     os.Getenv("SEED_ADMIN_PASSWORD"),
		WebhookTimeoutSeconds: getPositiveInt("WEBHOOK_TIMEOUT_SECONDS", 10),
		WebhookMaxRetries:     getNonNegativeInt("WEBHOOK_MAX_RETRIES", 3),
		NotifyQueueSize:       getPositiveInt("NOTIFY_QUEUE_SIZE", 256),
		KafkaBrokers:          splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "pos.orders"),
		AssetBaseURL:          strings.TrimRight(getEnv("ASSET_BASE_URL", "http://127.0.0.1:8080/storage"), "/"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// WebhookURL is looked up on every call so the endpoint can be rotated
// without restarting the process.
func WebhookURL() string {
	return strings.TrimSpace(os.Getenv("MAKE_WEBHOOK_URL"))
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getNonNegativeInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
