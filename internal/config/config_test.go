package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("WEBHOOK_TIMEOUT_SECONDS", "abc")
	t.Setenv("WEBHOOK_MAX_RETRIES", "-2")
	t.Setenv("CART_TTL_HOURS", "0")

	cfg := Load()
	if cfg.WebhookTimeoutSeconds != 10 {
		t.Fatalf("expected default webhook timeout 10, got %d", cfg.WebhookTimeoutSeconds)
	}
	if cfg.WebhookMaxRetries != 3 {
		t.Fatalf("expected default retries 3, got %d", cfg.WebhookMaxRetries)
	}
	if cfg.CartTTLHours != 12 {
		t.Fatalf("expected default cart ttl 12, got %d", cfg.CartTTLHours)
	}
}

func TestLoadSplitsKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "kafka-1:9092" || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestWebhookURLIsReadAtCallTime(t *testing.T) {
	t.Setenv("MAKE_WEBHOOK_URL", "")
	if got := WebhookURL(); got != "" {
		t.Fatalf("expected empty webhook url, got %q", got)
	}

	t.Setenv("MAKE_WEBHOOK_URL", " https://hook.example.test/abc ")
	if got := WebhookURL(); got != "https://hook.example.test/abc" {
		t.Fatalf("expected trimmed webhook url, got %q", got)
	}
}
