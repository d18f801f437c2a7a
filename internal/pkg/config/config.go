package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/greatplr/membersync/internal/pkg/env"
)

// Settings carries all tunable behavior in one place. It is built once at
// startup and handed to each component at construction instead of components
// reading the environment themselves.
type Settings struct {
	// Webhook ingestion
	WebhookRoutePrefix string
	WebhookUseQueue    bool

	// Job queue
	QueueWorkers      int
	WebhookMaxRetries int
	WebhookRetryDelay time.Duration

	// User handling
	UserCreationEnabled bool
	SyncUserData        bool
	SyncableFields      []string

	// Entitlement cache
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Load builds Settings from the environment. Defaults mirror the behavior the
// service ships with: queued processing, three retries a minute apart, user
// auto-creation on, five minute access cache.
func Load() *Settings {
	return &Settings{
		WebhookRoutePrefix:  env.GetEnv("AMEMBER_WEBHOOK_PREFIX", "/amember/webhook"),
		WebhookUseQueue:     getBool("AMEMBER_WEBHOOK_USE_QUEUE", true),
		QueueWorkers:        getInt("AMEMBER_WEBHOOK_QUEUE_WORKERS", 3),
		WebhookMaxRetries:   getInt("AMEMBER_WEBHOOK_MAX_RETRIES", 3),
		WebhookRetryDelay:   getSeconds("AMEMBER_WEBHOOK_RETRY_DELAY", 60),
		UserCreationEnabled: getBool("AMEMBER_USER_CREATION_ENABLED", true),
		SyncUserData:        getBool("AMEMBER_SYNC_USER_DATA", true),
		SyncableFields:      getList("AMEMBER_SYNCABLE_FIELDS", []string{"email", "name_f", "name_l"}),
		CacheEnabled:        getBool("AMEMBER_CACHE_ENABLED", true),
		CacheTTL:            getSeconds("AMEMBER_CACHE_TTL", 300),
	}
}

func getBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(env.GetEnv(key, "")))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	val := strings.TrimSpace(env.GetEnv(key, ""))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func getSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getInt(key, defSeconds)) * time.Second
}

func getList(key string, def []string) []string {
	val := strings.TrimSpace(env.GetEnv(key, ""))
	if val == "" {
		return def
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
