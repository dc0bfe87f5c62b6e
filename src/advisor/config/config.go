package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campus-stack/faculty-advisor/src/advisor/data"
)

type Config struct {
	Port     string
	RedisURL string

	JWTSecret      string
	TokenLifetime  time.Duration
	AllowedDomains []string
	AutoProvision  bool

	SessionTTL time.Duration
	HistoryMax int

	AIProvider  string
	AIModel     string
	AIEndpoint  string
	AIKey       string
	AITemp      float64
	AIMaxTokens int

	RetrievalURL string
	StageTimeout time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s: %v", key, err)
	}
	return n
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("env %s: %v", key, err)
	}
	return b
}

// settingOr resolves a runtime-tunable value: settings table first, then the
// environment, then the default. LoadSettings must have run for the table
// layer to apply; otherwise this degrades to env-or-default.
func settingOr(name, envKey, def string) string {
	if v := data.GetSetting(name); v != "" {
		return v
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

func settingInt(name, envKey string, def int) int {
	v := settingOr(name, envKey, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("setting %s: %v", name, err)
	}
	return n
}

func settingFloat(name, envKey string, def float64) float64 {
	v := settingOr(name, envKey, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("setting %s: %v", name, err)
	}
	return f
}

func Load() Config {
	domains := strings.Split(getenv("ALLOWED_DOMAINS", "amrita.edu,cb.students.amrita.edu"), ",")
	for i := range domains {
		domains[i] = strings.TrimSpace(domains[i])
	}
	return Config{
		Port:           getenv("PORT", "8080"),
		RedisURL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:      getenv("JWT_SECRET", "change-me-in-production"),
		TokenLifetime:  time.Duration(getint("TOKEN_LIFETIME_MIN", 60)) * time.Minute,
		AllowedDomains: domains,
		AutoProvision:  getbool("AUTO_PROVISION", true),
		SessionTTL:     time.Duration(getint("SESSION_TTL_MIN", 30)) * time.Minute,
		HistoryMax:     settingInt("history_max", "HISTORY_MAX", 50),
		AIProvider:     getenv("AI_PROVIDER", "claude"),
		AIModel:        settingOr("ai_model", "AI_MODEL", "claude-3-haiku-20240307"),
		AIEndpoint:     os.Getenv("AI_ENDPOINT"),
		AIKey:          os.Getenv("AI_API_KEY"),
		AITemp:         settingFloat("ai_temperature", "AI_TEMPERATURE", 0.2),
		AIMaxTokens:    settingInt("ai_max_tokens", "AI_MAX_TOKENS", 1000),
		RetrievalURL:   settingOr("retrieval_url", "RETRIEVAL_URL", ""),
		StageTimeout:   time.Duration(getint("STAGE_TIMEOUT_SEC", 30)) * time.Second,
	}
}
