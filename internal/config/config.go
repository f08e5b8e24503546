package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort int
	KVPort   int
	LogLevel string

	Store       string
	DataDir     string
	BoltPath    string
	DatabaseURL string
	StoreAddr   string
	DisableTLS  bool

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModel   string
	ElevenLabsBaseURL string

	NatsURL   string
	NatsToken string
}

func Load() Config {
	return Config{
		HTTPPort: envInt("ASSIST_HTTP_PORT", 7002),
		KVPort:   envInt("ASSIST_KV_PORT", 7001),
		LogLevel: envStr("LOG_LEVEL", "info"),

		Store:       envStr("ASSIST_STORE", "file"),
		DataDir:     envStr("ASSIST_DATA_DIR", "./data"),
		BoltPath:    envStr("ASSIST_BOLT_PATH", "./data/assist.bolt"),
		DatabaseURL: envStr("DATABASE_URL", ""),
		StoreAddr:   envStr("ASSIST_STORE_ADDR", ""),
		DisableTLS:  envBool("ASSIST_DISABLE_TLS", false),

		GeminiAPIKey:  envStr("GEMINI_API_KEY", ""),
		GeminiModel:   envStr("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		GeminiBaseURL: envStr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		ElevenLabsAPIKey:  envStr("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: envStr("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModel:   envStr("ELEVENLABS_MODEL", "eleven_turbo_v2"),
		ElevenLabsBaseURL: envStr("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
