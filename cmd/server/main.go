// Command server runs the API. main only loads configuration and hands it
// to the server package; all logic lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lovelanguages/server/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := envOr("DB_PATH", "data/lovelanguages.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	origins := strings.Split(envOr("ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := server.Config{
		Port:           port,
		DBPath:         dbPath,
		JWTSecret:      jwtSecret,
		AllowedOrigins: origins,

		LLMBaseURL: os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   envOr("LLM_MODEL", "gpt-4o-mini"),

		TTSEndpoint: os.Getenv("TTS_ENDPOINT"),
		TTSAPIKey:   os.Getenv("TTS_API_KEY"),

		AppleClientID:     os.Getenv("APPLE_CLIENT_ID"),
		AppleClientSecret: os.Getenv("APPLE_CLIENT_SECRET"),

		PromoCodes: parsePromoCodes(os.Getenv("PROMO_CODES"), logger),
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel() slog.Level {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// parsePromoCodes reads "CODE:days,CODE2:days" into a duration map.
// Malformed entries are skipped with a warning.
func parsePromoCodes(raw string, logger *slog.Logger) map[string]time.Duration {
	codes := make(map[string]time.Duration)
	if raw == "" {
		return codes
	}
	for _, entry := range strings.Split(raw, ",") {
		code, daysStr, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			logger.Warn("skipping malformed promo code entry", slog.String("entry", entry))
			continue
		}
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			logger.Warn("skipping promo code with invalid duration", slog.String("entry", entry))
			continue
		}
		codes[code] = time.Duration(days) * 24 * time.Hour
	}
	return codes
}
