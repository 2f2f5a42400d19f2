package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Keys     APIKeys
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	PublicDir          string
	ChartBaseURL       string
	NavRoutesPath      string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type APIKeys struct {
	GoogleGemini string
	JWTSecret    string
}

type AIConfig struct {
	ChatModel         string
	FallbackModels    []string
	ClassifierModel   string
	EmbeddingProvider string // "gemini" or "ollama"
	EmbeddingModel    string
	OllamaBaseURL     string
	OllamaModel       string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	chatModel := getEnv("CHAT_MODEL", "gemini-2.5-flash")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			PublicDir:          getEnv("PUBLIC_DIR", "public"),
			ChartBaseURL:       getEnv("CHART_BASE_URL", "/static/demo"),
			NavRoutesPath:      getEnv("NAV_ROUTES_PATH", "navigation_routes.json"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Cubie-TCube360"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			ChatModel: chatModel,
			FallbackModels: getEnvAsList("FALLBACK_MODELS",
				[]string{chatModel, "gemini-2.0-flash", "models/gemini-flash-latest"}),
			ClassifierModel:   getEnv("CLASSIFIER_MODEL", "gemini-2.0-flash"),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
