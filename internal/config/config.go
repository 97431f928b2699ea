package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser          string
	DBPassword      string
	DBName          string
	DBHost          string
	DBPort          string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	BotToken        string
	ChannelLink     string
	AppDownloadLink string
	PayoutAPIURL    string
	PayoutAPIKey    string
	StorageDriver   string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "intersell_bot"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelLink:     getEnv("CHANNEL_LINK", ""),
		AppDownloadLink: getEnv("APP_DOWNLOAD_LINK", ""),
		PayoutAPIURL:    getEnv("PAYOUT_API_URL", ""),
		PayoutAPIKey:    getEnv("PAYOUT_API_KEY", ""),
		StorageDriver:   getEnv("STORAGE_DRIVER", "postgres"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
