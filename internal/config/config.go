package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	RabbitMQ RabbitMQConfig
	Flow     FlowConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	GinMode      string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects the key-value backend for questionnaire progress.
type StoreConfig struct {
	Backend   string
	KeyPrefix string
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	PoolSize   uint64
	Timeout    time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SQLiteConfig struct {
	Path string
}

type RabbitMQConfig struct {
	URI      string
	Exchange string
}

type FlowConfig struct {
	QuestionnaireFile string
	AutoSaveInterval  time.Duration
	SessionIdleTTL    time.Duration
}

// Load reads .env if present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	return FromEnv()
}

func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("HOST", "0.0.0.0"),
			Port:         getEnv("PORT", "6670"),
			GinMode:      getEnv("GIN_MODE", "release"),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
			KeyPrefix: getEnv("STORE_KEY_PREFIX", "questionnaire"),
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DATABASE", "questionnaire_service"),
			Collection: getEnv("MONGO_COLLECTION", "questionnaire_state"),
			PoolSize:   getEnvAsUint64("MONGO_POOL_SIZE", 50),
			Timeout:    getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 30*24*time.Hour),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "questionnaire.db"),
		},
		RabbitMQ: RabbitMQConfig{
			URI:      getEnv("RABBITMQ_URI", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "questionnaire.events"),
		},
		Flow: FlowConfig{
			QuestionnaireFile: getEnv("QUESTIONNAIRE_FILE", ""),
			AutoSaveInterval:  getEnvAsDuration("AUTOSAVE_INTERVAL", 30*time.Second),
			SessionIdleTTL:    getEnvAsDuration("SESSION_IDLE_TTL", time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("error retrieve int env var %s: %s", key, err)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value, exists := os.LookupEnv(key); exists {
		uintVal, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			log.Printf("error retrieve uint64 env var %s: %s", key, err)
			return defaultValue
		}
		return uintVal
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		duration, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("error retrieve duration env var %s: %s", key, err)
			return defaultValue
		}
		return duration
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
