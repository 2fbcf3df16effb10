package config

import (
	"os"
	"strconv"
	"time"

	"minigame_bot/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	LogLevel string
	LogJSON  bool

	// Room store backend: memory | sqlite | postgres | redis
	StoreBackend  string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	JWTSecret string

	// Chat platform gateway (OneBot-style websocket)
	GatewayURL   string
	GatewayToken string

	Timeouts Timeouts
}

// Timeouts holds every phase ceiling of the engine.
type Timeouts struct {
	NightInit      time.Duration
	NightWitch     time.Duration
	Speech         time.Duration
	Vote           time.Duration
	HunterShoot    time.Duration
	RouletteTurn   time.Duration
	LobbyAutoStart time.Duration
	QuizAnswer     time.Duration

	LockWait     time.Duration
	IdleCeiling  time.Duration
	ReapInterval time.Duration
}

// Load reads configuration from environment (.env supported).
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",
		StoreBackend:  getEnv("STORE_BACKEND", "memory"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/rooms.db"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		GatewayURL:    os.Getenv("GATEWAY_WS_URL"),
		GatewayToken:  os.Getenv("GATEWAY_ACCESS_TOKEN"),
		Timeouts: Timeouts{
			NightInit:      getEnvDuration("NIGHT_INIT_TIMEOUT", 40*time.Second),
			NightWitch:     getEnvDuration("NIGHT_WITCH_TIMEOUT", 30*time.Second),
			Speech:         getEnvDuration("SPEECH_TIMEOUT", 45*time.Second),
			Vote:           getEnvDuration("VOTE_TIMEOUT", 60*time.Second),
			HunterShoot:    getEnvDuration("HUNTER_SHOOT_TIMEOUT", 30*time.Second),
			RouletteTurn:   getEnvDuration("ROULETTE_TURN_TIMEOUT", 60*time.Second),
			LobbyAutoStart: getEnvDuration("LOBBY_AUTOSTART_TIMEOUT", 30*time.Second),
			QuizAnswer:     getEnvDuration("QUIZ_ANSWER_TIMEOUT", 60*time.Second),
			LockWait:       getEnvDuration("ROOM_LOCK_WAIT", 10*time.Second),
			IdleCeiling:    getEnvDuration("IDLE_ROOM_CEILING", 2*time.Hour),
			ReapInterval:   getEnvDuration("REAP_INTERVAL", 10*time.Minute),
		},
	}

	switch cfg.StoreBackend {
	case "memory", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL is not set but STORE_BACKEND=postgres")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			logger.Fatal("REDIS_ADDR is not set but STORE_BACKEND=redis")
		}
	default:
		logger.Fatal("unknown STORE_BACKEND", "value", cfg.StoreBackend)
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
