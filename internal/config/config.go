package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr          string
	Port                string
	DatabasePath        string
	SessionSecret       string
	GinMode             string
	JWTSecret           string
	JWTTTL              time.Duration
	MaxTrackingSplit    int
	PeriodCloseInterval time.Duration
	RedisAddr           string
	RedisDB             int
	SuperRootUserName   string
	SuperRootPassword   string
}

// LoadDotEnv 读取 .env 文件（若存在），不会覆盖已设置的环境变量
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := env("PORT", "8080")

	listenAddr := env("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:          listenAddr,
		Port:                port,
		DatabasePath:        env("DATABASE_PATH", "trashinator.db"),
		SessionSecret:       env("SESSION_SECRET", "trashinator-dev-secret"),
		GinMode:             env("GIN_MODE", "release"),
		JWTSecret:           env("JWT_SECRET", "trashinator-dev-jwt-secret"),
		JWTTTL:              time.Duration(envInt("JWT_TTL_HOURS", 24, 1)) * time.Hour,
		MaxTrackingSplit:    envInt("MAX_TRACKING_SPLIT", 3, 1),
		PeriodCloseInterval: envDuration("PERIOD_CLOSE_INTERVAL", time.Hour),
		RedisAddr:           env("REDIS_ADDR", ""),
		RedisDB:             envInt("REDIS_DB", 0, 0),
		SuperRootUserName:   env("SUPER_ROOT_USER_NAME", ""),
		SuperRootPassword:   env("SUPER_ROOT_PASSWORD", ""),
	}
}

func env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// envInt 解析整数配置，小于 minimum 时回退到默认值
func envInt(key string, fallback, minimum int) int {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < minimum {
		log.Printf("[config] invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return value
}
