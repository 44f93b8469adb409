package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the engine reads from the environment.
type Config struct {
	Port     string
	Env      string
	DataDir  string
	AppName  string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	RedisHost     string
	RedisPassword string
	RedisPort     string

	// Quiz score deltas. Wrong answers cost less than right answers gain,
	// and hard questions pay/cost more; keep that asymmetry when tuning.
	EasyCorrect float64
	EasyWrong   float64
	HardCorrect float64
	HardWrong   float64

	// One-time "slow down" notice after this many answers in a session.
	AdvisoryThreshold int

	BonusAmount     float64
	BonusCooldown   time.Duration
	BonusClickGuard time.Duration

	ReferralBonus float64

	// Telegram credentials for the channel-membership verifier. When the
	// token is empty the verifier is permissive (useful in development).
	TelegramToken   string
	ChannelUsername string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads the configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Port:    getEnv("PORT", "3001"),
		Env:     getEnv("APP_ENV", "development"),
		DataDir: getEnv("DATA_DIR", "./data"),
		AppName: getEnv("APP_NAME", "Optimum_v1"),

		DBUser:     getEnv("MYSQL_USER", "root"),
		DBPassword: getEnv("MYSQL_PASSWORD", ""),
		DBHost:     getEnv("MYSQL_HOST", "localhost"),
		DBPort:     getEnv("MYSQL_PORT", "3306"),
		DBName:     getEnv("MYSQL_DATABASE", "optimum"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		EasyCorrect: getEnvAsFloat("QUIZ_EASY_CORRECT", 1.0),
		EasyWrong:   getEnvAsFloat("QUIZ_EASY_WRONG", -0.2),
		HardCorrect: getEnvAsFloat("QUIZ_HARD_CORRECT", 3.0),
		HardWrong:   getEnvAsFloat("QUIZ_HARD_WRONG", -0.5),

		AdvisoryThreshold: getEnvAsInt("QUIZ_ADVISORY_THRESHOLD", 7),

		BonusAmount:     getEnvAsFloat("BONUS_AMOUNT", 20),
		BonusCooldown:   getEnvAsDuration("BONUS_COOLDOWN", 12*time.Hour),
		BonusClickGuard: getEnvAsDuration("BONUS_CLICK_GUARD", 1200*time.Millisecond),

		ReferralBonus: getEnvAsFloat("REFERRAL_BONUS", 300),

		TelegramToken:   getEnv("BOT_TOKEN", ""),
		ChannelUsername: getEnv("CHANNEL_USERNAME", "@optimum_LA"),

		RateLimitMax:    getEnvAsInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

// Production reports whether the app runs in production mode.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// DSN builds the MySQL data source name.
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" +
		c.DBName + "?parseTime=true&charset=utf8mb4"
}

// RedisAddr builds the Redis address.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if val, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if val, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if val, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return val
	}
	return defaultValue
}
