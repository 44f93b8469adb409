package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/config"
)

const maxConnectRetries = 10

// Connect opens the MySQL pool and the Redis client, waiting for both to
// become reachable (containers tend to come up slower than the app).
func Connect(cfg *config.Config, log *zap.Logger) (*sql.DB, *redis.Client, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}

	for i := 1; i <= maxConnectRetries; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		log.Info("waiting for MySQL", zap.Int("attempt", i), zap.Int("max", maxConnectRetries))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect mysql after %d attempts: %w", maxConnectRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	log.Info("connected to MySQL", zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	for i := 1; i <= maxConnectRetries; i++ {
		err = rdb.Ping(ctx).Err()
		if err == nil {
			break
		}
		log.Info("waiting for Redis", zap.Int("attempt", i), zap.Int("max", maxConnectRetries))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis after %d attempts: %w", maxConnectRetries, err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr()))

	return db, rdb, nil
}

// Migrate creates the durable tables. UNIQUE on referrals.referred_id is
// load-bearing: it is what keeps referral crediting exactly-once.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT NOT NULL,
			username VARCHAR(64) NULL,
			full_name VARCHAR(255) NULL,
			balance DOUBLE NOT NULL DEFAULT 0,
			referral_count INT NOT NULL DEFAULT 0,
			last_bonus_claim_at TIMESTAMP NULL DEFAULT NULL,
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id),
			KEY idx_users_username (username)
		)`,
		`CREATE TABLE IF NOT EXISTS referrals (
			referred_id BIGINT NOT NULL,
			referrer_id BIGINT NOT NULL,
			credited_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (referred_id),
			KEY idx_referrals_referrer (referrer_id)
		)`,
		`CREATE TABLE IF NOT EXISTS pending_referrals (
			referred_id BIGINT NOT NULL,
			referrer_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (referred_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
