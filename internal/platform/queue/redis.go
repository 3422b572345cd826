package queue

import (
	"context"
	"fmt"
	"time"

	"codejudge/internal/platform/config"
	"codejudge/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

func ConnectRedis() error {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := RDB.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("could not connect to Redis: %w", err)
	}
	logger.NewNamedLogger("redis").Infof("Connected to Redis at %s", config.AppConfig.RedisAddr)
	return nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		logger.NewNamedLogger("redis").Info("Redis connection closed")
	}
}
