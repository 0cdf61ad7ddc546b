// 包 utils：Redis 连接工具，统一环境变量读取与可选 DB 选择
package utils

import (
	"gpx-regions/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：从环境变量打开 Redis 客户端，支持 REDIS_DB 选择
// 约束：REDIS_ENABLE 不为 true 时返回 nil，调用方据此跳过二级缓存；REDIS_DB 非法时回退 0
func OpenRedisFromEnv() *redis.Client {
	if !EnvBool("REDIS_ENABLE", false) {
		return nil
	}
	addr := EnvString("REDIS_HOST", "127.0.0.1") + ":" + EnvString("REDIS_PORT", "6379")
	db := EnvInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: EnvString("REDIS_PASS", ""), DB: db})
}
