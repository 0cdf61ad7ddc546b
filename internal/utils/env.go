// 包 utils：环境变量读取辅助，统一"未设置或解析失败即回退默认值"的约定
package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString：读取字符串，空值回退默认
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt：读取整数；解析失败时忽略并回退默认
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func EnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// EnvBool：仅 "true" 视为开启（与既有开关写法一致），其余非空值视为关闭
func EnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true"
}

// EnvSeconds：以秒为单位的时长
func EnvSeconds(key string, def time.Duration) time.Duration {
	if n := EnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
