/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 16:34:40
 * @FilePath: \iqupdate\backend\internal\infra\client\redis_client.go
 * @LastEditTime: 2025-10-20 11:02:51
 */
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"iqupdate/backend/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPort    = 6379
	defaultRedisTimeout = 5 * time.Second
)

// RedisOptions 描述连接 Redis 所需的配置。
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisOptionsFromConfig 将 REDIS_ENDPOINT 等配置转换为连接参数。
// Endpoint 为空时返回 ok=false，表示未启用 Redis。
func RedisOptionsFromConfig(cfg config.RedisConfig) (RedisOptions, bool, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return RedisOptions{}, false, nil
	}

	host, port, err := parseEndpointWithDefault(cfg.Endpoint, defaultRedisPort)
	if err != nil {
		return RedisOptions{}, false, fmt.Errorf("invalid redis endpoint: %w", err)
	}

	return RedisOptions{
		Host:     host,
		Port:     port,
		Password: cfg.Password,
		DB:       cfg.DB,
		Timeout:  defaultRedisTimeout,
	}, true, nil
}

// NewRedisClient 根据配置创建 redis.Client，并执行一次 PING 验证连接。
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("redis host is required")
	}
	if opts.Port == 0 {
		opts.Port = defaultRedisPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func parseEndpointWithDefault(endpoint string, defaultPort int) (string, int, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", 0, fmt.Errorf("endpoint is empty")
	}

	if !strings.Contains(endpoint, ":") {
		return endpoint, defaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}

	return host, port, nil
}
