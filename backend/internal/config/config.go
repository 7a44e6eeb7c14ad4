/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-19 21:10:02
 * @FilePath: \iqupdate\backend\internal\config\config.go
 * @LastEditTime: 2025-10-19 21:10:02
 */
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"iqupdate/backend/internal/infra/logger"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	defaultSQLitePath = "data/iqupdate.db"
)

// Config 汇总服务启动所需的全部配置。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

// ServerConfig 描述 HTTP 监听与路由前缀。
type ServerConfig struct {
	Port               string   `mapstructure:"port"`
	Mode               string   `mapstructure:"mode"`
	APIPrefix          string   `mapstructure:"api_prefix"`
	AdminPrefix        string   `mapstructure:"admin_prefix"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig 描述持久化层。DSN 为空且驱动为 mysql 时由 MySQL 子配置拼接。
type DatabaseConfig struct {
	Driver      string      `mapstructure:"driver"`
	DSN         string      `mapstructure:"dsn"`
	AutoMigrate bool        `mapstructure:"auto_migrate"`
	MySQL       MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig 保存拆分后的 MySQL 连接参数。
type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Params   string `mapstructure:"params"`
}

// RedisConfig 为空 Endpoint 时表示不启用 Redis，会话与限流退化为进程内实现。
type RedisConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 描述后台登录会话。
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	SessionCookie  string        `mapstructure:"session_cookie"`
	CaptchaEnabled bool          `mapstructure:"captcha_enabled"`
}

// RateLimitConfig 控制登录与公开接口的限流，Limit<=0 表示关闭。
type RateLimitConfig struct {
	LoginLimit   int           `mapstructure:"login_limit"`
	LoginWindow  time.Duration `mapstructure:"login_window"`
	PublicLimit  int           `mapstructure:"public_limit"`
	PublicWindow time.Duration `mapstructure:"public_window"`
}

// SeedConfig 指定种子账号的初始密码，为空时沿用默认值。
type SeedConfig struct {
	AdminPassword   string `mapstructure:"admin_password"`
	ReleasePassword string `mapstructure:"release_password"`
}

// envBindings 记录配置键与环境变量的对应关系。
var envBindings = map[string]string{
	"server.port":                 "SERVER_PORT",
	"server.mode":                 "SERVER_MODE",
	"server.api_prefix":           "API_PREFIX",
	"server.admin_prefix":         "ADMIN_PREFIX",
	"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"database.driver":             "DB_DRIVER",
	"database.dsn":                "DB_DSN",
	"database.auto_migrate":       "DB_AUTO_MIGRATE",
	"database.mysql.host":         "MYSQL_HOST",
	"database.mysql.port":         "MYSQL_PORT",
	"database.mysql.user":         "MYSQL_USER",
	"database.mysql.password":     "MYSQL_PASSWORD",
	"database.mysql.database":     "MYSQL_DATABASE",
	"database.mysql.params":       "MYSQL_PARAMS",
	"redis.endpoint":              "REDIS_ENDPOINT",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"auth.jwt_secret":             "JWT_SECRET",
	"auth.session_ttl":            "SESSION_TTL",
	"auth.session_cookie":         "SESSION_COOKIE",
	"auth.captcha_enabled":        "CAPTCHA_ENABLED",
	"rate_limit.login_limit":      "LOGIN_RATE_LIMIT",
	"rate_limit.login_window":     "LOGIN_RATE_WINDOW",
	"rate_limit.public_limit":     "PUBLIC_RATE_LIMIT",
	"rate_limit.public_window":    "PUBLIC_RATE_WINDOW",
	"seed.admin_password":         "SEED_ADMIN_PASSWORD",
	"seed.release_password":       "SEED_RELEASE_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.api_prefix", "/iq7/v1")
	v.SetDefault("server.admin_prefix", "/admin")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.params", "charset=utf8mb4&parseTime=true&loc=Local")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.session_ttl", "12h")
	v.SetDefault("auth.session_cookie", "admin_session")
	v.SetDefault("auth.captcha_enabled", false)
	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.login_window", "1m")
	v.SetDefault("rate_limit.public_limit", 0)
	v.SetDefault("rate_limit.public_window", "1m")
}

// Load 读取 .env、可选的 config.yaml 以及环境变量，返回校验后的配置。
// 优先级：进程环境变量 > .env.local > .env > config.yaml > 默认值。
func Load() (*Config, error) {
	if files := LoadEnvFiles(); len(files) > 0 {
		logger.S().With("component", "config").Infow("loaded environment files", "files", files)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := strings.TrimSpace(os.Getenv("CONFIG_PATH")); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.Mode = strings.ToLower(strings.TrimSpace(c.Server.Mode))
	c.Server.APIPrefix = normalisePrefix(c.Server.APIPrefix)
	c.Server.AdminPrefix = normalisePrefix(c.Server.AdminPrefix)
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" && c.Database.Driver == DriverSQLite {
		c.Database.DSN = defaultSQLitePath
	}
	c.Redis.Endpoint = strings.TrimSpace(c.Redis.Endpoint)

	origins := make([]string, 0, len(c.Server.CORSAllowedOrigins))
	for _, item := range c.Server.CORSAllowedOrigins {
		for _, part := range strings.Split(item, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	c.Server.CORSAllowedOrigins = origins
}

// Validate 校验必填项与取值范围。
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("unsupported SERVER_MODE %q", c.Server.Mode)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver != DriverMySQL {
		return fmt.Errorf("DB_DSN is required for driver %s", c.Database.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Server.Mode == "release" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.Auth.JWTSecret))
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if strings.TrimSpace(c.Auth.SessionCookie) == "" {
		return errors.New("SESSION_COOKIE cannot be empty")
	}
	if c.RateLimit.LoginLimit > 0 && c.RateLimit.LoginWindow <= 0 {
		return errors.New("LOGIN_RATE_WINDOW must be positive when LOGIN_RATE_LIMIT is set")
	}
	if c.RateLimit.PublicLimit > 0 && c.RateLimit.PublicWindow <= 0 {
		return errors.New("PUBLIC_RATE_WINDOW must be positive when PUBLIC_RATE_LIMIT is set")
	}
	if c.Server.APIPrefix == c.Server.AdminPrefix {
		return fmt.Errorf("API_PREFIX and ADMIN_PREFIX must differ (both %q)", c.Server.APIPrefix)
	}
	return nil
}

// UpdatesPath 返回公开更新列表的完整路径，也是“返回”链接的默认目标。
func (c ServerConfig) UpdatesPath() string {
	return c.APIPrefix + "/updates"
}

// normalisePrefix 保证前缀以 / 开头且不以 / 结尾，空值视为根路径。
func normalisePrefix(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
