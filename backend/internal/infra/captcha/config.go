/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 20:22:45
 * @FilePath: \iqupdate\backend\internal\infra\captcha\config.go
 * @LastEditTime: 2025-10-20 12:41:19
 */
package captcha

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Options 聚合了验证码图像参数以及限流设置。
type Options struct {
	Prefix          string
	TTL             time.Duration
	Width           int
	Height          int
	Length          int
	MaxSkew         float64
	DotCount        int
	RateLimitPerMin int
	// RateLimitWindow 控制单个 IP 的计数窗口长度，超过该时间自动清零。
	RateLimitWindow time.Duration
}

const (
	defaultPrefix    = "iqupdate:captcha" // 默认 Redis Key 前缀
	defaultTTL       = 5 * time.Minute    // 验证码默认过期时间
	defaultWidth     = 240                // 默认图片宽度
	defaultHeight    = 80                 // 默认图片高度
	defaultLength    = 5                  // 默认验证码位数
	defaultMaxSkew   = 0.7                // 默认字符扭曲程度
	defaultDot       = 80                 // 默认噪点数量
	defaultRateLimit = 20                 // 单 IP 每窗口最多生成次数
)

// 环境变量字段名称常量。是否启用由 CAPTCHA_ENABLED 在全局配置中决定。
const (
	envCaptchaPrefix          = "CAPTCHA_PREFIX"
	envCaptchaTTL             = "CAPTCHA_TTL"
	envCaptchaWidth           = "CAPTCHA_WIDTH"
	envCaptchaHeight          = "CAPTCHA_HEIGHT"
	envCaptchaLength          = "CAPTCHA_LENGTH"
	envCaptchaMaxSkew         = "CAPTCHA_MAX_SKEW"
	envCaptchaDotCount        = "CAPTCHA_DOT_COUNT"
	envCaptchaRateLimit       = "CAPTCHA_RATE_LIMIT_PER_MIN"
	envCaptchaRateLimitWindow = "CAPTCHA_RATE_LIMIT_WINDOW"
)

// LoadOptionsFromEnv 解析验证码的图像与限流参数，格式错误时返回错误以便启动阶段终止。
func LoadOptionsFromEnv() (Options, error) {
	opts := Options{Prefix: strings.TrimSpace(os.Getenv(envCaptchaPrefix))}

	var err error
	if opts.TTL, err = durationEnv(envCaptchaTTL); err != nil {
		return Options{}, err
	}
	if opts.RateLimitWindow, err = durationEnv(envCaptchaRateLimitWindow); err != nil {
		return Options{}, err
	}
	if opts.Width, err = intEnv(envCaptchaWidth); err != nil {
		return Options{}, err
	}
	if opts.Height, err = intEnv(envCaptchaHeight); err != nil {
		return Options{}, err
	}
	if opts.Length, err = intEnv(envCaptchaLength); err != nil {
		return Options{}, err
	}
	if opts.DotCount, err = intEnv(envCaptchaDotCount); err != nil {
		return Options{}, err
	}
	if opts.RateLimitPerMin, err = intEnv(envCaptchaRateLimit); err != nil {
		return Options{}, err
	}
	if raw := strings.TrimSpace(os.Getenv(envCaptchaMaxSkew)); raw != "" {
		skew, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Options{}, fmt.Errorf("parse %s: %w", envCaptchaMaxSkew, err)
		}
		opts.MaxSkew = skew
	}

	return opts.withDefaults(), nil
}

// withDefaults 为未设置的字段填充默认值。RateLimitPerMin 为负数时关闭限流。
func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Prefix) == "" {
		o.Prefix = defaultPrefix
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.Length <= 0 {
		o.Length = defaultLength
	}
	if o.MaxSkew <= 0 {
		o.MaxSkew = defaultMaxSkew
	}
	if o.DotCount <= 0 {
		o.DotCount = defaultDot
	}
	if o.RateLimitPerMin == 0 {
		o.RateLimitPerMin = defaultRateLimit
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Minute
	}
	return o
}

func durationEnv(key string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func intEnv(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
