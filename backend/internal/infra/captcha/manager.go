package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"iqupdate/backend/internal/infra/ratelimit"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCaptchaNotFound = errors.New("captcha not found or expired")
	ErrCaptchaMismatch = errors.New("captcha code mismatch")
	ErrRateLimited     = errors.New("captcha requests too frequent")
)

// answerStore 保存验证码答案，Take 读取后立即删除，保证一次性使用。
type answerStore interface {
	Set(ctx context.Context, id, answer string) error
	Take(ctx context.Context, id string) (string, bool, error)
}

// Manager 封装后台登录验证码的生成、答案存储以及按 IP 限流。
type Manager struct {
	store   answerStore
	driver  base64Captcha.Driver // 负责生成具体的验证码图片与答案
	limiter ratelimit.Limiter    // 按 IP 限制生成频率，可为空
	maxHits int
	window  time.Duration
}

// NewManager 构造验证码管理器。redisClient 为空时答案保存在进程内。
func NewManager(redisClient *redis.Client, limiter ratelimit.Limiter, opts Options) *Manager {
	opts = opts.withDefaults()

	var store answerStore
	if redisClient != nil {
		store = &redisAnswerStore{client: redisClient, prefix: opts.Prefix, ttl: opts.TTL}
	} else {
		store = &memoryAnswerStore{store: base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, opts.TTL)}
	}

	return &Manager{
		store:   store,
		driver:  base64Captcha.NewDriverDigit(opts.Height, opts.Width, opts.Length, opts.MaxSkew, opts.DotCount),
		limiter: limiter,
		maxHits: opts.RateLimitPerMin,
		window:  opts.RateLimitWindow,
	}
}

// Generate 输出验证码 ID 与 base64 图像，并缓存小写答案。
func (m *Manager) Generate(ctx context.Context, ip string) (string, string, error) {
	if m.limiter != nil && m.maxHits > 0 && strings.TrimSpace(ip) != "" {
		result, err := m.limiter.Allow(ctx, "captcha:"+ip, m.maxHits, m.window)
		if err != nil {
			return "", "", fmt.Errorf("captcha rate limit: %w", err)
		}
		if !result.Allowed {
			return "", "", ErrRateLimited
		}
	}

	id, content, answer := m.driver.GenerateIdQuestionAnswer()
	item, err := m.driver.DrawCaptcha(content)
	if err != nil {
		return "", "", fmt.Errorf("draw captcha: %w", err)
	}

	if err := m.store.Set(ctx, id, strings.ToLower(answer)); err != nil {
		return "", "", fmt.Errorf("store captcha: %w", err)
	}

	return id, item.EncodeB64string(), nil
}

// Verify 对比用户提交的答案。无论成功与否，答案都会被消费。
func (m *Manager) Verify(ctx context.Context, id string, answer string) error {
	if strings.TrimSpace(id) == "" {
		return ErrCaptchaNotFound
	}

	stored, ok, err := m.store.Take(ctx, id)
	if err != nil {
		return fmt.Errorf("load captcha: %w", err)
	}
	if !ok {
		return ErrCaptchaNotFound
	}
	if !strings.EqualFold(strings.TrimSpace(answer), stored) {
		return ErrCaptchaMismatch
	}
	return nil
}

type redisAnswerStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *redisAnswerStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *redisAnswerStore) Set(ctx context.Context, id, answer string) error {
	return s.client.Set(ctx, s.key(id), answer, s.ttl).Err()
}

func (s *redisAnswerStore) Take(ctx context.Context, id string) (string, bool, error) {
	key := s.key(id)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return "", false, err
	}
	return stored, true, nil
}

// memoryAnswerStore 复用 base64Captcha 自带的内存存储，超过 TTL 的答案由其 GC 回收。
type memoryAnswerStore struct {
	store base64Captcha.Store
}

func (s *memoryAnswerStore) Set(_ context.Context, id, answer string) error {
	return s.store.Set(id, answer)
}

func (s *memoryAnswerStore) Take(_ context.Context, id string) (string, bool, error) {
	stored := s.store.Get(id, true)
	return stored, stored != "", nil
}
