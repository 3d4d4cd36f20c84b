package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// ErrNotFound 键不存在
var ErrNotFound = redis.Nil

// Redis 键值存储，承载LLM响应缓存和技能经验映射
type Redis struct {
	Client   *redis.Client
	cfg      *config.RedisConfig
	cacheTTL time.Duration
}

// RedisOption 定义Redis构造函数选项
type RedisOption func(*Redis)

// WithCacheTTL 设置LLM响应缓存的过期时间
func WithCacheTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// NewRedis 创建Redis客户端连接
func NewRedis(cfg *config.RedisConfig, opts ...RedisOption) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子，所有Redis操作生成span
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis失败 (%s): %w", cfg.Address, err)
	}

	r := &Redis{
		Client:   client,
		cfg:      cfg,
		cacheTTL: constants.OracleCacheDuration,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// SaveSkillExperienceMap 写入一份简历的完整技能经验映射
// 整份映射序列化为单个值一次SET，替换天然原子
func (r *Redis) SaveSkillExperienceMap(ctx context.Context, resumeID string, experiences map[string]types.SkillExperience) error {
	if resumeID == "" {
		return fmt.Errorf("简历ID不能为空")
	}

	data, err := json.Marshal(experiences)
	if err != nil {
		return fmt.Errorf("序列化技能经验映射失败: %w", err)
	}

	key := fmt.Sprintf(constants.KeySkillExperienceMap, resumeID)
	if err := r.Client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("写入技能经验映射失败: %w", err)
	}
	return nil
}

// GetSkillExperienceMap 读取技能经验映射，未摄取时返回空映射
func (r *Redis) GetSkillExperienceMap(ctx context.Context, resumeID string) (map[string]types.SkillExperience, error) {
	if resumeID == "" {
		return nil, fmt.Errorf("简历ID不能为空")
	}

	key := fmt.Sprintf(constants.KeySkillExperienceMap, resumeID)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]types.SkillExperience{}, nil
		}
		return nil, fmt.Errorf("读取技能经验映射失败: %w", err)
	}

	var experiences map[string]types.SkillExperience
	if err := json.Unmarshal(data, &experiences); err != nil {
		return nil, fmt.Errorf("解析技能经验映射失败: %w", err)
	}
	return experiences, nil
}

// DeleteSkillExperienceMap 删除一份简历的技能经验映射
func (r *Redis) DeleteSkillExperienceMap(ctx context.Context, resumeID string) error {
	key := fmt.Sprintf(constants.KeySkillExperienceMap, resumeID)
	return r.Client.Del(ctx, key).Err()
}

// OracleCacheKey 计算LLM响应缓存键
// 键为提示类型和输入文本的内容哈希，输入相同即命中
func OracleCacheKey(promptKind, input string) string {
	sum := sha1.Sum([]byte(promptKind + "\x00" + input))
	return fmt.Sprintf(constants.KeyOracleResponseCache, hex.EncodeToString(sum[:]))
}

// Get 查询LLM响应缓存，未命中返回ok=false而非错误
func (r *Redis) Get(ctx context.Context, promptKind, input string, out interface{}) (bool, error) {
	data, err := r.Client.Get(ctx, OracleCacheKey(promptKind, input)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("读取LLM响应缓存失败: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("解析LLM响应缓存失败: %w", err)
	}
	return true, nil
}

// Set 写入LLM响应缓存
func (r *Redis) Set(ctx context.Context, promptKind, input string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化LLM响应失败: %w", err)
	}

	if err := r.Client.Set(ctx, OracleCacheKey(promptKind, input), data, r.cacheTTL).Err(); err != nil {
		return fmt.Errorf("写入LLM响应缓存失败: %w", err)
	}
	return nil
}
