package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/processor"
)

// 流水线依赖的存储契约由这些组件满足
var (
	_ processor.VectorStore     = (*Qdrant)(nil)
	_ processor.ChunkStore      = (*MySQL)(nil)
	_ processor.ProfileStore    = (*MySQL)(nil)
	_ processor.ScoreStore      = (*MySQL)(nil)
	_ processor.ExperienceStore = (*MySQL)(nil)
	_ processor.ExperienceStore = (*Redis)(nil)
	_ processor.OracleCache     = (*Redis)(nil)
	_ processor.EventPublisher  = (*RabbitMQ)(nil)
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 消息队列
	RabbitMQ *RabbitMQ

	// 向量数据库
	Qdrant *Qdrant

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器
// 单个组件初始化失败只记录警告，全部失败才返回错误
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else if err = storage.RabbitMQ.Setup(); err != nil {
			logger.Warn().Err(err).Msg("声明RabbitMQ拓扑失败")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ拓扑: %v", err))
		}
	}

	if cfg.Qdrant.Endpoint != "" {
		storage.Qdrant, err = NewQdrant(&cfg.Qdrant)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Qdrant失败")
			initErrors = append(initErrors, fmt.Sprintf("Qdrant: %v", err))
		}
	}

	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MySQL失败")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		cacheTTL := config.GetDuration(cfg.OracleRetry.CacheDurationStr, 0)
		storage.Redis, err = NewRedis(&cfg.Redis, WithCacheTTL(cacheTTL))
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if storage.RabbitMQ == nil && storage.Qdrant == nil && storage.MySQL == nil && storage.Redis == nil {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	// Qdrant走HTTP，无需显式关闭
}
