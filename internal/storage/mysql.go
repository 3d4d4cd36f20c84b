package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"resume-match-go/internal/config"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-match-go/storage/mysql")

// GormTracingPlugin GORM插件，为数据库操作生成OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

type gormSpanKey struct{}

// before 返回在GORM操作之前执行的回调
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 未命中属于正常业务路径
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// MySQL 关系型持久化，承载分块、画像、技能经验与评分结果
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL连接并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql配置不能为空")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("mysql host不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectTimeoutSeconds)
	if cfg.ReadTimeoutSeconds > 0 {
		dsn += fmt.Sprintf("&readTimeout=%ds", cfg.ReadTimeoutSeconds)
	}
	if cfg.WriteTimeoutSeconds > 0 {
		dsn += fmt.Sprintf("&writeTimeout=%ds", cfg.WriteTimeoutSeconds)
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.LogLevel(cfg.LogLevel)),
	}
	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册GORM追踪插件失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层数据库连接失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.AutoMigrate(
		&models.ResumeChunk{},
		&models.ResumeProfile{},
		&models.SkillExperience{},
		&models.MatchScore{},
	); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return &MySQL{db: db, cfg: cfg}, nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveChunks 替换一份简历的全部分块记录
// 删除与写入在同一事务内完成
func (m *MySQL) SaveChunks(ctx context.Context, resumeID string, chunks []types.Chunk) error {
	records := make([]models.ResumeChunk, 0, len(chunks))
	for _, chunk := range chunks {
		record := models.ResumeChunk{
			ResumeID:      resumeID,
			SequenceIndex: chunk.SequenceIndex,
			ChunkText:     chunk.Text,
		}
		if chunk.JobContext != nil {
			data, err := json.Marshal(chunk.JobContext)
			if err != nil {
				return fmt.Errorf("序列化分块工作上下文失败: %w", err)
			}
			record.JobContextJSON = data
		}
		records = append(records, record)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resume_id = ?", resumeID).Delete(&models.ResumeChunk{}).Error; err != nil {
			return fmt.Errorf("清除旧分块记录失败: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("写入分块记录失败: %w", err)
		}
		return nil
	})
}

// GetChunks 按序取回一份简历的分块
func (m *MySQL) GetChunks(ctx context.Context, resumeID string) ([]types.Chunk, error) {
	var records []models.ResumeChunk
	if err := m.db.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		Order("sequence_index ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询分块记录失败: %w", err)
	}

	chunks := make([]types.Chunk, 0, len(records))
	for _, record := range records {
		chunk := types.Chunk{
			Text:          record.ChunkText,
			SequenceIndex: record.SequenceIndex,
		}
		if len(record.JobContextJSON) > 0 {
			var entry types.WorkHistoryEntry
			if err := json.Unmarshal(record.JobContextJSON, &entry); err != nil {
				return nil, fmt.Errorf("解析分块工作上下文失败: %w", err)
			}
			chunk.JobContext = &entry
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// SaveResumeProfile 写入或更新简历画像
func (m *MySQL) SaveResumeProfile(ctx context.Context, profile *types.ResumeProfile) error {
	if profile == nil {
		return fmt.Errorf("简历画像不能为空")
	}

	historyJSON, err := json.Marshal(profile.WorkHistory)
	if err != nil {
		return fmt.Errorf("序列化工作经历失败: %w", err)
	}

	record := models.ResumeProfile{
		ResumeID:          profile.ResumeID,
		TotalYears:        profile.TotalYears,
		HasCertifications: profile.HasCertifications,
		HasProjects:       profile.HasProjects,
		WorkHistoryJSON:   historyJSON,
	}
	if err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error; err != nil {
		return fmt.Errorf("写入简历画像失败: %w", err)
	}
	return nil
}

// GetResumeProfile 读取简历画像，不存在时返回错误
func (m *MySQL) GetResumeProfile(ctx context.Context, resumeID string) (*types.ResumeProfile, error) {
	var record models.ResumeProfile
	if err := m.db.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("简历画像不存在: %s", resumeID)
		}
		return nil, fmt.Errorf("查询简历画像失败: %w", err)
	}

	profile := &types.ResumeProfile{
		ResumeID:          record.ResumeID,
		TotalYears:        record.TotalYears,
		HasCertifications: record.HasCertifications,
		HasProjects:       record.HasProjects,
	}
	if len(record.WorkHistoryJSON) > 0 {
		if err := json.Unmarshal(record.WorkHistoryJSON, &profile.WorkHistory); err != nil {
			return nil, fmt.Errorf("解析工作经历失败: %w", err)
		}
	}
	return profile, nil
}

// SaveSkillExperienceMap 替换一份简历的全部技能经验行
// 整份映射在同一事务内换掉，绝不逐技能更新
func (m *MySQL) SaveSkillExperienceMap(ctx context.Context, resumeID string, experiences map[string]types.SkillExperience) error {
	records := make([]models.SkillExperience, 0, len(experiences))
	for skillName, experience := range experiences {
		breakdownJSON, err := json.Marshal(experience.JobBreakdown)
		if err != nil {
			return fmt.Errorf("序列化技能经验明细失败: %w", err)
		}
		records = append(records, models.SkillExperience{
			ResumeID:      resumeID,
			SkillName:     skillName,
			TotalYears:    experience.TotalYears,
			BreakdownJSON: breakdownJSON,
		})
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resume_id = ?", resumeID).Delete(&models.SkillExperience{}).Error; err != nil {
			return fmt.Errorf("清除旧技能经验失败: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("写入技能经验失败: %w", err)
		}
		return nil
	})
}

// GetSkillExperienceMap 读取一份简历的技能经验映射，未摄取时返回空映射
func (m *MySQL) GetSkillExperienceMap(ctx context.Context, resumeID string) (map[string]types.SkillExperience, error) {
	var records []models.SkillExperience
	if err := m.db.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询技能经验失败: %w", err)
	}

	experiences := make(map[string]types.SkillExperience, len(records))
	for _, record := range records {
		experience := types.SkillExperience{
			SkillName:    record.SkillName,
			TotalYears:   record.TotalYears,
			JobBreakdown: []types.JobBreakdownEntry{},
		}
		if len(record.BreakdownJSON) > 0 {
			if err := json.Unmarshal(record.BreakdownJSON, &experience.JobBreakdown); err != nil {
				return nil, fmt.Errorf("解析技能经验明细失败: %w", err)
			}
		}
		experiences[record.SkillName] = experience
	}
	return experiences, nil
}

// SaveScoreResult 持久化一次评分结果，每次请求一条新记录
func (m *MySQL) SaveScoreResult(ctx context.Context, resumeID, jobID string, result *types.ScoreResult) error {
	if result == nil {
		return fmt.Errorf("评分结果不能为空")
	}

	skillScoresJSON, err := json.Marshal(result.SkillScores)
	if err != nil {
		return fmt.Errorf("序列化技能评分失败: %w", err)
	}

	record := models.MatchScore{
		RunID:           uuid.NewString(),
		ResumeID:        resumeID,
		JobID:           jobID,
		OverallScore:    result.OverallScore,
		CoreSkillsScore: result.CoreSkillsScore,
		ExperienceScore: result.ExperienceScore,
		AdditionalScore: result.AdditionalScore,
		SkillScoresJSON: skillScoresJSON,
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("写入评分结果失败: %w", err)
	}
	return nil
}

// GetScoreHistory 按时间倒序取回某简历对某岗位的历史评分
func (m *MySQL) GetScoreHistory(ctx context.Context, resumeID, jobID string, limit int) ([]types.ScoreResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []models.MatchScore
	if err := m.db.WithContext(ctx).
		Where("resume_id = ? AND job_id = ?", resumeID, jobID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询评分历史失败: %w", err)
	}

	results := make([]types.ScoreResult, 0, len(records))
	for _, record := range records {
		result := types.ScoreResult{
			OverallScore:    record.OverallScore,
			CoreSkillsScore: record.CoreSkillsScore,
			ExperienceScore: record.ExperienceScore,
			AdditionalScore: record.AdditionalScore,
		}
		if len(record.SkillScoresJSON) > 0 {
			if err := json.Unmarshal(record.SkillScoresJSON, &result.SkillScores); err != nil {
				return nil, fmt.Errorf("解析技能评分失败: %w", err)
			}
		}
		results = append(results, result)
	}
	return results, nil
}
