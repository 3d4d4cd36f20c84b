package processor

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"

	"resume-match-go/internal/scorer"
	"resume-match-go/internal/types"
)

// Oracle 流水线依赖的LLM结构化抽取能力
type Oracle interface {
	ExtractSkills(ctx context.Context, resumeText string) ([]string, error)
	ExtractWorkHistory(ctx context.Context, resumeText string) ([]types.WorkHistoryEntry, error)
	ExtractSkillJobMatches(ctx context.Context, resumeText string, skills []string) (map[string][]types.OracleJobMatch, error)
	ExtractResumeTraits(ctx context.Context, resumeText string) (*types.ResumeTraits, error)
	ExtractJobProfile(ctx context.Context, jobDescription string) (*types.JobProfile, error)
	GradeEvidence(ctx context.Context, skillName, chunkText string) (*types.EvidenceGrade, error)
}

// TextEmbedder 文本向量化能力，与eino的Embedder签名一致
type TextEmbedder = embedding.Embedder

// VectorStore 分块向量的写入与检索
type VectorStore interface {
	UpsertChunkVectors(ctx context.Context, resumeID string, chunks []types.Chunk, vectors [][]float64) ([]string, error)
	SearchChunks(ctx context.Context, resumeID string, vector []float64, limit int) ([]scorer.ChunkHit, error)
}

// ChunkStore 分块记录的持久化
type ChunkStore interface {
	SaveChunks(ctx context.Context, resumeID string, chunks []types.Chunk) error
	GetChunks(ctx context.Context, resumeID string) ([]types.Chunk, error)
}

// ExperienceStore 技能经验映射的持久化
// 保存语义为整份映射的原子替换，绝不按技能逐条更新
type ExperienceStore interface {
	SaveSkillExperienceMap(ctx context.Context, resumeID string, experiences map[string]types.SkillExperience) error
	GetSkillExperienceMap(ctx context.Context, resumeID string) (map[string]types.SkillExperience, error)
}

// ProfileStore 简历画像的持久化
type ProfileStore interface {
	SaveResumeProfile(ctx context.Context, profile *types.ResumeProfile) error
	GetResumeProfile(ctx context.Context, resumeID string) (*types.ResumeProfile, error)
}

// ScoreStore 评分结果的持久化
type ScoreStore interface {
	SaveScoreResult(ctx context.Context, resumeID, jobID string, result *types.ScoreResult) error
}

// OracleCache LLM响应缓存，键为(提示类型,归一化输入)的内容哈希
// 未命中返回ok=false而非错误
type OracleCache interface {
	Get(ctx context.Context, promptKind, input string, out interface{}) (bool, error)
	Set(ctx context.Context, promptKind, input string, value interface{}) error
}

// EventPublisher 流水线完成事件的发布
type EventPublisher interface {
	PublishResumeIngested(ctx context.Context, event *ResumeIngestedEvent) error
	PublishMatchScored(ctx context.Context, event *MatchScoredEvent) error
}

// ResumeIngestedEvent 简历摄取完成事件
type ResumeIngestedEvent struct {
	ResumeID   string  `json:"resume_id"`
	ChunkCount int     `json:"chunk_count"`
	SkillCount int     `json:"skill_count"`
	TotalYears float64 `json:"total_years"`
}

// MatchScoredEvent 评分完成事件
type MatchScoredEvent struct {
	ResumeID     string `json:"resume_id"`
	JobID        string `json:"job_id"`
	OverallScore int    `json:"overall_score"`
}
