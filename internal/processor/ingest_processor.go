package processor

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/scorer"
	"resume-match-go/internal/types"
)

// IngestProcessor 简历摄取流水线
// 分块、向量化、技能经验预聚合和画像持久化在这一层编排
type IngestProcessor struct {
	oracle          Oracle
	embedder        TextEmbedder
	vectorStore     VectorStore
	chunkStore      ChunkStore
	experienceStore ExperienceStore
	profileStore    ProfileStore
	publisher       EventPublisher
	chunker         *parser.WordChunker
	topSkills       int
	logger          zerolog.Logger
}

// IngestOption 摄取流水线的配置选项
type IngestOption func(*IngestProcessor)

// WithIngestChunker 设置自定义分块器
func WithIngestChunker(chunker *parser.WordChunker) IngestOption {
	return func(p *IngestProcessor) {
		if chunker != nil {
			p.chunker = chunker
		}
	}
}

// WithIngestTopSkills 设置参与经验预聚合的技能数上限
func WithIngestTopSkills(n int) IngestOption {
	return func(p *IngestProcessor) {
		if n > 0 {
			p.topSkills = n
		}
	}
}

// WithIngestPublisher 设置事件发布器，不设置则不发布事件
func WithIngestPublisher(publisher EventPublisher) IngestOption {
	return func(p *IngestProcessor) {
		p.publisher = publisher
	}
}

// WithIngestLogger 设置自定义日志记录器
func WithIngestLogger(l zerolog.Logger) IngestOption {
	return func(p *IngestProcessor) {
		p.logger = l
	}
}

// NewIngestProcessor 创建摄取流水线
func NewIngestProcessor(
	oracle Oracle,
	embedder TextEmbedder,
	vectorStore VectorStore,
	chunkStore ChunkStore,
	experienceStore ExperienceStore,
	profileStore ProfileStore,
	options ...IngestOption,
) *IngestProcessor {
	p := &IngestProcessor{
		oracle:          oracle,
		embedder:        embedder,
		vectorStore:     vectorStore,
		chunkStore:      chunkStore,
		experienceStore: experienceStore,
		profileStore:    profileStore,
		chunker:         parser.NewWordChunker(),
		topSkills:       constants.DefaultTopSkillsPerResume,
		logger:          logger.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// IngestResult 摄取流水线的产出摘要
type IngestResult struct {
	ResumeID   string
	ChunkCount int
	SkillCount int
	TotalYears float64
}

// ProcessResume 执行完整的简历摄取
// 技能经验映射整份原子替换，重复摄取不会留下半新半旧的状态
func (p *IngestProcessor) ProcessResume(ctx context.Context, doc types.ResumeDocument) (*IngestResult, error) {
	if strings.TrimSpace(doc.ResumeID) == "" {
		return nil, NewInvalidInputError("", "简历ID为空")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, NewInvalidInputError(doc.ResumeID, "简历文本为空")
	}

	plog := p.logger.With().Str("resume_id", doc.ResumeID).Logger()

	// 1. 抽取工作经历，作为分块上下文关联的依据
	history, err := p.oracle.ExtractWorkHistory(ctx, doc.Text)
	if err != nil {
		return nil, err
	}

	// 2. 分块并持久化
	chunks := p.chunker.Chunk(doc.Text, history)
	if err := p.chunkStore.SaveChunks(ctx, doc.ResumeID, chunks); err != nil {
		return nil, NewPersistenceError(doc.ResumeID, "save_chunks", err.Error())
	}
	plog.Info().Int("chunk_count", len(chunks)).Msg("简历分块完成")

	// 3. 向量化并写入向量索引
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}
		vectors, err := p.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, NewEmbeddingError(doc.ResumeID, err.Error())
		}
		if _, err := p.vectorStore.UpsertChunkVectors(ctx, doc.ResumeID, chunks, vectors); err != nil {
			return nil, NewVectorStoreError(doc.ResumeID, err.Error())
		}
	}

	// 4. 技能抽取，限制数量以约束LLM调用量
	skills, err := p.oracle.ExtractSkills(ctx, doc.Text)
	if err != nil {
		return nil, err
	}
	if len(skills) > p.topSkills {
		skills = skills[:p.topSkills]
	}

	// 5. 每技能的经验预聚合
	matches, err := p.oracle.ExtractSkillJobMatches(ctx, doc.Text, skills)
	if err != nil {
		return nil, err
	}
	experiences := make(map[string]types.SkillExperience, len(skills))
	for _, skill := range skills {
		experiences[skill] = scorer.AggregateExperience(skill, matches[skill])
	}

	// 6. 整份映射原子替换
	if err := p.experienceStore.SaveSkillExperienceMap(ctx, doc.ResumeID, experiences); err != nil {
		return nil, NewPersistenceError(doc.ResumeID, "save_experience", err.Error())
	}

	// 7. 简历画像：总年限与附加特征
	traits, err := p.oracle.ExtractResumeTraits(ctx, doc.Text)
	if err != nil {
		return nil, err
	}
	profile := &types.ResumeProfile{
		ResumeID:          doc.ResumeID,
		TotalYears:        totalYearsFromHistory(history),
		HasCertifications: traits.HasCertifications,
		HasProjects:       traits.HasProjects,
		WorkHistory:       history,
	}
	if err := p.profileStore.SaveResumeProfile(ctx, profile); err != nil {
		return nil, NewPersistenceError(doc.ResumeID, "save_profile", err.Error())
	}

	result := &IngestResult{
		ResumeID:   doc.ResumeID,
		ChunkCount: len(chunks),
		SkillCount: len(skills),
		TotalYears: profile.TotalYears,
	}

	if p.publisher != nil {
		event := &ResumeIngestedEvent{
			ResumeID:   result.ResumeID,
			ChunkCount: result.ChunkCount,
			SkillCount: result.SkillCount,
			TotalYears: result.TotalYears,
		}
		if err := p.publisher.PublishResumeIngested(ctx, event); err != nil {
			// 事件发布失败不影响已完成的摄取
			plog.Warn().Err(err).Msg("摄取完成事件发布失败")
		}
	}

	plog.Info().
		Int("skill_count", result.SkillCount).
		Float64("total_years", result.TotalYears).
		Msg("简历摄取完成")
	return result, nil
}

// totalYearsFromHistory 工作经历总时长，各段独立工作直接求和
func totalYearsFromHistory(history []types.WorkHistoryEntry) float64 {
	totalMonths := 0
	for _, entry := range history {
		if entry.DurationMonths > 0 {
			totalMonths += entry.DurationMonths
		}
	}
	return float64(totalMonths) / constants.MonthsPerYear
}
