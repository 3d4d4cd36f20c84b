package processor

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/scorer"
	"resume-match-go/internal/types"
)

// 缓存中JD要求抽取结果的提示类型标识
const promptKindJobProfile = "job_profile"

// MatchProcessor 评分流水线
// 每个技能要求独立走检索+评分，由有界工作池并发执行，
// 全部完成后才进入总分聚合
type MatchProcessor struct {
	oracle          Oracle
	retriever       *scorer.EvidenceRetriever
	experienceStore ExperienceStore
	profileStore    ProfileStore
	scoreStore      ScoreStore
	cache           OracleCache
	publisher       EventPublisher
	workers         int
	logger          zerolog.Logger
}

// MatchOption 评分流水线的配置选项
type MatchOption func(*MatchProcessor)

// WithMatchWorkers 设置并发评估的技能数上限
func WithMatchWorkers(n int) MatchOption {
	return func(p *MatchProcessor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMatchCache 设置LLM响应缓存，不设置则每次都调用LLM
func WithMatchCache(cache OracleCache) MatchOption {
	return func(p *MatchProcessor) {
		p.cache = cache
	}
}

// WithMatchScoreStore 设置评分结果持久化，不设置则只返回结果
func WithMatchScoreStore(store ScoreStore) MatchOption {
	return func(p *MatchProcessor) {
		p.scoreStore = store
	}
}

// WithMatchPublisher 设置事件发布器
func WithMatchPublisher(publisher EventPublisher) MatchOption {
	return func(p *MatchProcessor) {
		p.publisher = publisher
	}
}

// WithMatchLogger 设置自定义日志记录器
func WithMatchLogger(l zerolog.Logger) MatchOption {
	return func(p *MatchProcessor) {
		p.logger = l
	}
}

// NewMatchProcessor 创建评分流水线
func NewMatchProcessor(
	oracle Oracle,
	retriever *scorer.EvidenceRetriever,
	experienceStore ExperienceStore,
	profileStore ProfileStore,
	options ...MatchOption,
) *MatchProcessor {
	p := &MatchProcessor{
		oracle:          oracle,
		retriever:       retriever,
		experienceStore: experienceStore,
		profileStore:    profileStore,
		workers:         5,
		logger:          logger.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// ScoreResume 对一份已摄取的简历按岗位描述评分
// 单个技能的LLM故障降级为无证据得分并附说明，不中止整个请求
func (p *MatchProcessor) ScoreResume(ctx context.Context, resumeID, jobID, jobDescription string) (*types.ScoreResult, error) {
	if strings.TrimSpace(resumeID) == "" {
		return nil, NewInvalidInputError("", "简历ID为空")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, NewInvalidInputError(resumeID, "岗位描述为空")
	}

	plog := p.logger.With().Str("resume_id", resumeID).Str("job_id", jobID).Logger()

	jobProfile, err := p.resolveJobProfile(ctx, jobDescription)
	if err != nil {
		return nil, err
	}

	resumeProfile, err := p.profileStore.GetResumeProfile(ctx, resumeID)
	if err != nil {
		return nil, NewPersistenceError(resumeID, "get_profile", err.Error())
	}
	experiences, err := p.experienceStore.GetSkillExperienceMap(ctx, resumeID)
	if err != nil {
		return nil, NewPersistenceError(resumeID, "get_experience", err.Error())
	}

	skillScores, err := p.evaluateSkills(ctx, resumeID, jobProfile.Requirements, experiences)
	if err != nil {
		return nil, err
	}

	result, err := scorer.AggregateScores(scorer.AggregateInput{
		SkillScores:       skillScores,
		Requirements:      jobProfile.Requirements,
		ResumeTotalYears:  resumeProfile.TotalYears,
		JDRequiredYears:   jobProfile.RequiredYears,
		HasCertifications: resumeProfile.HasCertifications,
		HasProjects:       resumeProfile.HasProjects,
	})
	if err != nil {
		return nil, err
	}

	if p.scoreStore != nil {
		if err := p.scoreStore.SaveScoreResult(ctx, resumeID, jobID, result); err != nil {
			return nil, NewPersistenceError(resumeID, "save_score", err.Error())
		}
	}
	if p.publisher != nil {
		event := &MatchScoredEvent{
			ResumeID:     resumeID,
			JobID:        jobID,
			OverallScore: result.OverallScore,
		}
		if err := p.publisher.PublishMatchScored(ctx, event); err != nil {
			plog.Warn().Err(err).Msg("评分完成事件发布失败")
		}
	}

	plog.Info().Int("overall_score", result.OverallScore).Msg("评分完成")
	return result, nil
}

// resolveJobProfile 抽取岗位要求，同一岗位描述的结果走缓存
func (p *MatchProcessor) resolveJobProfile(ctx context.Context, jobDescription string) (*types.JobProfile, error) {
	if p.cache != nil {
		var cached types.JobProfile
		ok, err := p.cache.Get(ctx, promptKindJobProfile, jobDescription, &cached)
		if err != nil {
			p.logger.Warn().Err(err).Msg("读取JD要求缓存失败")
		} else if ok {
			return &cached, nil
		}
	}

	profile, err := p.oracle.ExtractJobProfile(ctx, jobDescription)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, promptKindJobProfile, jobDescription, profile); err != nil {
			p.logger.Warn().Err(err).Msg("写入JD要求缓存失败")
		}
	}
	return profile, nil
}

// evaluateSkills 有界并发地评估所有技能要求
// 所有子评估完成后才返回；上下文取消时放弃剩余工作
func (p *MatchProcessor) evaluateSkills(
	ctx context.Context,
	resumeID string,
	requirements []types.JobRequirement,
	experiences map[string]types.SkillExperience,
) ([]types.SkillScore, error) {
	scores := make([]types.SkillScore, len(requirements))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for i, req := range requirements {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, requirement types.JobRequirement) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			scores[idx] = p.evaluateOneSkill(ctx, resumeID, requirement, experiences)
		}(i, req)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

// evaluateOneSkill 单个技能的检索+评分
// 检索或评级失败时降级为无证据得分并附说明
func (p *MatchProcessor) evaluateOneSkill(
	ctx context.Context,
	resumeID string,
	requirement types.JobRequirement,
	experiences map[string]types.SkillExperience,
) types.SkillScore {
	experience := lookupExperience(experiences, requirement)

	evidence, err := p.retriever.Retrieve(ctx, requirement.SkillName, resumeID)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("resume_id", resumeID).
			Str("skill", requirement.SkillName).
			Msg("技能证据评估降级为无证据")
		score := scorer.ScoreSkill(scorer.NoEvidence(), experience, requirement)
		score.Note = "该技能的证据评级不可用"
		return score
	}

	return scorer.ScoreSkill(evidence, experience, requirement)
}

// lookupExperience 按技能名及其别名查找预聚合经验
// 大小写不敏感；查不到时返回零经验
func lookupExperience(experiences map[string]types.SkillExperience, requirement types.JobRequirement) types.SkillExperience {
	candidates := append([]string{requirement.SkillName}, requirement.NameVariants...)
	for _, candidate := range candidates {
		for name, exp := range experiences {
			if strings.EqualFold(name, candidate) {
				return exp
			}
		}
	}
	return types.SkillExperience{
		SkillName:    requirement.SkillName,
		JobBreakdown: []types.JobBreakdownEntry{},
	}
}
