package processor

import (
	"context"
	"fmt"

	"resume-match-go/internal/types"
)

// RetryingOracle 在Oracle的每个方法外套用统一的重试策略
// 重试只在这一层做，调用方不再各自重试
type RetryingOracle struct {
	inner  Oracle
	policy *RetryPolicy
}

// NewRetryingOracle 创建带重试的Oracle包装
func NewRetryingOracle(inner Oracle, policy *RetryPolicy) *RetryingOracle {
	return &RetryingOracle{inner: inner, policy: policy}
}

func (o *RetryingOracle) ExtractSkills(ctx context.Context, resumeText string) ([]string, error) {
	var result []string
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.inner.ExtractSkills(ctx, resumeText)
		return callErr
	})
	return result, err
}

func (o *RetryingOracle) ExtractWorkHistory(ctx context.Context, resumeText string) ([]types.WorkHistoryEntry, error) {
	var result []types.WorkHistoryEntry
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.inner.ExtractWorkHistory(ctx, resumeText)
		return callErr
	})
	return result, err
}

func (o *RetryingOracle) ExtractSkillJobMatches(ctx context.Context, resumeText string, skills []string) (map[string][]types.OracleJobMatch, error) {
	var result map[string][]types.OracleJobMatch
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.inner.ExtractSkillJobMatches(ctx, resumeText, skills)
		return callErr
	})
	return result, err
}

func (o *RetryingOracle) ExtractResumeTraits(ctx context.Context, resumeText string) (*types.ResumeTraits, error) {
	var result *types.ResumeTraits
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.inner.ExtractResumeTraits(ctx, resumeText)
		return callErr
	})
	return result, err
}

func (o *RetryingOracle) ExtractJobProfile(ctx context.Context, jobDescription string) (*types.JobProfile, error) {
	var result *types.JobProfile
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.inner.ExtractJobProfile(ctx, jobDescription)
		return callErr
	})
	return result, err
}

func (o *RetryingOracle) GradeEvidence(ctx context.Context, skillName, chunkText string) (*types.EvidenceGrade, error) {
	var result *types.EvidenceGrade
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.inner.GradeEvidence(ctx, skillName, chunkText)
		return callErr
	})
	return result, err
}

// QueryEmbedderAdapter 把批量Embedder适配为单条查询向量接口
type QueryEmbedderAdapter struct {
	embedder TextEmbedder
}

// NewQueryEmbedderAdapter 创建查询向量适配器
func NewQueryEmbedderAdapter(embedder TextEmbedder) *QueryEmbedderAdapter {
	return &QueryEmbedderAdapter{embedder: embedder}
}

// EmbedQuery 计算单条查询文本的向量
func (a *QueryEmbedderAdapter) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := a.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("Embedder未返回向量")
	}
	return vectors[0], nil
}
