package scorer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"
)

// QueryEmbedder 为查询短语计算向量
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// ChunkSearcher 在向量索引中检索某份简历的分块
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, resumeID string, vector []float64, limit int) ([]ChunkHit, error)
}

// ChunkHit 向量检索返回的单个候选分块
type ChunkHit struct {
	ID         string
	Similarity float64
	Text       string
}

// EvidenceGrader 评估分块文本对某技能的支持强度
type EvidenceGrader interface {
	GradeEvidence(ctx context.Context, skillName, chunkText string) (*types.EvidenceGrade, error)
}

// EvidenceRetriever 混合检索器：向量召回+关键字加权重排，
// 再由LLM对最优候选做证据评级
type EvidenceRetriever struct {
	embedder QueryEmbedder
	searcher ChunkSearcher
	grader   EvidenceGrader
	topK     int
	logger   zerolog.Logger
}

// EvidenceRetrieverOption 检索器的配置选项
type EvidenceRetrieverOption func(*EvidenceRetriever)

// WithTopK 设置向量召回的候选数量
func WithTopK(k int) EvidenceRetrieverOption {
	return func(r *EvidenceRetriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithRetrieverLogger 设置自定义日志记录器
func WithRetrieverLogger(l zerolog.Logger) EvidenceRetrieverOption {
	return func(r *EvidenceRetriever) {
		r.logger = l
	}
}

// NewEvidenceRetriever 创建证据检索器
func NewEvidenceRetriever(embedder QueryEmbedder, searcher ChunkSearcher, grader EvidenceGrader, options ...EvidenceRetrieverOption) *EvidenceRetriever {
	retriever := &EvidenceRetriever{
		embedder: embedder,
		searcher: searcher,
		grader:   grader,
		topK:     constants.DefaultEvidenceTopK,
		logger:   logger.Logger,
	}
	for _, opt := range options {
		opt(retriever)
	}
	return retriever
}

// NoEvidence 返回"未找到证据"的哨兵结果，是合法的评分输入而非错误
func NoEvidence() types.EvidenceMatch {
	return types.EvidenceMatch{
		Matched:  false,
		Strength: types.StrengthNone,
	}
}

// Retrieve 为一个技能检索最优证据分块并评级
// 向量索引中没有该简历的分块时返回无证据哨兵，不报错
func (r *EvidenceRetriever) Retrieve(ctx context.Context, skillName, resumeID string) (types.EvidenceMatch, error) {
	if strings.TrimSpace(skillName) == "" || strings.TrimSpace(resumeID) == "" {
		return NoEvidence(), fmt.Errorf("%w: 技能名或简历ID为空", types.ErrInvalidArgument)
	}

	queryPhrase := fmt.Sprintf("Experience with %s skill", skillName)
	vector, err := r.embedder.EmbedQuery(ctx, queryPhrase)
	if err != nil {
		return NoEvidence(), fmt.Errorf("查询向量计算失败: %w", err)
	}

	hits, err := r.searcher.SearchChunks(ctx, resumeID, vector, r.topK)
	if err != nil {
		return NoEvidence(), fmt.Errorf("向量检索失败: %w", err)
	}
	if len(hits) == 0 {
		r.logger.Debug().
			Str("skill", skillName).
			Str("resume_id", resumeID).
			Msg("向量索引无候选分块")
		return NoEvidence(), nil
	}

	best := rerank(skillName, hits)

	grade, err := r.grader.GradeEvidence(ctx, skillName, best.hit.Text)
	if err != nil {
		return NoEvidence(), err
	}

	return types.EvidenceMatch{
		ChunkText:     best.hit.Text,
		VectorID:      best.hit.ID,
		Relevance:     best.boosted,
		RawSimilarity: best.hit.Similarity,
		Matched:       grade.Matched,
		Strength:      grade.Strength,
		Quote:         grade.Quote,
		Reasoning:     grade.Reasoning,
	}, nil
}

type rankedHit struct {
	hit     ChunkHit
	boosted float64
	// origRank 加权前的向量排名，用于并列时的决胜
	origRank int
}

// rerank 对候选做关键字加权重排，返回重排后的最优候选
// 分块文本中出现技能名（大小写不敏感）时相似度乘以固定放大倍数；
// 加权分并列时按原始向量排名靠前者优先
func rerank(skillName string, hits []ChunkHit) rankedHit {
	lowerSkill := strings.ToLower(skillName)

	ranked := make([]rankedHit, len(hits))
	for i, hit := range hits {
		boosted := hit.Similarity
		if strings.Contains(strings.ToLower(hit.Text), lowerSkill) {
			boosted *= constants.KeywordBoostFactor
		}
		ranked[i] = rankedHit{hit: hit, boosted: boosted, origRank: i}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].boosted != ranked[b].boosted {
			return ranked[a].boosted > ranked[b].boosted
		}
		return ranked[a].origRank < ranked[b].origRank
	})

	return ranked[0]
}
