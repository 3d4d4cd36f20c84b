package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/types"
)

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

type mockSearcher struct {
	hits []ChunkHit
	err  error
	// 记录收到的参数
	resumeID string
	limit    int
}

func (m *mockSearcher) SearchChunks(ctx context.Context, resumeID string, vector []float64, limit int) ([]ChunkHit, error) {
	m.resumeID = resumeID
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

type mockGrader struct {
	grade *types.EvidenceGrade
	err   error
	// 记录评级的片段文本
	gradedText string
}

func (m *mockGrader) GradeEvidence(ctx context.Context, skillName, chunkText string) (*types.EvidenceGrade, error) {
	m.gradedText = chunkText
	if m.err != nil {
		return nil, m.err
	}
	return m.grade, nil
}

func TestRetrieveKeywordBoost(t *testing.T) {
	// 相似度0.80的候选无关键字，0.75的候选含关键字
	// 加权后 0.80 vs 1.125，选中后者
	searcher := &mockSearcher{hits: []ChunkHit{
		{ID: "c1", Similarity: 0.80, Text: "负责后端服务的架构设计"},
		{ID: "c2", Similarity: 0.75, Text: "使用Go重构了核心交易链路"},
	}}
	grader := &mockGrader{grade: &types.EvidenceGrade{Matched: true, Strength: types.StrengthStrong}}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, grader)

	match, err := retriever.Retrieve(context.Background(), "Go", "resume-1")
	require.NoError(t, err)
	assert.Equal(t, "c2", match.VectorID)
	assert.InDelta(t, 1.125, match.Relevance, 1e-9)
	assert.InDelta(t, 0.75, match.RawSimilarity, 1e-9)
	assert.Equal(t, types.StrengthStrong, match.Strength)
}

func TestRetrieveBoostTieBreak(t *testing.T) {
	// 加权分并列时按原始向量排名靠前者优先
	searcher := &mockSearcher{hits: []ChunkHit{
		{ID: "c1", Similarity: 0.9, Text: "Go服务开发经验"},
		{ID: "c2", Similarity: 0.9, Text: "Go平台建设经验"},
	}}
	grader := &mockGrader{grade: &types.EvidenceGrade{Matched: true, Strength: types.StrengthModerate}}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, grader)

	match, err := retriever.Retrieve(context.Background(), "Go", "resume-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", match.VectorID)
}

func TestRetrieveCaseInsensitiveBoost(t *testing.T) {
	searcher := &mockSearcher{hits: []ChunkHit{
		{ID: "c1", Similarity: 0.60, Text: "熟练使用GOLANG开发"},
		{ID: "c2", Similarity: 0.80, Text: "负责团队管理"},
	}}
	grader := &mockGrader{grade: &types.EvidenceGrade{Matched: true, Strength: types.StrengthWeak}}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, grader)

	match, err := retriever.Retrieve(context.Background(), "golang", "resume-1")
	require.NoError(t, err)
	// 0.60*1.5=0.90 > 0.80
	assert.Equal(t, "c1", match.VectorID)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	// 索引无候选时返回无证据哨兵，不报错
	searcher := &mockSearcher{hits: nil}
	grader := &mockGrader{}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, grader)

	match, err := retriever.Retrieve(context.Background(), "Go", "resume-1")
	require.NoError(t, err)
	assert.False(t, match.Matched)
	assert.Equal(t, types.StrengthNone, match.Strength)
	// 无候选时不应调用评级
	assert.Empty(t, grader.gradedText)
}

func TestRetrievePassesTopK(t *testing.T) {
	searcher := &mockSearcher{hits: []ChunkHit{{ID: "c1", Similarity: 0.5, Text: "Go"}}}
	grader := &mockGrader{grade: &types.EvidenceGrade{Matched: true, Strength: types.StrengthWeak}}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, grader, WithTopK(5))

	_, err := retriever.Retrieve(context.Background(), "Go", "resume-1")
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.limit)
	assert.Equal(t, "resume-1", searcher.resumeID)
}

func TestRetrieveGraderError(t *testing.T) {
	searcher := &mockSearcher{hits: []ChunkHit{{ID: "c1", Similarity: 0.5, Text: "Go"}}}
	grader := &mockGrader{err: types.ErrOracleThrottled}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, grader)

	_, err := retriever.Retrieve(context.Background(), "Go", "resume-1")
	assert.ErrorIs(t, err, types.ErrOracleThrottled)
}

func TestRetrieveSearchError(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("connection refused")}
	retriever := NewEvidenceRetriever(&mockEmbedder{}, searcher, &mockGrader{})

	_, err := retriever.Retrieve(context.Background(), "Go", "resume-1")
	assert.Error(t, err)
}

func TestRetrieveInvalidArgs(t *testing.T) {
	retriever := NewEvidenceRetriever(&mockEmbedder{}, &mockSearcher{}, &mockGrader{})

	_, err := retriever.Retrieve(context.Background(), "", "resume-1")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = retriever.Retrieve(context.Background(), "Go", "  ")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
