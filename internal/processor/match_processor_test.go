package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/scorer"
	"resume-match-go/internal/types"
)

// stubOracle 可配置的Oracle测试替身
type stubOracle struct {
	mu                sync.Mutex
	jobProfile        *types.JobProfile
	jobProfileCalls   int
	gradeErr          error
	gradeBySkill      map[string]*types.EvidenceGrade
	skills            []string
	workHistory       []types.WorkHistoryEntry
	skillMatches      map[string][]types.OracleJobMatch
	traits            types.ResumeTraits
	skillMatchesCalls [][]string
}

func (s *stubOracle) ExtractSkills(ctx context.Context, resumeText string) ([]string, error) {
	return s.skills, nil
}

func (s *stubOracle) ExtractWorkHistory(ctx context.Context, resumeText string) ([]types.WorkHistoryEntry, error) {
	return s.workHistory, nil
}

func (s *stubOracle) ExtractSkillJobMatches(ctx context.Context, resumeText string, skills []string) (map[string][]types.OracleJobMatch, error) {
	s.mu.Lock()
	s.skillMatchesCalls = append(s.skillMatchesCalls, skills)
	s.mu.Unlock()
	return s.skillMatches, nil
}

func (s *stubOracle) ExtractResumeTraits(ctx context.Context, resumeText string) (*types.ResumeTraits, error) {
	traits := s.traits
	return &traits, nil
}

func (s *stubOracle) ExtractJobProfile(ctx context.Context, jobDescription string) (*types.JobProfile, error) {
	s.mu.Lock()
	s.jobProfileCalls++
	s.mu.Unlock()
	if s.jobProfile == nil {
		return nil, types.ErrOracleParse
	}
	return s.jobProfile, nil
}

func (s *stubOracle) GradeEvidence(ctx context.Context, skillName, chunkText string) (*types.EvidenceGrade, error) {
	if s.gradeErr != nil {
		return nil, s.gradeErr
	}
	if grade, ok := s.gradeBySkill[skillName]; ok {
		return grade, nil
	}
	return &types.EvidenceGrade{Matched: false, Strength: types.StrengthNone}, nil
}

// memoryStores 内存版的持久化测试替身
type memoryStores struct {
	mu          sync.Mutex
	chunks      map[string][]types.Chunk
	experiences map[string]map[string]types.SkillExperience
	profiles    map[string]*types.ResumeProfile
	scores      map[string]*types.ScoreResult
	// experienceSaves 记录整份替换的次数
	experienceSaves int
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		chunks:      make(map[string][]types.Chunk),
		experiences: make(map[string]map[string]types.SkillExperience),
		profiles:    make(map[string]*types.ResumeProfile),
		scores:      make(map[string]*types.ScoreResult),
	}
}

func (m *memoryStores) SaveChunks(ctx context.Context, resumeID string, chunks []types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[resumeID] = chunks
	return nil
}

func (m *memoryStores) GetChunks(ctx context.Context, resumeID string) ([]types.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[resumeID], nil
}

func (m *memoryStores) SaveSkillExperienceMap(ctx context.Context, resumeID string, experiences map[string]types.SkillExperience) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiences[resumeID] = experiences
	m.experienceSaves++
	return nil
}

func (m *memoryStores) GetSkillExperienceMap(ctx context.Context, resumeID string) (map[string]types.SkillExperience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.experiences[resumeID], nil
}

func (m *memoryStores) SaveResumeProfile(ctx context.Context, profile *types.ResumeProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ResumeID] = profile
	return nil
}

func (m *memoryStores) GetResumeProfile(ctx context.Context, resumeID string) (*types.ResumeProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[resumeID]
	if !ok {
		return nil, errors.New("画像不存在")
	}
	return profile, nil
}

func (m *memoryStores) SaveScoreResult(ctx context.Context, resumeID, jobID string, result *types.ScoreResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[resumeID+"/"+jobID] = result
	return nil
}

// memoryCache 内存版的LLM响应缓存
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, promptKind, input string, out interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[promptKind+"\x00"+input]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (c *memoryCache) Set(ctx context.Context, promptKind, input string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[promptKind+"\x00"+input] = data
	return nil
}

// stubSearcher 固定命中的向量检索替身
type stubSearcher struct {
	hitsByResume map[string][]scorer.ChunkHit
}

func (s *stubSearcher) SearchChunks(ctx context.Context, resumeID string, vector []float64, limit int) ([]scorer.ChunkHit, error) {
	return s.hitsByResume[resumeID], nil
}

type stubQueryEmbedder struct{}

func (s *stubQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

func testJobProfile() *types.JobProfile {
	return &types.JobProfile{
		RequiredYears: 5,
		Requirements: []types.JobRequirement{
			{SkillName: "Go", Importance: types.ImportanceCritical, MinYears: 3, NameVariants: []string{"Golang"}},
			{SkillName: "Kafka", Importance: types.ImportanceRequired, MinYears: 2},
			{SkillName: "Docker", Importance: types.ImportanceNiceToHave},
		},
	}
}

func newTestMatchProcessor(oracle *stubOracle, stores *memoryStores, options ...MatchOption) *MatchProcessor {
	searcher := &stubSearcher{hitsByResume: map[string][]scorer.ChunkHit{
		"resume-1": {
			{ID: "c1", Similarity: 0.8, Text: "使用Go和Kafka构建了消息处理平台"},
			{ID: "c2", Similarity: 0.6, Text: "负责团队管理与项目排期"},
		},
	}}
	retriever := scorer.NewEvidenceRetriever(&stubQueryEmbedder{}, searcher, oracle)
	return NewMatchProcessor(oracle, retriever, stores, stores, options...)
}

func seedResume(stores *memoryStores) {
	stores.profiles["resume-1"] = &types.ResumeProfile{
		ResumeID:          "resume-1",
		TotalYears:        6,
		HasCertifications: true,
		HasProjects:       true,
	}
	stores.experiences["resume-1"] = map[string]types.SkillExperience{
		"Go":    {SkillName: "Go", TotalYears: 4},
		"Kafka": {SkillName: "Kafka", TotalYears: 1},
	}
}

func TestScoreResume(t *testing.T) {
	oracle := &stubOracle{
		jobProfile: testJobProfile(),
		gradeBySkill: map[string]*types.EvidenceGrade{
			"Go":    {Matched: true, Strength: types.StrengthStrong},
			"Kafka": {Matched: true, Strength: types.StrengthModerate},
		},
	}
	stores := newMemoryStores()
	seedResume(stores)
	p := newTestMatchProcessor(oracle, stores, WithMatchScoreStore(stores))

	result, err := p.ScoreResume(context.Background(), "resume-1", "job-1", "岗位描述")
	require.NoError(t, err)

	// 核心技能Go和Kafka均有证据: 100分
	assert.InDelta(t, 100.0, result.CoreSkillsScore, 1e-9)
	// 总年限6 >= 5: 100分
	assert.InDelta(t, 100.0, result.ExperienceScore, 1e-9)
	assert.InDelta(t, 100.0, result.AdditionalScore, 1e-9)
	assert.Equal(t, 100, result.OverallScore)
	require.Len(t, result.SkillScores, 3)

	// 结果已持久化
	assert.NotNil(t, stores.scores["resume-1/job-1"])
}

func TestScoreResumeSkillDegradation(t *testing.T) {
	// 证据评级不可用时降级为无证据，不中止请求
	oracle := &stubOracle{
		jobProfile: testJobProfile(),
		gradeErr:   types.ErrOracleThrottled,
	}
	stores := newMemoryStores()
	seedResume(stores)
	p := newTestMatchProcessor(oracle, stores)

	result, err := p.ScoreResume(context.Background(), "resume-1", "job-1", "岗位描述")
	require.NoError(t, err)

	// 所有技能降级后核心技能得分为0
	assert.InDelta(t, 0.0, result.CoreSkillsScore, 1e-9)
	for _, score := range result.SkillScores {
		assert.False(t, score.EvidenceMatched)
		assert.NotEmpty(t, score.Note)
	}
}

func TestScoreResumeNameVariantLookup(t *testing.T) {
	oracle := &stubOracle{
		jobProfile: &types.JobProfile{
			Requirements: []types.JobRequirement{
				{SkillName: "Go", Importance: types.ImportanceCritical, MinYears: 3, NameVariants: []string{"Golang"}},
			},
		},
		gradeBySkill: map[string]*types.EvidenceGrade{
			"Go": {Matched: true, Strength: types.StrengthStrong},
		},
	}
	stores := newMemoryStores()
	stores.profiles["resume-1"] = &types.ResumeProfile{ResumeID: "resume-1", TotalYears: 5}
	// 经验映射里只有别名Golang
	stores.experiences["resume-1"] = map[string]types.SkillExperience{
		"golang": {SkillName: "golang", TotalYears: 4},
	}
	p := newTestMatchProcessor(oracle, stores)

	result, err := p.ScoreResume(context.Background(), "resume-1", "job-1", "岗位描述")
	require.NoError(t, err)
	require.Len(t, result.SkillScores, 1)
	assert.InDelta(t, 4.0, result.SkillScores[0].YearsFound, 1e-9)
	assert.True(t, result.SkillScores[0].MeetsRequirement)
}

func TestScoreResumeJobProfileCache(t *testing.T) {
	oracle := &stubOracle{
		jobProfile: testJobProfile(),
		gradeBySkill: map[string]*types.EvidenceGrade{
			"Go": {Matched: true, Strength: types.StrengthStrong},
		},
	}
	stores := newMemoryStores()
	seedResume(stores)
	cache := newMemoryCache()
	p := newTestMatchProcessor(oracle, stores, WithMatchCache(cache))

	_, err := p.ScoreResume(context.Background(), "resume-1", "job-1", "岗位描述")
	require.NoError(t, err)
	_, err = p.ScoreResume(context.Background(), "resume-1", "job-2", "岗位描述")
	require.NoError(t, err)

	// 相同岗位描述第二次走缓存
	assert.Equal(t, 1, oracle.jobProfileCalls)
}

func TestScoreResumeNoEvidenceSentinel(t *testing.T) {
	// 向量索引无该简历分块时技能得分来自无证据哨兵
	oracle := &stubOracle{jobProfile: testJobProfile()}
	stores := newMemoryStores()
	stores.profiles["resume-2"] = &types.ResumeProfile{ResumeID: "resume-2", TotalYears: 2}
	stores.experiences["resume-2"] = map[string]types.SkillExperience{}
	p := newTestMatchProcessor(oracle, stores)

	result, err := p.ScoreResume(context.Background(), "resume-2", "job-1", "岗位描述")
	require.NoError(t, err)
	for _, score := range result.SkillScores {
		assert.False(t, score.EvidenceMatched)
		assert.Equal(t, types.StrengthNone, score.Strength)
		// 无候选是合法结果，不附降级说明
		assert.Empty(t, score.Note)
	}
}

func TestScoreResumeInvalidInput(t *testing.T) {
	p := newTestMatchProcessor(&stubOracle{jobProfile: testJobProfile()}, newMemoryStores())

	_, err := p.ScoreResume(context.Background(), "", "job-1", "岗位描述")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = p.ScoreResume(context.Background(), "resume-1", "job-1", "  ")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
