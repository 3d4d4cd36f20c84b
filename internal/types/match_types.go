package types

import (
	"time"
)

// EvidenceStrength 证据强度的分类判断（来自LLM对简历片段的评级）
type EvidenceStrength string

const (
	// StrengthNone 片段完全不支持该技能
	StrengthNone EvidenceStrength = "none"
	// StrengthWeak 技能仅被列出/提及
	StrengthWeak EvidenceStrength = "weak"
	// StrengthModerate 技能被使用但细节有限
	StrengthModerate EvidenceStrength = "moderate"
	// StrengthStrong 技能明确用于工作/项目/职责
	StrengthStrong EvidenceStrength = "strong"
)

// Valid 判断证据强度是否为已知取值
func (s EvidenceStrength) Valid() bool {
	switch s {
	case StrengthNone, StrengthWeak, StrengthModerate, StrengthStrong:
		return true
	}
	return false
}

// Importance 岗位要求中技能的重要程度
type Importance string

const (
	// ImportanceCritical 决定性技能
	ImportanceCritical Importance = "critical"
	// ImportanceRequired 必备技能
	ImportanceRequired Importance = "required"
	// ImportanceNiceToHave 加分技能
	ImportanceNiceToHave Importance = "nice_to_have"
)

// IsCore 判断该重要程度是否计入核心技能得分
func (i Importance) IsCore() bool {
	return i == ImportanceCritical || i == ImportanceRequired
}

// ResumeDocument 归一化后的简历文本，由上传/提取流程产出后不再变更
type ResumeDocument struct {
	ResumeID   string    `json:"resume_id"`
	Text       string    `json:"text"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// WorkHistoryEntry 一段工作经历，由LLM从简历文本中抽取
// 列表顺序不保证按时间排序，消费方不得依赖顺序
type WorkHistoryEntry struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	// StartPeriod 格式 "YYYY-MM"
	StartPeriod string `json:"start_period"`
	// EndPeriod 格式 "YYYY-MM"，空字符串表示至今
	EndPeriod      string   `json:"end_period,omitempty"`
	DurationMonths int      `json:"duration_months"`
	Technologies   []string `json:"technologies,omitempty"`
}

// Chunk 简历文本的固定大小滑动窗口分块，作为证据检索的最小单元
type Chunk struct {
	Text          string `json:"text"`
	SequenceIndex int    `json:"sequence_index"`
	// JobContext 与该分块关联度最高的工作经历，无关联时为nil
	// 仅为引用关联，分块不拥有工作经历
	JobContext *WorkHistoryEntry `json:"job_context,omitempty"`
}

// OracleJobMatch LLM报告的"某技能在某段工作中被使用"的原始记录
type OracleJobMatch struct {
	Company        string `json:"company"`
	DurationMonths int    `json:"duration_months"`
	Evidence       string `json:"evidence,omitempty"`
}

// JobBreakdownEntry 技能经验明细中的一段贡献工作
type JobBreakdownEntry struct {
	Company        string `json:"company"`
	DurationMonths int    `json:"duration_months"`
	EvidenceText   string `json:"evidence_text,omitempty"`
}

// SkillExperience 单个技能的预聚合经验：总年限与来源工作明细
// 每份简历每个技能一条；摄取时计算一次，此后只读
type SkillExperience struct {
	SkillName string `json:"skill_name"`
	// TotalYears 去重后各工作时长之和除以12，内部保留完整浮点精度
	TotalYears   float64             `json:"total_years"`
	JobBreakdown []JobBreakdownEntry `json:"job_breakdown"`
}

// JobRequirement 岗位描述中抽取出的单项技能要求，评分请求内不可变
type JobRequirement struct {
	SkillName    string     `json:"skill_name"`
	Importance   Importance `json:"importance"`
	MinYears     float64    `json:"min_years"`
	NameVariants []string   `json:"name_variants,omitempty"`
}

// ResumeTraits 简历的附加特征，用于总分中的附加项
type ResumeTraits struct {
	HasCertifications bool `json:"has_certifications"`
	HasProjects       bool `json:"has_projects"`
}

// ResumeProfile 摄取阶段产出的简历画像，评分阶段只读
type ResumeProfile struct {
	ResumeID string `json:"resume_id"`
	// TotalYears 候选人总工作年限
	TotalYears        float64            `json:"total_years"`
	HasCertifications bool               `json:"has_certifications"`
	HasProjects       bool               `json:"has_projects"`
	WorkHistory       []WorkHistoryEntry `json:"work_history"`
}

// JobProfile 从岗位描述抽取出的完整要求集合
type JobProfile struct {
	Title string `json:"title,omitempty"`
	// RequiredYears 岗位要求的总工作年限
	RequiredYears float64          `json:"required_years"`
	Requirements  []JobRequirement `json:"requirements"`
}

// EvidenceGrade LLM对一个简历片段是否支持某技能的评级
type EvidenceGrade struct {
	Matched   bool             `json:"matched"`
	Strength  EvidenceStrength `json:"strength"`
	Quote     string           `json:"quote,omitempty"`
	Reasoning string           `json:"reasoning,omitempty"`
}

// EvidenceMatch 一次技能证据检索+评级的结果
// 仅在单次评分请求内产生和消费，不独立持久化
type EvidenceMatch struct {
	// ChunkText 选中分块的原文
	ChunkText string `json:"chunk_text"`
	// VectorID 选中分块在向量索引中的ID
	VectorID string `json:"vector_id,omitempty"`
	// Relevance 混合重排后的相关性分数（可能超过1.0）
	Relevance float64 `json:"relevance"`
	// RawSimilarity 重排前的原始向量相似度
	RawSimilarity float64          `json:"raw_similarity"`
	Matched       bool             `json:"matched"`
	Strength      EvidenceStrength `json:"strength"`
	Quote         string           `json:"quote,omitempty"`
	Reasoning     string           `json:"reasoning,omitempty"`
}

// SkillScore 单项技能要求的评分结果
type SkillScore struct {
	SkillName string `json:"skill_name"`
	// Score 取值[0,1]
	Score         float64 `json:"score"`
	YearsFound    float64 `json:"years_found"`
	YearsRequired float64 `json:"years_required"`
	// MeetsRequirement 年限是否达标，与证据强度相互独立
	MeetsRequirement bool `json:"meets_requirement"`
	// EvidenceMatched 检索评级是否认定该技能有证据支持
	EvidenceMatched bool             `json:"evidence_matched"`
	Strength        EvidenceStrength `json:"strength"`
	// Note 降级说明，例如该技能的证据评级不可用
	Note string `json:"note,omitempty"`
}

// ScoreResult 一次评分请求的最终结果，产出后不可变
type ScoreResult struct {
	// OverallScore 取值[0,100]的整数
	OverallScore int `json:"overall_score"`
	// 各分项取值[0,100]
	CoreSkillsScore float64      `json:"core_skills_score"`
	ExperienceScore float64      `json:"experience_score"`
	AdditionalScore float64      `json:"additional_score"`
	SkillScores     []SkillScore `json:"skill_scores"`
}
