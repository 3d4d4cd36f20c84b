package constants

import "time"

// 评分策略常量。固定的产品决策，不按请求配置，调整需要重新发布
const (
	// ChunkWindowWords 分块窗口词数
	ChunkWindowWords = 250
	// ChunkOverlapWords 相邻分块重叠词数
	ChunkOverlapWords = 50

	// KeywordBoostFactor 混合检索中命中关键字的相似度放大倍数
	KeywordBoostFactor = 1.5
	// DefaultEvidenceTopK 证据检索默认候选数量
	DefaultEvidenceTopK = 10

	// EvidenceWeight 技能分中证据强度的权重
	EvidenceWeight = 0.6
	// YearsWeight 技能分中年限达标度的权重
	YearsWeight = 0.4
	// YearsShortfallPenalty 技能年限每差1年的线性衰减
	YearsShortfallPenalty = 0.15

	// CoreSkillsWeight 总分中核心技能项的权重
	CoreSkillsWeight = 0.60
	// ExperienceWeight 总分中总经验项的权重
	ExperienceWeight = 0.25
	// AdditionalWeight 总分中附加项的权重
	AdditionalWeight = 0.15
	// ExperienceGapPenalty 总经验每差1年扣除的分数（0-100制）
	ExperienceGapPenalty = 10.0
	// CertificationPoints 持有证书的附加分
	CertificationPoints = 50.0
	// ProjectPoints 有项目经历的附加分
	ProjectPoints = 50.0

	// MonthsPerYear 工作时长月数转年数的除数
	MonthsPerYear = 12.0

	// DefaultTopSkillsPerResume 每份简历参与经验聚合的技能数量上限，
	// 用于限制LLM调用量
	DefaultTopSkillsPerResume = 30
	// SkillExtractionBatchSize 每次LLM经验抽取提示词携带的技能数
	SkillExtractionBatchSize = 10
)

// 外部调用的重试与缓存常量
const (
	// DefaultMaxOracleAttempts 解析/限流错误的最大尝试次数
	DefaultMaxOracleAttempts = 3
	// DefaultInitialBackoff 重试的初始退避间隔
	DefaultInitialBackoff = 1 * time.Second

	// OracleCacheDuration LLM响应缓存的过期时间
	OracleCacheDuration = 24 * time.Hour
)
