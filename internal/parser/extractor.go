package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// OracleExtractor 在LLMOracle之上提供面向简历和岗位的结构化抽取
// 每种抽取对应一种固定schema的提示词
type OracleExtractor struct {
	oracle    *LLMOracle
	batchSize int
	// now 用于推算"至今"的工作时长，测试中可注入固定时钟
	now func() time.Time
}

// OracleExtractorOption 抽取器的配置选项
type OracleExtractorOption func(*OracleExtractor)

// WithClock 注入自定义时钟
func WithClock(now func() time.Time) OracleExtractorOption {
	return func(e *OracleExtractor) {
		e.now = now
	}
}

// WithSkillBatchSize 设置技能经验抽取每批携带的技能数
func WithSkillBatchSize(size int) OracleExtractorOption {
	return func(e *OracleExtractor) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// NewOracleExtractor 创建结构化抽取器
func NewOracleExtractor(oracle *LLMOracle, options ...OracleExtractorOption) *OracleExtractor {
	extractor := &OracleExtractor{
		oracle:    oracle,
		batchSize: constants.SkillExtractionBatchSize,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(extractor)
	}
	return extractor
}

const skillListSystemPrompt = `你是简历分析助手。从简历文本中识别候选人掌握的技术技能，` +
	`按简历中的突出程度排序。只输出JSON对象：{"skills": ["技能1", "技能2", ...]}。` +
	`技能名使用简历中出现的原始写法，不要翻译，不要输出JSON之外的任何内容。`

// ExtractSkills 从简历文本抽取技能列表，按突出程度排序
func (e *OracleExtractor) ExtractSkills(ctx context.Context, resumeText string) ([]string, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: 简历文本为空", types.ErrInvalidArgument)
	}

	var payload struct {
		Skills []string `json:"skills"`
	}
	if err := e.oracle.CompleteJSON(ctx, skillListSystemPrompt, resumeText, &payload); err != nil {
		return nil, err
	}

	skills := make([]string, 0, len(payload.Skills))
	for _, s := range payload.Skills {
		s = strings.TrimSpace(s)
		if s != "" {
			skills = append(skills, s)
		}
	}
	return skills, nil
}

const workHistorySystemPrompt = `你是简历分析助手。从简历文本中抽取完整的工作经历列表。` +
	`只输出JSON对象：{"work_history": [{"company": "公司名", "title": "职位", ` +
	`"start_period": "YYYY-MM", "end_period": "YYYY-MM或空字符串表示至今", ` +
	`"duration_months": 整数月数, "technologies": ["该段工作使用的技术"]}]}。` +
	`日期无法确定时输出空字符串，不要编造。不要输出JSON之外的任何内容。`

// ExtractWorkHistory 从简历文本抽取工作经历
// LLM未给出时长时根据起止日期推算，"至今"按当前时间计算
func (e *OracleExtractor) ExtractWorkHistory(ctx context.Context, resumeText string) ([]types.WorkHistoryEntry, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: 简历文本为空", types.ErrInvalidArgument)
	}

	var payload struct {
		WorkHistory []types.WorkHistoryEntry `json:"work_history"`
	}
	if err := e.oracle.CompleteJSON(ctx, workHistorySystemPrompt, resumeText, &payload); err != nil {
		return nil, err
	}

	entries := make([]types.WorkHistoryEntry, 0, len(payload.WorkHistory))
	for _, entry := range payload.WorkHistory {
		if strings.TrimSpace(entry.Company) == "" {
			continue
		}
		if entry.DurationMonths <= 0 {
			entry.DurationMonths = e.deriveDurationMonths(entry.StartPeriod, entry.EndPeriod)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// deriveDurationMonths 根据"YYYY-MM"格式的起止日期推算月数
// 结束为空表示至今，按注入的时钟计算；无法解析时返回0
func (e *OracleExtractor) deriveDurationMonths(startPeriod, endPeriod string) int {
	start, err := time.Parse("2006-01", strings.TrimSpace(startPeriod))
	if err != nil {
		return 0
	}

	var end time.Time
	if strings.TrimSpace(endPeriod) == "" {
		end = e.now()
	} else {
		end, err = time.Parse("2006-01", strings.TrimSpace(endPeriod))
		if err != nil {
			return 0
		}
	}

	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months < 0 {
		return 0
	}
	return months
}

const skillMatchesSystemPrompt = `你是简历分析助手。给定简历文本和一组技能，找出每个技能在哪些工作中被实际使用。` +
	`只输出JSON对象：{"skills": [{"skill_name": "技能名", "job_matches": [{"company": "公司名", ` +
	`"duration_months": 该段工作的月数, "evidence": "简历中支持该判断的原文片段"}]}]}。` +
	`技能未在任何工作中使用时job_matches输出空数组。skill_name必须与输入技能名完全一致。` +
	`不要输出JSON之外的任何内容。`

// ExtractSkillJobMatches 按批次询问每个技能在哪些工作中被使用
// 返回技能名到原始工作匹配的映射，未出现的技能映射为空列表
func (e *OracleExtractor) ExtractSkillJobMatches(ctx context.Context, resumeText string, skills []string) (map[string][]types.OracleJobMatch, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: 简历文本为空", types.ErrInvalidArgument)
	}

	result := make(map[string][]types.OracleJobMatch, len(skills))
	for _, skill := range skills {
		result[skill] = nil
	}

	for start := 0; start < len(skills); start += e.batchSize {
		end := start + e.batchSize
		if end > len(skills) {
			end = len(skills)
		}
		batch := skills[start:end]

		var payload struct {
			Skills []struct {
				SkillName  string                 `json:"skill_name"`
				JobMatches []types.OracleJobMatch `json:"job_matches"`
			} `json:"skills"`
		}

		userPrompt := fmt.Sprintf("【技能列表】\n%s\n\n【简历文本】\n%s",
			strings.Join(batch, "\n"), resumeText)
		if err := e.oracle.CompleteJSON(ctx, skillMatchesSystemPrompt, userPrompt, &payload); err != nil {
			return nil, err
		}

		for _, item := range payload.Skills {
			name := strings.TrimSpace(item.SkillName)
			if _, ok := result[name]; !ok {
				// LLM偶尔会改写技能名，尝试大小写不敏感归位
				matched := false
				for _, skill := range batch {
					if strings.EqualFold(skill, name) {
						name = skill
						matched = true
						break
					}
				}
				if !matched {
					continue
				}
			}
			result[name] = append(result[name], item.JobMatches...)
		}
	}

	return result, nil
}

const resumeTraitsSystemPrompt = `你是简历分析助手。判断简历是否包含持证信息和项目经历。` +
	`只输出JSON对象：{"has_certifications": true或false, "has_projects": true或false}。` +
	`has_certifications指简历中列出了职业证书、认证或资质；has_projects指简历中有独立的项目经历描述。` +
	`不要输出JSON之外的任何内容。`

// ExtractResumeTraits 判断简历是否包含证书和项目经历
func (e *OracleExtractor) ExtractResumeTraits(ctx context.Context, resumeText string) (*types.ResumeTraits, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: 简历文本为空", types.ErrInvalidArgument)
	}

	var traits types.ResumeTraits
	if err := e.oracle.CompleteJSON(ctx, resumeTraitsSystemPrompt, resumeText, &traits); err != nil {
		return nil, err
	}
	return &traits, nil
}

const jobProfileSystemPrompt = `你是招聘需求分析助手。从岗位描述中抽取结构化的技能要求。` +
	`只输出JSON对象：{"title": "岗位名称", "required_years": 岗位要求的总工作年限(数字，未提及输出0), ` +
	`"requirements": [{"skill_name": "技能名", "importance": "critical|required|nice_to_have", ` +
	`"min_years": 该技能要求的最低年限(数字，未提及输出0), "name_variants": ["常见别名或缩写"]}]}。` +
	`importance取值：岗位描述中决定性/必须精通的技能为critical，明确要求的为required，` +
	`加分项为nice_to_have。不要输出JSON之外的任何内容。`

// ExtractJobProfile 从岗位描述抽取结构化要求
func (e *OracleExtractor) ExtractJobProfile(ctx context.Context, jobDescription string) (*types.JobProfile, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("%w: 岗位描述为空", types.ErrInvalidArgument)
	}

	var profile types.JobProfile
	if err := e.oracle.CompleteJSON(ctx, jobProfileSystemPrompt, jobDescription, &profile); err != nil {
		return nil, err
	}

	requirements := make([]types.JobRequirement, 0, len(profile.Requirements))
	for _, req := range profile.Requirements {
		req.SkillName = strings.TrimSpace(req.SkillName)
		if req.SkillName == "" {
			continue
		}
		switch req.Importance {
		case types.ImportanceCritical, types.ImportanceRequired, types.ImportanceNiceToHave:
		default:
			return nil, fmt.Errorf("%w: 未知的importance取值 %q", types.ErrOracleParse, req.Importance)
		}
		if req.MinYears < 0 {
			req.MinYears = 0
		}
		requirements = append(requirements, req)
	}
	profile.Requirements = requirements

	if profile.RequiredYears < 0 {
		profile.RequiredYears = 0
	}
	return &profile, nil
}

const evidenceGradeSystemPrompt = `你是简历证据评估助手。判断给定的简历片段是否支持候选人具备某项技能。` +
	`只输出JSON对象：{"matched": true或false, "strength": "strong|moderate|weak|none", ` +
	`"quote": "片段中最能支持判断的原文引用", "reasoning": "一句话说明理由"}。` +
	`评级标准：strong表示技能被明确用于工作、项目或职责中；moderate表示技能被使用但细节有限；` +
	`weak表示技能仅被列出或提及；none表示片段不支持该技能。不要输出JSON之外的任何内容。`

// GradeEvidence 让LLM评估简历片段对某技能的支持强度
func (e *OracleExtractor) GradeEvidence(ctx context.Context, skillName, chunkText string) (*types.EvidenceGrade, error) {
	if strings.TrimSpace(skillName) == "" || strings.TrimSpace(chunkText) == "" {
		return nil, fmt.Errorf("%w: 技能名或片段为空", types.ErrInvalidArgument)
	}

	var grade types.EvidenceGrade
	userPrompt := fmt.Sprintf("【技能】\n%s\n\n【简历片段】\n%s", skillName, chunkText)
	if err := e.oracle.CompleteJSON(ctx, evidenceGradeSystemPrompt, userPrompt, &grade); err != nil {
		return nil, err
	}

	if !grade.Strength.Valid() {
		return nil, fmt.Errorf("%w: 未知的strength取值 %q", types.ErrOracleParse, grade.Strength)
	}
	// 强度为none时不允许matched为true
	if grade.Strength == types.StrengthNone {
		grade.Matched = false
	}
	return &grade, nil
}
