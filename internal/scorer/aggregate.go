package scorer

import (
	"fmt"
	"math"
	"strings"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// AggregateInput 总分聚合的输入
type AggregateInput struct {
	SkillScores  []types.SkillScore
	Requirements []types.JobRequirement
	// ResumeTotalYears 候选人的总工作年限
	ResumeTotalYears float64
	// JDRequiredYears 岗位要求的总工作年限
	JDRequiredYears   float64
	HasCertifications bool
	HasProjects       bool
}

// AggregateScores 把各技能得分合成最终的0-100总分
// 纯函数，无I/O；合法输入不报错，畸形输入按分类报错而非产出无意义分数
func AggregateScores(input AggregateInput) (*types.ScoreResult, error) {
	if input.ResumeTotalYears < 0 || input.JDRequiredYears < 0 {
		return nil, fmt.Errorf("%w: 年限不能为负", types.ErrInvalidArgument)
	}
	for _, req := range input.Requirements {
		if req.MinYears < 0 {
			return nil, fmt.Errorf("%w: 要求项 %q 的最低年限为负", types.ErrInvalidArgument, req.SkillName)
		}
	}

	// 每个技能得分必须引用要求列表中的某一项
	reqByName := make(map[string]types.JobRequirement, len(input.Requirements))
	for _, req := range input.Requirements {
		reqByName[strings.ToLower(req.SkillName)] = req
	}
	scoreByName := make(map[string]types.SkillScore, len(input.SkillScores))
	for _, score := range input.SkillScores {
		key := strings.ToLower(score.SkillName)
		if _, ok := reqByName[key]; !ok {
			return nil, fmt.Errorf("%w: 技能得分 %q 未对应任何要求项", types.ErrAggregationInput, score.SkillName)
		}
		scoreByName[key] = score
	}

	coreScore := computeCoreSkillsScore(input.Requirements, scoreByName)
	expScore := computeExperienceScore(input.ResumeTotalYears, input.JDRequiredYears)

	additionalScore := 0.0
	if input.HasCertifications {
		additionalScore += constants.CertificationPoints
	}
	if input.HasProjects {
		additionalScore += constants.ProjectPoints
	}

	overall := coreScore*constants.CoreSkillsWeight +
		expScore*constants.ExperienceWeight +
		additionalScore*constants.AdditionalWeight

	return &types.ScoreResult{
		OverallScore:    clampInt(roundHalfUp(overall), 0, 100),
		CoreSkillsScore: coreScore,
		ExperienceScore: expScore,
		AdditionalScore: additionalScore,
		SkillScores:     input.SkillScores,
	}, nil
}

// computeCoreSkillsScore 核心技能得分：critical与required要求中
// 有证据支持的比例。核心集合为空时定义为满分而非未定义
func computeCoreSkillsScore(requirements []types.JobRequirement, scoreByName map[string]types.SkillScore) float64 {
	coreTotal := 0
	coreMatched := 0
	for _, req := range requirements {
		if !req.Importance.IsCore() {
			continue
		}
		coreTotal++
		if score, ok := scoreByName[strings.ToLower(req.SkillName)]; ok && score.EvidenceMatched {
			coreMatched++
		}
	}

	if coreTotal == 0 {
		return 100.0
	}
	return float64(coreMatched) / float64(coreTotal) * 100.0
}

// computeExperienceScore 总经验得分，年限不足时线性衰减
func computeExperienceScore(resumeYears, requiredYears float64) float64 {
	if resumeYears >= requiredYears {
		return 100.0
	}
	score := 100.0 - (requiredYears-resumeYears)*constants.ExperienceGapPenalty
	if score < 0 {
		return 0.0
	}
	return score
}

// roundHalfUp 四舍五入到整数，0.5向上进位
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
