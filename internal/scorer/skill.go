package scorer

import (
	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// strengthValues 证据强度到数值的固定映射
var strengthValues = map[types.EvidenceStrength]float64{
	types.StrengthStrong:   1.0,
	types.StrengthModerate: 0.7,
	types.StrengthWeak:     0.4,
	types.StrengthNone:     0.0,
}

// ScoreSkill 计算单项技能要求的得分
// 证据强度与年限达标度按固定权重合成；年限是否达标与证据强度
// 是两个独立事实，分别上报
func ScoreSkill(evidence types.EvidenceMatch, experience types.SkillExperience, requirement types.JobRequirement) types.SkillScore {
	evidenceValue := strengthValues[evidence.Strength]

	yearsValue := 1.0
	if experience.TotalYears < requirement.MinYears {
		yearsValue = 1.0 - (requirement.MinYears-experience.TotalYears)*constants.YearsShortfallPenalty
		if yearsValue < 0 {
			yearsValue = 0
		}
	}

	score := evidenceValue*constants.EvidenceWeight + yearsValue*constants.YearsWeight
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return types.SkillScore{
		SkillName:        requirement.SkillName,
		Score:            score,
		YearsFound:       experience.TotalYears,
		YearsRequired:    requirement.MinYears,
		MeetsRequirement: experience.TotalYears >= requirement.MinYears,
		EvidenceMatched:  evidence.Matched,
		Strength:         evidence.Strength,
	}
}
