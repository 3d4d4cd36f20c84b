package scorer

import (
	"strings"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// AggregateExperience 把LLM报告的原始工作匹配合并为单个技能的经验汇总
// 同一公司（大小写不敏感）的重复记录只保留时长更长的一条，绝不累加；
// 空输入是合法结果，表示技能被提及但没有使用证据
func AggregateExperience(skillName string, matches []types.OracleJobMatch) types.SkillExperience {
	experience := types.SkillExperience{
		SkillName:    skillName,
		JobBreakdown: []types.JobBreakdownEntry{},
	}

	// 公司名小写 -> JobBreakdown中的下标，保持首次出现的顺序
	seen := make(map[string]int)

	for _, match := range matches {
		company := strings.TrimSpace(match.Company)
		if company == "" {
			continue
		}
		duration := match.DurationMonths
		if duration < 0 {
			duration = 0
		}

		key := strings.ToLower(company)
		if idx, ok := seen[key]; ok {
			if duration > experience.JobBreakdown[idx].DurationMonths {
				experience.JobBreakdown[idx] = types.JobBreakdownEntry{
					Company:        company,
					DurationMonths: duration,
					EvidenceText:   match.Evidence,
				}
			}
			continue
		}

		seen[key] = len(experience.JobBreakdown)
		experience.JobBreakdown = append(experience.JobBreakdown, types.JobBreakdownEntry{
			Company:        company,
			DurationMonths: duration,
			EvidenceText:   match.Evidence,
		})
	}

	totalMonths := 0
	for _, job := range experience.JobBreakdown {
		totalMonths += job.DurationMonths
	}
	// 内部保留完整浮点精度，只在展示边界做舍入
	experience.TotalYears = float64(totalMonths) / constants.MonthsPerYear

	return experience
}
