package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"resume-match-go/internal/types"
)

func evidenceWith(strength types.EvidenceStrength) types.EvidenceMatch {
	return types.EvidenceMatch{
		Matched:  strength != types.StrengthNone,
		Strength: strength,
	}
}

func experienceWith(years float64) types.SkillExperience {
	return types.SkillExperience{SkillName: "Go", TotalYears: years}
}

func requirementWith(minYears float64) types.JobRequirement {
	return types.JobRequirement{SkillName: "Go", Importance: types.ImportanceRequired, MinYears: minYears}
}

func TestScoreSkillYearsMet(t *testing.T) {
	// 强证据且年限达标: 1.0*0.6 + 1.0*0.4 = 1.0
	score := ScoreSkill(evidenceWith(types.StrengthStrong), experienceWith(5.5), requirementWith(5))
	assert.InDelta(t, 1.0, score.Score, 1e-9)
	assert.True(t, score.MeetsRequirement)
	assert.True(t, score.EvidenceMatched)
}

func TestScoreSkillYearsShortfall(t *testing.T) {
	// 强证据但年限不足0.5年: years_value = 1 - 0.5*0.15 = 0.925
	// score = 0.6 + 0.925*0.4 = 0.97
	score := ScoreSkill(evidenceWith(types.StrengthStrong), experienceWith(2.5), requirementWith(3))
	assert.InDelta(t, 0.97, score.Score, 1e-9)
	assert.False(t, score.MeetsRequirement)
	// 年限不达标不影响证据事实
	assert.True(t, score.EvidenceMatched)
}

func TestScoreSkillNoEvidence(t *testing.T) {
	// 无证据哨兵输入正常计算，不报错
	score := ScoreSkill(NoEvidence(), experienceWith(10), requirementWith(3))
	assert.InDelta(t, 0.4, score.Score, 1e-9)
	assert.False(t, score.EvidenceMatched)
	assert.True(t, score.MeetsRequirement)
	assert.Equal(t, types.StrengthNone, score.Strength)
}

func TestScoreSkillStrengthTable(t *testing.T) {
	cases := []struct {
		strength types.EvidenceStrength
		expected float64
	}{
		{types.StrengthStrong, 1.0},
		{types.StrengthModerate, 0.7},
		{types.StrengthWeak, 0.4},
		{types.StrengthNone, 0.0},
	}
	for _, tc := range cases {
		t.Run(string(tc.strength), func(t *testing.T) {
			score := ScoreSkill(evidenceWith(tc.strength), experienceWith(5), requirementWith(5))
			assert.InDelta(t, tc.expected*0.6+0.4, score.Score, 1e-9)
		})
	}
}

func TestScoreSkillYearsValueFloor(t *testing.T) {
	// 缺口极大时years_value触底为0，不为负
	score := ScoreSkill(evidenceWith(types.StrengthWeak), experienceWith(0), requirementWith(20))
	assert.InDelta(t, 0.4*0.6, score.Score, 1e-9)
}

func TestScoreSkillBoundedness(t *testing.T) {
	strengths := []types.EvidenceStrength{
		types.StrengthNone, types.StrengthWeak, types.StrengthModerate, types.StrengthStrong,
	}
	years := []float64{0, 0.5, 1, 2.5, 5, 10, 30}
	for _, s := range strengths {
		for _, found := range years {
			for _, req := range years {
				score := ScoreSkill(evidenceWith(s), experienceWith(found), requirementWith(req))
				assert.GreaterOrEqual(t, score.Score, 0.0)
				assert.LessOrEqual(t, score.Score, 1.0)
			}
		}
	}
}

func TestScoreSkillMonotonicInYears(t *testing.T) {
	// 证据固定时增加年限得分单调不减
	prev := -1.0
	for years := 0.0; years <= 6.0; years += 0.5 {
		score := ScoreSkill(evidenceWith(types.StrengthModerate), experienceWith(years), requirementWith(5))
		assert.GreaterOrEqual(t, score.Score, prev)
		prev = score.Score
	}
}

func TestScoreSkillMonotonicInStrength(t *testing.T) {
	// 年限固定时增强证据得分单调不减
	order := []types.EvidenceStrength{
		types.StrengthNone, types.StrengthWeak, types.StrengthModerate, types.StrengthStrong,
	}
	prev := -1.0
	for _, s := range order {
		score := ScoreSkill(evidenceWith(s), experienceWith(2), requirementWith(5))
		assert.GreaterOrEqual(t, score.Score, prev)
		prev = score.Score
	}
}

func TestScoreSkillDeterministic(t *testing.T) {
	a := ScoreSkill(evidenceWith(types.StrengthModerate), experienceWith(2.5), requirementWith(3))
	b := ScoreSkill(evidenceWith(types.StrengthModerate), experienceWith(2.5), requirementWith(3))
	assert.Equal(t, a, b)
}
