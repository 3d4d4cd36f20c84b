package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeChunk 简历分块表
// 每份简历的分块在重新摄取时整份替换，(resume_id, sequence_index)唯一
type ResumeChunk struct {
	ChunkDBID      uint64         `gorm:"primaryKey;autoIncrement"`
	ResumeID       string         `gorm:"type:varchar(64);not null;index:idx_chunks_resume_id;uniqueIndex:idx_chunks_resume_seq,priority:1"`
	SequenceIndex  int            `gorm:"not null;uniqueIndex:idx_chunks_resume_seq,priority:2"`
	ChunkText      string         `gorm:"type:text;not null"`
	JobContextJSON datatypes.JSON `gorm:"type:json"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ResumeChunk) TableName() string {
	return "resume_chunks"
}

// ResumeProfile 简历画像表，摄取阶段写入，评分阶段只读
type ResumeProfile struct {
	ResumeID          string         `gorm:"type:varchar(64);primaryKey"`
	TotalYears        float64        `gorm:"type:double;not null"`
	HasCertifications bool           `gorm:"not null;default:false"`
	HasProjects       bool           `gorm:"not null;default:false"`
	WorkHistoryJSON   datatypes.JSON `gorm:"type:json"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ResumeProfile) TableName() string {
	return "resume_profiles"
}

// SkillExperience 技能经验表，每技能一行
// 单份简历的所有行在一个事务内整体换掉，不做逐行更新
type SkillExperience struct {
	ExperienceID  uint64         `gorm:"primaryKey;autoIncrement"`
	ResumeID      string         `gorm:"type:varchar(64);not null;index:idx_exp_resume_id;uniqueIndex:idx_exp_resume_skill,priority:1"`
	SkillName     string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_exp_resume_skill,priority:2"`
	TotalYears    float64        `gorm:"type:double;not null"`
	BreakdownJSON datatypes.JSON `gorm:"type:json"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (SkillExperience) TableName() string {
	return "resume_skill_experiences"
}

// MatchScore 评分结果表，每次评分请求新增一行
type MatchScore struct {
	RunID           string         `gorm:"type:char(36);primaryKey"`
	ResumeID        string         `gorm:"type:varchar(64);not null;index:idx_scores_resume_id"`
	JobID           string         `gorm:"type:varchar(64);index:idx_scores_job_id_overall,priority:1"`
	OverallScore    int            `gorm:"not null;index:idx_scores_job_id_overall,priority:2"`
	CoreSkillsScore float64        `gorm:"type:double;not null"`
	ExperienceScore float64        `gorm:"type:double;not null"`
	AdditionalScore float64        `gorm:"type:double;not null"`
	SkillScoresJSON datatypes.JSON `gorm:"type:json"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (MatchScore) TableName() string {
	return "match_scores"
}
