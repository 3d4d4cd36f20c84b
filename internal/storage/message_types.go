package storage

import "time"

// ResumeIngestMessage 简历摄取请求消息
// 由上游上传/提取服务投递到摄取队列，文本已归一化
type ResumeIngestMessage struct {
	ResumeID   string    `json:"resume_id"`
	Text       string    `json:"text"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// ResumeMatchMessage 评分请求消息
// 简历必须已完成摄取，岗位描述为原始文本
type ResumeMatchMessage struct {
	ResumeID       string `json:"resume_id"`
	JobID          string `json:"job_id,omitempty"`
	JobDescription string `json:"job_description"`
}
