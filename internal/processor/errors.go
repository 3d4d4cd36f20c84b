package processor

import (
	"errors"
	"fmt"

	"resume-match-go/internal/types"
)

// 流水线内部的基础错误类型
var (
	ErrPersistenceFailed = errors.New("持久化操作失败")
	ErrVectorStoreFailed = errors.New("向量索引操作失败")
	ErrEmbeddingFailed   = errors.New("向量计算失败")
	ErrPublishFailed     = errors.New("发布事件失败")
)

// PipelineError 携带操作阶段和简历ID的自定义错误
type PipelineError struct {
	ResumeID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 简历:%s): %s", e.BaseErr, e.Op, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 简历:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *PipelineError) Unwrap() error {
	return e.BaseErr
}

// Is 实现errors.Is以支持错误比较
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

func newPipelineError(resumeID, op string, base error, detail string) error {
	return &PipelineError{
		ResumeID: resumeID,
		Op:       op,
		BaseErr:  base,
		Detail:   detail,
	}
}

// NewInvalidInputError 流水线收到非法输入
func NewInvalidInputError(resumeID, detail string) error {
	return newPipelineError(resumeID, "validate", types.ErrInvalidArgument, detail)
}

// NewPersistenceError 持久化读写失败
func NewPersistenceError(resumeID, op, detail string) error {
	return newPipelineError(resumeID, op, ErrPersistenceFailed, detail)
}

// NewVectorStoreError 向量索引读写失败
func NewVectorStoreError(resumeID, detail string) error {
	return newPipelineError(resumeID, "vector_store", ErrVectorStoreFailed, detail)
}

// NewEmbeddingError 向量计算失败
func NewEmbeddingError(resumeID, detail string) error {
	return newPipelineError(resumeID, "embed", ErrEmbeddingFailed, detail)
}

// NewPublishError 事件发布失败
func NewPublishError(resumeID, detail string) error {
	return newPipelineError(resumeID, "publish", ErrPublishFailed, detail)
}
