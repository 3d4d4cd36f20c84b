package types

import "errors"

// 错误分类。放在types包中供parser/scorer/processor共同包装，避免循环依赖
var (
	// ErrInvalidArgument 纯函数收到非法或越界输入，不重试，直接上抛
	ErrInvalidArgument = errors.New("非法参数")

	// ErrOracleParse LLM响应不是合法JSON或不符合schema
	ErrOracleParse = errors.New("LLM响应解析失败")

	// ErrOracleThrottled LLM服务限流拒绝
	ErrOracleThrottled = errors.New("LLM服务限流")

	// ErrOracleTimeout LLM调用超时
	ErrOracleTimeout = errors.New("LLM调用超时")

	// ErrAggregationInput 聚合输入不一致（如技能得分引用了不存在的要求项）
	ErrAggregationInput = errors.New("聚合输入不一致")
)
