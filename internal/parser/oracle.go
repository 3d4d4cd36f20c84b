package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/types"
)

// LLMOracle 封装对话模型的调用与响应解析
// 所有结构化抽取都通过它走统一的错误分类和JSON修复路径
type LLMOracle struct {
	llmModel model.ToolCallingChatModel
	logger   zerolog.Logger
}

// LLMOracleOption LLM封装的配置选项
type LLMOracleOption func(*LLMOracle)

// WithOracleLogger 设置自定义日志记录器
func WithOracleLogger(l zerolog.Logger) LLMOracleOption {
	return func(o *LLMOracle) {
		o.logger = l
	}
}

// NewLLMOracle 创建LLM封装实例
func NewLLMOracle(llmModel model.ToolCallingChatModel, options ...LLMOracleOption) *LLMOracle {
	oracle := &LLMOracle{
		llmModel: llmModel,
		logger:   logger.Logger,
	}
	for _, opt := range options {
		opt(oracle)
	}
	return oracle
}

// Complete 执行一次对话补全，返回原始文本内容
func (o *LLMOracle) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if o.llmModel == nil {
		return "", fmt.Errorf("%w: llmModel未初始化", types.ErrInvalidArgument)
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage(systemPrompt),
		einoschema.UserMessage(userPrompt),
	}

	o.logger.Debug().
		Int("system_prompt_len", len(systemPrompt)).
		Int("user_prompt_len", len(userPrompt)).
		Msg("调用LLM")

	response, err := o.llmModel.Generate(ctx, messages)
	if err != nil {
		return "", classifyOracleError(err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("%w: LLM返回空响应", types.ErrOracleParse)
	}

	// 去除BOM
	return strings.TrimPrefix(response.Content, "\uFEFF"), nil
}

// CompleteJSON 执行对话补全并把响应中的JSON对象反序列化到out
// 先做括号匹配提取，解析失败后尝试自动修复字符串内的未转义引号
func (o *LLMOracle) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, out interface{}) error {
	content, err := o.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}

	jsonStr := extractJSONObject(content)
	if jsonStr == "" {
		return fmt.Errorf("%w: 响应中未找到JSON对象", types.ErrOracleParse)
	}

	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		fixed := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixed), out); jsonErr != nil {
			o.logger.Warn().
				Err(err).
				Str("json_head", truncateForLog(jsonStr, 200)).
				Msg("LLM响应JSON修复后仍无法解析")
			return fmt.Errorf("%w: %v", types.ErrOracleParse, err)
		}
	}

	return nil
}

// classifyOracleError 把底层LLM错误归到统一的错误分类
func classifyOracleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrOracleTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return fmt.Errorf("%w: %v", types.ErrOracleTimeout, err)
	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "throttl") ||
		strings.Contains(msg, "限流"):
		return fmt.Errorf("%w: %v", types.ErrOracleThrottled, err)
	}
	return fmt.Errorf("LLM调用失败: %w", err)
}

// extractJSONObject 从文本中按括号匹配提取首个完整的JSON对象
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 遍历src，把位于字符串字面量内部但并非真正结束的双引号
// 改写为转义形式，保证JSON能够反序列化。
// 通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该引号是否为字符串结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}

func truncateForLog(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
