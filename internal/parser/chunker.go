package parser

import (
	"strings"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// WordChunker 基于词的滑动窗口分块器
// 将归一化简历文本切成固定大小、带重叠的分块，并为每个分块
// 关联最相关的工作经历作为上下文
type WordChunker struct {
	windowWords  int
	overlapWords int
}

// NewWordChunker 创建默认参数的分块器
func NewWordChunker() *WordChunker {
	return &WordChunker{
		windowWords:  constants.ChunkWindowWords,
		overlapWords: constants.ChunkOverlapWords,
	}
}

// NewWordChunkerWithSize 创建指定窗口与重叠词数的分块器，
// 重叠必须小于窗口，否则回退到默认值
func NewWordChunkerWithSize(windowWords, overlapWords int) *WordChunker {
	if windowWords <= 0 || overlapWords < 0 || overlapWords >= windowWords {
		return NewWordChunker()
	}
	return &WordChunker{
		windowWords:  windowWords,
		overlapWords: overlapWords,
	}
}

// Chunk 将文本切分为带重叠的分块序列
// 相邻分块共享固定数量的重叠词；文档末尾的分块可以更短但不补齐
// 空文本返回空列表而非错误
func (c *WordChunker) Chunk(text string, history []types.WorkHistoryEntry) []types.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []types.Chunk{}
	}

	step := c.windowWords - c.overlapWords
	chunks := make([]types.Chunk, 0, (len(words)+step-1)/step)

	for start, seq := 0, 0; start < len(words); start, seq = start+step, seq+1 {
		end := start + c.windowWords
		if end > len(words) {
			end = len(words)
		}

		chunkText := strings.Join(words[start:end], " ")
		chunks = append(chunks, types.Chunk{
			Text:          chunkText,
			SequenceIndex: seq,
			JobContext:    c.associateJobContext(chunkText, history),
		})

		if end == len(words) {
			break
		}
	}

	return chunks
}

// associateJobContext 为分块选出关键字重合度最高的工作经历
// 重合度是公司名、职位和各技术关键字在分块文本中的大小写不敏感
// 出现次数之和；并列时取start_period最近的经历；全部为零时无关联
func (c *WordChunker) associateJobContext(chunkText string, history []types.WorkHistoryEntry) *types.WorkHistoryEntry {
	lowerChunk := strings.ToLower(chunkText)

	var best *types.WorkHistoryEntry
	bestCount := 0

	for i := range history {
		entry := &history[i]
		count := keywordOccurrences(lowerChunk, entry)
		if count == 0 {
			continue
		}
		if count > bestCount {
			best = entry
			bestCount = count
			continue
		}
		// start_period为"YYYY-MM"格式，字典序即时间序
		if count == bestCount && entry.StartPeriod > best.StartPeriod {
			best = entry
		}
	}

	return best
}

// keywordOccurrences 统计一段工作经历的所有关键字在分块中的出现次数
func keywordOccurrences(lowerChunk string, entry *types.WorkHistoryEntry) int {
	count := 0
	count += countOccurrences(lowerChunk, entry.Company)
	count += countOccurrences(lowerChunk, entry.Title)
	for _, tech := range entry.Technologies {
		count += countOccurrences(lowerChunk, tech)
	}
	return count
}

func countOccurrences(lowerChunk, keyword string) int {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return 0
	}
	return strings.Count(lowerChunk, keyword)
}
