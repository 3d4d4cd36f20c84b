package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/scorer"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("resume-match-go/storage/qdrant")

// QdrantPointIDNamespace 生成确定性分块点ID的专用命名空间
// 同一份简历的同一分块始终映射到同一个点ID，重复摄取即覆盖写
// UUID generated via `uuidgen`
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("2b1f61a4-9c3e-47d0-b5a2-64d07c1b9f3a"))

// Qdrant 分块向量索引客户端，走HTTP接口
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	apiKey         string
	httpClient     *http.Client
	logger         zerolog.Logger
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithQdrantLogger 设置自定义日志记录器
func WithQdrantLogger(l zerolog.Logger) QdrantOption {
	return func(q *Qdrant) {
		q.logger = l
	}
}

// NewQdrant 创建Qdrant客户端并确保集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}

	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "resume_chunks"
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024 // 与阿里云Embedding默认维度一致
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		distanceMetric: "Cosine",
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger.Logger.With().Str("component", "qdrant").Logger(),
	}

	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collectionName, err)
	}

	q.logger.Info().
		Str("endpoint", endpoint).
		Str("collection", collectionName).
		Int("dimension", vectorSize).
		Msg("Qdrant客户端就绪")
	return q, nil
}

// newRequest 构造带追踪上下文和鉴权头的HTTP请求
func (q *Qdrant) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// ensureCollectionExists 确保向量集合存在，不存在时创建
func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	req, err := q.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建检查集合请求失败: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("发送检查集合请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found", trace.WithAttributes(
			attribute.String("action", "create_collection"),
		))
		return q.createCollection(ctx)
	} else if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("检查集合失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.TruncateString(string(body), 200))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	// 校验现有集合的向量参数与当前配置一致
	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("读取集合信息响应失败: %w", err)
	}
	if err := json.Unmarshal(body, &collectionInfo); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("解析集合信息失败: %w", err)
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	existingDistance := collectionInfo.Result.Config.Params.Vectors.Distance
	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		q.logger.Warn().
			Int("existing_size", existingSize).
			Str("existing_distance", existingDistance).
			Int("expected_size", q.vectorSize).
			Str("expected_distance", q.distanceMetric).
			Msg("现有集合配置与当前配置不匹配")
		span.AddEvent("collection_config_mismatch", trace.WithAttributes(
			attribute.Int("expected_vector_size", q.vectorSize),
			attribute.String("expected_distance", q.distanceMetric),
		))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 创建新的向量集合
func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}
	jsonData, err := json.Marshal(createReqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("序列化创建集合请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	req, err := q.newRequest(ctx, http.MethodPut, url, jsonData)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合请求对象失败: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("发送创建集合请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("创建集合失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.TruncateString(string(body), 200))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	// resume_id是检索的必选过滤条件，建立payload索引
	if err := q.createResumeIDIndex(ctx); err != nil {
		q.logger.Warn().Err(err).Msg("创建resume_id索引失败，检索仍可用但会变慢")
	}

	span.SetStatus(codes.Ok, "")
	q.logger.Info().Str("collection", q.collectionName).Int("dimension", q.vectorSize).Msg("已创建Qdrant集合")
	return nil
}

// createResumeIDIndex 为resume_id载荷字段建立keyword索引
func (q *Qdrant) createResumeIDIndex(ctx context.Context) error {
	indexReqBody := map[string]interface{}{
		"field_name":   "resume_id",
		"field_schema": "keyword",
	}
	jsonData, err := json.Marshal(indexReqBody)
	if err != nil {
		return fmt.Errorf("序列化索引请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/index", q.endpoint, q.collectionName)
	req, err := q.newRequest(ctx, http.MethodPut, url, jsonData)
	if err != nil {
		return fmt.Errorf("创建索引请求对象失败: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送索引请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("创建索引失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.TruncateString(string(body), 200))
	}
	return nil
}

// ChunkPointID 返回某简历某分块的确定性点ID
func ChunkPointID(resumeID string, sequenceIndex int) string {
	idSource := fmt.Sprintf("resume_id:%s_seq:%d", resumeID, sequenceIndex)
	return uuid.NewV5(QdrantPointIDNamespace, idSource).String()
}

// UpsertChunkVectors 写入一份简历的全部分块向量
// 先按resume_id清除旧点再写入，重新摄取不会留下超出新分块数的陈旧点
func (q *Qdrant) UpsertChunkVectors(ctx context.Context, resumeID string, chunks []types.Chunk, vectors [][]float64) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertChunkVectors",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert_vectors"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", resumeID),
		attribute.Int("vectors.count", len(vectors)),
	)

	if len(chunks) != len(vectors) {
		err := fmt.Errorf("分块数量(%d)与向量数量(%d)不匹配", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if len(vectors) == 0 {
		span.SetStatus(codes.Ok, "no vectors to store")
		return []string{}, nil
	}

	if err := q.deleteResumePoints(ctx, resumeID); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	points := make([]interface{}, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for i, vector := range vectors {
		if len(vector) != q.vectorSize {
			err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(vector), q.vectorSize)
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return nil, err
		}

		chunk := chunks[i]
		pointID := ChunkPointID(resumeID, chunk.SequenceIndex)
		ids = append(ids, pointID)

		payload := map[string]interface{}{
			"resume_id":      resumeID,
			"sequence_index": chunk.SequenceIndex,
			"content_text":   chunk.Text,
		}
		if chunk.JobContext != nil {
			payload["job_company"] = chunk.JobContext.Company
			if chunk.JobContext.Title != "" {
				payload["job_title"] = chunk.JobContext.Title
			}
			if chunk.JobContext.StartPeriod != "" {
				payload["job_start_period"] = chunk.JobContext.StartPeriod
			}
		}

		points = append(points, map[string]interface{}{
			"id":      pointID,
			"vector":  vector,
			"payload": payload,
		})
	}

	upsertReqBody := map[string]interface{}{"points": points}
	jsonData, err := json.Marshal(upsertReqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("序列化向量写入请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.endpoint, q.collectionName)
	req, err := q.newRequest(ctx, http.MethodPut, url, jsonData)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("创建向量写入请求失败: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("发送向量写入请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("向量写入失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.TruncateString(string(body), 200))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	q.logger.Debug().Str("resume_id", resumeID).Int("points", len(ids)).Msg("分块向量写入完成")
	return ids, nil
}

// deleteResumePoints 按resume_id过滤删除该简历的所有点
func (q *Qdrant) deleteResumePoints(ctx context.Context, resumeID string) error {
	deleteReqBody := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"key":   "resume_id",
					"match": map[string]interface{}{"value": resumeID},
				},
			},
		},
	}
	jsonData, err := json.Marshal(deleteReqBody)
	if err != nil {
		return fmt.Errorf("序列化点删除请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", q.endpoint, q.collectionName)
	req, err := q.newRequest(ctx, http.MethodPost, url, jsonData)
	if err != nil {
		return fmt.Errorf("创建点删除请求失败: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送点删除请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("删除旧分块点失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.TruncateString(string(body), 200))
	}
	return nil
}

// SearchChunks 在单份简历的分块内做向量近邻检索
// 按resume_id过滤，结果按原始相似度降序
func (q *Qdrant) SearchChunks(ctx context.Context, resumeID string, vector []float64, limit int) ([]scorer.ChunkHit, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.SearchChunks",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", resumeID),
		attribute.Int("search.limit", limit),
	)

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	searchReqBody := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"key":   "resume_id",
					"match": map[string]interface{}{"value": resumeID},
				},
			},
		},
	}
	jsonData, err := json.Marshal(searchReqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("序列化检索请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.endpoint, q.collectionName)
	req, err := q.newRequest(ctx, http.MethodPost, url, jsonData)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("创建检索请求失败: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("发送检索请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("向量检索失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.TruncateString(string(body), 200))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	var searchResp struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("读取检索响应失败: %w", err)
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	hits := make([]scorer.ChunkHit, 0, len(searchResp.Result))
	for _, item := range searchResp.Result {
		text, _ := item.Payload["content_text"].(string)
		hits = append(hits, scorer.ChunkHit{
			ID:         item.ID,
			Similarity: item.Score,
			Text:       text,
		})
	}

	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	if len(hits) > 0 {
		span.SetAttributes(attribute.String("search.top_preview", tracing.SafeChunkContent(hits[0].Text)))
	}
	span.SetStatus(codes.Ok, "")
	return hits, nil
}
