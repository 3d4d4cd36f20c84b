package storage_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"
)

const collectionExistsBody = `{"result": {"config": {"params": {"vectors": {"size": 4, "distance": "Cosine"}}}}}`

// qdrantStub 记录请求的Qdrant模拟服务器
type qdrantStub struct {
	mu         sync.Mutex
	upsertBody []byte
	deleteBody []byte
	searchBody []byte
	searchResp string
}

func (s *qdrantStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.URL.Path == "/collections/test_chunks" && r.Method == http.MethodGet:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(collectionExistsBody))
		case r.URL.Path == "/collections/test_chunks/points/delete" && r.Method == http.MethodPost:
			s.deleteBody = body
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"status": "completed"}}`))
		case r.URL.Path == "/collections/test_chunks/points" && r.Method == http.MethodPut:
			s.upsertBody = body
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"operation_id": 1, "status": "completed"}}`))
		case r.URL.Path == "/collections/test_chunks/points/search" && r.Method == http.MethodPost:
			s.searchBody = body
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(s.searchResp))
		default:
			t.Logf("意外请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestQdrant(t *testing.T, stub *qdrantStub) *storage.Qdrant {
	t.Helper()
	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)

	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_chunks",
		Dimension:  4,
	}, storage.WithHTTPTimeout(5*time.Second))
	require.NoError(t, err)
	return client
}

func TestNewQdrantExistingCollection(t *testing.T) {
	client := newTestQdrant(t, &qdrantStub{})
	require.NotNil(t, client)
}

func TestUpsertChunkVectors(t *testing.T) {
	stub := &qdrantStub{}
	client := newTestQdrant(t, stub)

	chunks := []types.Chunk{
		{Text: "在 Acme 使用 Go 开发", SequenceIndex: 0, JobContext: &types.WorkHistoryEntry{Company: "Acme", Title: "工程师", StartPeriod: "2020-01"}},
		{Text: "运维 Kafka 集群", SequenceIndex: 1},
	}
	vectors := [][]float64{{0.1, 0.2, 0.3, 0.4}, {0.5, 0.6, 0.7, 0.8}}

	ids, err := client.UpsertChunkVectors(context.Background(), "resume-1", chunks, vectors)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// 点ID确定性：同一简历同一分块始终同一ID
	assert.Equal(t, storage.ChunkPointID("resume-1", 0), ids[0])
	assert.Equal(t, storage.ChunkPointID("resume-1", 1), ids[1])
	assert.NotEqual(t, ids[0], ids[1])

	// 写入前按resume_id清除旧点
	var deleteReq struct {
		Filter struct {
			Must []struct {
				Key   string `json:"key"`
				Match struct {
					Value string `json:"value"`
				} `json:"match"`
			} `json:"must"`
		} `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(stub.deleteBody, &deleteReq))
	require.Len(t, deleteReq.Filter.Must, 1)
	assert.Equal(t, "resume_id", deleteReq.Filter.Must[0].Key)
	assert.Equal(t, "resume-1", deleteReq.Filter.Must[0].Match.Value)

	// 载荷携带resume_id、分块文本与工作上下文
	var upsertReq struct {
		Points []struct {
			ID      string                 `json:"id"`
			Vector  []float64              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(stub.upsertBody, &upsertReq))
	require.Len(t, upsertReq.Points, 2)
	assert.Equal(t, "resume-1", upsertReq.Points[0].Payload["resume_id"])
	assert.Equal(t, "在 Acme 使用 Go 开发", upsertReq.Points[0].Payload["content_text"])
	assert.Equal(t, "Acme", upsertReq.Points[0].Payload["job_company"])
	assert.NotContains(t, upsertReq.Points[1].Payload, "job_company")
}

func TestUpsertChunkVectorsValidation(t *testing.T) {
	client := newTestQdrant(t, &qdrantStub{})

	// 数量不匹配
	_, err := client.UpsertChunkVectors(context.Background(), "resume-1",
		[]types.Chunk{{Text: "a"}}, [][]float64{})
	assert.Error(t, err)

	// 维度不匹配
	_, err = client.UpsertChunkVectors(context.Background(), "resume-1",
		[]types.Chunk{{Text: "a"}}, [][]float64{{0.1, 0.2}})
	assert.Error(t, err)

	// 空输入直接成功
	ids, err := client.UpsertChunkVectors(context.Background(), "resume-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchChunks(t *testing.T) {
	stub := &qdrantStub{
		searchResp: `{
			"result": [
				{"id": "p1", "score": 0.92, "payload": {"resume_id": "resume-1", "content_text": "使用 Go 构建服务"}},
				{"id": "p2", "score": 0.75, "payload": {"resume_id": "resume-1", "content_text": "运维 Kafka"}}
			]
		}`,
	}
	client := newTestQdrant(t, stub)

	hits, err := client.SearchChunks(context.Background(), "resume-1", []float64{0.1, 0.2, 0.3, 0.4}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "p1", hits[0].ID)
	assert.InDelta(t, 0.92, hits[0].Similarity, 1e-9)
	assert.Equal(t, "使用 Go 构建服务", hits[0].Text)

	// 检索请求必须按resume_id过滤
	var searchReq struct {
		Limit  int `json:"limit"`
		Filter struct {
			Must []struct {
				Key   string `json:"key"`
				Match struct {
					Value string `json:"value"`
				} `json:"match"`
			} `json:"must"`
		} `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(stub.searchBody, &searchReq))
	assert.Equal(t, 10, searchReq.Limit)
	require.Len(t, searchReq.Filter.Must, 1)
	assert.Equal(t, "resume_id", searchReq.Filter.Must[0].Key)
	assert.Equal(t, "resume-1", searchReq.Filter.Must[0].Match.Value)
}

func TestSearchChunksDimensionMismatch(t *testing.T) {
	client := newTestQdrant(t, &qdrantStub{})

	_, err := client.SearchChunks(context.Background(), "resume-1", []float64{0.1}, 10)
	assert.Error(t, err)
}
