package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *AliyunEmbedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	embedder, err := NewAliyunEmbedder("test_key", config.EmbeddingConfig{
		Model:      "text-embedding-v3",
		Dimensions: 4,
		BaseURL:    server.URL,
	})
	require.NoError(t, err)
	return embedder
}

func TestEmbedStrings(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))

		var req aliyunEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v3", req.Model)
		assert.Equal(t, 4, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "embedding": [0.1, 0.2, 0.3, 0.4], "index": 0},
				{"object": "embedding", "embedding": [0.5, 0.6, 0.7, 0.8], "index": 1}
			],
			"model": "text-embedding-v3",
			"usage": {"prompt_tokens": 8, "total_tokens": 8}
		}`))
	})

	vectors, err := embedder.EmbedStrings(context.Background(), []string{"第一段", "第二段"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, vectors[0])
	assert.Equal(t, 4, embedder.GetDimensions())
}

func TestEmbedStringsEmptyInput(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("空输入不应发起HTTP请求")
	})

	vectors, err := embedder.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedStringsAPIError(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "Requests rate limit exceeded", "type": "rate_limit", "code": "429"}`))
	})

	_, err := embedder.EmbedStrings(context.Background(), []string{"文本"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmbedStringsAPIErrorInBody(t *testing.T) {
	// 状态码200但响应体携带错误
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "list", "data": [], "error": {"message": "input too long", "type": "invalid_request_error"}}`))
	})

	_, err := embedder.EmbedStrings(context.Background(), []string{"文本"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input too long")
}

func TestNewAliyunEmbedderRequiresKey(t *testing.T) {
	_, err := NewAliyunEmbedder("", config.EmbeddingConfig{})
	assert.Error(t, err)
}
