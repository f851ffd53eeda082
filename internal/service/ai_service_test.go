package service

import (
	"ai_interviewer_backend/internal/config"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionResponse(content string, promptTokens, completionTokens int) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newTestAIService(baseURL string) *AIService {
	return NewAIService(config.AIConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Model:          "test-model",
		MaxRetries:     3,
		RetryBackoff:   time.Millisecond,
		RequestTimeout: time.Second,
	})
}

func TestChatSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		fmt.Fprint(w, completionResponse("the answer", 10, 5))
	}))
	defer server.Close()

	svc := newTestAIService(server.URL)
	content, err := svc.Chat(context.Background(), "question_generation", "system", "prompt", 1)
	require.NoError(t, err)
	assert.Equal(t, "the answer", content)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestChatRetriesThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, completionResponse("recovered", 1, 1))
	}))
	defer server.Close()

	svc := newTestAIService(server.URL)
	content, err := svc.Chat(context.Background(), "question_generation", "system", "prompt", 1)
	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, 3, calls)
}

func TestChatRetriesExhausted(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestAIService(server.URL)
	_, err := svc.Chat(context.Background(), "question_generation", "system", "prompt", 1)
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestChatContextCancelStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestAIService(server.URL)
	_, err := svc.Chat(ctx, "question_generation", "system", "prompt", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatJSONToleratesFencedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fenced := "Here is the result:\n```json\n{\"score\": 8, \"rationale\": \"solid\"}\n```"
		fmt.Fprint(w, completionResponse(fenced, 1, 1))
	}))
	defer server.Close()

	svc := newTestAIService(server.URL)
	var out struct {
		Score     int    `json:"score"`
		Rationale string `json:"rationale"`
	}
	require.NoError(t, svc.ChatJSON(context.Background(), "answer_evaluation", "system", "prompt", 1, &out))
	assert.Equal(t, 8, out.Score)
	assert.Equal(t, "solid", out.Rationale)
}

func TestChatJSONMalformedOutputCountsAsFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, completionResponse("I cannot answer in JSON", 1, 1))
	}))
	defer server.Close()

	svc := newTestAIService(server.URL)
	var out map[string]interface{}
	err := svc.ChatJSON(context.Background(), "answer_evaluation", "system", "prompt", 1, &out)
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

type recordedUsage struct {
	interviewID      uint
	agent            string
	model            string
	promptTokens     int
	completionTokens int
}

type fakeUsageRecorder struct {
	mu      sync.Mutex
	records []recordedUsage
}

func (r *fakeUsageRecorder) RecordUsage(interviewID uint, agent, model string, promptTokens, completionTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedUsage{interviewID, agent, model, promptTokens, completionTokens})
}

func TestChatRecordsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionResponse("ok", 42, 17))
	}))
	defer server.Close()

	recorder := &fakeUsageRecorder{}
	svc := newTestAIService(server.URL)
	svc.SetUsageRecorder(recorder)

	_, err := svc.Chat(context.Background(), "report_generation", "system", "prompt", 9)
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	got := recorder.records[0]
	assert.Equal(t, uint(9), got.interviewID)
	assert.Equal(t, "report_generation", got.agent)
	assert.Equal(t, "test-model", got.model)
	assert.Equal(t, 42, got.promptTokens)
	assert.Equal(t, 17, got.completionTokens)
}
