package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehenaz/docsort/internal/page"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    page.Label
		inEnum  bool
		wantErr error
	}{
		{"canonical", `{"category":"KYC","subCategory":"Aadhar"}`, page.Label{Category: page.KYC, SubCategory: "Aadhar"}, true, nil},
		{"legacy code", `{"category":"IC","subCategory":"Salary Slip"}`, page.Label{Category: page.IncomeCertificate, SubCategory: "Salary Slip"}, true, nil},
		{"missing sub falls back to category", `{"category":"Photo"}`, page.Label{Category: page.Photo, SubCategory: "Photo"}, true, nil},
		{"fenced", "```json\n{\"category\":\"LD\",\"subCategory\":\"Deed\"}\n```", page.Label{Category: page.LegalDocument, SubCategory: "Deed"}, true, nil},
		{"out of enum keeps raw text", `{"category":"Invoice","subCategory":"GST"}`, page.Label{Category: page.Other, SubCategory: "Invoice"}, false, nil},
		{"empty", "   ", page.Label{}, false, ErrEmptyResponse},
		{"no category", `{"subCategory":"x"}`, page.Label{}, false, ErrEmptyResponse},
		{"garbage", "sure! it is a PAN card", page.Label{}, false, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inEnum, err := ParseLabel(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.inEnum, inEnum)
		})
	}
}

func TestClassificationPromptListsEveryCategory(t *testing.T) {
	for _, c := range page.Categories() {
		assert.Contains(t, ClassificationPrompt, "'"+string(c)+"'")
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "success", Reason(nil))
	assert.Equal(t, "empty", Reason(ErrEmptyResponse))
	assert.Equal(t, "malformed", Reason(fmt.Errorf("%w: eof", ErrMalformedResponse)))
	assert.Equal(t, "rate_limited", Reason(ErrRateLimited))
	assert.Equal(t, "timeout", Reason(context.DeadlineExceeded))
	assert.Equal(t, "http_5xx", Reason(&HTTPError{StatusCode: 503}))
	assert.Equal(t, "http_4xx", Reason(&HTTPError{StatusCode: 400}))
	assert.Equal(t, "error", Reason(errors.New("boom")))
}

func TestNewClient(t *testing.T) {
	for engine, name := range map[string]string{"gemini": "gemini", "OpenAI": "openai", "claude": "anthropic"} {
		c, err := NewClient(engine, Keys{})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := NewClient("bard", Keys{})
	assert.Error(t, err)
}

func request() Request {
	return Request{Model: "m", Image: []byte{1, 2, 3}, ImageMIME: "image/jpeg", SystemPrompt: "sys", UserPrompt: "user", Timeout: time.Second}
}

func TestOpenAIClient_Do(t *testing.T) {
	var got openAIChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"category\":\"KYC\"}"}}],"usage":{"prompt_tokens":7,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key")
	c.endpoint = srv.URL
	resp, err := c.Do(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, `{"category":"KYC"}`, resp.Text)
	assert.Equal(t, 7, resp.TokensIn)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "image_url", got.Messages[1].Content[0]["type"])
}

func TestOpenAIClient_Errors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key")
	c.endpoint = srv.URL

	_, err := c.Do(context.Background(), request())
	assert.ErrorIs(t, err, ErrRateLimited)

	status = http.StatusBadGateway
	_, err = c.Do(context.Background(), request())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "nope", httpErr.Body)

	_, err = NewOpenAIClient("").Do(context.Background(), request())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAnthropicClient_Do(t *testing.T) {
	var got anthropicMsgReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"category\":\"Photo\"}"}],"usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key")
	c.endpoint = srv.URL
	resp, err := c.Do(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, `{"category":"Photo"}`, resp.Text)
	assert.Equal(t, "sys", got.System)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, "image", got.Messages[0].Content[0].Type)
	assert.Equal(t, "AQID", got.Messages[0].Content[0].Source.Data)
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key")
	c.endpoint = srv.URL
	_, err := c.Do(context.Background(), request())
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiClient_SharesOneConnection(t *testing.T) {
	c := NewGeminiClient("key")
	first, err := c.conn(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second, err := c.conn(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, c.Close())
	assert.Nil(t, c.client)
	assert.NoError(t, c.Close())
}

func TestGeminiClient_MissingKeyCreatesNothing(t *testing.T) {
	c := NewGeminiClient("")
	_, err := c.Do(context.Background(), request())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Nil(t, c.client)
}
